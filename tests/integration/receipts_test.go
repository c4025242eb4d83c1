//go:build integration
// +build integration

// Package integration provides end-to-end tests for the receipts service.
//
// These tests drive the complete scoring pipeline:
//
//	JSON body -> validation -> rules -> ledger -> repository -> points lookup
//
// Run with: go test -tags=integration -v ./tests/integration/...
//
// By default an in-process server is started. Set RECEIPTS_TEST_URL to run
// the HTTP scenarios against a server that is already running.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/opensource-finance/receipts/internal/api"
	"github.com/opensource-finance/receipts/internal/bus"
	"github.com/opensource-finance/receipts/internal/domain"
	"github.com/opensource-finance/receipts/internal/processor"
	"github.com/opensource-finance/receipts/internal/repository"
	"github.com/opensource-finance/receipts/internal/rules"
	"github.com/opensource-finance/receipts/internal/worker"
)

type pointsResponse struct {
	Points        int64 `json:"points"`
	PointsAwarded int64 `json:"pointsAwarded"`
}

type receiptResponse struct {
	ID            string               `json:"id"`
	PointsAwarded int64                `json:"pointsAwarded"`
	Ledger        []domain.LedgerEntry `json:"ledger"`
}

func newProcessor(t *testing.T, eventBus domain.EventBus) *processor.Processor {
	t.Helper()
	engine, err := rules.NewDefaultEngine()
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return processor.New(engine, repository.NewMemory(), eventBus)
}

// baseURL returns RECEIPTS_TEST_URL or the URL of a fresh in-process server.
func baseURL(t *testing.T) string {
	t.Helper()
	if url := os.Getenv("RECEIPTS_TEST_URL"); url != "" {
		return url
	}
	srv := api.NewServer(domain.ServerConfig{}, newProcessor(t, nil), nil, "integration")
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts.URL
}

func do(t *testing.T, method, url string, body []byte) (int, []byte) {
	t.Helper()

	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}
	return resp.StatusCode, respBody
}

func process(t *testing.T, url, receipt string) string {
	t.Helper()
	status, body := do(t, http.MethodPost, url+"/receipts/process", []byte(receipt))
	if status != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", status, body)
	}
	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("Failed to unmarshal response: %v (body: %s)", err, body)
	}
	return result.ID
}

func points(t *testing.T, url, id string) pointsResponse {
	t.Helper()
	status, body := do(t, http.MethodGet, url+"/receipts/"+id+"/points", nil)
	if status != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", status, body)
	}
	var result pointsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("Failed to unmarshal response: %v (body: %s)", err, body)
	}
	return result
}

const targetReceipt = `{
	"retailer": "Target",
	"purchaseDate": "2022-01-01",
	"purchaseTime": "13:01",
	"items": [
		{"shortDescription": "Mountain Dew 12PK", "price": "6.49"},
		{"shortDescription": "Emils Cheese Pizza", "price": "12.25"},
		{"shortDescription": "Knorr Creamy Chicken", "price": "1.26"},
		{"shortDescription": "Doritos Nacho Cheese", "price": "3.35"},
		{"shortDescription": "   Klarbrunn 12-PK 12 FL OZ  ", "price": "12.00"}
	],
	"total": "35.35"
}`

const cornerMarketReceipt = `{
	"retailer": "M&M Corner Market",
	"purchaseDate": "2022-03-20",
	"purchaseTime": "14:33",
	"items": [
		{"shortDescription": "Gatorade", "price": "2.25"},
		{"shortDescription": "Gatorade", "price": "2.25"},
		{"shortDescription": "Gatorade", "price": "2.25"},
		{"shortDescription": "Gatorade", "price": "2.25"}
	],
	"total": "9.00"
}`

const singleItemReceipt = `{
	"retailer": "Target",
	"purchaseDate": "2022-01-02",
	"purchaseTime": "13:13",
	"total": "1.25",
	"items": [{"shortDescription": "Pepsi - 12-oz", "price": "1.25"}]
}`

const morningReceipt = `{
	"retailer": "Walgreens",
	"purchaseDate": "2022-01-02",
	"purchaseTime": "08:13",
	"total": "2.65",
	"items": [
		{"shortDescription": "Pepsi - 12-oz", "price": "1.25"},
		{"shortDescription": "Dasani", "price": "1.40"}
	]
}`

// ============================================================================
// SCENARIO 1: Known receipts score their published totals
// ============================================================================

func TestKnownReceipts(t *testing.T) {
	url := baseURL(t)

	tests := []struct {
		name    string
		receipt string
		want    int64
	}{
		{"target", targetReceipt, 28},
		{"corner market", cornerMarketReceipt, 109},
		{"single item", singleItemReceipt, 31},
		{"morning", morningReceipt, 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := process(t, url, tt.receipt)
			got := points(t, url, id)
			if got.Points != tt.want || got.PointsAwarded != tt.want {
				t.Errorf("Expected %d points, got %+v", tt.want, got)
			}
		})
	}
}

// ============================================================================
// SCENARIO 2: The stored ledger explains the score
// ============================================================================

func TestLedgerSumsToPoints(t *testing.T) {
	url := baseURL(t)
	id := process(t, url, targetReceipt)

	status, body := do(t, http.MethodGet, url+"/receipts/"+id, nil)
	if status != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", status, body)
	}

	var result receiptResponse
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	var sum int64
	for _, entry := range result.Ledger {
		if entry.PointsAwarded <= 0 {
			t.Errorf("Ledger entry %s has non-positive points %d", entry.RuleName, entry.PointsAwarded)
		}
		sum += entry.PointsAwarded
	}
	if sum != result.PointsAwarded || sum != 28 {
		t.Errorf("Ledger sums to %d, pointsAwarded %d, expected 28", sum, result.PointsAwarded)
	}
}

// ============================================================================
// SCENARIO 3: Invalid receipts and unknown ids
// ============================================================================

func TestRejectedReceipt(t *testing.T) {
	url := baseURL(t)

	status, body := do(t, http.MethodPost, url+"/receipts/process", []byte(`{
		"retailer": "Target",
		"purchaseDate": "Jan 1st",
		"purchaseTime": "13:01",
		"total": "1.00",
		"items": [{"shortDescription": "x", "price": "1.00"}]
	}`))
	if status != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d: %s", status, body)
	}

	var result struct {
		Error string `json:"error"`
		Field string `json:"field"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if result.Error == "" || result.Field != "purchaseDate" {
		t.Errorf("Expected purchaseDate error, got %+v", result)
	}
}

func TestUnknownReceipt(t *testing.T) {
	url := baseURL(t)

	status, body := do(t, http.MethodGet, url+"/receipts/00000000-0000-0000-0000-000000000000/points", nil)
	if status != http.StatusNotFound {
		t.Fatalf("Expected status 404, got %d: %s", status, body)
	}

	status, _ = do(t, http.MethodGet, url+"/receipts/not-a-uuid/points", nil)
	if status != http.StatusBadRequest {
		t.Errorf("Expected status 400 for malformed id, got %d", status)
	}
}

// ============================================================================
// SCENARIO 4: Asynchronous submission over the event bus
// ============================================================================

func TestBusSubmission(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	w := worker.NewWorker(eventBus, newProcessor(t, eventBus))
	if err := w.Start(); err != nil {
		t.Fatalf("Failed to start worker: %v", err)
	}
	defer w.Stop()

	var mu sync.Mutex
	processed := make(map[string]domain.ProcessedEvent)
	done := make(chan struct{}, 4)

	ctx := context.Background()
	_, err := eventBus.Subscribe(ctx, domain.TopicReceiptProcessed, func(_ context.Context, msg *domain.Message) error {
		var event domain.ProcessedEvent
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			return err
		}
		mu.Lock()
		processed[event.CorrelationID] = event
		mu.Unlock()
		done <- struct{}{}
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}

	want := map[string]int64{
		"target":        28,
		"corner-market": 109,
		"single-item":   31,
		"morning":       15,
	}
	receipts := map[string]string{
		"target":        targetReceipt,
		"corner-market": cornerMarketReceipt,
		"single-item":   singleItemReceipt,
		"morning":       morningReceipt,
	}

	for id, receipt := range receipts {
		payload, _ := json.Marshal(map[string]any{
			"correlationId": id,
			"receipt":       json.RawMessage(receipt),
		})
		if err := eventBus.Publish(ctx, domain.TopicReceiptSubmitted, payload); err != nil {
			t.Fatalf("Failed to publish: %v", err)
		}
	}

	timeout := time.After(5 * time.Second)
	for range want {
		select {
		case <-done:
		case <-timeout:
			t.Fatal("Timed out waiting for processed events")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for id, points := range want {
		event, ok := processed[id]
		if !ok {
			t.Errorf("No processed event for %s", id)
			continue
		}
		if event.PointsAwarded != points {
			t.Errorf("%s: expected %d points, got %d", id, points, event.PointsAwarded)
		}
	}
}

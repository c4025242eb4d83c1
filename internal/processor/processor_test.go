package processor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/opensource-finance/receipts/internal/bus"
	"github.com/opensource-finance/receipts/internal/domain"
	"github.com/opensource-finance/receipts/internal/repository"
	"github.com/opensource-finance/receipts/internal/rules"
)

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

func newTestProcessor(t *testing.T, eventBus domain.EventBus) (*Processor, *repository.MemoryRepository) {
	t.Helper()
	engine, err := rules.NewDefaultEngine()
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	repo := repository.NewMemory()
	return New(engine, repo, eventBus), repo
}

// subscribe returns a channel receiving every payload published on topic.
func subscribe(t *testing.T, eventBus domain.EventBus, topic string) <-chan []byte {
	t.Helper()
	ch := make(chan []byte, 10)
	_, err := eventBus.Subscribe(context.Background(), topic, func(ctx context.Context, msg *domain.Message) error {
		ch <- msg.Payload
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	return ch
}

func receive(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case payload := <-ch:
		return payload
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
		return nil
	}
}

func TestProcess(t *testing.T) {
	eventBus := bus.NewChannelBus(10)
	defer eventBus.Close()
	processed := subscribe(t, eventBus, domain.TopicReceiptProcessed)

	proc, repo := newTestProcessor(t, eventBus)
	ctx := context.Background()

	id, err := proc.Process(ctx, []byte(targetReceipt))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	t.Run("Stored", func(t *testing.T) {
		got, err := proc.Lookup(ctx, id)
		if err != nil {
			t.Fatalf("Lookup failed: %v", err)
		}
		if got.PointsAwarded != 28 {
			t.Errorf("expected 28 points, got %d", got.PointsAwarded)
		}
		if len(got.Ledger) != 4 {
			t.Errorf("expected 4 ledger entries, got %d", len(got.Ledger))
		}
		if got.Receipt.Total.Cents() != 3535 {
			t.Errorf("expected total 3535 cents, got %d", got.Receipt.Total.Cents())
		}
		if repo.Len() != 1 {
			t.Errorf("expected 1 stored receipt, got %d", repo.Len())
		}
	})

	t.Run("EventPublished", func(t *testing.T) {
		var event domain.ProcessedEvent
		if err := json.Unmarshal(receive(t, processed), &event); err != nil {
			t.Fatalf("failed to decode event: %v", err)
		}
		if event.ID != id {
			t.Errorf("expected event id %s, got %s", id, event.ID)
		}
		if event.PointsAwarded != 28 {
			t.Errorf("expected 28 points in event, got %d", event.PointsAwarded)
		}
	})
}

func TestProcessValidationError(t *testing.T) {
	proc, repo := newTestProcessor(t, nil)

	_, err := proc.Process(context.Background(), []byte(`{"retailer":"Target"}`))

	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Field != "purchaseDate" {
		t.Errorf("expected field purchaseDate, got %s", verr.Field)
	}
	if repo.Len() != 0 {
		t.Error("rejected receipt must not be stored")
	}
}

func TestProcessInternalError(t *testing.T) {
	broken := rules.Func{Name: "broken", Version: 1, Fn: func(*domain.Receipt) int64 { return -5 }}
	repo := repository.NewMemory()
	proc := New(rules.NewEngine(rules.AlphanumericRule, broken), repo, nil)

	_, err := proc.Process(context.Background(), []byte(targetReceipt))
	if !errors.Is(err, domain.ErrInternal) {
		t.Fatalf("expected ErrInternal, got %v", err)
	}
	if repo.Len() != 0 {
		t.Error("failed scoring must not be stored")
	}
}

func TestProcessMap(t *testing.T) {
	eventBus := bus.NewChannelBus(10)
	defer eventBus.Close()
	processed := subscribe(t, eventBus, domain.TopicReceiptProcessed)

	proc, _ := newTestProcessor(t, eventBus)

	obj := map[string]any{
		"retailer":     "Walgreens",
		"purchaseDate": "2022-01-02",
		"purchaseTime": "08:13",
		"total":        "2.65",
		"items": []any{
			map[string]any{"shortDescription": "Pepsi - 12-oz", "price": "1.25"},
			map[string]any{"shortDescription": "Dasani", "price": "1.40"},
		},
	}

	id, err := proc.ProcessMap(context.Background(), obj, "corr-42")
	if err != nil {
		t.Fatalf("ProcessMap failed: %v", err)
	}

	var event domain.ProcessedEvent
	if err := json.Unmarshal(receive(t, processed), &event); err != nil {
		t.Fatalf("failed to decode event: %v", err)
	}
	if event.ID != id || event.CorrelationID != "corr-42" || event.PointsAwarded != 15 {
		t.Errorf("unexpected event: %+v", event)
	}
}

func TestPublishFailureDoesNotFailProcess(t *testing.T) {
	eventBus := bus.NewChannelBus(10)
	eventBus.Close()

	proc, _ := newTestProcessor(t, eventBus)

	id, err := proc.Process(context.Background(), []byte(targetReceipt))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if _, err := proc.Lookup(context.Background(), id); err != nil {
		t.Errorf("receipt should be stored despite bus failure: %v", err)
	}
	if err := proc.Ping(context.Background()); err == nil {
		t.Error("expected ping to report the closed bus")
	}
}

func TestReject(t *testing.T) {
	eventBus := bus.NewChannelBus(10)
	defer eventBus.Close()
	rejected := subscribe(t, eventBus, domain.TopicReceiptRejected)

	proc, _ := newTestProcessor(t, eventBus)
	proc.Reject(context.Background(), "corr-7", domain.InvalidMoney("total", "must be positive"))

	var event domain.RejectedEvent
	if err := json.Unmarshal(receive(t, rejected), &event); err != nil {
		t.Fatalf("failed to decode event: %v", err)
	}
	if event.CorrelationID != "corr-7" || event.Kind != "invalid_money" || event.Field != "total" {
		t.Errorf("unexpected event: %+v", event)
	}
}

func TestRules(t *testing.T) {
	proc, _ := newTestProcessor(t, nil)
	if got := len(proc.Rules()); got != 7 {
		t.Errorf("expected 7 rules, got %d", got)
	}
	if err := proc.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

// Package worker ingests receipts submitted on the event bus.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/opensource-finance/receipts/internal/domain"
	"github.com/opensource-finance/receipts/internal/processor"
)

// Worker processes receipts published on domain.TopicReceiptSubmitted.
type Worker struct {
	bus       domain.EventBus
	processor *processor.Processor

	mu            sync.Mutex
	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc

	processed atomic.Int64
	rejected  atomic.Int64
	failed    atomic.Int64
}

// Submission is the optional envelope of a submitted receipt. A payload
// without a "receipt" key is treated as the receipt itself.
type Submission struct {
	CorrelationID string         `json:"correlationId,omitempty"`
	Receipt       map[string]any `json:"receipt"`
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, proc *processor.Processor) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:       bus,
		processor: proc,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start subscribes to the submission topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicReceiptSubmitted, w.handleMessage)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.subscriptions = append(w.subscriptions, sub)
	w.mu.Unlock()

	slog.Info("worker started", "topic", domain.TopicReceiptSubmitted)
	return nil
}

// handleMessage runs one submitted receipt through the pipeline.
// Rejections are announced on the bus; only pipeline defects are returned.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	sub, err := decodeSubmission(msg.Payload)
	if err != nil {
		w.rejected.Add(1)
		w.processor.Reject(ctx, "", domain.SchemaMismatch("", "payload is not a JSON object"))
		slog.Warn("undecodable submission", "message_id", msg.ID, "error", err)
		return nil
	}

	correlationID := sub.CorrelationID
	if correlationID == "" {
		correlationID = msg.ID
	}

	id, err := w.processor.ProcessMap(ctx, sub.Receipt, correlationID)

	var verr *domain.ValidationError
	switch {
	case err == nil:
		w.processed.Add(1)
		slog.Debug("submission processed",
			"correlation_id", correlationID,
			"receipt_id", id,
		)
		return nil

	case errors.As(err, &verr):
		w.rejected.Add(1)
		w.processor.Reject(ctx, correlationID, err)
		slog.Info("submission rejected",
			"correlation_id", correlationID,
			"kind", verr.Kind,
			"field", verr.Field,
		)
		return nil

	default:
		w.failed.Add(1)
		return err
	}
}

// decodeSubmission accepts either an envelope or a bare receipt object.
func decodeSubmission(payload []byte) (*Submission, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("payload is null")
	}

	sub := &Submission{}
	if id, ok := obj["correlationId"].(string); ok {
		sub.CorrelationID = id
	}

	if inner, ok := obj["receipt"]; ok {
		receipt, _ := inner.(map[string]any)
		sub.Receipt = receipt
		if receipt == nil {
			sub.Receipt = map[string]any{}
		}
		return sub, nil
	}

	delete(obj, "correlationId")
	sub.Receipt = obj
	return sub, nil
}

// Stop unsubscribes and cancels in-flight handlers.
func (w *Worker) Stop() error {
	w.cancel()

	w.mu.Lock()
	defer w.mu.Unlock()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	slog.Info("worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
	Processed         int64    `json:"processed"`
	Rejected          int64    `json:"rejected"`
	Failed            int64    `json:"failed"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
		Processed:         w.processed.Load(),
		Rejected:          w.rejected.Load(),
		Failed:            w.failed.Load(),
	}
}

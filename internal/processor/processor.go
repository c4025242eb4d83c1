// Package processor runs the receipt pipeline: validate, score, store, announce.
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/opensource-finance/receipts/internal/domain"
	"github.com/opensource-finance/receipts/internal/rules"
	"github.com/opensource-finance/receipts/internal/validate"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("receipts-processor")

// Processor ties the rule engine to a store and, optionally, an event bus.
type Processor struct {
	engine *rules.Engine
	repo   domain.Repository
	bus    domain.EventBus
}

// New creates a processor. bus may be nil, in which case nothing is published.
func New(engine *rules.Engine, repo domain.Repository, bus domain.EventBus) *Processor {
	return &Processor{
		engine: engine,
		repo:   repo,
		bus:    bus,
	}
}

// Process validates a JSON receipt, scores it and stores the result.
// Validation failures are returned as *domain.ValidationError.
func (p *Processor) Process(ctx context.Context, raw []byte) (string, error) {
	receipt, err := validate.Receipt(raw)
	if err != nil {
		return "", err
	}
	return p.process(ctx, receipt, "")
}

// ProcessMap is Process for a receipt that was already decoded, tagging the
// published event with correlationID.
func (p *Processor) ProcessMap(ctx context.Context, obj map[string]any, correlationID string) (string, error) {
	receipt, err := validate.Map(obj)
	if err != nil {
		return "", err
	}
	return p.process(ctx, receipt, correlationID)
}

func (p *Processor) process(ctx context.Context, receipt *domain.Receipt, correlationID string) (string, error) {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "processor.process",
		trace.WithAttributes(
			attribute.String("receipt.retailer", receipt.Retailer),
			attribute.Int("receipt.items", len(receipt.Items)),
		),
	)
	defer span.End()

	result, err := p.engine.Score(ctx, receipt)
	if err != nil {
		span.SetStatus(codes.Error, "scoring failed")
		slog.Error("scoring failed",
			"retailer", receipt.Retailer,
			"error", err,
		)
		return "", err
	}

	id, err := p.repo.Insert(ctx, result, *receipt)
	if err != nil {
		span.SetStatus(codes.Error, "insert failed")
		return "", err
	}
	span.SetAttributes(
		attribute.String("receipt.id", id),
		attribute.Int64("points.awarded", result.PointsAwarded),
	)

	p.publish(ctx, domain.TopicReceiptProcessed, domain.ProcessedEvent{
		ID:            id,
		CorrelationID: correlationID,
		PointsAwarded: result.PointsAwarded,
		Ledger:        result.Ledger,
		ProcessedAt:   time.Now().UTC(),
	})

	slog.Info("receipt processed",
		"receipt_id", id,
		"points_awarded", result.PointsAwarded,
		"rules_awarded", len(result.Ledger),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return id, nil
}

// Reject announces a receipt that failed validation.
func (p *Processor) Reject(ctx context.Context, correlationID string, err error) {
	event := domain.RejectedEvent{
		CorrelationID: correlationID,
		Error:         err.Error(),
	}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		event.Kind = string(verr.Kind)
		event.Field = verr.Field
	}
	p.publish(ctx, domain.TopicReceiptRejected, event)
}

// publish is best effort: the receipt is already stored, so a bus failure
// is logged and never surfaces to the caller.
func (p *Processor) publish(ctx context.Context, topic string, event any) {
	if p.bus == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to encode event", "topic", topic, "error", err)
		return
	}
	if err := p.bus.Publish(ctx, topic, payload); err != nil {
		slog.Warn("failed to publish event", "topic", topic, "error", err)
	}
}

// Lookup returns the stored result for id.
func (p *Processor) Lookup(ctx context.Context, id string) (*domain.ProcessedReceipt, error) {
	return p.repo.Lookup(ctx, id)
}

// Rules returns the descriptors of the active rule set in evaluation order.
func (p *Processor) Rules() []domain.RuleDescriptor {
	return p.engine.Rules()
}

// Ping checks the store and the bus.
func (p *Processor) Ping(ctx context.Context) error {
	if err := p.repo.Ping(ctx); err != nil {
		return err
	}
	if p.bus != nil {
		return p.bus.Ping(ctx)
	}
	return nil
}

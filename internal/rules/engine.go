// Package rules provides the receipt scoring rules and the engine that applies them.
package rules

import (
	"context"
	"fmt"

	"github.com/opensource-finance/receipts/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("receipts-rules")

// Engine applies a fixed, ordered rule set to receipts.
// It is immutable after construction and safe for concurrent use.
type Engine struct {
	rules []Rule
}

// NewEngine creates an engine over a copy of the given rules.
func NewEngine(rules ...Rule) *Engine {
	return &Engine{
		rules: append([]Rule(nil), rules...),
	}
}

// NewDefaultEngine creates an engine over the shipped rule set.
func NewDefaultEngine() (*Engine, error) {
	set, err := Default()
	if err != nil {
		return nil, fmt.Errorf("failed to build default rules: %w", err)
	}
	return NewEngine(set...), nil
}

// Score applies every rule to the receipt.
func (e *Engine) Score(ctx context.Context, receipt *domain.Receipt) (domain.ScoringResult, error) {
	_, span := tracer.Start(ctx, "rules.score",
		trace.WithAttributes(attribute.Int("rules.count", len(e.rules))),
	)
	defer span.End()

	result, err := Score(receipt, e.rules)
	if err != nil {
		span.RecordError(err)
		return domain.ScoringResult{}, err
	}

	span.SetAttributes(
		attribute.Int64("points.awarded", result.PointsAwarded),
		attribute.Int("ledger.entries", len(result.Ledger)),
	)
	return result, nil
}

// Rules returns the descriptors of the loaded rules in evaluation order.
func (e *Engine) Rules() []domain.RuleDescriptor {
	out := make([]domain.RuleDescriptor, len(e.rules))
	for i, r := range e.rules {
		out[i] = r.Descriptor()
	}
	return out
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	return len(e.rules)
}

// Score evaluates rules in order against the receipt. The total is the sum of
// all rule outputs; only rules that awarded points appear in the ledger.
// A failing rule aborts scoring with a *domain.InternalError.
func Score(receipt *domain.Receipt, rules []Rule) (domain.ScoringResult, error) {
	if receipt == nil {
		return domain.ScoringResult{}, fmt.Errorf("%w: nil receipt", domain.ErrInternal)
	}

	result := domain.ScoringResult{
		Ledger: []domain.LedgerEntry{},
	}

	for _, rule := range rules {
		desc := rule.Descriptor()

		points, err := applyRule(rule, receipt)
		if err != nil {
			return domain.ScoringResult{}, &domain.InternalError{Rule: desc, Err: err}
		}
		if points < 0 {
			return domain.ScoringResult{}, &domain.InternalError{
				Rule: desc,
				Err:  fmt.Errorf("negative score %d", points),
			}
		}
		if points == 0 {
			continue
		}

		result.PointsAwarded += points
		result.Ledger = append(result.Ledger, domain.LedgerEntry{
			RuleName:      desc.Name,
			RuleVersion:   desc.Version,
			PointsAwarded: points,
		})
	}

	return result, nil
}

// applyRule runs a single rule, converting a panic into an error.
func applyRule(rule Rule, receipt *domain.Receipt) (points int64, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return rule.Apply(receipt)
}

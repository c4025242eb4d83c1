package domain

import "time"

// RuleDescriptor identifies a scoring rule for audit purposes.
// Version is bumped whenever the scoring logic changes; the name never changes.
type RuleDescriptor struct {
	Name    string `json:"name"`
	Version int    `json:"version"`
}

// LedgerEntry records the points a single rule contributed.
type LedgerEntry struct {
	RuleName      string `json:"ruleName"`
	RuleVersion   int    `json:"ruleVersion"`
	PointsAwarded int64  `json:"pointsAwarded"`
}

// ScoringResult is the outcome of running the rule set over a receipt.
// PointsAwarded always equals the sum of the ledger entries.
type ScoringResult struct {
	PointsAwarded int64         `json:"pointsAwarded"`
	Ledger        []LedgerEntry `json:"ledger"`
}

// ProcessedReceipt is the stored outcome of scoring a receipt.
type ProcessedReceipt struct {
	ID            string        `json:"id"`
	PointsAwarded int64         `json:"pointsAwarded"`
	Ledger        []LedgerEntry `json:"ledger"`
	Receipt       Receipt       `json:"receipt"`
	ProcessedAt   time.Time     `json:"processedAt"`
}

// Clone returns a deep copy so callers never hold references into a store.
func (p *ProcessedReceipt) Clone() *ProcessedReceipt {
	if p == nil {
		return nil
	}
	out := *p
	out.Ledger = append([]LedgerEntry(nil), p.Ledger...)
	out.Receipt = p.Receipt.Clone()
	return &out
}

// PointsResponse is the API response for a points lookup.
// Points mirrors PointsAwarded for clients that only read "points".
type PointsResponse struct {
	Points        int64 `json:"points"`
	PointsAwarded int64 `json:"pointsAwarded"`
}

// ProcessedEvent is published on the bus after a receipt is stored.
type ProcessedEvent struct {
	ID            string        `json:"id"`
	CorrelationID string        `json:"correlationId,omitempty"`
	PointsAwarded int64         `json:"pointsAwarded"`
	Ledger        []LedgerEntry `json:"ledger"`
	ProcessedAt   time.Time     `json:"processedAt"`
}

// RejectedEvent is published when a submitted receipt fails validation.
type RejectedEvent struct {
	CorrelationID string `json:"correlationId,omitempty"`
	Error         string `json:"error"`
	Kind          string `json:"kind,omitempty"`
	Field         string `json:"field,omitempty"`
}

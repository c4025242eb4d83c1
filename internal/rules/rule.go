package rules

import "github.com/opensource-finance/receipts/internal/domain"

// Rule scores a validated receipt.
//
// Apply must be total over every receipt the validator accepts and must never
// return a negative score. An error is reserved for defects and is surfaced by
// the engine as domain.ErrInternal.
type Rule interface {
	Descriptor() domain.RuleDescriptor
	Apply(receipt *domain.Receipt) (int64, error)
}

// Func adapts a plain scoring function into a Rule.
type Func struct {
	Name    string
	Version int
	Fn      func(receipt *domain.Receipt) int64
}

// Descriptor returns the rule identity.
func (f Func) Descriptor() domain.RuleDescriptor {
	return domain.RuleDescriptor{Name: f.Name, Version: f.Version}
}

// Apply runs the scoring function.
func (f Func) Apply(receipt *domain.Receipt) (int64, error) {
	return f.Fn(receipt), nil
}

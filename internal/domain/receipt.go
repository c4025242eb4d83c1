package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a positive amount held in minor units (cents).
type Money int64

var (
	hundred = decimal.NewFromInt(100)

	// maxMoney bounds parsed amounts so cents always fit in an int64.
	maxMoney = decimal.New(1, 15)
)

// ParseMoney parses a decimal amount such as "35.35" or "12" into cents.
// Amounts that are not a whole number of cents are rejected.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if d.GreaterThan(maxMoney) {
		return 0, fmt.Errorf("amount %q exceeds %s", s, maxMoney)
	}

	if !d.IsPositive() {
		return 0, fmt.Errorf("amount %q must be positive", s)
	}

	scaled := d.Mul(hundred)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has more than two fractional digits", s)
	}
	return Money(scaled.IntPart()), nil
}

// MoneyFromCents builds a Money from minor units.
func MoneyFromCents(cents int64) Money {
	return Money(cents)
}

// Cents returns the amount in minor units.
func (m Money) Cents() int64 {
	return int64(m)
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

// String formats the amount with two decimals.
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON encodes the amount as a two-decimal string, the way receipts are submitted.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts either a JSON string or a JSON number.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	}
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Item is a single purchased line on a receipt.
type Item struct {
	ShortDescription string `json:"shortDescription"`
	Price            Money  `json:"price"`
}

// Receipt is a validated purchase receipt.
// Values are treated as immutable once returned by the validator.
type Receipt struct {
	Retailer     string `json:"retailer"`
	PurchaseDate string `json:"purchaseDate"`
	PurchaseTime string `json:"purchaseTime"`
	Total        Money  `json:"total"`
	Items        []Item `json:"items"`
}

// Clone returns a copy that shares no memory with r.
func (r Receipt) Clone() Receipt {
	out := r
	out.Items = append([]Item(nil), r.Items...)
	return out
}

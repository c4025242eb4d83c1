package rules

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/opensource-finance/receipts/internal/domain"
)

// Names of the shipped rules. They identify ledger entries and never change;
// bump the version instead when scoring logic changes.
const (
	NameAlphanumeric         = "Point per alphanumeric character in retailer name"
	NameTotalMultipleQuarter = "Lump points if total is a multiple of 0.25"
	NameRoundDollarTotal     = "Lump points if total is round dollar amount (no cents)"
	NameEveryTwoItems        = "Points for every 2 items"
	NameOddPurchaseDate      = "Lump points if purchase date's day-of-month is odd number"
	NameAfternoonPurchase    = "Lump points if purchase time is between 2:00pm and 4:00pm"
	NameDescriptionLength    = "Points for every item with a description whose length is a multiple of 3"
)

// AlphanumericRule awards a point per ASCII letter or digit in the retailer name.
var AlphanumericRule = Func{
	Name:    NameAlphanumeric,
	Version: 1,
	Fn: func(r *domain.Receipt) int64 {
		var n int64
		for i := 0; i < len(r.Retailer); i++ {
			c := r.Retailer[i]
			if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' {
				n++
			}
		}
		return n
	},
}

// OddPurchaseDateRule awards 6 points when the purchase day-of-month is odd.
// Dates that do not parse as real calendar dates score nothing.
var OddPurchaseDateRule = Func{
	Name:    NameOddPurchaseDate,
	Version: 1,
	Fn: func(r *domain.Receipt) int64 {
		d, ok := calendarDate(r.PurchaseDate)
		if !ok || d.Day()%2 == 0 {
			return 0
		}
		return 6
	},
}

// calendarDate reads an ISO 8601 date, or the date part of a date-time
// written with a 'T' or space separator.
func calendarDate(s string) (time.Time, bool) {
	n := len(time.DateOnly)
	if len(s) < n {
		return time.Time{}, false
	}
	if len(s) > n && s[n] != 'T' && s[n] != ' ' {
		return time.Time{}, false
	}
	d, err := time.Parse(time.DateOnly, s[:n])
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// AfternoonPurchaseRule awards 10 points when the purchase hour is 14, 15 or 16.
// Times are local to the store; unparseable times score nothing.
var AfternoonPurchaseRule = Func{
	Name:    NameAfternoonPurchase,
	Version: 1,
	Fn: func(r *domain.Receipt) int64 {
		t, err := time.Parse("15:04", strings.TrimRightFunc(r.PurchaseTime, domain.IsSpace))
		if err != nil {
			return 0
		}
		if h := t.Hour(); h >= 14 && h <= 16 {
			return 10
		}
		return 0
	},
}

// DescriptionLengthRule awards ceil(price * 0.2) for every item whose trimmed
// description length is a multiple of 3.
var DescriptionLengthRule = Func{
	Name:    NameDescriptionLength,
	Version: 1,
	Fn: func(r *domain.Receipt) int64 {
		var points int64
		for _, item := range r.Items {
			if utf8.RuneCountInString(domain.TrimSpace(item.ShortDescription))%3 != 0 {
				continue
			}
			points += ceilFifth(item.Price.Cents())
		}
		return points
	},
}

// ceilFifth returns ceil(cents * 0.2 / 100), i.e. ceil(cents / 500), for any sign.
func ceilFifth(cents int64) int64 {
	q := cents / 500
	if cents%500 > 0 {
		q++
	}
	return q
}

// Expressions of the arithmetic rules.
const (
	exprTotalMultipleQuarter = `total_cents % 25 == 0 ? 25 : 0`
	exprRoundDollarTotal     = `total_cents % 100 == 0 ? 50 : 0`
	exprEveryTwoItems        = `item_count / 2 * 5`
)

// TotalMultipleOfQuarterRule awards 25 points when the total divides evenly by 0.25.
func TotalMultipleOfQuarterRule() (*ExpressionRule, error) {
	return NewExpressionRule(NameTotalMultipleQuarter, 1, exprTotalMultipleQuarter)
}

// RoundDollarTotalRule awards 50 points when the total has no cents.
func RoundDollarTotalRule() (*ExpressionRule, error) {
	return NewExpressionRule(NameRoundDollarTotal, 1, exprRoundDollarTotal)
}

// EveryTwoItemsRule awards 5 points per pair of items.
func EveryTwoItemsRule() (*ExpressionRule, error) {
	return NewExpressionRule(NameEveryTwoItems, 1, exprEveryTwoItems)
}

// Default returns the shipped rule set in evaluation order.
func Default() ([]Rule, error) {
	quarter, err := TotalMultipleOfQuarterRule()
	if err != nil {
		return nil, err
	}
	roundDollar, err := RoundDollarTotalRule()
	if err != nil {
		return nil, err
	}
	pairs, err := EveryTwoItemsRule()
	if err != nil {
		return nil, err
	}

	return []Rule{
		AlphanumericRule,
		quarter,
		roundDollar,
		pairs,
		OddPurchaseDateRule,
		AfternoonPurchaseRule,
		DescriptionLengthRule,
	}, nil
}

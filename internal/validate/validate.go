// Package validate turns untyped receipt payloads into domain receipts.
//
// Structural checks mirror a deliberately loose schema: purchaseDate and
// purchaseTime only need to contain a well-formed date or time somewhere,
// and calendar or clock correctness is left to the scoring rules.
package validate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"unicode"

	"github.com/opensource-finance/receipts/internal/domain"
)

// Receipt decodes a JSON document and validates it.
// Numbers are kept as decimal text so money never goes through float64.
func Receipt(raw []byte) (*domain.Receipt, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, domain.SchemaMismatch("", "body is not valid JSON")
	}
	if dec.More() {
		return nil, domain.SchemaMismatch("", "body has trailing data")
	}

	obj, ok := payload.(map[string]any)
	if !ok {
		return nil, domain.SchemaMismatch("", "body must be a JSON object")
	}
	return Map(obj)
}

// Map validates an already decoded receipt object. The first violated
// constraint is reported, checking fields in declaration order.
func Map(obj map[string]any) (*domain.Receipt, error) {
	var r domain.Receipt
	var err error

	if r.Retailer, err = text(obj, "retailer", "retailer", isRetailerRune); err != nil {
		return nil, err
	}
	if r.PurchaseDate, err = patterned(obj, "purchaseDate", datePattern); err != nil {
		return nil, err
	}
	if r.PurchaseTime, err = patterned(obj, "purchaseTime", timePattern); err != nil {
		return nil, err
	}
	if r.Total, err = money(obj["total"], "total"); err != nil {
		return nil, err
	}

	rawItems, ok := obj["items"].([]any)
	if !ok {
		return nil, domain.SchemaMismatch("items", "must be an array")
	}
	if len(rawItems) == 0 {
		return nil, domain.SchemaMismatch("items", "must contain at least one item")
	}

	r.Items = make([]domain.Item, 0, len(rawItems))
	for i, raw := range rawItems {
		field := fmt.Sprintf("items[%d]", i)
		itemObj, ok := raw.(map[string]any)
		if !ok {
			return nil, domain.SchemaMismatch(field, "must be an object")
		}

		var item domain.Item
		if item.ShortDescription, err = text(itemObj, "shortDescription", field+".shortDescription", isDescriptionRune); err != nil {
			return nil, err
		}
		if item.Price, err = money(itemObj["price"], field+".price"); err != nil {
			return nil, err
		}
		r.Items = append(r.Items, item)
	}

	return &r, nil
}

func text(obj map[string]any, key, field string, allowed func(rune) bool) (string, error) {
	s, ok := obj[key].(string)
	if !ok {
		return "", domain.SchemaMismatch(field, "must be a string")
	}
	if s == "" {
		return "", domain.SchemaMismatch(field, "must not be empty")
	}
	for _, c := range s {
		if !allowed(c) {
			return "", domain.SchemaMismatch(field, fmt.Sprintf("contains invalid character %q", c))
		}
	}
	return s, nil
}

func patterned(obj map[string]any, field, pattern string) (string, error) {
	s, ok := obj[field].(string)
	if !ok {
		return "", domain.SchemaMismatch(field, "must be a string")
	}
	if !containsPattern(s, pattern) {
		return "", domain.SchemaMismatch(field, "must contain "+pattern)
	}
	return s, nil
}

// money coerces a string or number into cents.
func money(v any, field string) (domain.Money, error) {
	var s string
	switch n := v.(type) {
	case string:
		s = n
	case json.Number:
		s = n.String()
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, domain.InvalidMoney(field, "must be finite")
		}
		s = strconv.FormatFloat(n, 'f', -1, 64)
	case int:
		s = strconv.Itoa(n)
	case int64:
		s = strconv.FormatInt(n, 10)
	case nil:
		return 0, domain.InvalidMoney(field, "is required")
	default:
		return 0, domain.InvalidMoney(field, "must be a string or number")
	}

	m, err := domain.ParseMoney(s)
	if err != nil {
		return 0, domain.InvalidMoney(field, err.Error())
	}
	return m, nil
}

func isWordRune(c rune) bool {
	return c == '_' || c < unicode.MaxASCII && (unicode.IsLetter(c) || unicode.IsDigit(c))
}

func isDescriptionRune(c rune) bool {
	return isWordRune(c) || domain.IsSpace(c) || c == '-'
}

func isRetailerRune(c rune) bool {
	return isDescriptionRune(c) || c == '&'
}

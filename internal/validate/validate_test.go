package validate

import (
	"errors"
	"testing"

	"github.com/opensource-finance/receipts/internal/domain"
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

func TestReceiptValid(t *testing.T) {
	r, err := Receipt([]byte(targetReceipt))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if r.Retailer != "Target" {
		t.Errorf("expected retailer Target, got %s", r.Retailer)
	}
	if r.Total.Cents() != 3535 {
		t.Errorf("expected total 3535 cents, got %d", r.Total.Cents())
	}
	if len(r.Items) != 5 {
		t.Fatalf("expected 5 items, got %d", len(r.Items))
	}
	if r.Items[4].ShortDescription != "   Klarbrunn 12-PK 12 FL OZ  " {
		t.Errorf("description should be kept untrimmed, got %q", r.Items[4].ShortDescription)
	}
	if r.Items[4].Price.Cents() != 1200 {
		t.Errorf("expected price 1200 cents, got %d", r.Items[4].Price.Cents())
	}
}

func TestReceiptNumericMoney(t *testing.T) {
	raw := `{"retailer":"M&M Corner Market","purchaseDate":"2022-03-20","purchaseTime":"14:33",
		"total": 9.00, "items":[{"shortDescription":"Gatorade","price": 2.25}]}`

	r, err := Receipt([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Total.Cents() != 900 {
		t.Errorf("expected 900 cents, got %d", r.Total.Cents())
	}
	if r.Items[0].Price.Cents() != 225 {
		t.Errorf("expected 225 cents, got %d", r.Items[0].Price.Cents())
	}
}

func TestReceiptLooseDateTime(t *testing.T) {
	// Calendar-invalid and clock-invalid values are syntactically fine.
	raw := `{"retailer":"Shop","purchaseDate":"2022-13-45","purchaseTime":"99:99",
		"total":"1.00","items":[{"shortDescription":"x","price":"1.00"}]}`

	r, err := Receipt([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.PurchaseDate != "2022-13-45" || r.PurchaseTime != "99:99" {
		t.Errorf("date/time altered: %s %s", r.PurchaseDate, r.PurchaseTime)
	}
}

func TestReceiptUnicodeWhitespace(t *testing.T) {
	raw := `{"retailer":"Shop\u00a0Rite","purchaseDate":"2022-01-01","purchaseTime":"13:01",
		"total":"1.00","items":[{"shortDescription":"abc\ufeff","price":"1.00"}]}`

	r, err := Receipt([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := domain.TrimSpace(r.Items[0].ShortDescription); got != "abc" {
		t.Errorf("expected trimmed description %q, got %q", "abc", got)
	}
}

func TestReceiptRejections(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		kind  domain.ValidationKind
		field string
	}{
		{
			name:  "EmptyObject",
			raw:   `{}`,
			kind:  domain.KindSchemaMismatch,
			field: "retailer",
		},
		{
			name:  "NotJSON",
			raw:   `not-json`,
			kind:  domain.KindSchemaMismatch,
			field: "",
		},
		{
			name:  "Array",
			raw:   `[]`,
			kind:  domain.KindSchemaMismatch,
			field: "",
		},
		{
			name:  "RetailerPunctuation",
			raw:   `{"retailer":"Tar$get","purchaseDate":"2022-01-01","purchaseTime":"13:01","total":"1.00","items":[{"shortDescription":"a","price":"1.00"}]}`,
			kind:  domain.KindSchemaMismatch,
			field: "retailer",
		},
		{
			name:  "BadDate",
			raw:   `{"retailer":"Target","purchaseDate":"01/01/2022","purchaseTime":"13:01","total":"1.00","items":[{"shortDescription":"a","price":"1.00"}]}`,
			kind:  domain.KindSchemaMismatch,
			field: "purchaseDate",
		},
		{
			name:  "BadTime",
			raw:   `{"retailer":"Target","purchaseDate":"2022-01-01","purchaseTime":"1pm","total":"1.00","items":[{"shortDescription":"a","price":"1.00"}]}`,
			kind:  domain.KindSchemaMismatch,
			field: "purchaseTime",
		},
		{
			name:  "ZeroTotal",
			raw:   `{"retailer":"Target","purchaseDate":"2022-01-01","purchaseTime":"13:01","total":"0","items":[{"shortDescription":"a","price":"1.00"}]}`,
			kind:  domain.KindInvalidMoney,
			field: "total",
		},
		{
			name:  "NegativeTotal",
			raw:   `{"retailer":"Target","purchaseDate":"2022-01-01","purchaseTime":"13:01","total":-50,"items":[{"shortDescription":"a","price":"1.00"}]}`,
			kind:  domain.KindInvalidMoney,
			field: "total",
		},
		{
			name:  "UnparsableTotal",
			raw:   `{"retailer":"Target","purchaseDate":"2022-01-01","purchaseTime":"13:01","total":"Infinity","items":[{"shortDescription":"a","price":"1.00"}]}`,
			kind:  domain.KindInvalidMoney,
			field: "total",
		},
		{
			name:  "BooleanTotal",
			raw:   `{"retailer":"Target","purchaseDate":"2022-01-01","purchaseTime":"13:01","total":true,"items":[{"shortDescription":"a","price":"1.00"}]}`,
			kind:  domain.KindInvalidMoney,
			field: "total",
		},
		{
			name:  "NoItems",
			raw:   `{"retailer":"Target","purchaseDate":"2022-01-01","purchaseTime":"13:01","total":"1.00","items":[]}`,
			kind:  domain.KindSchemaMismatch,
			field: "items",
		},
		{
			name:  "MissingItems",
			raw:   `{"retailer":"Target","purchaseDate":"2022-01-01","purchaseTime":"13:01","total":"1.00"}`,
			kind:  domain.KindSchemaMismatch,
			field: "items",
		},
		{
			name:  "ItemDescriptionAmpersand",
			raw:   `{"retailer":"Target","purchaseDate":"2022-01-01","purchaseTime":"13:01","total":"1.00","items":[{"shortDescription":"ok","price":"1.00"},{"shortDescription":"a&b","price":"1.00"}]}`,
			kind:  domain.KindSchemaMismatch,
			field: "items[1].shortDescription",
		},
		{
			name:  "ItemZeroPrice",
			raw:   `{"retailer":"Target","purchaseDate":"2022-01-01","purchaseTime":"13:01","total":"1.00","items":[{"shortDescription":"a","price":"0.00"}]}`,
			kind:  domain.KindInvalidMoney,
			field: "items[0].price",
		},
		{
			name:  "SubCentTotal",
			raw:   `{"retailer":"Target","purchaseDate":"2022-01-01","purchaseTime":"13:01","total":"0.004","items":[{"shortDescription":"a","price":"1.00"}]}`,
			kind:  domain.KindInvalidMoney,
			field: "total",
		},
		{
			name:  "SubCentNearQuarter",
			raw:   `{"retailer":"Target","purchaseDate":"2022-01-01","purchaseTime":"13:01","total":"9.004","items":[{"shortDescription":"a","price":"1.00"}]}`,
			kind:  domain.KindInvalidMoney,
			field: "total",
		},
		{
			name:  "SubCentItemPrice",
			raw:   `{"retailer":"Target","purchaseDate":"2022-01-01","purchaseTime":"13:01","total":"1.00","items":[{"shortDescription":"a","price":"0.999"}]}`,
			kind:  domain.KindInvalidMoney,
			field: "items[0].price",
		},
		{
			name:  "NextLineInDescription",
			raw:   `{"retailer":"Target","purchaseDate":"2022-01-01","purchaseTime":"13:01","total":"1.00","items":[{"shortDescription":"ab\u0085","price":"1.00"}]}`,
			kind:  domain.KindSchemaMismatch,
			field: "items[0].shortDescription",
		},
		{
			name:  "ItemNotObject",
			raw:   `{"retailer":"Target","purchaseDate":"2022-01-01","purchaseTime":"13:01","total":"1.00","items":["a"]}`,
			kind:  domain.KindSchemaMismatch,
			field: "items[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Receipt([]byte(tt.raw))
			if err == nil {
				t.Fatal("expected validation error")
			}

			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *domain.ValidationError, got %T: %v", err, err)
			}
			if verr.Kind != tt.kind {
				t.Errorf("expected kind %s, got %s", tt.kind, verr.Kind)
			}
			if verr.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, verr.Field)
			}
		})
	}
}

func TestMapAcceptsFloats(t *testing.T) {
	obj := map[string]any{
		"retailer":     "Walgreens",
		"purchaseDate": "2022-01-02",
		"purchaseTime": "08:13",
		"total":        2.65,
		"items": []any{
			map[string]any{"shortDescription": "Pepsi - 12-oz", "price": 1.25},
			map[string]any{"shortDescription": "Dasani", "price": "1.40"},
		},
	}

	r, err := Map(obj)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Total.Cents() != 265 {
		t.Errorf("expected 265 cents, got %d", r.Total.Cents())
	}
	if r.Items[1].Price.Cents() != 140 {
		t.Errorf("expected 140 cents, got %d", r.Items[1].Price.Cents())
	}
}

func TestContainsPattern(t *testing.T) {
	tests := []struct {
		input    string
		pattern  string
		expected bool
	}{
		{"2022-01-01", datePattern, true},
		{"on 2022-01-01 at noon", datePattern, true},
		{"22-01-01", datePattern, false},
		{"2022/01/01", datePattern, false},
		{"13:01", timePattern, true},
		{"13:01:59", timePattern, true},
		{"1:01", timePattern, false},
		{"", timePattern, false},
	}

	for _, tt := range tests {
		if got := containsPattern(tt.input, tt.pattern); got != tt.expected {
			t.Errorf("containsPattern(%q, %q) = %v, want %v", tt.input, tt.pattern, got, tt.expected)
		}
	}
}

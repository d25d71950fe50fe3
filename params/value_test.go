package params

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestCanonicalizeIsOrderIndependent(t *testing.T) {
	d1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)

	a := map[string]Value{
		"fromDate": DateValue(d1),
		"toDate":   DateValue(d2),
		"branchId": NumberValue(decimal.NewFromInt(3)),
	}
	b := map[string]Value{
		"branchId": NumberValue(decimal.NewFromInt(3)),
		"toDate":   DateValue(d2),
		"fromDate": DateValue(d1),
	}

	if Canonicalize(a) != Canonicalize(b) {
		t.Fatalf("canonical form depends on key order:\n%q\nvs\n%q", Canonicalize(a), Canonicalize(b))
	}
	if Hash("sales-stat", a) != Hash("sales-stat", b) {
		t.Fatal("hash depends on key order")
	}
}

func TestNumberNormalizationCollapsesEquivalentForms(t *testing.T) {
	forms := []string{"3", "3.0", "3.00", "03.000"}
	var encoded []string
	for _, f := range forms {
		d, err := decimal.NewFromString(f)
		if err != nil {
			t.Fatalf("parse %q: %v", f, err)
		}
		encoded = append(encoded, NumberValue(d).Encode())
	}
	for i := 1; i < len(encoded); i++ {
		if encoded[i] != encoded[0] {
			t.Fatalf("forms %q and %q encode differently: %q vs %q", forms[0], forms[i], encoded[0], encoded[i])
		}
	}
	if encoded[0] != "n:3" {
		t.Fatalf("expected n:3, got %q", encoded[0])
	}
}

func TestNumberNormalizationKeepsSignificantFraction(t *testing.T) {
	d, _ := decimal.NewFromString("3.50")
	if got := NumberValue(d).Encode(); got != "n:3.5" {
		t.Fatalf("expected n:3.5, got %q", got)
	}
}

func TestDateEncodingIgnoresTimeOfDay(t *testing.T) {
	midnight := DateValue(time.Date(2026, 5, 9, 0, 0, 0, 0, time.UTC))
	afternoon := DateValue(time.Date(2026, 5, 9, 15, 42, 7, 0, time.UTC))
	if midnight.Encode() != afternoon.Encode() {
		t.Fatalf("date encoding varies with time of day: %q vs %q", midnight.Encode(), afternoon.Encode())
	}
	if midnight.Encode() != "d:2026-05-09" {
		t.Fatalf("unexpected date encoding %q", midnight.Encode())
	}
}

func TestHashIsNamespacedByDocumentType(t *testing.T) {
	safe := map[string]Value{"branchId": NumberValue(decimal.NewFromInt(1))}
	if Hash("sales-stat", safe) == Hash("stock-summary", safe) {
		t.Fatal("identical params across document types must hash differently")
	}
}

func TestCoerceFallsBackToString(t *testing.T) {
	v := coerce(KindNumber, "not-a-number")
	if v.Kind != KindString || v.Str != "not-a-number" {
		t.Fatalf("expected string fallback, got %+v", v)
	}
	v = coerce(KindDate, "31-31-9999")
	if v.Kind != KindString {
		t.Fatalf("expected string fallback for bad date, got %+v", v)
	}
}

func TestFilterDropsUnknownKeys(t *testing.T) {
	raw := map[string]interface{}{
		"fromDate": "2026-01-01",
		"toDate":   "2026-01-31",
		"injected": "1; DROP TABLE jobs",
	}
	safe, unknown := Filter("sales-stat", raw)
	if _, ok := safe["injected"]; ok {
		t.Fatal("unknown key leaked through whitelist")
	}
	if len(unknown) != 1 || unknown[0] != "injected" {
		t.Fatalf("expected injected reported as unknown, got %v", unknown)
	}
	if safe["fromDate"].Kind != KindDate {
		t.Fatalf("fromDate not coerced to date: %+v", safe["fromDate"])
	}
}

func TestFilterUnknownDocumentTypeAcceptsNothing(t *testing.T) {
	safe, unknown := Filter("no-such-report", map[string]interface{}{"a": 1, "b": 2})
	if len(safe) != 0 {
		t.Fatalf("fail-closed violated: %v", safe)
	}
	if len(unknown) != 2 {
		t.Fatalf("expected both keys flagged, got %v", unknown)
	}
}

func TestFilterNormalizesCallerTypeVariance(t *testing.T) {
	// The same logical value arriving as different JSON types must produce
	// the same canonical set.
	a, _ := Filter("sales-stat", map[string]interface{}{"branchId": 3})
	b, _ := Filter("sales-stat", map[string]interface{}{"branchId": "3.0"})
	c, _ := Filter("sales-stat", map[string]interface{}{"branchId": float64(3)})

	if Canonicalize(a) != Canonicalize(b) || Canonicalize(b) != Canonicalize(c) {
		t.Fatalf("type variance leaked into canonical form:\n%q\n%q\n%q",
			Canonicalize(a), Canonicalize(b), Canonicalize(c))
	}
}

func TestEncodeDecodeMapRoundTrip(t *testing.T) {
	d, _ := decimal.NewFromString("12.30")
	safe := map[string]Value{
		"branchId": NumberValue(d),
		"fromDate": DateValue(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)),
		"groupBy":  StringValue("customer"),
	}

	encoded, err := EncodeMap(safe)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeMap(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if Canonicalize(decoded) != Canonicalize(safe) {
		t.Fatalf("round trip changed canonical form:\n%q\nvs\n%q", Canonicalize(decoded), Canonicalize(safe))
	}
}

func TestEncodeMapIsDeterministic(t *testing.T) {
	safe := map[string]Value{
		"z": StringValue("last"),
		"a": StringValue("first"),
		"m": BoolValue(true),
	}
	first, err := EncodeMap(safe)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for i := 0; i < 20; i++ {
		again, err := EncodeMap(safe)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if again != first {
			t.Fatalf("encoding not deterministic on iteration %d", i)
		}
	}
	if !strings.Contains(first, `"a"`) {
		t.Fatalf("unexpected encoding %q", first)
	}
}

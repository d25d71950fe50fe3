package params

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ValueKind tags the canonical representation of a report parameter.
// Dynamic caller payloads (JSON maps) collapse onto these four kinds so the
// serialized form never depends on the caller's type choices.
type ValueKind string

const (
	KindString ValueKind = "String"
	KindNumber ValueKind = "Number"
	KindDate   ValueKind = "Date"
	KindBool   ValueKind = "Bool"
)

const canonicalDateLayout = "2006-01-02"

// Value is one canonical parameter value.
type Value struct {
	Kind ValueKind
	Str  string
	Num  decimal.Decimal
	Date time.Time
	Bool bool
}

func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

func NumberValue(d decimal.Decimal) Value { return Value{Kind: KindNumber, Num: d} }

func DateValue(t time.Time) Value { return Value{Kind: KindDate, Date: t} }

func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Encode renders the value in its single canonical textual form:
// numbers without trailing-zero ambiguity, dates as yyyy-mm-dd.
func (v Value) Encode() string {
	switch v.Kind {
	case KindNumber:
		return "n:" + normalizeDecimalString(v.Num)
	case KindDate:
		return "d:" + v.Date.Format(canonicalDateLayout)
	case KindBool:
		return "b:" + strconv.FormatBool(v.Bool)
	default:
		return "s:" + v.Str
	}
}

// normalizeDecimalString strips trailing fraction zeros so "3", "3.0" and
// "3.00" all encode identically.
func normalizeDecimalString(d decimal.Decimal) string {
	s := d.String()
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	if s == "" || s == "-" {
		return "0"
	}
	return s
}

// coerce maps an arbitrary caller-supplied value onto the kind the document
// schema declares. It is total: anything that cannot be read as the declared
// kind falls back to its plain string form, so filtering never fails.
func coerce(kind ValueKind, raw interface{}) Value {
	switch kind {
	case KindNumber:
		if d, ok := decimalFrom(raw); ok {
			return NumberValue(d)
		}
	case KindDate:
		if t, ok := dateFrom(raw); ok {
			return DateValue(t)
		}
	case KindBool:
		if b, ok := boolFrom(raw); ok {
			return BoolValue(b)
		}
	}
	return StringValue(stringFrom(raw))
}

func decimalFrom(raw interface{}) (decimal.Decimal, bool) {
	switch v := raw.(type) {
	case decimal.Decimal:
		return v, true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case float64:
		return decimal.NewFromFloat(v), true
	case json.Number:
		if d, err := decimal.NewFromString(v.String()); err == nil {
			return d, true
		}
	case string:
		if d, err := decimal.NewFromString(strings.TrimSpace(v)); err == nil {
			return d, true
		}
	}
	return decimal.Decimal{}, false
}

func dateFrom(raw interface{}) (time.Time, bool) {
	switch v := raw.(type) {
	case time.Time:
		return v, true
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range []string{canonicalDateLayout, time.RFC3339, "2006-01-02 15:04:05", "02/01/2006"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func boolFrom(raw interface{}) (bool, bool) {
	switch v := raw.(type) {
	case bool:
		return v, true
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b, true
		}
	}
	return false, false
}

func stringFrom(raw interface{}) string {
	switch v := raw.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Canonicalize serializes a safe parameter set as sorted key=value lines.
// Two logically identical sets always serialize identically regardless of
// original key order or caller type variance.
func Canonicalize(safe map[string]Value) string {
	keys := make([]string, 0, len(safe))
	for k := range safe {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(safe[k].Encode())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Hash is the content digest used as the snapshot cache key:
// sha256 hex over the canonical serialization, namespaced by document type.
func Hash(documentType string, safe map[string]Value) string {
	h := sha256.New()
	h.Write([]byte(documentType))
	h.Write([]byte{0})
	h.Write([]byte(Canonicalize(safe)))
	return hex.EncodeToString(h.Sum(nil))
}

package params

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type valueJSON struct {
	Kind  ValueKind `json:"kind"`
	Value string    `json:"value"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	var s string
	switch v.Kind {
	case KindNumber:
		s = normalizeDecimalString(v.Num)
	case KindDate:
		s = v.Date.Format(canonicalDateLayout)
	case KindBool:
		if v.Bool {
			s = "true"
		} else {
			s = "false"
		}
	default:
		s = v.Str
	}
	return json.Marshal(valueJSON{Kind: v.Kind, Value: s})
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw valueJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Kind {
	case KindNumber:
		d, err := decimal.NewFromString(raw.Value)
		if err != nil {
			return fmt.Errorf("invalid number parameter %q: %w", raw.Value, err)
		}
		*v = NumberValue(d)
	case KindDate:
		t, err := time.Parse(canonicalDateLayout, raw.Value)
		if err != nil {
			return fmt.Errorf("invalid date parameter %q: %w", raw.Value, err)
		}
		*v = DateValue(t)
	case KindBool:
		*v = BoolValue(raw.Value == "true")
	case KindString, "":
		*v = StringValue(raw.Value)
	default:
		return fmt.Errorf("unknown parameter kind %q", raw.Kind)
	}
	return nil
}

// EncodeMap serializes a safe parameter set to JSON for storage (snapshot
// audit payloads, job re-execution).
func EncodeMap(safe map[string]Value) (string, error) {
	data, err := json.Marshal(safe)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func DecodeMap(raw string) (map[string]Value, error) {
	safe := map[string]Value{}
	if raw == "" {
		return safe, nil
	}
	if err := json.Unmarshal([]byte(raw), &safe); err != nil {
		return nil, err
	}
	return safe, nil
}

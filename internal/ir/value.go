package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Value is a sealed interface representing a scalar column value.
// Only Null, Text and Number implement it.
//
// Every dynamically created column is declared TEXT, so Number exists to
// keep the numeric shape of submitted JSON in responses; on disk it is text.
type Value interface {
	irValue() // Sealed - only these types implement it
}

// Null represents an absent or SQL NULL value.
type Null struct{}

func (Null) irValue() {}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// Text represents a string value.
type Text string

func (Text) irValue() {}

// Number represents a numeric value kept as its decimal literal
// (e.g. "42", "-1.5e3"). It marshals as a bare JSON number.
type Number string

func (Number) irValue() {}

// MarshalJSON implements json.Marshaler for Number.
// An invalid literal is an error rather than silently quoted output.
func (n Number) MarshalJSON() ([]byte, error) {
	if !isNumberLiteral(string(n)) {
		return nil, fmt.Errorf("invalid number literal %q", string(n))
	}
	return []byte(n), nil
}

// NewNumber validates s as a JSON number literal.
func NewNumber(s string) (Number, error) {
	if !isNumberLiteral(s) {
		return "", fmt.Errorf("invalid number literal %q", s)
	}
	return Number(s), nil
}

// Int creates a Number from an int64.
func Int(n int64) Number {
	return Number(strconv.FormatInt(n, 10))
}

func isNumberLiteral(s string) bool {
	if s == "" {
		return false
	}
	var n json.Number
	if err := json.Unmarshal([]byte(s), &n); err != nil {
		return false
	}
	return string(n) == s
}

// Int64 parses v as an integer. Text is accepted when it holds digits.
func Int64(v Value) (int64, bool) {
	switch val := v.(type) {
	case Number:
		n, err := strconv.ParseInt(string(val), 10, 64)
		return n, err == nil
	case Text:
		n, err := strconv.ParseInt(string(val), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// Param converts a Value to the Go type bound as a SQL parameter.
// Numbers bind as their literal text; the TEXT column affinity would
// convert them anyway.
func Param(v Value) any {
	switch val := v.(type) {
	case Text:
		return string(val)
	case Number:
		return string(val)
	default:
		return nil
	}
}

// FromColumn converts a value scanned from database/sql into a Value.
func FromColumn(v any) Value {
	switch val := v.(type) {
	case nil:
		return Null{}
	case []byte:
		return Text(string(val))
	case string:
		return Text(val)
	case int64:
		return Int(val)
	case float64:
		return Number(strconv.FormatFloat(val, 'g', -1, 64))
	case bool:
		if val {
			return Number("1")
		}
		return Number("0")
	case time.Time:
		return Text(val.UTC().Format(time.RFC3339Nano))
	default:
		return Text(fmt.Sprint(val))
	}
}

// FromJSON converts a value decoded with json.Decoder.UseNumber into a Value.
//
// Booleans become Number 1/0 (SQLite has no boolean storage class).
// Arrays and objects are kept as their compact JSON text.
func FromJSON(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case string:
		return Text(val), nil
	case json.Number:
		return NewNumber(string(val))
	case bool:
		if val {
			return Number("1"), nil
		}
		return Number("0"), nil
	case []any, map[string]any:
		data, err := json.Marshal(val)
		if err != nil {
			return nil, fmt.Errorf("encode nested value: %w", err)
		}
		return Text(string(data)), nil
	default:
		return nil, fmt.Errorf("unsupported JSON value type: %T", v)
	}
}

// fromRawJSON decodes a single raw JSON value into a Value.
func fromRawJSON(data json.RawMessage) (Value, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty JSON value")
	}

	switch trimmed[0] {
	case '[', '{':
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err != nil {
			return nil, err
		}
		return Text(buf.String()), nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return FromJSON(raw)
}

// MarshalValue marshals a Value to JSON bytes.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case nil, Null:
		return []byte("null"), nil
	case Text:
		return json.Marshal(string(val))
	case Number:
		return val.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}

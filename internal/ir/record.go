package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Field is one named value of a Record.
type Field struct {
	Name  string
	Value Value
}

// F is a shorthand for Field for ergonomic construction.
// Example: NewRecord(F("name", Text("gear")), F("size", Int(3)))
func F(name string, value Value) Field {
	return Field{Name: name, Value: value}
}

// Record is an ordered mapping from column name to Value.
//
// Order is significant: it is the request order for records parsed from a
// body and the column order for records read from storage, and it is the
// order MarshalJSON emits. Names are compared exactly; use GetFold for the
// case-insensitive lookups SQLite identifiers need.
//
// The zero Record is empty and ready to use.
type Record struct {
	fields []Field
}

// NewRecord creates a Record from fields. Later duplicates replace earlier
// values in place.
func NewRecord(fields ...Field) Record {
	var r Record
	for _, f := range fields {
		r.Set(f.Name, f.Value)
	}
	return r
}

// Len returns the number of fields.
func (r Record) Len() int {
	return len(r.fields)
}

// Keys returns the field names in order.
func (r Record) Keys() []string {
	keys := make([]string, len(r.fields))
	for i, f := range r.fields {
		keys[i] = f.Name
	}
	return keys
}

// Fields returns a copy of the fields in order.
func (r Record) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

// Get returns the value stored under name.
func (r Record) Get(name string) (Value, bool) {
	for _, f := range r.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// GetFold returns the value whose name matches name case-insensitively.
func (r Record) GetFold(name string) (Value, bool) {
	for _, f := range r.fields {
		if strings.EqualFold(f.Name, name) {
			return f.Value, true
		}
	}
	return nil, false
}

// Has reports whether name is present.
func (r Record) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Set stores value under name, keeping the original position when the name
// already exists and appending otherwise. A nil value is stored as Null.
func (r *Record) Set(name string, value Value) {
	if value == nil {
		value = Null{}
	}
	for i := range r.fields {
		if r.fields[i].Name == name {
			r.fields[i].Value = value
			return
		}
	}
	r.fields = append(r.fields, Field{Name: name, Value: value})
}

// Delete removes name if present.
func (r *Record) Delete(name string) {
	for i := range r.fields {
		if r.fields[i].Name == name {
			r.fields = append(r.fields[:i:i], r.fields[i+1:]...)
			return
		}
	}
}

// Clone returns an independent copy.
func (r Record) Clone() Record {
	return Record{fields: r.Fields()}
}

// Merge returns a copy of r with every field of other set on top of it.
func (r Record) Merge(other Record) Record {
	out := r.Clone()
	for _, f := range other.fields {
		out.Set(f.Name, f.Value)
	}
	return out
}

// MarshalJSON implements json.Marshaler, emitting fields in order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, f := range r.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(f.Name)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", f.Name, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := MarshalValue(f.Value)
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", f.Name, err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler, preserving key order.
// The input must be a JSON object; nested arrays and objects become Text.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("record must be a JSON object")
	}

	out := Record{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("record key must be a string, got %T", keyTok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("record key %q: %w", key, err)
		}
		val, err := fromRawJSON(raw)
		if err != nil {
			return fmt.Errorf("record key %q: %w", key, err)
		}
		out.Set(key, val)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = out
	return nil
}

// Package telemetry defines the transient ingestion types: the data point
// submitted by devices and its runtime-typed value.
package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ValueKind identifies which variant of a Value is populated.
type ValueKind string

const (
	KindNumeric ValueKind = "numeric"
	KindString  ValueKind = "string"
	KindBool    ValueKind = "boolean"
	KindJSON    ValueKind = "json"
)

// Value is the tagged union carried by a telemetry point. Exactly one
// variant is set; consumers dispatch on Kind() instead of type-asserting
// an interface{} field.
type Value struct {
	kind ValueKind
	num  float64
	str  string
	b    bool
	obj  map[string]interface{}
}

// NumericValue builds a numeric value.
func NumericValue(f float64) Value {
	return Value{kind: KindNumeric, num: f}
}

// StringValue builds a string value.
func StringValue(s string) Value {
	return Value{kind: KindString, str: s}
}

// BoolValue builds a boolean value.
func BoolValue(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// JSONValue builds a structured value.
func JSONValue(m map[string]interface{}) Value {
	return Value{kind: KindJSON, obj: m}
}

// Kind returns which variant is populated. The zero Value reports an empty
// kind and matches nothing.
func (v Value) Kind() ValueKind {
	return v.kind
}

// Float returns the numeric variant. ok is false for every other kind.
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumeric {
		return 0, false
	}
	return v.num, true
}

// Bool returns the boolean variant.
func (v Value) Bool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// Text returns the string variant.
func (v Value) Text() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// Object returns the structured variant.
func (v Value) Object() (map[string]interface{}, bool) {
	if v.kind != KindJSON {
		return nil, false
	}
	return v.obj, true
}

// String renders the value for messages and snapshots. Numeric values use
// the shortest representation that round-trips.
func (v Value) String() string {
	switch v.kind {
	case KindNumeric:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindString:
		return v.str
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindJSON:
		data, err := json.Marshal(v.obj)
		if err != nil {
			return fmt.Sprintf("%v", v.obj)
		}
		return string(data)
	default:
		return ""
	}
}

// EqualsRaw compares the value against a raw threshold string. Numeric
// values compare numerically when the threshold parses as a float; all
// other kinds compare on the rendered representation.
func (v Value) EqualsRaw(raw string) bool {
	if v.kind == KindNumeric {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return v.num == f
		}
	}
	return v.String() == raw
}

// MarshalJSON emits the underlying variant, not the union wrapper, so wire
// payloads look like plain JSON scalars/objects.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumeric:
		return json.Marshal(v.num)
	case KindString:
		return json.Marshal(v.str)
	case KindBool:
		return json.Marshal(v.b)
	case KindJSON:
		return json.Marshal(v.obj)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON dispatches on the runtime JSON type: numbers become numeric,
// strings string, booleans boolean, objects json. Arrays and null are not
// valid point values.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	switch t := raw.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return fmt.Errorf("invalid numeric value %q: %w", t.String(), err)
		}
		*v = NumericValue(f)
	case string:
		*v = StringValue(t)
	case bool:
		*v = BoolValue(t)
	case map[string]interface{}:
		*v = JSONValue(t)
	default:
		return fmt.Errorf("unsupported value type %T", raw)
	}
	return nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AttrDesk Contributors

package attribute

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind discriminates the runtime type of a TypedValue.
type Kind int

// Kind constants enumerate the value kinds a TypedValue can hold.
const (
	KindString Kind = iota // string
	KindNumber             // number
	KindBool               // bool
	KindDate               // date
	KindArray              // array
	KindObject             // object
)

var kindStrings = [...]string{
	"string",
	"number",
	"bool",
	"date",
	"array",
	"object",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindStrings) {
		return kindStrings[k]
	}
	return fmt.Sprintf("unknown(%d)", int(k))
}

// TypedValue is one member of an attribute definition's constrained value
// set. Exactly one payload field is meaningful, selected by Kind. Values
// are comparable with Equal and keep their declaration order; the zero
// value is the empty string.
type TypedValue struct {
	Kind Kind
	Str  string
	Num  float64
	Bool bool
	Date time.Time
	Arr  []TypedValue
	Obj  map[string]TypedValue
}

// Str returns a string-kinded value.
func Str(s string) TypedValue {
	return TypedValue{Kind: KindString, Str: s}
}

// Num returns a number-kinded value.
func Num(f float64) TypedValue {
	return TypedValue{Kind: KindNumber, Num: f}
}

// Bool returns a bool-kinded value.
func Bool(b bool) TypedValue {
	return TypedValue{Kind: KindBool, Bool: b}
}

// Date returns a date-kinded value truncated to midnight UTC. Calendar
// dates carry no time-of-day component.
func Date(t time.Time) TypedValue {
	y, m, d := t.UTC().Date()
	return TypedValue{Kind: KindDate, Date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// Arr returns an array-kinded value holding the given members.
func Arr(members ...TypedValue) TypedValue {
	return TypedValue{Kind: KindArray, Arr: members}
}

// Obj returns an object-kinded value holding the given fields.
func Obj(fields map[string]TypedValue) TypedValue {
	return TypedValue{Kind: KindObject, Obj: fields}
}

// Equal reports deep structural equality. Two values are equal only when
// their kinds match and their payloads compare equal member by member.
func (v TypedValue) Equal(other TypedValue) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindString:
		return v.Str == other.Str
	case KindNumber:
		return v.Num == other.Num
	case KindBool:
		return v.Bool == other.Bool
	case KindDate:
		return v.Date.Equal(other.Date)
	case KindArray:
		if len(v.Arr) != len(other.Arr) {
			return false
		}
		for i := range v.Arr {
			if !v.Arr[i].Equal(other.Arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.Obj) != len(other.Obj) {
			return false
		}
		for k, m := range v.Obj {
			o, ok := other.Obj[k]
			if !ok || !m.Equal(o) {
				return false
			}
		}
		return true
	}
	return false
}

// Clone returns a deep copy of the value.
func (v TypedValue) Clone() TypedValue {
	cp := v
	if v.Arr != nil {
		cp.Arr = make([]TypedValue, len(v.Arr))
		for i, m := range v.Arr {
			cp.Arr[i] = m.Clone()
		}
	}
	if v.Obj != nil {
		cp.Obj = make(map[string]TypedValue, len(v.Obj))
		for k, m := range v.Obj {
			cp.Obj[k] = m.Clone()
		}
	}
	return cp
}

// String renders the value for display and error messages. Scalars use
// their canonical text form; arrays and objects render as compact JSON.
func (v TypedValue) String() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindDate:
		return v.Date.Format(time.DateOnly)
	case KindArray, KindObject:
		b, err := json.Marshal(v.toJSON())
		if err != nil {
			return fmt.Sprintf("<unprintable %s>", v.Kind)
		}
		return string(b)
	}
	return fmt.Sprintf("<unknown kind %d>", int(v.Kind))
}

// fromJSON converts a decoded JSON document into a TypedValue. JSON null
// is rejected: a constrained value set has no meaningful null member.
func fromJSON(raw any) (TypedValue, error) {
	switch x := raw.(type) {
	case string:
		return Str(x), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return TypedValue{}, fmt.Errorf("number %v is not finite", x)
		}
		return Num(x), nil
	case bool:
		return Bool(x), nil
	case []any:
		members := make([]TypedValue, 0, len(x))
		for _, m := range x {
			tv, err := fromJSON(m)
			if err != nil {
				return TypedValue{}, err
			}
			members = append(members, tv)
		}
		return TypedValue{Kind: KindArray, Arr: members}, nil
	case map[string]any:
		fields := make(map[string]TypedValue, len(x))
		for k, m := range x {
			tv, err := fromJSON(m)
			if err != nil {
				return TypedValue{}, err
			}
			fields[k] = tv
		}
		return TypedValue{Kind: KindObject, Obj: fields}, nil
	case nil:
		return TypedValue{}, fmt.Errorf("null is not a permitted value")
	}
	return TypedValue{}, fmt.Errorf("unsupported JSON value of type %T", raw)
}

// toJSON converts the value to the form encoding/json marshals naturally.
// Dates become DateOnly strings.
func (v TypedValue) toJSON() any {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return v.Num
	case KindBool:
		return v.Bool
	case KindDate:
		return v.Date.Format(time.DateOnly)
	case KindArray:
		members := make([]any, len(v.Arr))
		for i, m := range v.Arr {
			members[i] = m.toJSON()
		}
		return members
	case KindObject:
		fields := make(map[string]any, len(v.Obj))
		for k, m := range v.Obj {
			fields[k] = m.toJSON()
		}
		return fields
	}
	return nil
}

// EncodeValues serializes a value set to its JSON array storage form.
// Scalar-typed sets are checked for kind drift before encoding so a
// corrupted set never round-trips silently.
func EncodeValues(dt DataType, values []TypedValue) ([]byte, error) {
	out := make([]any, len(values))
	for i, v := range values {
		if err := checkKindForType(dt, v); err != nil {
			return nil, fmt.Errorf("value %d: %w", i+1, err)
		}
		out[i] = v.toJSON()
	}
	return json.Marshal(out)
}

// DecodeValues parses the JSON array storage form back into typed values,
// directed by the definition's data type. Inverse of EncodeValues.
func DecodeValues(dt DataType, data []byte) ([]TypedValue, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode value set: %w", err)
	}
	values := make([]TypedValue, 0, len(raw))
	for i, r := range raw {
		tv, err := decodeOne(dt, r)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i+1, err)
		}
		values = append(values, tv)
	}
	return values, nil
}

func decodeOne(dt DataType, raw any) (TypedValue, error) {
	switch dt {
	case DataTypeString:
		s, ok := raw.(string)
		if !ok {
			return TypedValue{}, fmt.Errorf("expected string, got %T", raw)
		}
		return Str(s), nil
	case DataTypeNumber:
		f, ok := raw.(float64)
		if !ok {
			return TypedValue{}, fmt.Errorf("expected number, got %T", raw)
		}
		return Num(f), nil
	case DataTypeBoolean:
		b, ok := raw.(bool)
		if !ok {
			return TypedValue{}, fmt.Errorf("expected boolean, got %T", raw)
		}
		return Bool(b), nil
	case DataTypeDate:
		s, ok := raw.(string)
		if !ok {
			return TypedValue{}, fmt.Errorf("expected date string, got %T", raw)
		}
		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return TypedValue{}, fmt.Errorf("invalid date %q: %w", s, err)
		}
		return Date(t), nil
	case DataTypeArray:
		return fromJSON(raw)
	case DataTypeObject:
		tv, err := fromJSON(raw)
		if err != nil {
			return TypedValue{}, err
		}
		if tv.Kind != KindObject {
			return TypedValue{}, fmt.Errorf("expected object, got %s", tv.Kind)
		}
		return tv, nil
	}
	return TypedValue{}, fmt.Errorf("unknown data type %s", dt)
}

func checkKindForType(dt DataType, v TypedValue) error {
	switch dt {
	case DataTypeString:
		if v.Kind != KindString {
			return fmt.Errorf("kind %s does not belong to a %s attribute", v.Kind, dt)
		}
	case DataTypeNumber:
		if v.Kind != KindNumber {
			return fmt.Errorf("kind %s does not belong to a %s attribute", v.Kind, dt)
		}
	case DataTypeBoolean:
		if v.Kind != KindBool {
			return fmt.Errorf("kind %s does not belong to a %s attribute", v.Kind, dt)
		}
	case DataTypeDate:
		if v.Kind != KindDate {
			return fmt.Errorf("kind %s does not belong to a %s attribute", v.Kind, dt)
		}
	case DataTypeArray:
		// Array-typed definitions constrain the permitted members, which
		// may themselves be any JSON value.
	case DataTypeObject:
		if v.Kind != KindObject {
			return fmt.Errorf("kind %s does not belong to a %s attribute", v.Kind, dt)
		}
	}
	return nil
}

// containsValue reports whether set holds a member equal to v.
func containsValue(set []TypedValue, v TypedValue) bool {
	for _, m := range set {
		if m.Equal(v) {
			return true
		}
	}
	return false
}

// dedupeValues drops duplicate members, keeping the first occurrence of
// each and preserving declaration order.
func dedupeValues(values []TypedValue) []TypedValue {
	out := make([]TypedValue, 0, len(values))
	for _, v := range values {
		if !containsValue(out, v) {
			out = append(out, v)
		}
	}
	return out
}

// joinValues renders a value set as a comma-separated display string.
func joinValues(values []TypedValue) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}

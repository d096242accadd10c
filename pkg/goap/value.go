package goap

import (
	"fmt"
	"strconv"
)

// Kind identifies which type a fact Value holds.
type Kind uint8

const (
	KindString Kind = iota
	KindInt
	KindBool
)

// Value is a typed fact value: a string, an integer, or a boolean.
// Values are opaque and comparable; equality is structural, so Int(1),
// String("1") and Bool(true) are three distinct values. Construct them
// with String, Int, Bool, or ValueOf.
type Value struct {
	kind Kind
	s    string
	i    int64
	b    bool
}

// String returns a string-kind Value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Int returns an integer-kind Value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Bool returns a boolean-kind Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// ValueOf coerces a dynamically typed value (as produced by YAML or JSON
// decoding) into a Value. Integral floats collapse to ints because JSON
// decodes all numbers as float64; anything else (fractional numbers, nil,
// nested collections) is a catalogue-authoring error.
func ValueOf(v interface{}) (Value, error) {
	switch x := v.(type) {
	case Value:
		return x, nil
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case int:
		return Int(int64(x)), nil
	case int8:
		return Int(int64(x)), nil
	case int16:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint:
		return Int(int64(x)), nil
	case uint8:
		return Int(int64(x)), nil
	case uint16:
		return Int(int64(x)), nil
	case uint32:
		return Int(int64(x)), nil
	case uint64:
		return Int(int64(x)), nil
	case float32:
		return ValueOf(float64(x))
	case float64:
		if x == float64(int64(x)) {
			return Int(int64(x)), nil
		}
		return Value{}, fmt.Errorf("fact values must be string, int, or bool; got fractional number %v", x)
	default:
		return Value{}, fmt.Errorf("fact values must be string, int, or bool; got %T", v)
	}
}

// Kind reports the value's type tag.
func (v Value) Kind() Kind { return v.kind }

// Equal reports structural equality: same kind and same payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.s == o.s
	case KindInt:
		return v.i == o.i
	default:
		return v.b == o.b
	}
}

// StringValue returns the payload of a string-kind value.
func (v Value) StringValue() (string, bool) { return v.s, v.kind == KindString }

// IntValue returns the payload of an integer-kind value.
func (v Value) IntValue() (int64, bool) { return v.i, v.kind == KindInt }

// BoolValue returns the payload of a boolean-kind value.
func (v Value) BoolValue() (bool, bool) { return v.b, v.kind == KindBool }

// Interface returns the payload as a dynamically typed value.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return v.i
	default:
		return v.b
	}
}

// String renders the value for display.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	default:
		return strconv.FormatBool(v.b)
	}
}

// canonical renders the value with its kind tag for state keys. The tag
// keeps Int(1) and String("1") distinct under serialization.
func (v Value) canonical() string {
	switch v.kind {
	case KindString:
		return "s:" + strconv.Quote(v.s)
	case KindInt:
		return "i:" + strconv.FormatInt(v.i, 10)
	default:
		return "b:" + strconv.FormatBool(v.b)
	}
}

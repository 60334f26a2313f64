// Package value models store documents as a tagged union so that flattening,
// resolution and serialization dispatch on Kind instead of on driver types.
package value

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// DateTimeLayout renders native datetimes as text.
const DateTimeLayout = "2006-01-02T15:04:05.000Z"

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	// KindNull is the zero Kind; the zero Value is Null.
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindDocument
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindDocument:
		return "document"
	case KindArray:
		return "array"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is one of Null, Bool, Number, String, Document or Array.
// Numbers keep track of whether they came from an integral source so that
// int64 values survive serialization without float rounding.
type Value struct {
	kind  Kind
	b     bool
	isInt bool
	i     int64
	f     float64
	s     string
	tm    *time.Time
	doc   *Document
	arr   []Value
}

// NullValue returns the Null value.
func NullValue() Value { return Value{} }

// BoolValue returns a Bool value.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// Int64Value returns an integral Number value.
func Int64Value(i int64) Value { return Value{kind: KindNumber, isInt: true, i: i, f: float64(i)} }

// Float64Value returns a floating point Number value.
func Float64Value(f float64) Value { return Value{kind: KindNumber, f: f} }

// StringValue returns a String value.
func StringValue(s string) Value { return Value{kind: KindString, s: s} }

// DateTimeValue returns a String value holding t in DateTimeLayout (UTC). The
// native time stays available through DateTime.
func DateTimeValue(t time.Time) Value {
	t = t.UTC()
	return Value{kind: KindString, s: t.Format(DateTimeLayout), tm: &t}
}

// DocumentValue wraps a nested document. A nil document is treated as Null.
func DocumentValue(d *Document) Value {
	if d == nil {
		return Value{}
	}
	return Value{kind: KindDocument, doc: d}
}

// ArrayValue wraps an ordered sequence of values.
func ArrayValue(vs ...Value) Value {
	if vs == nil {
		vs = []Value{}
	}
	return Value{kind: KindArray, arr: vs}
}

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is Null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsContainer reports whether v is a Document or an Array.
func (v Value) IsContainer() bool { return v.kind == KindDocument || v.kind == KindArray }

// Bool returns the boolean payload; false for other kinds.
func (v Value) Bool() bool { return v.kind == KindBool && v.b }

// IsInt reports whether v is a Number backed by an int64.
func (v Value) IsInt() bool { return v.kind == KindNumber && v.isInt }

// Int64 returns the integral payload. Floats are truncated.
func (v Value) Int64() int64 {
	if v.kind != KindNumber {
		return 0
	}
	if v.isInt {
		return v.i
	}
	return int64(v.f)
}

// Float64 returns the numeric payload as float64.
func (v Value) Float64() float64 {
	if v.kind != KindNumber {
		return 0
	}
	return v.f
}

// Text returns the string payload and whether v is a String.
func (v Value) Text() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// DateTime returns the native time of a value built by DateTimeValue.
func (v Value) DateTime() (time.Time, bool) {
	if v.kind != KindString || v.tm == nil {
		return time.Time{}, false
	}
	return *v.tm, true
}

// Document returns the nested document, or nil.
func (v Value) Document() *Document {
	if v.kind != KindDocument {
		return nil
	}
	return v.doc
}

// Array returns the array elements, or nil.
func (v Value) Array() []Value {
	if v.kind != KindArray {
		return nil
	}
	return v.arr
}

// String renders scalars as text and containers as their portable form.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		if v.isInt {
			return strconv.FormatInt(v.i, 10)
		}
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return v.s
	default:
		return fmt.Sprint(v.Interface())
	}
}

// Interface converts v into plain Go values: nil, bool, int64, float64,
// string, map[string]any and []any. Containers are copied recursively.
// NaN and infinities have no JSON form and become "NaN", "+Inf" and "-Inf".
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		if v.isInt {
			return v.i
		}
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return strconv.FormatFloat(v.f, 'g', -1, 64)
		}
		return v.f
	case KindString:
		return v.s
	case KindDocument:
		m := make(map[string]any, v.doc.Len())
		for _, f := range v.doc.fields {
			m[f.Key] = f.Value.Interface()
		}
		return m
	case KindArray:
		out := make([]any, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.Interface()
		}
		return out
	default:
		return nil
	}
}

// Equal reports deep equality. Numbers compare by numeric value, so
// Int64Value(1) equals Float64Value(1).
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		if a.isInt && b.isInt {
			return a.i == b.i
		}
		if math.IsNaN(a.f) && math.IsNaN(b.f) {
			return true
		}
		return a.f == b.f
	case KindString:
		return a.s == b.s
	case KindDocument:
		return a.doc.Equal(b.doc)
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	}
	return false
}

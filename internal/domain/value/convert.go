package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"time"
)

// FromAny converts plain Go data (as produced by encoding/json or by
// Value.Interface) into a Value. Map keys are added in sorted order.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return NullValue(), nil
	case Value:
		return t, nil
	case *Document:
		return DocumentValue(t), nil
	case bool:
		return BoolValue(t), nil
	case string:
		return StringValue(t), nil
	case time.Time:
		return DateTimeValue(t), nil
	case int:
		return Int64Value(int64(t)), nil
	case int8:
		return Int64Value(int64(t)), nil
	case int16:
		return Int64Value(int64(t)), nil
	case int32:
		return Int64Value(int64(t)), nil
	case int64:
		return Int64Value(t), nil
	case uint8:
		return Int64Value(int64(t)), nil
	case uint16:
		return Int64Value(int64(t)), nil
	case uint32:
		return Int64Value(int64(t)), nil
	case float32:
		return Float64Value(float64(t)), nil
	case float64:
		return Float64Value(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int64Value(i), nil
		}
		f, err := strconv.ParseFloat(string(t), 64)
		if err != nil {
			return Value{}, fmt.Errorf("parse number %q: %w", t, err)
		}
		return Float64Value(f), nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		d := NewDocument()
		for _, k := range keys {
			v, err := FromAny(t[k])
			if err != nil {
				return Value{}, fmt.Errorf("key %q: %w", k, err)
			}
			d.Set(k, v)
		}
		return DocumentValue(d), nil
	case []any:
		arr := make([]Value, len(t))
		for i, e := range t {
			v, err := FromAny(e)
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			arr[i] = v
		}
		return ArrayValue(arr...), nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", x)
	}
}

// MustFromAny is FromAny for literals in tests and fixtures. It panics on error.
func MustFromAny(x any) Value {
	v, err := FromAny(x)
	if err != nil {
		panic(err)
	}
	return v
}

// ParseJSON decodes a JSON text into a Value, keeping integers integral.
func ParseJSON(data []byte) (Value, error) {
	var x any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&x); err != nil {
		return Value{}, fmt.Errorf("decode json: %w", err)
	}
	return FromAny(x)
}

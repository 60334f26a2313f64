package mongo

import (
	"encoding/base64"
	"fmt"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/kailas-cloud/docflat/internal/domain/value"
)

// DateTimeLayout renders BSON datetimes.
const DateTimeLayout = value.DateTimeLayout

// ToDocument converts a decoded BSON document, keeping field order.
func ToDocument(d bson.D) (*value.Document, error) {
	doc := value.NewDocument()
	for _, e := range d {
		v, err := ToValue(e.Value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", e.Key, err)
		}
		doc.Set(e.Key, v)
	}
	return doc, nil
}

// ToValue converts a BSON value. Store-specific types become strings or
// numbers: ObjectIDs are hex, datetimes use DateTimeLayout in UTC and keep
// their native time, decimals keep their text form and binaries are base64.
// Anything else is rendered with fmt.
func ToValue(x any) (value.Value, error) {
	switch t := x.(type) {
	case nil, bson.Null, bson.Undefined, bson.MinKey, bson.MaxKey:
		return value.NullValue(), nil
	case bson.D:
		d, err := ToDocument(t)
		if err != nil {
			return value.Value{}, err
		}
		return value.DocumentValue(d), nil
	case bson.M:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		d := make(bson.D, 0, len(t))
		for _, k := range keys {
			d = append(d, bson.E{Key: k, Value: t[k]})
		}
		return ToValue(d)
	case bson.A:
		return toArray([]any(t))
	case []any:
		return toArray(t)
	case bool:
		return value.BoolValue(t), nil
	case int32:
		return value.Int64Value(int64(t)), nil
	case int64:
		return value.Int64Value(t), nil
	case int:
		return value.Int64Value(int64(t)), nil
	case float64:
		return value.Float64Value(t), nil
	case string:
		return value.StringValue(t), nil
	case bson.ObjectID:
		return value.StringValue(t.Hex()), nil
	case bson.DateTime:
		return value.DateTimeValue(t.Time()), nil
	case time.Time:
		return value.DateTimeValue(t), nil
	case bson.Decimal128:
		return value.StringValue(t.String()), nil
	case bson.Timestamp:
		return value.Int64Value(int64(t.T)), nil
	case bson.Binary:
		return value.StringValue(base64.StdEncoding.EncodeToString(t.Data)), nil
	case bson.Regex:
		return value.StringValue("/" + t.Pattern + "/" + t.Options), nil
	case bson.JavaScript:
		return value.StringValue(string(t)), nil
	case bson.Symbol:
		return value.StringValue(string(t)), nil
	default:
		return value.StringValue(fmt.Sprint(x)), nil
	}
}

func toArray(in []any) (value.Value, error) {
	out := make([]value.Value, len(in))
	for i, e := range in {
		v, err := ToValue(e)
		if err != nil {
			return value.Value{}, fmt.Errorf("index %d: %w", i, err)
		}
		out[i] = v
	}
	return value.ArrayValue(out...), nil
}

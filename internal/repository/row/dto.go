package row

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kailas-cloud/docflat/internal/db"
	domrow "github.com/kailas-cloud/docflat/internal/domain/row"
)

// buildHashFields converts a row into a flat map[string]string for HSET.
// Null cells are left out. Arrays of scalars are joined with db.TagSeparator
// so tag fields index every element; other composite cells are stored as
// JSON text.
func buildHashFields(r domrow.Row) (map[string]string, error) {
	m := make(map[string]string, len(r))
	for k, v := range r {
		switch t := v.(type) {
		case nil:
			continue
		case string:
			m[k] = t
		case bool:
			m[k] = strconv.FormatBool(t)
		case int64:
			m[k] = strconv.FormatInt(t, 10)
		case float64:
			m[k] = strconv.FormatFloat(t, 'f', -1, 64)
		case []float32:
			m[k] = vectorToBytes(t)
		case []any:
			if joined, ok := joinScalars(t); ok {
				m[k] = joined
				continue
			}
			data, err := json.Marshal(t)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", k, err)
			}
			m[k] = string(data)
		default:
			data, err := json.Marshal(t)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", k, err)
			}
			m[k] = string(data)
		}
	}
	return m, nil
}

// joinScalars joins an array whose elements are all scalars. Null elements
// are dropped.
func joinScalars(arr []any) (string, bool) {
	parts := make([]string, 0, len(arr))
	for _, e := range arr {
		var s string
		switch t := e.(type) {
		case nil:
			continue
		case string:
			s = t
		case bool:
			s = strconv.FormatBool(t)
		case int64:
			s = strconv.FormatInt(t, 10)
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		default:
			return "", false
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, db.TagSeparator), true
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

package path

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/docflat/internal/domain/value"
)

// Resolution failures. They fail the row being built, not the session.
var (
	ErrEmptyPath       = errors.New("empty path")
	ErrMissingKey      = errors.New("missing key")
	ErrBadIndex        = errors.New("array index is not a non-negative integer")
	ErrIndexOutOfRange = errors.New("array index out of range")
)

// Error describes which segment of a path could not be followed.
type Error struct {
	Path    string
	Segment string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("resolve %q at segment %q: %s", e.Path, e.Segment, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Resolve follows dotted from the root of doc. The first segment is always a
// key of doc. Each later segment indexes into an array or looks up a key of a
// sub-document; once a scalar is reached the remaining segments are ignored
// and the scalar is returned.
func Resolve(doc *value.Document, dotted string) (value.Value, error) {
	if dotted == "" {
		return value.Value{}, &Error{Path: dotted, Err: ErrEmptyPath}
	}
	segs := strings.Split(dotted, Separator)

	cur, ok := doc.Get(segs[0])
	if !ok {
		return value.Value{}, &Error{Path: dotted, Segment: segs[0], Err: ErrMissingKey}
	}

	for _, seg := range segs[1:] {
		switch cur.Kind() {
		case value.KindArray:
			idx, err := strconv.Atoi(seg)
			if err != nil || !isDecimal(seg) {
				return value.Value{}, &Error{Path: dotted, Segment: seg, Err: ErrBadIndex}
			}
			arr := cur.Array()
			if idx >= len(arr) {
				return value.Value{}, &Error{
					Path:    dotted,
					Segment: seg,
					Err:     fmt.Errorf("%w: %d >= %d", ErrIndexOutOfRange, idx, len(arr)),
				}
			}
			cur = arr[idx]
		case value.KindDocument:
			next, ok := cur.Document().Get(seg)
			if !ok {
				return value.Value{}, &Error{Path: dotted, Segment: seg, Err: ErrMissingKey}
			}
			cur = next
		default:
			return cur, nil
		}
	}
	return cur, nil
}

func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

package value

import "iter"

// Field is a single key/value pair of a Document.
type Field struct {
	Key   string
	Value Value
}

// Document is a mapping from string keys to values. Field order follows
// insertion order so that iteration is deterministic; callers must not
// depend on it for semantics.
type Document struct {
	fields []Field
	index  map[string]int
}

// NewDocument builds a document from fields. A repeated key keeps the last value.
func NewDocument(fields ...Field) *Document {
	d := &Document{
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		d.Set(f.Key, f.Value)
	}
	return d
}

// Set adds or replaces the value stored under key.
func (d *Document) Set(key string, v Value) {
	if d.index == nil {
		d.index = make(map[string]int)
	}
	if i, ok := d.index[key]; ok {
		d.fields[i].Value = v
		return
	}
	d.index[key] = len(d.fields)
	d.fields = append(d.fields, Field{Key: key, Value: v})
}

// Get returns the value under key and whether it exists.
func (d *Document) Get(key string) (Value, bool) {
	if d == nil {
		return Value{}, false
	}
	i, ok := d.index[key]
	if !ok {
		return Value{}, false
	}
	return d.fields[i].Value, true
}

// Len returns the number of top-level keys.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.fields)
}

// Keys returns the top-level keys in insertion order.
func (d *Document) Keys() []string {
	if d == nil {
		return nil
	}
	keys := make([]string, len(d.fields))
	for i, f := range d.fields {
		keys[i] = f.Key
	}
	return keys
}

// All iterates over the top-level fields.
func (d *Document) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		if d == nil {
			return
		}
		for _, f := range d.fields {
			if !yield(f.Key, f.Value) {
				return
			}
		}
	}
}

// Equal reports whether both documents hold the same keys with deeply equal
// values, ignoring field order.
func (d *Document) Equal(o *Document) bool {
	if d.Len() != o.Len() {
		return false
	}
	if d == nil {
		return true
	}
	for _, f := range d.fields {
		ov, ok := o.Get(f.Key)
		if !ok || !Equal(f.Value, ov) {
			return false
		}
	}
	return true
}

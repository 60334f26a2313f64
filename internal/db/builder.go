package db

// IndexBuilder assembles the search index of one entity from its columns.
type IndexBuilder struct {
	def IndexDefinition
}

// NewIndex starts an index over the rows stored under prefix.
func NewIndex(name string, storage StorageType, prefix string) *IndexBuilder {
	if storage == "" {
		storage = StorageJSON
	}
	return &IndexBuilder{def: IndexDefinition{
		Name:        name,
		StorageType: storage,
		Prefixes:    []string{prefix},
	}}
}

// Column indexes a row column under FieldAlias(column). On JSON storage the
// column is addressed by JSONPath. Tag columns on hash storage split on
// TagSeparator.
func (b *IndexBuilder) Column(column string, typ IndexFieldType) *IndexBuilder {
	f := IndexField{Name: column, Alias: FieldAlias(column), Type: typ}
	if b.def.StorageType == StorageJSON {
		f.Name = JSONPath(column)
	}
	if typ == IndexFieldTag && b.def.StorageType == StorageHash {
		f.Separator = TagSeparator
	}
	b.def.Fields = append(b.def.Fields, f)
	return b
}

// Vector indexes the row embedding as a FLOAT32 vector of dim elements.
func (b *IndexBuilder) Vector(column string, dim int, distance DistanceMetric) *IndexBuilder {
	b.Column(column, IndexFieldVector)
	f := &b.def.Fields[len(b.def.Fields)-1]
	f.Dim = dim
	f.Distance = distance
	return b
}

// Len returns the number of fields added so far.
func (b *IndexBuilder) Len() int { return len(b.def.Fields) }

// Build validates and returns the definition.
func (b *IndexBuilder) Build() (*IndexDefinition, error) {
	if err := b.def.Validate(); err != nil {
		return nil, err
	}
	return &b.def, nil
}

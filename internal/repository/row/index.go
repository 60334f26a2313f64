package row

import (
	"fmt"

	"github.com/kailas-cloud/docflat/internal/db"
	"github.com/kailas-cloud/docflat/internal/domain/mapping"
)

// vectorColumn matches importer.VectorField.
const vectorColumn = "vector"

var fieldTypes = map[mapping.IndexType]db.IndexFieldType{
	mapping.IndexText:    db.IndexFieldText,
	mapping.IndexTag:     db.IndexFieldTag,
	mapping.IndexNumeric: db.IndexFieldNumeric,
}

// buildIndex derives the entity's index from its field rules. The first rule
// for a column decides its type; index type none keeps the column unindexed.
// Returns nil when nothing is indexed at all.
func (r *Repo) buildIndex(entity string, rules []mapping.Rule, vectorDim int) (*db.IndexDefinition, error) {
	b := db.NewIndex(r.indexName(entity), r.storage, r.entityPrefix(entity))

	seen := make(map[string]bool, len(rules))
	for _, rule := range rules {
		col := rule.Target()
		if seen[col] {
			continue
		}
		seen[col] = true

		if rule.IndexType() == mapping.IndexNone {
			continue
		}
		typ, ok := fieldTypes[rule.IndexType()]
		if !ok {
			return nil, fmt.Errorf("column %q: unknown index type %q", col, rule.IndexType())
		}
		b.Column(col, typ)
	}

	if vectorDim > 0 {
		b.Vector(vectorColumn, vectorDim, r.distance)
	}
	if b.Len() == 0 {
		return nil, nil
	}
	return b.Build()
}

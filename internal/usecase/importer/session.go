package importer

import (
	"context"

	"github.com/kailas-cloud/docflat/internal/domain"
	"github.com/kailas-cloud/docflat/internal/domain/mapping"
	"github.com/kailas-cloud/docflat/internal/domain/row"
)

// Session reads one entity. It owns the rules and the date registry built from
// them and shares nothing with other sessions.
type Session struct {
	source    Source
	entity    Entity
	builder   *row.Builder
	transform *mapping.Transformer
}

// NewSession prepares a session for e. Date fields are reformatted while rows
// are built, so the transform stage only copies values to their columns.
// report may be nil.
func NewSession(source Source, e Entity, flatten bool, report mapping.Reporter) *Session {
	return &Session{
		source: source,
		entity: e,
		builder: row.NewBuilder(
			row.WithFlatten(flatten),
			row.WithDateRegistry(mapping.NewDateRegistry(e.Rules)),
			row.WithReporter(report),
		),
		transform: mapping.NewRenameTransformer(e.Rules),
	}
}

// Entity returns the session entity.
func (s *Session) Entity() Entity { return s.entity }

// Query runs q against the entity collection and returns its rows. The
// caller must Close them.
func (s *Session) Query(ctx context.Context, q string) (*Rows, error) {
	if s.entity.Collection == "" {
		return nil, domain.NewConfigError("collection must be supplied", nil)
	}
	cur, err := s.source.Find(ctx, s.entity.Collection, q)
	if err != nil {
		return nil, err
	}
	return NewRows(cur, s.builder, s.transform), nil
}

package importer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/kailas-cloud/docflat/internal/domain"
	"github.com/kailas-cloud/docflat/internal/domain/mapping"
	"github.com/kailas-cloud/docflat/internal/domain/row"
	"github.com/kailas-cloud/docflat/internal/domain/value"
)

// --- Mocks ---

type mockCursor struct {
	docs    []*value.Document
	pos     int
	cur     *value.Document
	failAt  int // advance error when pos reaches failAt; -1 disables
	err     error
	nexts   int
	closes  int
	block   chan struct{}
	blocked chan struct{}
}

func newMockCursor(docs ...*value.Document) *mockCursor {
	return &mockCursor{docs: docs, failAt: -1}
}

func (m *mockCursor) Next(ctx context.Context) bool {
	m.nexts++
	if m.block != nil && m.pos == len(m.docs) {
		close(m.blocked)
		select {
		case <-m.block:
		case <-ctx.Done():
			m.err = ctx.Err()
			return false
		}
	}
	if m.failAt >= 0 && m.pos == m.failAt {
		m.err = errors.New("socket closed")
		return false
	}
	if m.pos >= len(m.docs) {
		return false
	}
	m.cur = m.docs[m.pos]
	m.pos++
	return true
}

func (m *mockCursor) Current() *value.Document { return m.cur }
func (m *mockCursor) Err() error               { return m.err }
func (m *mockCursor) Close(_ context.Context) error {
	m.closes++
	return nil
}

type mockSource struct {
	cursor  *mockCursor
	err     error
	queries []string
}

func (m *mockSource) Find(_ context.Context, _, q string) (Cursor, error) {
	m.queries = append(m.queries, q)
	if m.err != nil {
		return nil, m.err
	}
	return m.cursor, nil
}

type mockSink struct {
	mu       sync.Mutex
	rows     map[string]row.Row
	batches  []int
	putErr   error
	cleaned  []string
	indexes  map[string]int
	indexErr error
}

func newMockSink() *mockSink {
	return &mockSink{rows: make(map[string]row.Row), indexes: make(map[string]int)}
}

func (m *mockSink) EnsureIndex(_ context.Context, entity string, _ []mapping.Rule, dim int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indexes[entity] = dim
	return m.indexErr
}

func (m *mockSink) PutBatch(_ context.Context, _ string, rows []row.Keyed) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	for _, kr := range rows {
		if _, err := json.Marshal(kr.Row); err != nil {
			return err
		}
	}
	m.batches = append(m.batches, len(rows))
	for _, kr := range rows {
		m.rows[kr.ID] = kr.Row
	}
	return nil
}

func (m *mockSink) Clean(_ context.Context, entity string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleaned = append(m.cleaned, entity)
	n := len(m.rows)
	m.rows = make(map[string]row.Row)
	return n, nil
}

type mockState struct {
	last map[string]time.Time
}

func (m *mockState) LastIndexTime(_ context.Context, entity string) (time.Time, bool, error) {
	t, ok := m.last[entity]
	return t, ok, nil
}

func (m *mockState) SetLastIndexTime(_ context.Context, entity string, t time.Time) error {
	if m.last == nil {
		m.last = make(map[string]time.Time)
	}
	m.last[entity] = t
	return nil
}

type mockEmbedder struct {
	texts []string
	err   error
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.texts = append(m.texts, text)
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: []float32{1, 2}}, nil
}

func doc(kv ...any) *value.Document {
	d := value.NewDocument()
	for i := 0; i+1 < len(kv); i += 2 {
		d.Set(kv[i].(string), value.MustFromAny(kv[i+1]))
	}
	return d
}

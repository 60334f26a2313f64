package docflat

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/docflat/internal/domain"
	"github.com/kailas-cloud/docflat/internal/domain/value"
	"github.com/kailas-cloud/docflat/internal/usecase/importer"
)

// --- mocks ---

type mockCursor struct {
	docs   []*value.Document
	pos    int
	cur    *value.Document
	closes int
}

func (m *mockCursor) Next(context.Context) bool {
	if m.pos >= len(m.docs) {
		return false
	}
	m.cur = m.docs[m.pos]
	m.pos++
	return true
}

func (m *mockCursor) Current() *value.Document { return m.cur }
func (m *mockCursor) Err() error               { return nil }
func (m *mockCursor) Close(context.Context) error {
	m.closes++
	return nil
}

type mockSource struct {
	cursor      *mockCursor
	err         error
	collections []string
	queries     []string
	closed      bool
}

func (m *mockSource) Find(_ context.Context, collection, q string) (importer.Cursor, error) {
	m.collections = append(m.collections, collection)
	m.queries = append(m.queries, q)
	if m.err != nil {
		return nil, m.err
	}
	return m.cursor, nil
}

func (m *mockSource) Close(context.Context) error {
	m.closed = true
	return nil
}

func doc(kv ...any) *value.Document {
	d := value.NewDocument()
	for i := 0; i+1 < len(kv); i += 2 {
		d.Set(kv[i].(string), value.MustFromAny(kv[i+1]))
	}
	return d
}

func newTestClient(t *testing.T, src source, obs *observer, opts ...Option) *Client {
	t.Helper()
	cfg := &clientConfig{flatten: true}
	for _, o := range opts {
		o.apply(cfg)
	}
	rules, err := compileRules(cfg.fieldRules)
	if err != nil {
		t.Fatalf("compileRules: %v", err)
	}
	return wireClient(src, cfg, rules, obs)
}

// --- tests ---

func TestOpen_NoDatabase(t *testing.T) {
	_, err := Open(context.Background())
	if !errors.Is(err, ErrFatal) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if kind, _ := domain.FatalKindOf(err); kind != domain.FatalConfiguration {
		t.Errorf("kind = %q, want configuration", kind)
	}
}

func TestOpen_BadFieldRule(t *testing.T) {
	_, err := Open(context.Background(),
		WithDatabase("shop"),
		WithFieldRules(FieldRule{MongoField: "d", DateFormat: "yyyy kk"}),
	)
	if !errors.Is(err, ErrUnsupportedPattern) {
		t.Fatalf("expected ErrUnsupportedPattern, got %v", err)
	}
	if !errors.Is(err, ErrFatal) {
		t.Errorf("expected fatal error, got %v", err)
	}
}

func TestClient_RowsFlattened(t *testing.T) {
	src := &mockSource{cursor: &mockCursor{docs: []*value.Document{
		doc("_id", "1", "user", map[string]any{"name": "ada", "tags": []any{"a", "b"}}),
		doc("_id", "2", "user", map[string]any{"name": "bob"}),
	}}}
	c := newTestClient(t, src, nil)

	rows, err := c.Rows(context.Background(), "users", `{"updated": {"$gt": "2021-06-05 10:00:00"}}`)
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}

	var got []Row
	for r, err := range rows.All(context.Background()) {
		if err != nil {
			t.Fatalf("row error: %v", err)
		}
		got = append(got, r)
	}
	if len(got) != 2 {
		t.Fatalf("rows = %d, want 2", len(got))
	}
	if got[0]["user.name"] != "ada" || got[1]["user.name"] != "bob" {
		t.Errorf("unexpected rows: %v", got)
	}
	if tags, ok := got[0]["user.tags"].([]any); !ok || len(tags) != 2 {
		t.Errorf("user.tags = %#v, want 2-element array", got[0]["user.tags"])
	}

	if src.collections[0] != "users" {
		t.Errorf("collection = %q", src.collections[0])
	}
	if want := `{"updated": {"$gt": "2021-06-05T10:00:00Z"}}`; src.queries[0] != want {
		t.Errorf("query = %q, want %q", src.queries[0], want)
	}
	if src.cursor.closes != 1 {
		t.Errorf("cursor closes = %d, want 1", src.cursor.closes)
	}

	_, err = rows.Next(context.Background())
	if !errors.Is(err, ErrExhausted) {
		t.Errorf("Next after end: got %v, want ErrExhausted", err)
	}
}

func TestClient_RowsNotFlattened(t *testing.T) {
	src := &mockSource{cursor: &mockCursor{docs: []*value.Document{
		doc("user", map[string]any{"name": "ada"}),
	}}}
	c := newTestClient(t, src, nil, WithFlatten(false))

	rows, err := c.Rows(context.Background(), "users", "")
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	defer func() { _ = rows.Close(context.Background()) }()

	ok, err := rows.HasNext(context.Background())
	if err != nil || !ok {
		t.Fatalf("HasNext = %v, %v", ok, err)
	}
	r, err := rows.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	user, ok := r["user"].(map[string]any)
	if !ok || user["name"] != "ada" {
		t.Errorf("user = %#v", r["user"])
	}
	if _, flat := r["user.name"]; flat {
		t.Error("flattened key present with flattening off")
	}
}

func TestClient_FieldRulesAndObserver(t *testing.T) {
	src := &mockSource{cursor: &mockCursor{docs: []*value.Document{
		doc("created", "2021-06-05 10:00:00"),
		doc("created", "yesterday"),
	}}}

	var failures []*DateError
	reg := prometheus.NewRegistry()
	obs, err := newObserver(nil, reg, func(e *DateError) { failures = append(failures, e) })
	if err != nil {
		t.Fatalf("newObserver: %v", err)
	}
	c := newTestClient(t, src, obs, WithFieldRules(FieldRule{
		MongoField: "created",
		Column:     "created_at",
		DateFormat: "yyyy-MM-dd HH:mm:ss",
	}))

	rows, err := c.Rows(context.Background(), "orders", "")
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}

	first, err := rows.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if first["created_at"] != "2021-06-05T10:00:00Z" {
		t.Errorf("created_at = %v", first["created_at"])
	}

	second, err := rows.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if v, ok := second["created_at"]; !ok || v != nil {
		t.Errorf("created_at = %v (present %v), want nil", v, ok)
	}
	if len(failures) != 1 || failures[0].Input != "yesterday" {
		t.Errorf("failures = %v", failures)
	}
	if got := testutil.ToFloat64(obs.metrics.dateFailures); got != 1 {
		t.Errorf("date failures metric = %v, want 1", got)
	}
	if got := testutil.ToFloat64(obs.metrics.rows); got != 2 {
		t.Errorf("rows metric = %v, want 2", got)
	}
}

func TestClient_RowsQueryError(t *testing.T) {
	src := &mockSource{err: domain.NewQueryError("invalid query", errors.New("bad json"))}
	c := newTestClient(t, src, nil)

	_, err := c.Rows(context.Background(), "users", "{")
	if !errors.Is(err, ErrFatal) {
		t.Fatalf("expected fatal error, got %v", err)
	}
}

func TestClient_RowsNeedsCollection(t *testing.T) {
	c := newTestClient(t, &mockSource{}, nil)
	_, err := c.Rows(context.Background(), "", "")
	if kind, _ := domain.FatalKindOf(err); kind != domain.FatalConfiguration {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestClient_Close(t *testing.T) {
	src := &mockSource{}
	c := newTestClient(t, src, nil)
	if err := c.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !src.closed {
		t.Error("source not closed")
	}
}

func TestObserver_Nil(t *testing.T) {
	// nil observer should not panic.
	var obs *observer
	obs.observe("test", time.Now(), nil)
	obs.observe("test", time.Now(), errors.New("err"))
	obs.row()
	obs.dateFailed(&DateError{Field: "d"})
}

func TestObserver_WithPrometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := newObserver(nil, reg, nil)
	if err != nil {
		t.Fatalf("newObserver: %v", err)
	}

	obs.observe("rows", time.Now().Add(-10*time.Millisecond), nil)
	obs.observe("rows", time.Now(), errors.New("fail"))

	if got := testutil.ToFloat64(obs.metrics.operations.WithLabelValues("rows", "ok")); got != 1 {
		t.Errorf("ok operations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(obs.metrics.operations.WithLabelValues("rows", "error")); got != 1 {
		t.Errorf("error operations = %v, want 1", got)
	}
}

func TestObserver_ReusesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := newObserver(nil, reg, nil)
	if err != nil {
		t.Fatalf("newObserver: %v", err)
	}
	second, err := newObserver(nil, reg, nil)
	if err != nil {
		t.Fatalf("second newObserver: %v", err)
	}

	second.row()
	if got := testutil.ToFloat64(first.metrics.rows); got != 1 {
		t.Errorf("shared rows counter = %v, want 1", got)
	}
}

func TestObserver_WithLogger(t *testing.T) {
	// Проверяем что логгер не паникует при вызове.
	obs, err := newObserver(slog.Default(), nil, nil)
	if err != nil {
		t.Fatalf("newObserver: %v", err)
	}
	obs.observe("test.op", time.Now(), nil)
	obs.observe("test.op", time.Now(), errors.New("test error"))
	obs.dateFailed(&DateError{Field: "d", Input: "x", Pattern: "yyyy"})
}

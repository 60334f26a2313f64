package importer

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/docflat/internal/domain"
	"github.com/kailas-cloud/docflat/internal/domain/mapping"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, src *mockSource, sink *mockSink, state *mockState, entities ...Entity) *Service {
	t.Helper()
	if len(entities) == 0 {
		entities = []Entity{{Name: "posts", Collection: "posts"}}
	}
	svc, err := New(src, sink, state, entities, nil)
	require.NoError(t, err)
	ids := 0
	svc.newID = func() string {
		ids++
		return "run-" + string(rune('0'+ids))
	}
	return svc.WithClock(func() time.Time { return fixedNow })
}

func TestNew_RejectsBadEntities(t *testing.T) {
	_, err := New(nil, nil, nil, []Entity{{Name: "a"}}, nil)
	require.ErrorIs(t, err, domain.ErrFatal)

	_, err = New(nil, nil, nil, []Entity{
		{Name: "a", Collection: "x"},
		{Name: "a", Collection: "y"},
	}, nil)
	require.ErrorIs(t, err, domain.ErrFatal)

	_, err = New(nil, nil, nil, []Entity{{Name: "a", Collection: "x", OnError: "retry"}}, nil)
	require.ErrorIs(t, err, domain.ErrFatal)
}

func TestRun_FullImport(t *testing.T) {
	rule, err := mapping.NewRule("author.name", "author", "", "")
	require.NoError(t, err)

	src := &mockSource{cursor: newMockCursor(
		doc("_id", "p1", "author", map[string]any{"name": "ada"}),
		doc("_id", "p2", "author", map[string]any{"name": "bob"}),
	)}
	sink := newMockSink()
	state := &mockState{}
	svc := newTestService(t, src, sink, state, Entity{
		Name: "posts", Collection: "posts", Query: `{"draft": false}`,
		Rules: []mapping.Rule{rule},
	})

	st, err := svc.Run(context.Background(), Request{Entity: "posts", Command: CommandFullImport})
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, st.State)
	assert.Equal(t, "run-1", st.ID)
	assert.Equal(t, Counters{Fetched: 2, Indexed: 2}, st.Counters)
	assert.Equal(t, "ada", sink.rows["p1"]["author"])
	assert.Equal(t, "bob", sink.rows["p2"]["author.name"])
	assert.Equal(t, []string{`{"draft": false}`}, src.queries)
	assert.Equal(t, fixedNow, state.last["posts"])
	assert.Equal(t, 1, src.cursor.closes)
}

func TestRun_UnknownEntityAndCommand(t *testing.T) {
	svc := newTestService(t, &mockSource{}, newMockSink(), &mockState{})

	_, err := svc.Run(context.Background(), Request{Entity: "nope", Command: CommandFullImport})
	require.ErrorIs(t, err, domain.ErrUnknownEntity)

	_, err = svc.Run(context.Background(), Request{Entity: "posts", Command: "reload"})
	require.Error(t, err)
}

func TestRun_DeltaImportSubstitutesTokens(t *testing.T) {
	src := &mockSource{cursor: newMockCursor()}
	state := &mockState{last: map[string]time.Time{"posts": time.Date(2021, 6, 5, 10, 0, 0, 0, time.UTC)}}
	svc := newTestService(t, src, newMockSink(), state, Entity{
		Name:       "posts",
		Collection: "posts",
		Query:      `{}`,
		DeltaQuery: `{"updated": {"$gt": {"$date": "${dih.last_index_time}"}}, "tenant": "${dih.request.tenant}"}`,
	})

	_, err := svc.Run(context.Background(), Request{
		Entity: "posts", Command: CommandDeltaImport, Params: map[string]string{"tenant": "acme"},
	})
	require.NoError(t, err)

	require.Len(t, src.queries, 1)
	assert.Equal(t, `{"updated": {"$gt": {"$date": "2021-06-05T10:00:00Z"}}, "tenant": "acme"}`, src.queries[0])
	assert.Equal(t, fixedNow, state.last["posts"])
}

func TestRun_DeltaWithoutStateUsesEpoch(t *testing.T) {
	src := &mockSource{cursor: newMockCursor()}
	svc := newTestService(t, src, newMockSink(), &mockState{}, Entity{
		Name: "posts", Collection: "posts", DeltaQuery: `{"t": {"$gt": "${dataimporter.last_index_time}"}}`,
	})

	_, err := svc.Run(context.Background(), Request{Entity: "posts", Command: CommandDeltaImport})
	require.NoError(t, err)
	assert.Equal(t, `{"t": {"$gt": "1970-01-01T00:00:00Z"}}`, src.queries[0])
}

func TestRun_DeltaFallsBackToFullQuery(t *testing.T) {
	src := &mockSource{cursor: newMockCursor()}
	svc := newTestService(t, src, newMockSink(), &mockState{}, Entity{
		Name: "posts", Collection: "posts", Query: `{"all": true}`,
	})

	_, err := svc.Run(context.Background(), Request{Entity: "posts", Command: CommandDeltaImport})
	require.NoError(t, err)
	assert.Equal(t, []string{`{"all": true}`}, src.queries)
}

func TestRun_CleanBeforeFullImport(t *testing.T) {
	sink := newMockSink()
	sink.rows["old"] = map[string]any{"_id": "old"}
	src := &mockSource{cursor: newMockCursor(doc("_id", "new"))}
	svc := newTestService(t, src, sink, &mockState{})

	_, err := svc.Run(context.Background(), Request{Entity: "posts", Command: CommandFullImport, Clean: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"posts"}, sink.cleaned)
	assert.Contains(t, sink.indexes, "posts")
	assert.Len(t, sink.rows, 1)
	assert.Contains(t, sink.rows, "new")
}

func TestRun_RowErrorAbortPolicy(t *testing.T) {
	src := &mockSource{cursor: newMockCursor(doc("_id", "1"), doc("title", "no id"), doc("_id", "3"))}
	sink := newMockSink()
	state := &mockState{}
	svc := newTestService(t, src, sink, state)

	st, err := svc.Run(context.Background(), Request{Entity: "posts", Command: CommandFullImport})
	require.ErrorIs(t, err, domain.ErrRowFailed)

	assert.Equal(t, StateFailed, st.State)
	assert.Equal(t, Counters{Fetched: 2, Indexed: 1, Failed: 1}, st.Counters)
	assert.NotEmpty(t, st.Error)
	assert.Equal(t, 1, src.cursor.closes)
	assert.Empty(t, state.last, "failed run must not move last index time")
}

func TestRun_RowErrorSkipPolicy(t *testing.T) {
	src := &mockSource{cursor: newMockCursor(doc("_id", "1"), doc("title", "no id"), doc("_id", "3"))}
	sink := newMockSink()
	svc := newTestService(t, src, sink, &mockState{}, Entity{Name: "posts", Collection: "posts", OnError: OnErrorSkip})

	st, err := svc.Run(context.Background(), Request{Entity: "posts", Command: CommandFullImport})
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, st.State)
	assert.Equal(t, Counters{Fetched: 3, Indexed: 2, Skipped: 1, Failed: 1}, st.Counters)
	assert.Len(t, sink.rows, 2)
}

func TestRun_NonFiniteNumberDoesNotFailBatch(t *testing.T) {
	src := &mockSource{cursor: newMockCursor(
		doc("_id", "1", "score", 0.5),
		doc("_id", "2", "score", math.NaN()),
		doc("_id", "3", "score", math.Inf(-1)),
	)}
	sink := newMockSink()
	svc := newTestService(t, src, sink, &mockState{}, Entity{Name: "posts", Collection: "posts", OnError: OnErrorSkip})
	svc.WithWriteBatch(2)

	st, err := svc.Run(context.Background(), Request{Entity: "posts", Command: CommandFullImport})
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, st.State)
	assert.Equal(t, Counters{Fetched: 3, Indexed: 3}, st.Counters)
	assert.Equal(t, []int{2, 1}, sink.batches)
	assert.Equal(t, 0.5, sink.rows["1"]["score"])
	assert.Equal(t, "NaN", sink.rows["2"]["score"])
	assert.Equal(t, "-Inf", sink.rows["3"]["score"])
}

func TestRun_CursorFailureIsFatal(t *testing.T) {
	cur := newMockCursor(doc("_id", "1"), doc("_id", "2"))
	cur.failAt = 1
	svc := newTestService(t, &mockSource{cursor: cur}, newMockSink(), &mockState{})

	st, err := svc.Run(context.Background(), Request{Entity: "posts", Command: CommandFullImport})
	require.ErrorIs(t, err, domain.ErrFatal)
	assert.Equal(t, StateFailed, st.State)
	assert.Equal(t, 1, cur.closes)
}

func TestRun_SourceFailure(t *testing.T) {
	src := &mockSource{err: domain.NewQueryError("invalid query", errors.New("bad json"))}
	svc := newTestService(t, src, newMockSink(), &mockState{})

	st, err := svc.Run(context.Background(), Request{Entity: "posts", Command: CommandFullImport})
	require.ErrorIs(t, err, domain.ErrFatal)
	assert.Equal(t, StateFailed, st.State)
}

func TestRun_WriteBatch(t *testing.T) {
	src := &mockSource{cursor: newMockCursor(
		doc("_id", "1"), doc("_id", "2"), doc("_id", "3"), doc("_id", "4"), doc("_id", "5"),
	)}
	sink := newMockSink()
	svc := newTestService(t, src, sink, &mockState{}).WithWriteBatch(2)

	st, err := svc.Run(context.Background(), Request{Entity: "posts", Command: CommandFullImport})
	require.NoError(t, err)

	assert.Equal(t, []int{2, 2, 1}, sink.batches)
	assert.Equal(t, Counters{Fetched: 5, Indexed: 5}, st.Counters)
	assert.Len(t, sink.rows, 5)
}

func TestRun_WriteBatchFlushedBeforeRowAbort(t *testing.T) {
	src := &mockSource{cursor: newMockCursor(doc("_id", "1"), doc("_id", "2"), doc("title", "no id"))}
	sink := newMockSink()
	svc := newTestService(t, src, sink, &mockState{}).WithWriteBatch(10)

	st, err := svc.Run(context.Background(), Request{Entity: "posts", Command: CommandFullImport})
	require.ErrorIs(t, err, domain.ErrRowFailed)

	assert.Equal(t, []int{2}, sink.batches)
	assert.Equal(t, Counters{Fetched: 3, Indexed: 2, Failed: 1}, st.Counters)
}

func TestWithWriteBatch_ClampsToOne(t *testing.T) {
	svc := newTestService(t, &mockSource{}, newMockSink(), &mockState{}).WithWriteBatch(0)
	assert.Equal(t, 1, svc.writeBatch)
}

func TestRun_SinkFailure(t *testing.T) {
	sink := newMockSink()
	sink.putErr = errors.New("connection refused")
	cur := newMockCursor(doc("_id", "1"))
	svc := newTestService(t, &mockSource{cursor: cur}, sink, &mockState{})

	_, err := svc.Run(context.Background(), Request{Entity: "posts", Command: CommandFullImport})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, 1, cur.closes)
}

func TestRun_Embeds(t *testing.T) {
	emb := &mockEmbedder{}
	sink := newMockSink()
	src := &mockSource{cursor: newMockCursor(doc("_id", "1", "body", "hello"), doc("_id", "2"))}
	svc := newTestService(t, src, sink, &mockState{}).WithEmbedder(emb, "body", 2)

	_, err := svc.Run(context.Background(), Request{Entity: "posts", Command: CommandFullImport})
	require.NoError(t, err)

	assert.Equal(t, []string{"hello"}, emb.texts)
	assert.Equal(t, []float32{1, 2}, sink.rows["1"][VectorField])
	assert.NotContains(t, sink.rows["2"], VectorField)
}

func TestRun_BlankDocumentIndexedWithoutVector(t *testing.T) {
	emb := domain.NewDocumentEmbedder(&mockEmbedder{}, "passage: ")
	sink := newMockSink()
	src := &mockSource{cursor: newMockCursor(doc("_id", "1", "body", "  \n "), doc("_id", "2", "body", " hi "))}
	svc := newTestService(t, src, sink, &mockState{}).WithEmbedder(emb, "body", 2)

	st, err := svc.Run(context.Background(), Request{Entity: "posts", Command: CommandFullImport})
	require.NoError(t, err)

	assert.NotContains(t, sink.rows["1"], VectorField)
	assert.Equal(t, []float32{1, 2}, sink.rows["2"][VectorField])
	assert.Equal(t, 2, st.Counters.Indexed)
}

func TestPrepareIndexes(t *testing.T) {
	sink := newMockSink()
	svc := newTestService(t, &mockSource{}, sink, &mockState{},
		Entity{Name: "a", Collection: "a"}, Entity{Name: "b", Collection: "b"})
	require.NoError(t, svc.PrepareIndexes(context.Background()))
	assert.Equal(t, map[string]int{"a": 0, "b": 0}, sink.indexes)

	svc.WithEmbedder(&mockEmbedder{}, "body", 8)
	require.NoError(t, svc.PrepareIndexes(context.Background()))
	assert.Equal(t, 8, sink.indexes["a"])
}

func TestStart_BusyAbortAndStatus(t *testing.T) {
	cur := newMockCursor(doc("_id", "1"))
	cur.block = make(chan struct{})
	cur.blocked = make(chan struct{})
	sink := newMockSink()
	svc := newTestService(t, &mockSource{cursor: cur}, sink, &mockState{})
	ctx := context.Background()

	id, err := svc.Start(ctx, Request{Entity: "posts", Command: CommandFullImport})
	require.NoError(t, err)
	assert.Equal(t, "run-1", id)

	<-cur.blocked

	_, err = svc.Start(ctx, Request{Entity: "posts", Command: CommandDeltaImport})
	require.ErrorIs(t, err, domain.ErrBusy)

	st := svc.Status()
	require.Len(t, st, 1)
	assert.True(t, st[0].Busy)
	require.NotNil(t, st[0].LastRun)
	assert.Equal(t, StateRunning, st[0].LastRun.State)

	require.NoError(t, svc.Abort("posts"))
	svc.Wait()

	st = svc.Status()
	assert.False(t, st[0].Busy)
	assert.Equal(t, StateAborted, st[0].LastRun.State)
	assert.Equal(t, 1, st[0].LastRun.Counters.Indexed)
	assert.Equal(t, 1, cur.closes)

	require.ErrorIs(t, svc.Abort("posts"), domain.ErrNotRunning)
	require.ErrorIs(t, svc.Abort("other"), domain.ErrUnknownEntity)
}

func TestShutdown_AbortsRuns(t *testing.T) {
	cur := newMockCursor()
	cur.block = make(chan struct{})
	cur.blocked = make(chan struct{})
	svc := newTestService(t, &mockSource{cursor: cur}, newMockSink(), &mockState{})

	_, err := svc.Start(context.Background(), Request{Entity: "posts", Command: CommandFullImport})
	require.NoError(t, err)
	<-cur.blocked

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svc.Shutdown(ctx))
	assert.Equal(t, StateAborted, svc.Status()[0].LastRun.State)
}

func TestRowID(t *testing.T) {
	id, err := rowID(map[string]any{"_id": int64(7)}, "_id")
	require.NoError(t, err)
	assert.Equal(t, "7", id)

	_, err = rowID(map[string]any{"_id": ""}, "_id")
	require.ErrorIs(t, err, domain.ErrRowFailed)

	_, err = rowID(map[string]any{"_id": []any{1}}, "_id")
	require.ErrorIs(t, err, domain.ErrRowFailed)
}

package importer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docflat/internal/domain"
	"github.com/kailas-cloud/docflat/internal/domain/mapping"
	"github.com/kailas-cloud/docflat/internal/domain/query"
	"github.com/kailas-cloud/docflat/internal/domain/row"
	"github.com/kailas-cloud/docflat/internal/logger"
	"github.com/kailas-cloud/docflat/internal/metrics"
)

// LastIndexTimeLayout formats the ${dih.last_index_time} token.
const LastIndexTimeLayout = "2006-01-02 15:04:05"

// VectorField is the row column that receives embeddings.
const VectorField = "vector"

type run struct {
	status  RunStatus
	cancel  context.CancelFunc
	aborted bool
}

// Service runs imports: one session per run, at most one run per entity.
type Service struct {
	source Source
	sink   Sink
	state  StateStore

	embedder     Embedder
	contentField string
	vectorDim    int

	entities   map[string]Entity
	names      []string
	flatten    bool
	writeBatch int
	logger     *zap.Logger
	now        func() time.Time
	newID      func() string

	mu     sync.Mutex
	active map[string]*run
	last   map[string]RunStatus
	wg     sync.WaitGroup
}

// New creates an import service. Entities are validated and must have
// distinct names.
func New(source Source, sink Sink, state StateStore, entities []Entity, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		source:     source,
		sink:       sink,
		state:      state,
		entities:   make(map[string]Entity, len(entities)),
		flatten:    true,
		writeBatch: 1,
		logger:     logger,
		now:        time.Now,
		newID:      uuid.NewString,
		active:     make(map[string]*run),
		last:       make(map[string]RunStatus),
	}
	for _, e := range entities {
		if err := e.Validate(); err != nil {
			return nil, domain.NewConfigError("invalid entity", err)
		}
		if _, dup := s.entities[e.Name]; dup {
			return nil, domain.NewConfigError(fmt.Sprintf("duplicate entity %q", e.Name), nil)
		}
		s.entities[e.Name] = e
		s.names = append(s.names, e.Name)
	}
	slices.Sort(s.names)
	return s, nil
}

// WithFlatten toggles dotted-path flattening for every session.
func (s *Service) WithFlatten(on bool) *Service {
	s.flatten = on
	return s
}

// WithWriteBatch buffers up to n rows per sink write. Values below 1 mean 1.
func (s *Service) WithWriteBatch(n int) *Service {
	s.writeBatch = max(n, 1)
	return s
}

// WithEmbedder stores an embedding of the contentField column in VectorField
// of every row that has that column.
func (s *Service) WithEmbedder(e Embedder, contentField string, dim int) *Service {
	s.embedder = e
	s.contentField = contentField
	s.vectorDim = dim
	return s
}

// WithClock replaces time.Now.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Entities returns the configured entity names in sorted order.
func (s *Service) Entities() []string { return slices.Clone(s.names) }

// PrepareIndexes makes sure the sink has an index for every entity.
func (s *Service) PrepareIndexes(ctx context.Context) error {
	for _, name := range s.names {
		if err := s.ensureIndex(ctx, s.entities[name]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) ensureIndex(ctx context.Context, e Entity) error {
	dim := 0
	if s.embedder != nil {
		dim = s.vectorDim
	}
	if err := s.sink.EnsureIndex(ctx, e.Name, e.Rules, dim); err != nil {
		return fmt.Errorf("ensure index for %q: %w", e.Name, err)
	}
	return nil
}

// Start launches a run in the background and returns its id. The run outlives
// ctx's cancellation but keeps its values.
func (s *Service) Start(ctx context.Context, req Request) (string, error) {
	e, r, runCtx, err := s.begin(context.WithoutCancel(ctx), req)
	if err != nil {
		return "", err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = s.execute(runCtx, e, req, r)
	}()
	return r.status.ID, nil
}

// Run executes a run and waits for it.
func (s *Service) Run(ctx context.Context, req Request) (RunStatus, error) {
	e, r, runCtx, err := s.begin(ctx, req)
	if err != nil {
		return RunStatus{}, err
	}
	err = s.execute(runCtx, e, req, r)
	return s.lastRun(e.Name), err
}

// Abort cancels the running import of entity. The run closes its cursor and
// finishes as aborted.
func (s *Service) Abort(entity string) error {
	if _, ok := s.entities[entity]; !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownEntity, entity)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.active[entity]
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrNotRunning, entity)
	}
	r.aborted = true
	r.cancel()
	return nil
}

// Status returns the status of every entity.
func (s *Service) Status() []EntityStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]EntityStatus, 0, len(s.names))
	for _, name := range s.names {
		st := EntityStatus{Entity: name}
		if r, ok := s.active[name]; ok {
			st.Busy = true
			cur := r.status
			st.LastRun = &cur
		} else if last, ok := s.last[name]; ok {
			st.LastRun = &last
		}
		out = append(out, st)
	}
	return out
}

// Wait blocks until every background run has finished.
func (s *Service) Wait() { s.wg.Wait() }

// Shutdown aborts running imports and waits for them until ctx is done.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, r := range s.active {
		r.aborted = true
		r.cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for imports: %w", ctx.Err())
	}
}

func (s *Service) begin(ctx context.Context, req Request) (Entity, *run, context.Context, error) {
	e, ok := s.entities[req.Entity]
	if !ok {
		return Entity{}, nil, nil, fmt.Errorf("%w: %q", domain.ErrUnknownEntity, req.Entity)
	}
	if _, ok := ParseCommand(string(req.Command)); !ok {
		return Entity{}, nil, nil, fmt.Errorf("unknown command %q", req.Command)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.active[e.Name]; busy {
		return Entity{}, nil, nil, fmt.Errorf("%w: %q", domain.ErrBusy, e.Name)
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &run{
		status: RunStatus{
			ID:      s.newID(),
			Entity:  e.Name,
			Command: req.Command,
			State:   StateRunning,
			Started: s.now().UTC(),
		},
		cancel: cancel,
	}
	s.active[e.Name] = r
	metrics.ImportRunning.WithLabelValues(e.Name).Set(1)
	return e, r, runCtx, nil
}

func (s *Service) execute(ctx context.Context, e Entity, req Request, r *run) error {
	ctx, log := logger.WithRun(ctx, s.logger, r.status.ID, e.Name, string(req.Command))
	log.Info("Import started", zap.Bool("clean", req.Clean))

	return s.finish(ctx, e, r, s.importRows(ctx, e, req, r))
}

func (s *Service) importRows(ctx context.Context, e Entity, req Request, r *run) error {
	log := logger.FromContext(ctx)

	q, err := s.buildQuery(ctx, e, req)
	if err != nil {
		return err
	}
	log.Debug("Query prepared", zap.String("query", q))

	if req.Command == CommandFullImport && req.Clean {
		n, err := s.sink.Clean(ctx, e.Name)
		if err != nil {
			return fmt.Errorf("clean %q: %w", e.Name, err)
		}
		log.Info("Previous rows deleted", zap.Int("count", n))
		// Clean drops the index together with the rows.
		if err := s.ensureIndex(ctx, e); err != nil {
			return err
		}
	}

	report := func(de *mapping.DateError) {
		metrics.DateParseFailuresTotal.WithLabelValues(e.Name, de.Field).Inc()
		log.Warn("Date conversion error",
			zap.String("field", de.Field),
			zap.String("input", de.Input),
			zap.String("pattern", de.Pattern),
			zap.Error(de.Err),
		)
	}
	rows, err := NewSession(s.source, e, s.flatten, report).Query(ctx, q)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rows.Close(ctx); cerr != nil {
			log.Warn("Cursor close failed", zap.Error(cerr))
		}
	}()

	pending := make([]row.Keyed, 0, s.writeBatch)
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if err := s.sink.PutBatch(ctx, e.Name, pending); err != nil {
			return fmt.Errorf("index %d rows: %w", len(pending), err)
		}
		s.count(r, e.Name, outcomeIndexed, len(pending))
		pending = pending[:0]
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := rows.HasNext(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return flush()
		}
		s.count(r, e.Name, outcomeFetched, 1)

		out, err := rows.Next(ctx)
		var id string
		if err == nil {
			id, err = rowID(out, e.PK)
		}
		if err != nil {
			s.count(r, e.Name, outcomeFailed, 1)
			if e.OnError == OnErrorAbort {
				if ferr := flush(); ferr != nil {
					return errors.Join(err, ferr)
				}
				return err
			}
			s.count(r, e.Name, outcomeSkipped, 1)
			log.Warn("Row skipped", zap.Error(err))
			continue
		}

		if err := s.embed(ctx, out); err != nil {
			return err
		}
		pending = append(pending, row.Keyed{ID: id, Row: out})
		if len(pending) >= s.writeBatch {
			if err := flush(); err != nil {
				return err
			}
		}
	}
}

// buildQuery picks the entity query for the command and substitutes tokens
// before the date-text rewrite.
func (s *Service) buildQuery(ctx context.Context, e Entity, req Request) (string, error) {
	raw := e.Query
	if req.Command == CommandDeltaImport {
		if e.DeltaQuery != "" {
			raw = e.DeltaQuery
		} else {
			logger.FromContext(ctx).Warn("No delta query configured, running the full query")
		}
	}
	if !strings.Contains(raw, "${") {
		return query.RewriteDateTimes(raw), nil
	}

	last := time.Unix(0, 0).UTC()
	if s.state != nil {
		t, ok, err := s.state.LastIndexTime(ctx, e.Name)
		if err != nil {
			return "", fmt.Errorf("read last index time: %w", err)
		}
		if ok {
			last = t.UTC()
		}
	}

	lastText := last.Format(LastIndexTimeLayout)
	tokens := map[string]string{
		query.TokenLastIndexTime:       lastText,
		query.TokenLegacyLastIndexTime: lastText,
	}
	for k, v := range req.Params {
		tokens[query.TokenRequestPrefix+k] = v
	}
	return query.RewriteDateTimes(query.ReplaceTokens(raw, tokens)), nil
}

func (s *Service) embed(ctx context.Context, out row.Row) error {
	if s.embedder == nil || s.contentField == "" {
		return nil
	}
	text, ok := out[s.contentField].(string)
	if !ok || text == "" {
		return nil
	}
	res, err := s.embedder.Embed(ctx, text)
	if errors.Is(err, domain.ErrEmptyDocument) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("embed %q: %w", s.contentField, err)
	}
	out[VectorField] = res.Embedding
	return nil
}

// Document outcomes, also used as metric labels.
const (
	outcomeFetched = "fetched"
	outcomeIndexed = "indexed"
	outcomeSkipped = "skipped"
	outcomeFailed  = "failed"
)

func (s *Service) count(r *run, entity, outcome string, n int) {
	s.mu.Lock()
	c := &r.status.Counters
	switch outcome {
	case outcomeFetched:
		c.Fetched += n
	case outcomeIndexed:
		c.Indexed += n
	case outcomeSkipped:
		c.Skipped += n
	case outcomeFailed:
		c.Failed += n
	}
	s.mu.Unlock()
	metrics.ImportDocumentsTotal.WithLabelValues(entity, outcome).Add(float64(n))
}

// finish records the outcome of r and returns the run error, which is
// ErrAborted for an aborted run.
func (s *Service) finish(ctx context.Context, e Entity, r *run, err error) error {
	log := logger.FromContext(ctx)
	finished := s.now().UTC()

	s.mu.Lock()
	state := StateCompleted
	switch {
	case err == nil:
	case r.aborted:
		state = StateAborted
		err = fmt.Errorf("%w: %w", domain.ErrAborted, err)
	default:
		state = StateFailed
	}
	r.status.State = state
	r.status.Finished = finished
	if err != nil {
		r.status.Error = err.Error()
	}
	st := r.status
	delete(s.active, e.Name)
	s.last[e.Name] = st
	s.mu.Unlock()

	r.cancel()

	metrics.ImportRunning.WithLabelValues(e.Name).Set(0)
	metrics.ImportRunsTotal.WithLabelValues(e.Name, string(st.Command), string(state)).Inc()
	metrics.ImportRunDuration.WithLabelValues(e.Name, string(st.Command)).Observe(finished.Sub(st.Started).Seconds())

	fields := []zap.Field{
		zap.String("state", string(state)),
		zap.Duration("duration", finished.Sub(st.Started)),
		zap.Int("fetched", st.Counters.Fetched),
		zap.Int("indexed", st.Counters.Indexed),
		zap.Int("skipped", st.Counters.Skipped),
		zap.Int("failed", st.Counters.Failed),
	}
	if state != StateCompleted {
		log.Error("Import finished", append(fields, zap.Error(err))...)
		return err
	}
	log.Info("Import finished", fields...)

	if s.state != nil {
		if serr := s.state.SetLastIndexTime(context.WithoutCancel(ctx), e.Name, st.Started); serr != nil {
			log.Error("Failed to store last index time", zap.Error(serr))
		}
	}
	return nil
}

func (s *Service) lastRun(entity string) RunStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last[entity]
}

// rowID renders the pk column of r as a sink key.
func rowID(r row.Row, pk string) (string, error) {
	v, ok := r[pk]
	if !ok || v == nil {
		return "", fmt.Errorf("%w: primary key %q missing", domain.ErrRowFailed, pk)
	}
	switch t := v.(type) {
	case string:
		if t == "" {
			return "", fmt.Errorf("%w: primary key %q empty", domain.ErrRowFailed, pk)
		}
		return t, nil
	case int64, float64, bool:
		return fmt.Sprint(t), nil
	default:
		return "", fmt.Errorf("%w: primary key %q is not a scalar", domain.ErrRowFailed, pk)
	}
}

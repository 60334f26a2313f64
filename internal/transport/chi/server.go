package chi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docflat/internal/logger"
	healthuc "github.com/kailas-cloud/docflat/internal/usecase/health"
	"github.com/kailas-cloud/docflat/internal/usecase/importer"
)

// Command names accepted by /dataimport besides the import commands.
const (
	commandStatus = "status"
	commandAbort  = "abort"
)

// reservedParams are /dataimport parameters that are not passed to queries.
var reservedParams = map[string]struct{}{
	"command": {},
	"entity":  {},
	"clean":   {},
}

// Importer runs and tracks imports.
type Importer interface {
	Start(ctx context.Context, req importer.Request) (string, error)
	Abort(entity string) error
	Status() []importer.EntityStatus
}

// Counter reports how many rows of an entity the sink holds.
type Counter interface {
	Count(ctx context.Context, entity string) (int, error)
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Server serves the import command surface.
type Server struct {
	importer Importer
	counter  Counter
	health   HealthChecker
	logger   *zap.Logger
}

// NewServer creates an HTTP API server. counter can be nil.
func NewServer(imp Importer, counter Counter, health HealthChecker, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{importer: imp, counter: counter, health: health, logger: logger}
}

// Routes mounts the handlers on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/dataimport", s.DataImport)
	r.Post("/dataimport", s.DataImport)
	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())
}

type startResponse struct {
	RunID   string           `json:"run_id"`
	Entity  string           `json:"entity"`
	Command importer.Command `json:"command"`
}

type abortResponse struct {
	Entity string `json:"entity"`
	Status string `json:"status"`
}

type entityStatus struct {
	importer.EntityStatus
	Documents *int `json:"documents,omitempty"`
}

type statusResponse struct {
	Entities []entityStatus `json:"entities"`
}

type healthResponse struct {
	Status healthuc.Status                 `json:"status"`
	Checks map[string]healthuc.CheckResult `json:"checks"`
}

// DataImport handles GET/POST /dataimport.
func (s *Server) DataImport(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request parameters")
		return
	}

	command := r.Form.Get("command")
	if command == "" {
		command = commandStatus
	}

	switch command {
	case commandStatus:
		s.status(w, r)
	case commandAbort:
		s.abort(w, r)
	default:
		cmd, ok := importer.ParseCommand(command)
		if !ok {
			writeError(w, http.StatusBadRequest, codeBadRequest, "unknown command "+strconv.Quote(command))
			return
		}
		s.start(w, r, cmd)
	}
}

func (s *Server) start(w http.ResponseWriter, r *http.Request, cmd importer.Command) {
	entity := r.Form.Get("entity")
	if entity == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "entity is required")
		return
	}

	clean := false
	if v := r.Form.Get("clean"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, "clean must be a boolean")
			return
		}
		clean = b
	}

	req := importer.Request{
		Entity:  entity,
		Command: cmd,
		Clean:   clean,
		Params:  requestParams(r),
	}
	id, err := s.importer.Start(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	logger.FromContext(r.Context()).Info("Import accepted", logger.RunFields(id, entity, string(cmd))...)
	writeJSON(w, http.StatusAccepted, startResponse{RunID: id, Entity: entity, Command: cmd})
}

func (s *Server) abort(w http.ResponseWriter, r *http.Request) {
	entity := r.Form.Get("entity")
	if entity == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "entity is required")
		return
	}
	if err := s.importer.Abort(entity); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, abortResponse{Entity: entity, Status: "aborting"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	statuses := s.importer.Status()
	resp := statusResponse{Entities: make([]entityStatus, 0, len(statuses))}
	for _, st := range statuses {
		item := entityStatus{EntityStatus: st}
		if s.counter != nil {
			n, err := s.counter.Count(r.Context(), st.Entity)
			if err != nil {
				logger.FromContext(r.Context()).Warn("count indexed rows",
					logger.Entity(st.Entity), zap.Error(err))
			} else {
				item.Documents = &n
			}
		}
		resp.Entities = append(resp.Entities, item)
	}
	writeJSON(w, http.StatusOK, resp)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{Status: report.Status, Checks: report.Checks})
}

// requestParams collects the non-reserved parameters that feed
// ${dih.request.<name>} tokens. Only the first value of each is kept.
func requestParams(r *http.Request) map[string]string {
	params := make(map[string]string)
	for k, v := range r.Form {
		if _, reserved := reservedParams[k]; reserved || len(v) == 0 {
			continue
		}
		params[k] = v[0]
	}
	return params
}

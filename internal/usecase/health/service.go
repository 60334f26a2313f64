package health

import (
	"context"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates total failure.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names used in Report.Checks.
const (
	ComponentMongo     = "mongo"
	ComponentSink      = "sink"
	ComponentEmbedding = "embedding"
)

// DefaultTimeout bounds each individual check.
const DefaultTimeout = 3 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	mongo     Pinger
	sink      Pinger
	embedding EmbeddingChecker
	timeout   time.Duration
}

// New creates a Service. sink and embedding can be nil.
func New(mongo, sink Pinger, embedding EmbeddingChecker) *Service {
	return &Service{mongo: mongo, sink: sink, embedding: embedding, timeout: DefaultTimeout}
}

// Check runs health checks against all components. The document store is
// required: its failure makes the service unhealthy, other failures degrade it.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, 3)

	checks[ComponentMongo] = s.check(ctx, s.mongo.Ping)
	if s.sink != nil {
		checks[ComponentSink] = s.check(ctx, s.sink.Ping)
	}
	if s.embedding != nil {
		checks[ComponentEmbedding] = s.check(ctx, s.embedding.HealthCheck)
	}

	status := Healthy
	if checks[ComponentMongo] == CheckError {
		status = Unhealthy
	} else {
		for _, v := range checks {
			if v == CheckError {
				status = Degraded
				break
			}
		}
	}

	return Report{Status: status, Checks: checks}
}

func (s *Service) check(ctx context.Context, fn func(context.Context) error) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		return CheckError
	}
	return CheckOK
}

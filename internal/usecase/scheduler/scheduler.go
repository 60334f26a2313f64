// Package scheduler triggers delta imports on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docflat/internal/domain"
	"github.com/kailas-cloud/docflat/internal/logger"
	"github.com/kailas-cloud/docflat/internal/usecase/importer"
)

// Starter launches import runs.
type Starter interface {
	Start(ctx context.Context, req importer.Request) (string, error)
}

// Scheduler starts a delta import of every entity on each tick.
type Scheduler struct {
	cron     *cron.Cron
	starter  Starter
	entities []string
	logger   *zap.Logger
}

// New parses spec (standard five-field cron syntax or descriptors such as
// "@every 5m") and registers the job. Call Start to begin ticking.
func New(ctx context.Context, spec string, starter Starter, entities []string, logger *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:     cron.New(),
		starter:  starter,
		entities: entities,
		logger:   logger,
	}
	if _, err := s.cron.AddFunc(spec, func() { s.Tick(ctx) }); err != nil {
		return nil, domain.NewConfigError(fmt.Sprintf("invalid delta cron %q", spec), err)
	}
	return s, nil
}

// Tick starts a delta import for each entity. Entities that are still busy
// are skipped until the next tick.
func (s *Scheduler) Tick(ctx context.Context) {
	for _, name := range s.entities {
		id, err := s.starter.Start(ctx, importer.Request{Entity: name, Command: importer.CommandDeltaImport})
		switch {
		case err == nil:
			s.logger.Info("Scheduled delta import started", logger.Entity(name), logger.RunID(id))
		case errors.Is(err, domain.ErrBusy):
			s.logger.Debug("Scheduled delta import skipped, entity busy", logger.Entity(name))
		default:
			s.logger.Error("Scheduled delta import failed to start", logger.Entity(name), zap.Error(err))
		}
	}
}

// Start begins ticking in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop stops ticking and waits until a running tick returns.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

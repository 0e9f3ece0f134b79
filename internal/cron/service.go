// Package cron runs the periodic logistics jobs: dispatching orders the
// event path missed, replaying parked center messages and pruning the
// outbox.
package cron

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/benefits-logistics/pkg/logger"
	"github.com/angelmondragon/benefits-logistics/pkg/metrics"
)

const fallbackTick = time.Minute

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Locker   Locker
	Metrics  *metrics.CronJobMetrics
	// Tick is how often due jobs are checked; it should be shorter than the
	// shortest job interval.
	Tick  time.Duration
	Clock func() time.Time
}

type Service struct {
	logg     *logger.Logger
	registry *Registry
	locker   Locker
	metrics  *metrics.CronJobMetrics
	tick     time.Duration
	now      func() time.Time
	lastRun  map[string]time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Locker == nil {
		return nil, errors.New("locker required")
	}
	if params.Registry == nil {
		return nil, errors.New("registry required")
	}
	tick := params.Tick
	if tick <= 0 {
		tick = fallbackTick
	}
	now := params.Clock
	if now == nil {
		now = time.Now
	}
	return &Service{
		logg:     params.Logger,
		registry: params.Registry,
		locker:   params.Locker,
		metrics:  params.Metrics,
		tick:     tick,
		now:      now,
		lastRun:  map[string]time.Time{},
	}, nil
}

// Run fires every job once at startup, then each time its interval elapses,
// until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	s.runDue(ctx)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

func (s *Service) runDue(ctx context.Context) {
	now := s.now()
	for _, entry := range s.registry.Entries() {
		name := entry.Job.Name()
		if last, ok := s.lastRun[name]; ok && now.Sub(last) < entry.Every {
			continue
		}
		s.lastRun[name] = now
		s.runEntry(ctx, entry)
	}
}

// runEntry leases the job and runs it. A job that fails is not retried until
// its next interval.
func (s *Service) runEntry(ctx context.Context, entry Entry) {
	name := entry.Job.Name()
	ctx = s.logg.WithFields(ctx, map[string]any{
		"job":   name,
		"every": entry.Every.String(),
	})

	release, ok, err := s.locker.TryLock(ctx, name)
	if err != nil {
		s.logg.Error(ctx, "cron lease failed", err)
		s.metrics.IncRun(name, metrics.JobOutcomeFailure)
		return
	}
	if !ok {
		s.logg.Info(ctx, "job leased by another replica")
		s.metrics.IncRun(name, metrics.JobOutcomeSkipped)
		return
	}
	defer func() {
		if err := release(ctx); err != nil {
			s.logg.Error(ctx, "cron lease release failed", err)
		}
	}()

	started := s.now()
	err = entry.Job.Run(ctx)
	elapsed := s.now().Sub(started)
	s.metrics.ObserveDuration(name, elapsed)
	ctx = s.logg.WithField(ctx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.logg.Error(ctx, "job failed", err)
		s.metrics.IncRun(name, metrics.JobOutcomeFailure)
		return
	}
	s.logg.Info(ctx, "job completed")
	s.metrics.IncRun(name, metrics.JobOutcomeSuccess)
}

package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/elocalpass/elocalpass-backend/pkg/logger"
	"github.com/elocalpass/elocalpass-backend/pkg/metrics"
)

const defaultInterval = 5 * time.Minute

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams configure the cron service. CycleTimeout bounds one pass
// over the jobs and should not exceed the lock TTL.
type ServiceParams struct {
	Logger       *logger.Logger
	Registry     *Registry
	Lock         Lock
	Metrics      *metrics.CronJobMetrics
	Interval     time.Duration
	CycleTimeout time.Duration
}

// Service runs the registered jobs one after another on every tick. It stands
// in for the external scheduler that drives overdue retries and rebuy sweeps.
type Service struct {
	logg         *logger.Logger
	registry     *Registry
	lock         Lock
	metrics      *metrics.CronJobMetrics
	interval     time.Duration
	cycleTimeout time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("cron: logger required")
	case params.Lock == nil:
		return nil, errors.New("cron: lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = &Registry{}
	}
	s := &Service{
		logg:         params.Logger,
		registry:     registry,
		lock:         params.Lock,
		metrics:      params.Metrics,
		interval:     params.Interval,
		cycleTimeout: params.CycleTimeout,
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	return s, nil
}

// Run starts with an immediate cycle, then repeats every interval until ctx
// is cancelled. Cycle errors are logged and never stop the loop.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.logg.Error(ctx, "cron cycle failed", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce runs every job behind the lock. When another worker holds the
// lock the cycle is skipped. Job failures are logged and counted only.
func (s *Service) RunOnce(ctx context.Context) error {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.metrics.IncSkippedCycle()
		s.logg.Info(ctx, "cron lock held elsewhere, skipping cycle")
		return nil
	}
	defer func() {
		if err := s.lock.Release(ctx); err != nil {
			s.logg.Error(ctx, "failed to release cron lock", err)
		}
	}()

	cycleCtx := s.logg.WithField(ctx, "cycle_id", uuid.NewString())
	if s.cycleTimeout > 0 {
		var cancel context.CancelFunc
		cycleCtx, cancel = context.WithTimeout(cycleCtx, s.cycleTimeout)
		defer cancel()
	}

	failed := 0
	for _, job := range s.registry.Jobs() {
		if cycleCtx.Err() != nil {
			s.logg.Warn(cycleCtx, "cron cycle deadline reached, remaining jobs deferred")
			break
		}
		if !s.runJob(cycleCtx, job) {
			failed++
		}
	}
	s.logg.Info(s.logg.WithField(cycleCtx, "failed_jobs", failed), "cron cycle complete")
	return nil
}

func (s *Service) runJob(ctx context.Context, job Job) bool {
	ctx = s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})
	s.logg.Debug(ctx, "job start")

	start := time.Now()
	err := job.Run(ctx)
	finished := time.Now()
	s.metrics.RecordRun(job.Name(), finished.Sub(start), finished, err)

	ctx = s.logg.WithField(ctx, "duration_ms", finished.Sub(start).Milliseconds())
	if err != nil {
		s.logg.Error(ctx, "job failed", err)
		return false
	}
	s.logg.Info(ctx, "job completed")
	return true
}

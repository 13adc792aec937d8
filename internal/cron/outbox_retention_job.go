package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/elocalpass/elocalpass-backend/pkg/logger"
)

const (
	defaultOutboxRetention = 30 * 24 * time.Hour
	outboxMinAttempts      = 10
)

// OutboxRetentionJobParams configure outbox purging. Delivered rows live for
// Retention. Rows parked at MinAttempts live for FailedRetention, which
// defaults to Retention.
type OutboxRetentionJobParams struct {
	Logger          *logger.Logger
	DB              txRunner
	Repository      outboxPurger
	Retention       time.Duration
	FailedRetention time.Duration
	MinAttempts     int
}

type outboxPurger interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
	DeleteExhaustedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, attempts int) (int64, error)
}

type outboxRetentionJob struct {
	logg        *logger.Logger
	db          txRunner
	repo        outboxPurger
	delivered   time.Duration
	exhausted   time.Duration
	minAttempts int
	now         func() time.Time
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("outbox retention: logger required")
	case params.DB == nil:
		return nil, errors.New("outbox retention: db runner required")
	case params.Repository == nil:
		return nil, errors.New("outbox retention: repository required")
	}
	job := &outboxRetentionJob{
		logg:        params.Logger,
		db:          params.DB,
		repo:        params.Repository,
		delivered:   params.Retention,
		exhausted:   params.FailedRetention,
		minAttempts: params.MinAttempts,
		now:         time.Now,
	}
	if job.delivered <= 0 {
		job.delivered = defaultOutboxRetention
	}
	if job.exhausted <= 0 {
		job.exhausted = job.delivered
	}
	if job.minAttempts <= 0 {
		job.minAttempts = outboxMinAttempts
	}
	return job, nil
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

// Run purges both classes of finished rows in one transaction.
func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	deliveredCutoff := now.Add(-j.delivered)
	exhaustedCutoff := now.Add(-j.exhausted)

	var delivered, exhausted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) (err error) {
		if delivered, err = j.repo.DeletePublishedBefore(ctx, tx, deliveredCutoff); err != nil {
			return fmt.Errorf("delivered rows: %w", err)
		}
		if exhausted, err = j.repo.DeleteExhaustedBefore(ctx, tx, exhaustedCutoff, j.minAttempts); err != nil {
			return fmt.Errorf("exhausted rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"delivered_cutoff": deliveredCutoff,
		"exhausted_cutoff": exhaustedCutoff,
		"delivered_rows":   delivered,
		"exhausted_rows":   exhausted,
	}), "outbox retention cleanup complete")
	return nil
}

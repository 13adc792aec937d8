package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/elocalpass/elocalpass-backend/pkg/logger"
)

const defaultDeliveryRetention = 30 * 24 * time.Hour

type EmailDeliveryCleanupJobParams struct {
	Logger    *logger.Logger
	Purger    deliveryPurger
	Retention time.Duration
}

type deliveryPurger interface {
	PurgeDeliveries(ctx context.Context, cutoff time.Time) (int64, error)
}

func NewEmailDeliveryCleanupJob(params EmailDeliveryCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Purger == nil {
		return nil, fmt.Errorf("notifications service required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultDeliveryRetention
	}
	return &emailDeliveryCleanupJob{
		logg:      params.Logger,
		purger:    params.Purger,
		retention: retention,
		now:       time.Now,
	}, nil
}

type emailDeliveryCleanupJob struct {
	logg      *logger.Logger
	purger    deliveryPurger
	retention time.Duration
	now       func() time.Time
}

func (j *emailDeliveryCleanupJob) Name() string { return "email-delivery-cleanup" }

func (j *emailDeliveryCleanupJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.purger.PurgeDeliveries(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("email delivery cleanup: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"retention":    j.retention.String(),
		"rows_deleted": deleted,
	})
	j.logg.Info(logCtx, "email delivery cleanup complete")
	return nil
}

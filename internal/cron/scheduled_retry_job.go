package cron

import (
	"context"
	"fmt"

	"github.com/elocalpass/elocalpass-backend/internal/scheduling"
	"github.com/elocalpass/elocalpass-backend/pkg/logger"
)

type overdueRetrier interface {
	RetryOverdue(ctx context.Context) (*scheduling.RetryResult, error)
}

// NewScheduledRetryJob sweeps scheduled requests whose delayed trigger never
// arrived.
func NewScheduledRetryJob(logg *logger.Logger, retrier overdueRetrier) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if retrier == nil {
		return nil, fmt.Errorf("scheduling service required")
	}
	return &scheduledRetryJob{logg: logg, retrier: retrier}, nil
}

type scheduledRetryJob struct {
	logg    *logger.Logger
	retrier overdueRetrier
}

func (j *scheduledRetryJob) Name() string { return "scheduled-qr-retry" }

func (j *scheduledRetryJob) Run(ctx context.Context) error {
	result, err := j.retrier.RetryOverdue(ctx)
	if err != nil {
		return fmt.Errorf("retry overdue: %w", err)
	}
	if result.Failed > 0 {
		return fmt.Errorf("retry overdue: %d of %d scheduled qr codes failed", result.Failed, len(result.Results))
	}
	return nil
}

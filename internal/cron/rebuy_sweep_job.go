package cron

import (
	"context"
	"fmt"

	"github.com/elocalpass/elocalpass-backend/internal/rebuy"
	"github.com/elocalpass/elocalpass-backend/pkg/logger"
)

type rebuySweeper interface {
	Sweep(ctx context.Context) (*rebuy.SweepResult, error)
}

func NewRebuySweepJob(logg *logger.Logger, sweeper rebuySweeper) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if sweeper == nil {
		return nil, fmt.Errorf("rebuy service required")
	}
	return &rebuySweepJob{logg: logg, sweeper: sweeper}, nil
}

type rebuySweepJob struct {
	logg    *logger.Logger
	sweeper rebuySweeper
}

func (j *rebuySweepJob) Name() string { return "rebuy-email-sweep" }

func (j *rebuySweepJob) Run(ctx context.Context) error {
	result, err := j.sweeper.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("rebuy sweep: %w", err)
	}
	if result.Failed > 0 {
		return fmt.Errorf("rebuy sweep: %d of %d emails failed", result.Failed, len(result.Results))
	}
	return nil
}

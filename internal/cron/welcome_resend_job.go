package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/elocalpass/elocalpass-backend/internal/qrcodes"
	"github.com/elocalpass/elocalpass-backend/pkg/logger"
)

const (
	defaultWelcomeResendGrace  = 15 * time.Minute
	defaultWelcomeResendMaxAge = 72 * time.Hour
)

// WelcomeResendJobParams bounds which passes are retried. Passes younger than
// Grace are left to the inline send; passes older than MaxAge are abandoned.
type WelcomeResendJobParams struct {
	Logger   *logger.Logger
	Resender welcomeResender
	Grace    time.Duration
	MaxAge   time.Duration
}

type welcomeResender interface {
	ResendWelcomes(ctx context.Context, window qrcodes.WelcomeResendWindow) (*qrcodes.WelcomeResendResult, error)
}

func NewWelcomeResendJob(params WelcomeResendJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Resender == nil {
		return nil, fmt.Errorf("qr code service required")
	}
	grace, maxAge := params.Grace, params.MaxAge
	if grace <= 0 {
		grace = defaultWelcomeResendGrace
	}
	if maxAge <= grace {
		maxAge = max(defaultWelcomeResendMaxAge, 2*grace)
	}
	return &welcomeResendJob{
		logg:     params.Logger,
		resender: params.Resender,
		grace:    grace,
		maxAge:   maxAge,
		now:      time.Now,
	}, nil
}

type welcomeResendJob struct {
	logg     *logger.Logger
	resender welcomeResender
	grace    time.Duration
	maxAge   time.Duration
	now      func() time.Time
}

func (j *welcomeResendJob) Name() string { return "welcome-email-resend" }

func (j *welcomeResendJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	result, err := j.resender.ResendWelcomes(ctx, qrcodes.WelcomeResendWindow{
		IssuedAfter:  now.Add(-j.maxAge),
		IssuedBefore: now.Add(-j.grace),
	})
	if err != nil {
		return fmt.Errorf("welcome resend: %w", err)
	}
	if result.Failed > 0 {
		return fmt.Errorf("welcome resend: %d of %d emails failed", result.Failed, result.Visited)
	}
	return nil
}

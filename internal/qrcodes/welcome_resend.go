package qrcodes

import (
	"context"
	"time"

	"go.uber.org/multierr"

	"github.com/elocalpass/elocalpass-backend/pkg/db/models"
	pkgerrors "github.com/elocalpass/elocalpass-backend/pkg/errors"
	"github.com/elocalpass/elocalpass-backend/pkg/pagination"
)

const welcomeResendBatchSize = 100

// WelcomeResendWindow bounds the creation time of passes a resend visits.
type WelcomeResendWindow struct {
	IssuedAfter  time.Time
	IssuedBefore time.Time
}

// WelcomeResendResult counts the outcome of one resend pass.
type WelcomeResendResult struct {
	Visited int `json:"visited"`
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// ResendWelcomes sends the welcome email for every pass in window whose
// inline send failed. Skipped counts passes whose seller disabled the email.
func (s *service) ResendWelcomes(ctx context.Context, window WelcomeResendWindow) (*WelcomeResendResult, error) {
	if !window.IssuedAfter.Before(window.IssuedBefore) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "welcome resend window is empty")
	}

	query := welcomeQuery{
		issuedAfter:  window.IssuedAfter,
		issuedBefore: window.IssuedBefore,
		now:          s.now().UTC(),
		limit:        welcomeResendBatchSize,
	}
	result := &WelcomeResendResult{}
	var errs error
	for {
		rows, err := s.repo.FindWelcomePending(ctx, query)
		if err != nil {
			return result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load passes missing a welcome email")
		}
		for i := range rows {
			result.Visited++
			sent, err := s.SendWelcome(ctx, &rows[i])
			switch {
			case err != nil:
				result.Failed++
				errs = multierr.Append(errs, err)
			case sent:
				result.Sent++
			default:
				result.Skipped++
			}
		}
		if len(rows) < query.limit || ctx.Err() != nil {
			break
		}
		query.after = welcomeKey(rows[len(rows)-1])
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"visited": result.Visited,
		"sent":    result.Sent,
		"skipped": result.Skipped,
		"failed":  result.Failed,
	})
	if errs != nil {
		s.logg.Error(logCtx, "welcome resend finished with failures", errs)
	} else {
		s.logg.Info(logCtx, "welcome resend finished")
	}
	return result, nil
}

func welcomeKey(qr models.QRCode) *pagination.Key {
	return &pagination.Key{At: qr.CreatedAt, ID: qr.ID}
}

package rebuy

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/elocalpass/elocalpass-backend/internal/configurations"
	"github.com/elocalpass/elocalpass-backend/internal/emailtemplates"
	"github.com/elocalpass/elocalpass-backend/internal/notifications"
	"github.com/elocalpass/elocalpass-backend/internal/qrcodes"
	"github.com/elocalpass/elocalpass-backend/pkg/config"
	"github.com/elocalpass/elocalpass-backend/pkg/db/models"
	"github.com/elocalpass/elocalpass-backend/pkg/enums"
	pkgerrors "github.com/elocalpass/elocalpass-backend/pkg/errors"
	"github.com/elocalpass/elocalpass-backend/pkg/logger"
	"github.com/elocalpass/elocalpass-backend/pkg/metrics"
	"github.com/elocalpass/elocalpass-backend/pkg/outbox"
	"github.com/elocalpass/elocalpass-backend/pkg/outbox/payloads"
)

const (
	defaultWindowStart = 6 * time.Hour
	defaultWindowEnd   = 12 * time.Hour
	defaultClaimLease  = 15 * time.Minute
	defaultBatchSize   = 200

	reasonAlreadySent = "rebuy email already sent"
	reasonNoConfig    = "no seller configuration"
	reasonDisabled    = "rebuy email disabled by seller"
	reasonClaimed     = "claimed by another sweep"
	reasonInactive    = "qr code inactive"
	reasonExpired     = "qr code expired"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Result reports the outcome for one pass.
type Result struct {
	QRCodeID uuid.UUID              `json:"qrCodeId"`
	QRCode   string                 `json:"qrCode"`
	Status   enums.ProcessingStatus `json:"status"`
	Reason   string                 `json:"reason,omitempty"`
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Success bool     `json:"success"`
	Sent    int      `json:"sent"`
	Skipped int      `json:"skipped"`
	Failed  int      `json:"failed"`
	Results []Result `json:"results"`
}

// Service sends at most one rebuy email per pass.
type Service interface {
	Sweep(ctx context.Context) (*SweepResult, error)
	SendSingle(ctx context.Context, qrCodeID uuid.UUID) (*Result, error)
}

type ServiceParams struct {
	QRCodes        qrcodes.Repository
	DB             txRunner
	Configurations configurations.Service
	Templates      emailtemplates.Service
	Notifications  notifications.Service
	Outbox         outboxEmitter
	Portal         config.PortalConfig
	Config         config.RebuyConfig
	Logger         *logger.Logger
	Metrics        *metrics.DeliveryMetrics
	Now            func() time.Time
}

type service struct {
	qrcodes   qrcodes.Repository
	db        txRunner
	configs   configurations.Service
	templates emailtemplates.Service
	notifier  notifications.Service
	outbox    outboxEmitter
	portal    config.PortalConfig
	cfg       config.RebuyConfig
	logg      *logger.Logger
	metrics   *metrics.DeliveryMetrics
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.QRCodes == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "qr code repository required")
	}
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if params.Configurations == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "configurations service required")
	}
	if params.Templates == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "email templates service required")
	}
	if params.Notifications == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications service required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox service required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}

	cfg := params.Config
	if cfg.WindowEnd <= cfg.WindowStart || cfg.WindowStart < 0 {
		cfg.WindowStart, cfg.WindowEnd = defaultWindowStart, defaultWindowEnd
	}
	if cfg.ClaimLease <= 0 {
		cfg.ClaimLease = defaultClaimLease
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		qrcodes:   params.QRCodes,
		db:        params.DB,
		configs:   params.Configurations,
		templates: params.Templates,
		notifier:  params.Notifications,
		outbox:    params.Outbox,
		portal:    params.Portal,
		cfg:       cfg,
		logg:      params.Logger,
		metrics:   params.Metrics,
		now:       now,
	}, nil
}

// Sweep emails every active pass expiring inside the configured window.
// Per-pass failures are reported in the results and never stop the sweep.
func (s *service) Sweep(ctx context.Context) (*SweepResult, error) {
	now := s.now().UTC()
	candidates, err := s.qrcodes.FindRebuyCandidates(ctx, now.Add(s.cfg.WindowStart), now.Add(s.cfg.WindowEnd), s.cfg.BatchSize)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load rebuy candidates")
	}

	out := &SweepResult{Results: make([]Result, 0, len(candidates))}
	var errs error
	for i := range candidates {
		result, err := s.processCandidate(ctx, &candidates[i], now)
		switch result.Status {
		case enums.ProcessingSent:
			out.Sent++
		case enums.ProcessingSkipped:
			out.Skipped++
		default:
			out.Failed++
			errs = multierr.Append(errs, err)
		}
		out.Results = append(out.Results, result)
	}
	out.Success = out.Failed == 0

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"candidates": len(candidates),
		"sent":       out.Sent,
		"skipped":    out.Skipped,
		"failed":     out.Failed,
	})
	if errs != nil {
		s.logg.Error(logCtx, "rebuy sweep finished with failures", errs)
	} else {
		s.logg.Info(logCtx, "rebuy sweep finished")
	}
	return out, nil
}

// SendSingle runs the sweep step for one pass regardless of the expiry window.
func (s *service) SendSingle(ctx context.Context, qrCodeID uuid.UUID) (*Result, error) {
	qr, err := s.qrcodes.FindByID(ctx, qrCodeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "qr code not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load qr code")
	}

	now := s.now().UTC()
	switch {
	case !qr.IsActive:
		return skip(qr, reasonInactive), nil
	case !qr.ExpiresAt.After(now):
		return skip(qr, reasonExpired), nil
	}

	result, err := s.processCandidate(ctx, qr, now)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// processCandidate is the single send path shared by Sweep and SendSingle.
// A failed result always carries a non-nil error.
func (s *service) processCandidate(ctx context.Context, qr *models.QRCode, now time.Time) (Result, error) {
	logCtx := s.logg.WithQRCode(ctx, qr.ID.String(), qr.Code)
	fail := func(err error) (Result, error) {
		s.metrics.IncEmail(string(enums.EmailKindRebuy), string(enums.ProcessingFailed))
		s.logg.Error(logCtx, "rebuy email failed", err)
		return Result{QRCodeID: qr.ID, QRCode: qr.Code, Status: enums.ProcessingFailed, Reason: err.Error()}, err
	}

	analytics, err := s.qrcodes.FindAnalytics(ctx, qr.ID)
	if err != nil {
		return fail(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load qr code analytics"))
	}
	if analytics.RebuyEmailSentAt != nil {
		return *skip(qr, reasonAlreadySent), nil
	}

	settings, err := s.configs.Load(ctx, configurations.Lookup{ConfigurationID: qr.ConfigurationID, SellerID: qr.SellerID})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return *skip(qr, reasonNoConfig), nil
		}
		return fail(err)
	}
	if !settings.SendRebuyEmail {
		return *skip(qr, reasonDisabled), nil
	}
	if !analytics.RebuyEmailScheduled {
		s.logg.Warn(logCtx, "rebuy flag stale on analytics, seller configuration enables rebuy")
	}

	resolved, err := s.templates.Resolve(ctx, emailtemplates.ResolveRequest{
		Kind:     enums.EmailKindRebuy,
		Source:   settings.TemplateFor(enums.EmailKindRebuy),
		Language: qr.Language,
	})
	if err != nil {
		return fail(err)
	}

	values := qrcodes.TemplateValues(qr, now, s.portal)
	values[emailtemplates.TokenRebuyURL] = BuildURL(s.portal, qr, settings.RebuyDiscount)
	html, unknown := emailtemplates.Render(resolved.HTML, values)
	subject, unknownSubject := emailtemplates.Render(resolved.Subject, values)
	if missing := append(unknown, unknownSubject...); len(missing) > 0 {
		s.metrics.AddUnknownTokens(string(enums.EmailKindRebuy), len(missing))
		s.logg.Warn(s.logg.WithField(logCtx, "unknown_tokens", missing), "rebuy email rendered with unknown placeholders")
	}

	claimed, err := s.qrcodes.ClaimRebuy(ctx, qr.ID, now, now.Add(-s.cfg.ClaimLease))
	if err != nil {
		return fail(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim rebuy email"))
	}
	if !claimed {
		return *skip(qr, reasonClaimed), nil
	}

	qrID := qr.ID
	if err := s.notifier.Send(ctx, notifications.SendRequest{
		Kind:     enums.EmailKindRebuy,
		QRCodeID: &qrID,
		Message: notifications.Message{
			To:      qr.CustomerEmail,
			ToName:  qr.CustomerName,
			Subject: subject,
			HTML:    html,
		},
	}); err != nil {
		if releaseErr := s.qrcodes.ReleaseRebuyClaim(ctx, qr.ID); releaseErr != nil {
			err = multierr.Append(err, releaseErr)
		}
		return fail(err)
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		marked, err := s.qrcodes.WithTx(tx).MarkRebuySent(ctx, qr.ID, now)
		if err != nil || !marked {
			return err
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRebuyEmailSent,
			AggregateType: enums.AggregateQRCode,
			AggregateID:   qr.ID,
			OccurredAt:    now,
			Data: payloads.EmailSentEvent{
				QRCodeID:  qr.ID,
				Code:      qr.Code,
				Kind:      enums.EmailKindRebuy,
				Recipient: qr.CustomerEmail,
				SentAt:    now,
			},
		})
	})
	if err != nil {
		// The claim stays in place so the lease blocks a resend until it expires.
		return fail(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark rebuy email sent"))
	}

	s.logg.Info(logCtx, "rebuy email sent")
	return Result{QRCodeID: qr.ID, QRCode: qr.Code, Status: enums.ProcessingSent}, nil
}

func skip(qr *models.QRCode, reason string) *Result {
	return &Result{QRCodeID: qr.ID, QRCode: qr.Code, Status: enums.ProcessingSkipped, Reason: reason}
}

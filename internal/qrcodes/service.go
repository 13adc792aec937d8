package qrcodes

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/elocalpass/elocalpass-backend/internal/configurations"
	"github.com/elocalpass/elocalpass-backend/internal/emailtemplates"
	"github.com/elocalpass/elocalpass-backend/internal/notifications"
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
	OriginImmediate = "immediate"
	OriginScheduled = "scheduled"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// IssueRequest carries everything needed to materialize a pass.
type IssueRequest struct {
	ClientName        string
	ClientEmail       string
	Guests            int
	Days              int
	SellerID          *string
	ConfigurationID   *uuid.UUID
	DeliveryMethod    enums.DeliveryMethod
	Language          enums.Language
	OrderID           *uuid.UUID
	ScheduledQRCodeID *uuid.UUID
	Amount            *decimal.Decimal
}

// Issued is the outcome of a successful issue.
type Issued struct {
	QRCode    models.QRCode
	Analytics models.QRCodeAnalytics
}

// Service issues passes and sends their welcome email.
type Service interface {
	Issue(ctx context.Context, tx *gorm.DB, req IssueRequest) (*Issued, error)
	SendWelcome(ctx context.Context, qr *models.QRCode) (bool, error)
	ResendWelcomes(ctx context.Context, window WelcomeResendWindow) (*WelcomeResendResult, error)
	Get(ctx context.Context, id uuid.UUID) (*models.QRCode, error)
}

type ServiceParams struct {
	Repo           Repository
	DB             txRunner
	Configurations configurations.Service
	Templates      emailtemplates.Service
	Notifications  notifications.Service
	Outbox         outboxEmitter
	Portal         config.PortalConfig
	Logger         *logger.Logger
	Metrics        *metrics.DeliveryMetrics
	Now            func() time.Time
}

type service struct {
	repo      Repository
	db        txRunner
	configs   configurations.Service
	templates emailtemplates.Service
	notifier  notifications.Service
	outbox    outboxEmitter
	portal    config.PortalConfig
	logg      *logger.Logger
	metrics   *metrics.DeliveryMetrics
	now       func() time.Time
}

// NewService wires the pass issuer.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
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
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:      params.Repo,
		db:        params.DB,
		configs:   params.Configurations,
		templates: params.Templates,
		notifier:  params.Notifications,
		outbox:    params.Outbox,
		portal:    params.Portal,
		logg:      params.Logger,
		metrics:   params.Metrics,
		now:       now,
	}, nil
}

// Issue creates the pass, its analytics row and the qr_code_issued event in
// tx, or in a new transaction when tx is nil.
func (s *service) Issue(ctx context.Context, tx *gorm.DB, req IssueRequest) (*Issued, error) {
	if strings.TrimSpace(req.ClientName) == "" || strings.TrimSpace(req.ClientEmail) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "client name and email are required")
	}

	settings, err := s.loadSettings(ctx, req.ConfigurationID, req.SellerID)
	if err != nil {
		return nil, err
	}

	guests, days := req.Guests, req.Days
	if settings != nil {
		if guests <= 0 {
			guests = settings.DefaultGuests
		}
		if days <= 0 {
			days = settings.DefaultDays
		}
	}
	if guests <= 0 || days <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guests and days must be positive")
	}

	cost := decimal.Zero
	switch {
	case req.Amount != nil:
		cost = req.Amount.Round(2)
	case settings != nil:
		cost = ComputeCost(settings.Pricing, guests, days)
	}

	deliveryMethod := req.DeliveryMethod
	if !deliveryMethod.IsValid() {
		deliveryMethod = enums.DeliveryMethodDirect
		if settings != nil {
			deliveryMethod = settings.DeliveryMethod
		}
	}

	configurationID := req.ConfigurationID
	if settings != nil && configurationID == nil {
		id := settings.ConfigurationID
		configurationID = &id
	}

	now := s.now().UTC()
	language := enums.NormalizeLanguage(string(req.Language))
	issued := &Issued{
		QRCode: models.QRCode{
			SellerID:          req.SellerID,
			ConfigurationID:   configurationID,
			CustomerName:      strings.TrimSpace(req.ClientName),
			CustomerEmail:     strings.ToLower(strings.TrimSpace(req.ClientEmail)),
			Guests:            guests,
			Days:              days,
			Cost:              cost,
			ExpiresAt:         now.Add(time.Duration(days) * 24 * time.Hour),
			IsActive:          true,
			DeliveryMethod:    deliveryMethod,
			Language:          language,
			OrderID:           req.OrderID,
			ScheduledQRCodeID: req.ScheduledQRCodeID,
		},
		Analytics: models.QRCodeAnalytics{
			RebuyEmailScheduled: settings != nil && settings.SendRebuyEmail,
			Language:            language,
		},
	}

	create := func(tx *gorm.DB) error {
		return s.createTx(ctx, tx, issued, now)
	}
	if tx != nil {
		if err := create(tx); err != nil {
			return nil, err
		}
		return issued, nil
	}

	if err := s.db.WithTx(ctx, create); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "issue qr code")
	}
	s.metrics.IncIssued(OriginImmediate)
	s.logg.Info(s.logg.WithQRCode(ctx, issued.QRCode.ID.String(), issued.QRCode.Code), "qr code issued")
	return issued, nil
}

func (s *service) createTx(ctx context.Context, tx *gorm.DB, issued *Issued, now time.Time) error {
	code, err := GenerateCode(now)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate qr code")
	}
	issued.QRCode.ID = uuid.New()
	issued.QRCode.Code = code
	if err := s.repo.WithTx(tx).Create(ctx, &issued.QRCode, &issued.Analytics); err != nil {
		return err
	}

	qr := issued.QRCode
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventQRCodeIssued,
		AggregateType: enums.AggregateQRCode,
		AggregateID:   qr.ID,
		OccurredAt:    now,
		Data: payloads.QRCodeIssuedEvent{
			QRCodeID:          qr.ID,
			Code:              qr.Code,
			SellerID:          qr.SellerID,
			OrderID:           qr.OrderID,
			ScheduledQRCodeID: qr.ScheduledQRCodeID,
			Guests:            qr.Guests,
			Days:              qr.Days,
			Cost:              qr.Cost.StringFixed(2),
			DeliveryMethod:    qr.DeliveryMethod,
			ExpiresAt:         qr.ExpiresAt,
		},
	})
}

// SendWelcome renders and sends the welcome email once. It reports false when
// the seller disabled welcome emails or the email was already sent.
func (s *service) SendWelcome(ctx context.Context, qr *models.QRCode) (bool, error) {
	if qr == nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "qr code required")
	}
	logCtx := s.logg.WithQRCode(ctx, qr.ID.String(), qr.Code)

	analytics, err := s.repo.FindAnalytics(ctx, qr.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, pkgerrors.New(pkgerrors.CodeNotFound, "qr code analytics not found")
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load qr code analytics")
	}
	if analytics.WelcomeEmailSent {
		s.logg.Info(logCtx, "welcome email already sent")
		return false, nil
	}

	settings, err := s.loadSettings(ctx, qr.ConfigurationID, qr.SellerID)
	if err != nil {
		return false, err
	}
	if settings != nil && !settings.SendWelcomeEmail {
		s.logg.Info(logCtx, "welcome email disabled by seller configuration")
		return false, nil
	}

	resolved, err := s.templates.Resolve(ctx, emailtemplates.ResolveRequest{
		Kind:     enums.EmailKindWelcome,
		Source:   settings.TemplateFor(enums.EmailKindWelcome),
		Language: qr.Language,
	})
	if err != nil {
		return false, err
	}

	now := s.now().UTC()
	values := TemplateValues(qr, now, s.portal)
	html, unknown := emailtemplates.Render(resolved.HTML, values)
	subject, unknownSubject := emailtemplates.Render(resolved.Subject, values)
	if missing := append(unknown, unknownSubject...); len(missing) > 0 {
		s.metrics.AddUnknownTokens(string(enums.EmailKindWelcome), len(missing))
		s.logg.Warn(s.logg.WithField(logCtx, "unknown_tokens", missing), "welcome email rendered with unknown placeholders")
	}

	qrID := qr.ID
	if err := s.notifier.Send(ctx, notifications.SendRequest{
		Kind:     enums.EmailKindWelcome,
		QRCodeID: &qrID,
		Message: notifications.Message{
			To:      qr.CustomerEmail,
			ToName:  qr.CustomerName,
			Subject: subject,
			HTML:    html,
		},
	}); err != nil {
		return false, err
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		marked, err := s.repo.WithTx(tx).MarkWelcomeSent(ctx, qr.ID, now)
		if err != nil || !marked {
			return err
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventWelcomeEmailSent,
			AggregateType: enums.AggregateQRCode,
			AggregateID:   qr.ID,
			OccurredAt:    now,
			Data: payloads.EmailSentEvent{
				QRCodeID:  qr.ID,
				Code:      qr.Code,
				Kind:      enums.EmailKindWelcome,
				Recipient: qr.CustomerEmail,
				SentAt:    now,
			},
		})
	})
	if err != nil {
		s.logg.Error(logCtx, "failed to mark welcome email sent", err)
		return true, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark welcome email sent")
	}
	return true, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.QRCode, error) {
	qr, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "qr code not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load qr code")
	}
	return qr, nil
}

// loadSettings returns nil settings when no configuration applies.
func (s *service) loadSettings(ctx context.Context, configurationID *uuid.UUID, sellerID *string) (*configurations.SellerSettings, error) {
	settings, err := s.configs.Load(ctx, configurations.Lookup{ConfigurationID: configurationID, SellerID: sellerID})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return settings, nil
}

package notifications

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/elocalpass/elocalpass-backend/pkg/db/models"
	"github.com/elocalpass/elocalpass-backend/pkg/enums"
	pkgerrors "github.com/elocalpass/elocalpass-backend/pkg/errors"
	"github.com/elocalpass/elocalpass-backend/pkg/logger"
	"github.com/elocalpass/elocalpass-backend/pkg/metrics"
)

const defaultSendTimeout = 10 * time.Second

// SendRequest is one customer email tied to a pass.
type SendRequest struct {
	Kind     enums.EmailKind
	QRCodeID *uuid.UUID
	Message  Message
}

// Service sends customer emails and keeps the delivery log.
type Service interface {
	Send(ctx context.Context, req SendRequest) error
	PurgeDeliveries(ctx context.Context, cutoff time.Time) (int64, error)
}

type ServiceParams struct {
	Sender      Sender
	Repo        Repository
	Logger      *logger.Logger
	Metrics     *metrics.DeliveryMetrics
	SendTimeout time.Duration
}

type service struct {
	sender  Sender
	repo    Repository
	logg    *logger.Logger
	metrics *metrics.DeliveryMetrics
	timeout time.Duration
}

// NewService wires the notification sender.
func NewService(params ServiceParams) (Service, error) {
	if params.Sender == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "email sender required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "email delivery repository required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	timeout := params.SendTimeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &service{
		sender:  params.Sender,
		repo:    params.Repo,
		logg:    params.Logger,
		metrics: params.Metrics,
		timeout: timeout,
	}, nil
}

// Send delivers the message within the configured timeout. Every attempt is
// recorded; a failed or timed out send is a dependency error.
func (s *service) Send(ctx context.Context, req SendRequest) error {
	if strings.TrimSpace(req.Message.To) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient required")
	}
	if strings.TrimSpace(req.Message.HTML) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "email body required")
	}

	fields := map[string]any{
		"email_kind": req.Kind,
		"provider":   s.sender.Provider(),
	}
	if req.QRCodeID != nil {
		fields["qr_code_id"] = req.QRCodeID.String()
	}
	logCtx := s.logg.WithFields(ctx, fields)

	sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
	sendErr := s.sender.Send(sendCtx, req.Message)
	if sendErr == nil && sendCtx.Err() != nil {
		sendErr = sendCtx.Err()
	}
	cancel()

	delivery := &models.EmailDelivery{
		Kind:      req.Kind,
		QRCodeID:  req.QRCodeID,
		Recipient: req.Message.To,
		Subject:   req.Message.Subject,
		Status:    enums.EmailDeliverySent,
		Provider:  s.sender.Provider(),
	}
	if sendErr != nil {
		msg := sendErr.Error()
		delivery.Status = enums.EmailDeliveryFailed
		delivery.Error = &msg
	}
	if err := s.repo.Record(ctx, delivery); err != nil {
		s.logg.Error(logCtx, "failed to record email delivery", err)
	}
	s.metrics.IncEmail(string(req.Kind), string(delivery.Status))

	if sendErr != nil {
		s.logg.Error(logCtx, "email send failed", sendErr)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, sendErr, "email send failed")
	}
	s.logg.Info(logCtx, "email sent")
	return nil
}

func (s *service) PurgeDeliveries(ctx context.Context, cutoff time.Time) (int64, error) {
	deleted, err := s.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "purge email deliveries")
	}
	return deleted, nil
}

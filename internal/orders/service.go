package orders

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/elocalpass/elocalpass-backend/internal/qrcodes"
	"github.com/elocalpass/elocalpass-backend/internal/scheduling"
	"github.com/elocalpass/elocalpass-backend/pkg/db/models"
	"github.com/elocalpass/elocalpass-backend/pkg/enums"
	pkgerrors "github.com/elocalpass/elocalpass-backend/pkg/errors"
	"github.com/elocalpass/elocalpass-backend/pkg/logger"
	"github.com/elocalpass/elocalpass-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service records orders and routes paid ones to immediate or scheduled issuance.
type Service interface {
	Intake(ctx context.Context, input IntakeInput) (*IntakeResult, error)
}

type ServiceParams struct {
	Repo      Repository
	DB        txRunner
	Issuer    qrcodes.Service
	Scheduler scheduling.Service
	Logger    *logger.Logger
	Metrics   *metrics.DeliveryMetrics
}

type service struct {
	repo      Repository
	db        txRunner
	issuer    qrcodes.Service
	scheduler scheduling.Service
	logg      *logger.Logger
	metrics   *metrics.DeliveryMetrics
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "orders repository required")
	}
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if params.Issuer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "qr issuer required")
	}
	if params.Scheduler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "scheduling service required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{
		repo:      params.Repo,
		db:        params.DB,
		issuer:    params.Issuer,
		scheduler: params.Scheduler,
		logg:      params.Logger,
		metrics:   params.Metrics,
	}, nil
}

// Intake stores the order and fulfils it in the same transaction. A repeated
// payment id returns the stored order with Duplicate set and does nothing else.
func (s *service) Intake(ctx context.Context, input IntakeInput) (*IntakeResult, error) {
	order, err := buildOrder(input)
	if err != nil {
		return nil, err
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"payment_id":    order.PaymentID,
		"delivery_type": order.DeliveryType,
	})

	var (
		duplicate bool
		issued    *qrcodes.Issued
		scheduled *models.ScheduledQRCode
	)
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		created, err := s.repo.WithTx(tx).CreateIfAbsent(ctx, order)
		if err != nil {
			return err
		}
		if !created {
			duplicate = true
			return nil
		}
		if order.Status != enums.OrderStatusPaid {
			return nil
		}

		switch order.DeliveryType {
		case enums.DeliveryTypeFuture:
			scheduled, err = s.scheduler.Create(ctx, tx, scheduling.CreateRequest{
				ClientName:      order.CustomerName,
				ClientEmail:     order.CustomerEmail,
				Guests:          order.Guests,
				Days:            order.Days,
				SellerID:        order.SellerID,
				ConfigurationID: order.ConfigurationID,
				Language:        order.Language,
				OrderID:         &order.ID,
				Amount:          &order.Amount,
				DeliveryDate:    order.DeliveryDate,
				DeliveryTime:    order.DeliveryTime,
			})
		default:
			issued, err = s.issuer.Issue(ctx, tx, qrcodes.IssueRequest{
				ClientName:      order.CustomerName,
				ClientEmail:     order.CustomerEmail,
				Guests:          order.Guests,
				Days:            order.Days,
				SellerID:        order.SellerID,
				ConfigurationID: order.ConfigurationID,
				Language:        order.Language,
				OrderID:         &order.ID,
				Amount:          &order.Amount,
			})
		}
		return err
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "intake order")
	}

	if duplicate {
		existing, err := s.repo.FindByPaymentID(ctx, order.PaymentID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load existing order")
		}
		s.logg.Info(logCtx, "duplicate order ignored")
		return &IntakeResult{OrderID: existing.ID, Duplicate: true}, nil
	}

	result := &IntakeResult{OrderID: order.ID}
	logCtx = s.logg.WithField(logCtx, "order_id", order.ID.String())
	switch {
	case issued != nil:
		qrID := issued.QRCode.ID
		result.QRCodeID = &qrID
		s.metrics.IncIssued(qrcodes.OriginImmediate)
		s.logg.Info(s.logg.WithField(logCtx, "qr_code_id", qrID.String()), "order fulfilled immediately")
		if _, err := s.issuer.SendWelcome(ctx, &issued.QRCode); err != nil {
			s.logg.Error(logCtx, "welcome email failed for order", err)
		}
	case scheduled != nil:
		scheduledID := scheduled.ID
		result.ScheduledQRID = &scheduledID
		s.logg.Info(s.logg.WithScheduledQRID(logCtx, scheduledID.String()), "order scheduled")
		s.scheduler.Dispatch(ctx, scheduled)
	default:
		s.logg.Info(s.logg.WithField(logCtx, "status", order.Status), "order stored without fulfillment")
	}
	return result, nil
}

func buildOrder(input IntakeInput) (*models.Order, error) {
	paymentID := strings.TrimSpace(input.PaymentID)
	if paymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	if strings.TrimSpace(input.CustomerEmail) == "" || strings.TrimSpace(input.CustomerName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer name and email are required")
	}
	if input.Amount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount cannot be negative")
	}
	if input.Guests <= 0 || input.Days <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guests and days must be positive")
	}
	if !input.DeliveryType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery type must be now or future")
	}

	currency := input.Currency
	if currency == "" {
		currency = enums.CurrencyUSD
	}
	if !currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported currency")
	}
	status := input.Status
	if status == "" {
		status = enums.OrderStatusPaid
	}
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	return &models.Order{
		ID:              uuid.New(),
		PaymentID:       paymentID,
		Amount:          input.Amount.Round(2),
		Currency:        currency,
		CustomerEmail:   strings.ToLower(strings.TrimSpace(input.CustomerEmail)),
		CustomerName:    strings.TrimSpace(input.CustomerName),
		Guests:          input.Guests,
		Days:            input.Days,
		DeliveryType:    input.DeliveryType,
		DeliveryDate:    input.DeliveryDate,
		DeliveryTime:    input.DeliveryTime,
		SellerID:        input.SellerID,
		ConfigurationID: input.ConfigurationID,
		Language:        enums.NormalizeLanguage(string(input.Language)),
		Status:          status,
	}, nil
}

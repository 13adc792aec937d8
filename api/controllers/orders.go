package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/elocalpass/elocalpass-backend/api/responses"
	"github.com/elocalpass/elocalpass-backend/api/validators"
	"github.com/elocalpass/elocalpass-backend/internal/orders"
	"github.com/elocalpass/elocalpass-backend/pkg/enums"
	pkgerrors "github.com/elocalpass/elocalpass-backend/pkg/errors"
	"github.com/elocalpass/elocalpass-backend/pkg/logger"
)

const deliveryDateLayout = "2006-01-02"

type createOrderRequest struct {
	PaymentID       string          `json:"paymentId" validate:"required,max=255"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency" validate:"omitempty,len=3"`
	CustomerEmail   string          `json:"customerEmail" validate:"required,email"`
	CustomerName    string          `json:"customerName" validate:"required,max=255"`
	Guests          int             `json:"guests" validate:"required,min=1"`
	Days            int             `json:"days" validate:"required,min=1"`
	DeliveryType    string          `json:"deliveryType" validate:"required"`
	DeliveryDate    string          `json:"deliveryDate" validate:"omitempty,datetime=2006-01-02"`
	DeliveryTime    string          `json:"deliveryTime" validate:"omitempty,datetime=15:04"`
	SellerID        string          `json:"sellerId" validate:"omitempty,max=255"`
	ConfigurationID string          `json:"configurationId" validate:"omitempty,uuid"`
	Language        string          `json:"language"`
	Status          string          `json:"status"`
}

// CreateOrder accepts a payment-captured order and fulfils it immediately or
// on its scheduled delivery date. Replays of a payment id answer 200.
func CreateOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := req.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithField(r.Context(), "payment_id", input.PaymentID)
		result, err := svc.Intake(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		status := http.StatusCreated
		if result.Duplicate {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}

func (req createOrderRequest) toInput() (orders.IntakeInput, error) {
	deliveryType, err := enums.ParseDeliveryType(req.DeliveryType)
	if err != nil {
		return orders.IntakeInput{}, fieldError(err, "deliveryType")
	}
	input := orders.IntakeInput{
		PaymentID:     strings.TrimSpace(req.PaymentID),
		Amount:        req.Amount,
		CustomerEmail: req.CustomerEmail,
		CustomerName:  validators.SanitizeString(req.CustomerName, 255),
		Guests:        req.Guests,
		Days:          req.Days,
		DeliveryType:  deliveryType,
		Language:      enums.NormalizeLanguage(req.Language),
	}
	if req.Currency != "" {
		if input.Currency, err = enums.ParseCurrency(req.Currency); err != nil {
			return orders.IntakeInput{}, fieldError(err, "currency")
		}
	}
	if req.Status != "" {
		if input.Status, err = enums.ParseOrderStatus(req.Status); err != nil {
			return orders.IntakeInput{}, fieldError(err, "status")
		}
	}
	if req.DeliveryDate != "" {
		date, err := time.ParseInLocation(deliveryDateLayout, req.DeliveryDate, time.UTC)
		if err != nil {
			return orders.IntakeInput{}, fieldError(err, "deliveryDate")
		}
		input.DeliveryDate = &date
	}
	if req.DeliveryTime != "" {
		clock := req.DeliveryTime
		input.DeliveryTime = &clock
	}
	if seller := strings.TrimSpace(req.SellerID); seller != "" {
		input.SellerID = &seller
	}
	if req.ConfigurationID != "" {
		id, err := uuid.Parse(req.ConfigurationID)
		if err != nil {
			return orders.IntakeInput{}, fieldError(err, "configurationId")
		}
		input.ConfigurationID = &id
	}
	return input, nil
}

func fieldError(err error, field string) error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+field).WithDetails(map[string]any{"field": field})
}

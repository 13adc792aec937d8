package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/elocalpass/elocalpass-backend/pkg/enums"
)

// IntakeInput is a payment-captured order handed over by checkout.
type IntakeInput struct {
	PaymentID       string
	Amount          decimal.Decimal
	Currency        enums.Currency
	CustomerEmail   string
	CustomerName    string
	Guests          int
	Days            int
	DeliveryType    enums.DeliveryType
	DeliveryDate    *time.Time
	DeliveryTime    *string
	SellerID        *string
	ConfigurationID *uuid.UUID
	Language        enums.Language
	Status          enums.OrderStatus
}

// IntakeResult links the stored order to whatever fulfilled it.
type IntakeResult struct {
	OrderID       uuid.UUID  `json:"orderId"`
	QRCodeID      *uuid.UUID `json:"qrCodeId,omitempty"`
	ScheduledQRID *uuid.UUID `json:"scheduledQRId,omitempty"`
	Duplicate     bool       `json:"duplicate"`
}

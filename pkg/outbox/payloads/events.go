package payloads

import (
	"time"

	"github.com/elocalpass/elocalpass-backend/pkg/enums"
	"github.com/google/uuid"
)

// QRCodeIssuedEvent announces a newly materialized pass.
type QRCodeIssuedEvent struct {
	QRCodeID          uuid.UUID            `json:"qr_code_id"`
	Code              string               `json:"code"`
	SellerID          *string              `json:"seller_id,omitempty"`
	OrderID           *uuid.UUID           `json:"order_id,omitempty"`
	ScheduledQRCodeID *uuid.UUID           `json:"scheduled_qr_code_id,omitempty"`
	Guests            int                  `json:"guests"`
	Days              int                  `json:"days"`
	Cost              string               `json:"cost"`
	DeliveryMethod    enums.DeliveryMethod `json:"delivery_method"`
	ExpiresAt         time.Time            `json:"expires_at"`
}

// ScheduledQRCreatedEvent is emitted when a future-dated request is persisted.
type ScheduledQRCreatedEvent struct {
	ScheduledQRCodeID uuid.UUID  `json:"scheduled_qr_code_id"`
	OrderID           *uuid.UUID `json:"order_id,omitempty"`
	ScheduledFor      time.Time  `json:"scheduled_for"`
}

// ScheduledQRProcessedEvent is emitted by the single winning processor.
type ScheduledQRProcessedEvent struct {
	ScheduledQRCodeID uuid.UUID `json:"scheduled_qr_code_id"`
	QRCodeID          uuid.UUID `json:"qr_code_id"`
	ScheduledFor      time.Time `json:"scheduled_for"`
	ProcessedAt       time.Time `json:"processed_at"`
	IsRetry           bool      `json:"is_retry"`
}

// EmailSentEvent reports a welcome or rebuy email accepted by the provider.
type EmailSentEvent struct {
	QRCodeID  uuid.UUID       `json:"qr_code_id"`
	Code      string          `json:"code"`
	Kind      enums.EmailKind `json:"kind"`
	Recipient string          `json:"recipient"`
	SentAt    time.Time       `json:"sent_at"`
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/elocalpass/elocalpass-backend/pkg/enums"
)

// ScheduledQRCode is a deferred issuance request. IsProcessed, ProcessedAt and
// CreatedQRCodeID are only ever written together by one conditional update.
type ScheduledQRCode struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ScheduledFor      time.Time            `gorm:"column:scheduled_for;not null"`
	ClientName        string               `gorm:"column:client_name;type:text;not null"`
	ClientEmail       string               `gorm:"column:client_email;type:text;not null"`
	Guests            int                  `gorm:"column:guests;not null"`
	Days              int                  `gorm:"column:days;not null"`
	SellerID          *string              `gorm:"column:seller_id;type:text"`
	ConfigurationID   *uuid.UUID           `gorm:"column:configuration_id;type:uuid"`
	DeliveryMethod    enums.DeliveryMethod `gorm:"column:delivery_method;type:text;not null"`
	OrderID           *uuid.UUID           `gorm:"column:order_id;type:uuid"`
	Language          enums.Language       `gorm:"column:language;type:text;not null;default:'en'"`
	Amount            *decimal.Decimal     `gorm:"column:amount;type:numeric(12,2)"`
	IsProcessed       bool                 `gorm:"column:is_processed;not null;default:false"`
	ProcessedAt       *time.Time           `gorm:"column:processed_at"`
	CreatedQRCodeID   *uuid.UUID           `gorm:"column:created_qr_code_id;type:uuid"`
	DispatchMessageID *string              `gorm:"column:dispatch_message_id;type:text"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (s *ScheduledQRCode) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Status derives the scheduling state relative to now.
func (s ScheduledQRCode) Status(now time.Time) enums.ScheduledQRStatus {
	switch {
	case s.IsProcessed:
		return enums.ScheduledQRProcessed
	case s.ScheduledFor.Before(now):
		return enums.ScheduledQROverdue
	default:
		return enums.ScheduledQRPending
	}
}

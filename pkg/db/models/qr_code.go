package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/elocalpass/elocalpass-backend/pkg/enums"
)

// QRCode is an issued pass. ScheduledQRCodeID is unique so a scheduled
// request can never yield two passes.
type QRCode struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code              string               `gorm:"column:code;type:text;not null;uniqueIndex"`
	SellerID          *string              `gorm:"column:seller_id;type:text"`
	ConfigurationID   *uuid.UUID           `gorm:"column:configuration_id;type:uuid"`
	CustomerName      string               `gorm:"column:customer_name;type:text;not null"`
	CustomerEmail     string               `gorm:"column:customer_email;type:text;not null"`
	Guests            int                  `gorm:"column:guests;not null"`
	Days              int                  `gorm:"column:days;not null"`
	Cost              decimal.Decimal      `gorm:"column:cost;type:numeric(12,2);not null"`
	ExpiresAt         time.Time            `gorm:"column:expires_at;not null"`
	IsActive          bool                 `gorm:"column:is_active;not null;default:true"`
	DeliveryMethod    enums.DeliveryMethod `gorm:"column:delivery_method;type:text;not null"`
	Language          enums.Language       `gorm:"column:language;type:text;not null;default:'en'"`
	OrderID           *uuid.UUID           `gorm:"column:order_id;type:uuid"`
	ScheduledQRCodeID *uuid.UUID           `gorm:"column:scheduled_qr_code_id;type:uuid;uniqueIndex"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (q *QRCode) BeforeCreate(*gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}

// QRCodeAnalytics tracks email lifecycle markers for a pass.
type QRCodeAnalytics struct {
	QRCodeID            uuid.UUID      `gorm:"column:qr_code_id;type:uuid;primaryKey"`
	WelcomeEmailSent    bool           `gorm:"column:welcome_email_sent;not null;default:false"`
	WelcomeEmailSentAt  *time.Time     `gorm:"column:welcome_email_sent_at"`
	RebuyEmailScheduled bool           `gorm:"column:rebuy_email_scheduled;not null;default:false"`
	RebuyEmailClaimedAt *time.Time     `gorm:"column:rebuy_email_claimed_at"`
	RebuyEmailSentAt    *time.Time     `gorm:"column:rebuy_email_sent_at"`
	Language            enums.Language `gorm:"column:language;type:text;not null;default:'en'"`
	CreatedAt           time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (QRCodeAnalytics) TableName() string {
	return "qr_code_analytics"
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/elocalpass/elocalpass-backend/pkg/enums"
)

// Order is a payment-captured purchase handed over by the checkout flow.
type Order struct {
	ID              uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PaymentID       string             `gorm:"column:payment_id;type:text;not null;uniqueIndex"`
	Amount          decimal.Decimal    `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency        enums.Currency     `gorm:"column:currency;type:text;not null"`
	CustomerEmail   string             `gorm:"column:customer_email;type:text;not null"`
	CustomerName    string             `gorm:"column:customer_name;type:text;not null"`
	Guests          int                `gorm:"column:guests;not null"`
	Days            int                `gorm:"column:days;not null"`
	DeliveryType    enums.DeliveryType `gorm:"column:delivery_type;type:text;not null"`
	DeliveryDate    *time.Time         `gorm:"column:delivery_date"`
	DeliveryTime    *string            `gorm:"column:delivery_time;type:text"`
	SellerID        *string            `gorm:"column:seller_id;type:text"`
	ConfigurationID *uuid.UUID         `gorm:"column:configuration_id;type:uuid"`
	Language        enums.Language     `gorm:"column:language;type:text;not null;default:'en'"`
	Status          enums.OrderStatus  `gorm:"column:status;type:text;not null"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

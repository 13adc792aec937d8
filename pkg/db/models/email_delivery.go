package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/elocalpass/elocalpass-backend/pkg/enums"
)

// EmailDelivery records one attempt to hand an email to the provider.
type EmailDelivery struct {
	ID        uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Kind      enums.EmailKind           `gorm:"column:kind;type:text;not null"`
	QRCodeID  *uuid.UUID                `gorm:"column:qr_code_id;type:uuid"`
	Recipient string                    `gorm:"column:recipient;type:text;not null"`
	Subject   string                    `gorm:"column:subject;type:text;not null"`
	Status    enums.EmailDeliveryStatus `gorm:"column:status;type:text;not null"`
	Provider  string                    `gorm:"column:provider;type:text;not null"`
	Error     *string                   `gorm:"column:error;type:text"`
	CreatedAt time.Time                 `gorm:"column:created_at;autoCreateTime"`
}

func (d *EmailDelivery) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// QRConfiguration is a seller's saved pass configuration. Config and
// EmailTemplates hold JSON documents decoded by internal/configurations.
type QRConfiguration struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID       *string   `gorm:"column:seller_id;type:text"`
	IsGlobal       bool      `gorm:"column:is_global;not null;default:false"`
	Name           string    `gorm:"column:name;type:text;not null"`
	Config         string    `gorm:"column:config;type:text;not null"`
	EmailTemplates *string   `gorm:"column:email_templates;type:text"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (QRConfiguration) TableName() string {
	return "qr_configurations"
}

func (c *QRConfiguration) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/elocalpass/elocalpass-backend/pkg/enums"
)

// EmailTemplate is an operator-managed email body for one kind.
type EmailTemplate struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Kind      enums.EmailKind `gorm:"column:kind;type:text;not null"`
	Name      string          `gorm:"column:name;type:text;not null"`
	Subject   string          `gorm:"column:subject;type:text;not null"`
	HTML      string          `gorm:"column:html;type:text;not null"`
	IsDefault bool            `gorm:"column:is_default;not null;default:false"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (t *EmailTemplate) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// DefaultEmailTemplate is the single current-default pointer per kind.
type DefaultEmailTemplate struct {
	Kind       enums.EmailKind `gorm:"column:kind;type:text;primaryKey"`
	TemplateID uuid.UUID       `gorm:"column:template_id;type:uuid;not null"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

package emailtemplates

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/elocalpass/elocalpass-backend/pkg/db/models"
	"github.com/elocalpass/elocalpass-backend/pkg/enums"
)

// Repository persists email templates and the per-kind default pointer.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.EmailTemplate, error)
	FindPointedDefault(ctx context.Context, kind enums.EmailKind) (*models.EmailTemplate, error)
	FindNewestDefault(ctx context.Context, kind enums.EmailKind) (*models.EmailTemplate, error)
	Create(ctx context.Context, tpl *models.EmailTemplate) error
	SetDefault(ctx context.Context, kind enums.EmailKind, templateID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds the templates repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.EmailTemplate, error) {
	var tpl models.EmailTemplate
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&tpl).Error; err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (r *repository) FindPointedDefault(ctx context.Context, kind enums.EmailKind) (*models.EmailTemplate, error) {
	var tpl models.EmailTemplate
	err := r.db.WithContext(ctx).
		Model(&models.EmailTemplate{}).
		Joins("JOIN default_email_templates d ON d.template_id = email_templates.id").
		Where("d.kind = ?", kind).
		First(&tpl).Error
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (r *repository) FindNewestDefault(ctx context.Context, kind enums.EmailKind) (*models.EmailTemplate, error) {
	var tpl models.EmailTemplate
	err := r.db.WithContext(ctx).
		Where("kind = ? AND is_default = ?", kind, true).
		Order("created_at DESC, id DESC").
		First(&tpl).Error
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (r *repository) Create(ctx context.Context, tpl *models.EmailTemplate) error {
	return r.db.WithContext(ctx).Create(tpl).Error
}

// SetDefault flags templateID as the only default of its kind and moves the
// pointer to it. Callers run it inside a transaction.
func (r *repository) SetDefault(ctx context.Context, kind enums.EmailKind, templateID uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Model(&models.EmailTemplate{}).
		Where("kind = ? AND id <> ? AND is_default = ?", kind, templateID, true).
		UpdateColumn("is_default", false).Error; err != nil {
		return err
	}
	if err := db.Model(&models.EmailTemplate{}).
		Where("id = ?", templateID).
		UpdateColumn("is_default", true).Error; err != nil {
		return err
	}
	pointer := models.DefaultEmailTemplate{Kind: kind, TemplateID: templateID}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kind"}},
		DoUpdates: clause.AssignmentColumns([]string{"template_id", "updated_at"}),
	}).Create(&pointer).Error
}

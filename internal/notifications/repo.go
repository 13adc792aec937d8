package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/elocalpass/elocalpass-backend/pkg/db/models"
	"github.com/elocalpass/elocalpass-backend/pkg/enums"
)

// Repository persists the email delivery log.
type Repository interface {
	Record(ctx context.Context, delivery *models.EmailDelivery) error
	ListForQRCode(ctx context.Context, qrCodeID uuid.UUID, kind enums.EmailKind) ([]models.EmailDelivery, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a delivery log repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) Record(ctx context.Context, delivery *models.EmailDelivery) error {
	return r.db.WithContext(ctx).Create(delivery).Error
}

func (r *repositoryImpl) ListForQRCode(ctx context.Context, qrCodeID uuid.UUID, kind enums.EmailKind) ([]models.EmailDelivery, error) {
	var rows []models.EmailDelivery
	err := r.db.WithContext(ctx).
		Where("qr_code_id = ? AND kind = ?", qrCodeID, kind).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repositoryImpl) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.EmailDelivery{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

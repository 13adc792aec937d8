package configurations

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/elocalpass/elocalpass-backend/pkg/db/models"
)

// Repository reads seller configurations.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.QRConfiguration, error)
	FindLatestForSeller(ctx context.Context, sellerID string) (*models.QRConfiguration, error)
	FindGlobal(ctx context.Context) (*models.QRConfiguration, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds the configurations repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.QRConfiguration, error) {
	var row models.QRConfiguration
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) FindLatestForSeller(ctx context.Context, sellerID string) (*models.QRConfiguration, error) {
	var row models.QRConfiguration
	err := r.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("updated_at DESC, created_at DESC").
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) FindGlobal(ctx context.Context) (*models.QRConfiguration, error) {
	var row models.QRConfiguration
	err := r.db.WithContext(ctx).
		Where("is_global = ? AND seller_id IS NULL", true).
		Order("updated_at DESC").
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

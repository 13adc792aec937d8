package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/elocalpass/elocalpass-backend/pkg/db/models"
	"github.com/elocalpass/elocalpass-backend/pkg/enums"
	"github.com/elocalpass/elocalpass-backend/pkg/pagination"
)

// Repository persists scheduled issuance requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, record *models.ScheduledQRCode) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.ScheduledQRCode, error)
	MarkProcessed(ctx context.Context, id, qrCodeID uuid.UUID, processedAt time.Time) (bool, error)
	SetDispatchMessageID(ctx context.Context, id uuid.UUID, messageID string) error
	FindOverdue(ctx context.Context, now time.Time, after *pagination.Key, limit int) ([]models.ScheduledQRCode, error)
	List(ctx context.Context, query listQuery) ([]models.ScheduledQRCode, error)
}

type listQuery struct {
	status enums.ScheduledQRStatus
	now    time.Time
	window pagination.Window
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds the scheduled request repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, record *models.ScheduledQRCode) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ScheduledQRCode, error) {
	var record models.ScheduledQRCode
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// MarkProcessed flips is_processed only while it is still false and reports
// whether this caller won.
func (r *repository) MarkProcessed(ctx context.Context, id, qrCodeID uuid.UUID, processedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ScheduledQRCode{}).
		Where("id = ? AND is_processed = ?", id, false).
		Updates(map[string]any{
			"is_processed":       true,
			"processed_at":       processedAt,
			"created_qr_code_id": qrCodeID,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) SetDispatchMessageID(ctx context.Context, id uuid.UUID, messageID string) error {
	return r.db.WithContext(ctx).
		Model(&models.ScheduledQRCode{}).
		Where("id = ?", id).
		Update("dispatch_message_id", messageID).
		Error
}

// FindOverdue returns unprocessed requests due before now, oldest first,
// resuming after the (scheduled_for, id) key when one is given.
func (r *repository) FindOverdue(ctx context.Context, now time.Time, after *pagination.Key, limit int) ([]models.ScheduledQRCode, error) {
	q := r.db.WithContext(ctx).Where("scheduled_for < ? AND is_processed = ?", now, false)
	if after != nil {
		q = q.Where("(scheduled_for > ?) OR (scheduled_for = ? AND id > ?)", after.At, after.At, after.ID)
	}

	var records []models.ScheduledQRCode
	err := q.
		Order("scheduled_for ASC").
		Order("id ASC").
		Limit(limit).
		Find(&records).
		Error
	return records, err
}

func (r *repository) List(ctx context.Context, query listQuery) ([]models.ScheduledQRCode, error) {
	q := r.db.WithContext(ctx).Model(&models.ScheduledQRCode{})
	switch query.status {
	case enums.ScheduledQRProcessed:
		q = q.Where("is_processed = ?", true)
	case enums.ScheduledQROverdue:
		q = q.Where("is_processed = ? AND scheduled_for < ?", false, query.now)
	case enums.ScheduledQRPending:
		q = q.Where("is_processed = ? AND scheduled_for >= ?", false, query.now)
	}
	if after := query.window.After; after != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", after.At, after.At, after.ID)
	}

	var records []models.ScheduledQRCode
	err := q.Order("created_at DESC").Order("id DESC").Limit(query.window.Fetch()).Find(&records).Error
	return records, err
}

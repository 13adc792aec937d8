package qrcodes

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/elocalpass/elocalpass-backend/pkg/db/models"
	"github.com/elocalpass/elocalpass-backend/pkg/pagination"
)

// Repository persists passes and their analytics companions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, qr *models.QRCode, analytics *models.QRCodeAnalytics) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.QRCode, error)
	FindAnalytics(ctx context.Context, qrCodeID uuid.UUID) (*models.QRCodeAnalytics, error)
	MarkWelcomeSent(ctx context.Context, qrCodeID uuid.UUID, now time.Time) (bool, error)
	FindWelcomePending(ctx context.Context, query welcomeQuery) ([]models.QRCode, error)
	FindRebuyCandidates(ctx context.Context, expiresAfter, expiresUntil time.Time, limit int) ([]models.QRCode, error)
	ClaimRebuy(ctx context.Context, qrCodeID uuid.UUID, now, staleBefore time.Time) (bool, error)
	MarkRebuySent(ctx context.Context, qrCodeID uuid.UUID, now time.Time) (bool, error)
	ReleaseRebuyClaim(ctx context.Context, qrCodeID uuid.UUID) error
}

// welcomeQuery selects passes created in [issuedAfter, issuedBefore) that are
// still valid at now.
type welcomeQuery struct {
	issuedAfter  time.Time
	issuedBefore time.Time
	now          time.Time
	after        *pagination.Key
	limit        int
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds the pass repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, qr *models.QRCode, analytics *models.QRCodeAnalytics) error {
	db := r.db.WithContext(ctx)
	if err := db.Create(qr).Error; err != nil {
		return err
	}
	analytics.QRCodeID = qr.ID
	return db.Create(analytics).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.QRCode, error) {
	var qr models.QRCode
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&qr).Error; err != nil {
		return nil, err
	}
	return &qr, nil
}

func (r *repository) FindAnalytics(ctx context.Context, qrCodeID uuid.UUID) (*models.QRCodeAnalytics, error) {
	var analytics models.QRCodeAnalytics
	if err := r.db.WithContext(ctx).Where("qr_code_id = ?", qrCodeID).First(&analytics).Error; err != nil {
		return nil, err
	}
	return &analytics, nil
}

func (r *repository) MarkWelcomeSent(ctx context.Context, qrCodeID uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.QRCodeAnalytics{}).
		Where("qr_code_id = ? AND welcome_email_sent = ?", qrCodeID, false).
		UpdateColumns(map[string]any{
			"welcome_email_sent":    true,
			"welcome_email_sent_at": now,
			"updated_at":            now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FindWelcomePending returns active passes whose welcome email never went out,
// oldest first.
func (r *repository) FindWelcomePending(ctx context.Context, query welcomeQuery) ([]models.QRCode, error) {
	q := r.db.WithContext(ctx).
		Model(&models.QRCode{}).
		Joins("JOIN qr_code_analytics a ON a.qr_code_id = qr_codes.id").
		Where("a.welcome_email_sent = ?", false).
		Where("qr_codes.is_active = ? AND qr_codes.expires_at > ?", true, query.now).
		Where("qr_codes.created_at >= ? AND qr_codes.created_at < ?", query.issuedAfter, query.issuedBefore)
	if after := query.after; after != nil {
		q = q.Where("(qr_codes.created_at > ?) OR (qr_codes.created_at = ? AND qr_codes.id > ?)", after.At, after.At, after.ID)
	}

	var rows []models.QRCode
	err := q.Order("qr_codes.created_at ASC, qr_codes.id ASC").Limit(query.limit).Find(&rows).Error
	return rows, err
}

// FindRebuyCandidates returns active passes expiring in (expiresAfter, expiresUntil]
// whose rebuy email has not been sent.
func (r *repository) FindRebuyCandidates(ctx context.Context, expiresAfter, expiresUntil time.Time, limit int) ([]models.QRCode, error) {
	var rows []models.QRCode
	query := r.db.WithContext(ctx).
		Model(&models.QRCode{}).
		Joins("JOIN qr_code_analytics a ON a.qr_code_id = qr_codes.id").
		Where("qr_codes.is_active = ?", true).
		Where("qr_codes.expires_at > ? AND qr_codes.expires_at <= ?", expiresAfter, expiresUntil).
		Where("a.rebuy_email_sent_at IS NULL").
		Order("qr_codes.expires_at ASC, qr_codes.id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ClaimRebuy takes the send lease. A claim older than staleBefore is
// considered abandoned and may be taken over.
func (r *repository) ClaimRebuy(ctx context.Context, qrCodeID uuid.UUID, now, staleBefore time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.QRCodeAnalytics{}).
		Where("qr_code_id = ? AND rebuy_email_sent_at IS NULL", qrCodeID).
		Where("(rebuy_email_claimed_at IS NULL OR rebuy_email_claimed_at < ?)", staleBefore).
		UpdateColumns(map[string]any{
			"rebuy_email_claimed_at": now,
			"updated_at":             now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) MarkRebuySent(ctx context.Context, qrCodeID uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.QRCodeAnalytics{}).
		Where("qr_code_id = ? AND rebuy_email_sent_at IS NULL", qrCodeID).
		UpdateColumns(map[string]any{
			"rebuy_email_sent_at": now,
			"updated_at":          now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) ReleaseRebuyClaim(ctx context.Context, qrCodeID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.QRCodeAnalytics{}).
		Where("qr_code_id = ? AND rebuy_email_sent_at IS NULL", qrCodeID).
		UpdateColumn("rebuy_email_claimed_at", nil).Error
}

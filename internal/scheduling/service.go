package scheduling

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/elocalpass/elocalpass-backend/internal/qrcodes"
	dbpkg "github.com/elocalpass/elocalpass-backend/pkg/db"
	"github.com/elocalpass/elocalpass-backend/pkg/db/models"
	"github.com/elocalpass/elocalpass-backend/pkg/enums"
	pkgerrors "github.com/elocalpass/elocalpass-backend/pkg/errors"
	"github.com/elocalpass/elocalpass-backend/pkg/logger"
	"github.com/elocalpass/elocalpass-backend/pkg/metrics"
	"github.com/elocalpass/elocalpass-backend/pkg/outbox"
	"github.com/elocalpass/elocalpass-backend/pkg/outbox/payloads"
	"github.com/elocalpass/elocalpass-backend/pkg/pagination"
)

const (
	defaultRetryBatchSize = 100
	deliveryTimeLayout    = "15:04"
	scheduledQRCodeColumn = "scheduled_qr_code_id"
	scheduledQRCodeIndex  = "ux_qr_codes_scheduled_qr_code_id"

	messageProcessed        = "qr code created"
	messageAlreadyProcessed = "already processed"
)

var errLostRace = errors.New("scheduled qr processed by another caller")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// CreateRequest describes a future-dated issuance.
type CreateRequest struct {
	ClientName      string
	ClientEmail     string
	Guests          int
	Days            int
	SellerID        *string
	ConfigurationID *uuid.UUID
	DeliveryMethod  enums.DeliveryMethod
	Language        enums.Language
	OrderID         *uuid.UUID
	Amount          *decimal.Decimal
	DeliveryDate    *time.Time
	DeliveryTime    *string
}

// ProcessResult is the outcome of one processing attempt.
type ProcessResult struct {
	Success  bool                   `json:"success"`
	Status   enums.ProcessingStatus `json:"status"`
	Message  string                 `json:"message"`
	QRCodeID *uuid.UUID             `json:"qrCodeId,omitempty"`
}

// RetryItem reports one record visited by the overdue sweep.
type RetryItem struct {
	ID           uuid.UUID              `json:"id"`
	ScheduledFor time.Time              `json:"scheduledFor"`
	Status       enums.ProcessingStatus `json:"status"`
	QRCodeID     *uuid.UUID             `json:"qrCodeId,omitempty"`
	Error        string                 `json:"error,omitempty"`
}

// RetryResult summarizes an overdue sweep in processing order.
type RetryResult struct {
	Success bool        `json:"success"`
	Retried int         `json:"retried"`
	Failed  int         `json:"failed"`
	Skipped int         `json:"skipped"`
	Results []RetryItem `json:"results"`
}

type ListParams struct {
	Status string
	Cursor string
	Limit  int
}

type ListItem struct {
	ID                uuid.UUID               `json:"id"`
	ScheduledFor      time.Time               `json:"scheduledFor"`
	Status            enums.ScheduledQRStatus `json:"status"`
	ClientName        string                  `json:"clientName"`
	ClientEmail       string                  `json:"clientEmail"`
	Guests            int                     `json:"guests"`
	Days              int                     `json:"days"`
	SellerID          *string                 `json:"sellerId,omitempty"`
	OrderID           *uuid.UUID              `json:"orderId,omitempty"`
	ProcessedAt       *time.Time              `json:"processedAt,omitempty"`
	CreatedQRCodeID   *uuid.UUID              `json:"createdQRCodeId,omitempty"`
	DispatchMessageID *string                 `json:"dispatchMessageId,omitempty"`
	CreatedAt         time.Time               `json:"createdAt"`
}

type ListResult struct {
	Items  []ListItem `json:"items"`
	Cursor string     `json:"cursor,omitempty"`
}

// Service persists future-dated requests and turns them into passes exactly once.
type Service interface {
	Create(ctx context.Context, tx *gorm.DB, req CreateRequest) (*models.ScheduledQRCode, error)
	Dispatch(ctx context.Context, record *models.ScheduledQRCode)
	ProcessOne(ctx context.Context, id uuid.UUID, isRetry bool) (*ProcessResult, error)
	RetryOverdue(ctx context.Context) (*RetryResult, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
}

type ServiceParams struct {
	Repo           Repository
	DB             txRunner
	Issuer         qrcodes.Service
	Outbox         outboxEmitter
	Dispatcher     Dispatcher
	Logger         *logger.Logger
	Metrics        *metrics.DeliveryMetrics
	RetryBatchSize int
	Now            func() time.Time
}

type service struct {
	repo       Repository
	db         txRunner
	issuer     qrcodes.Service
	outbox     outboxEmitter
	dispatcher Dispatcher
	logg       *logger.Logger
	metrics    *metrics.DeliveryMetrics
	batchSize  int
	now        func() time.Time
}

// NewService wires the scheduling controller. Dispatcher may be nil, in which
// case pending requests are only picked up by RetryOverdue.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "scheduled qr repository required")
	}
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if params.Issuer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "qr issuer required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox service required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	batchSize := params.RetryBatchSize
	if batchSize <= 0 {
		batchSize = defaultRetryBatchSize
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:       params.Repo,
		db:         params.DB,
		issuer:     params.Issuer,
		outbox:     params.Outbox,
		dispatcher: params.Dispatcher,
		logg:       params.Logger,
		metrics:    params.Metrics,
		batchSize:  batchSize,
		now:        now,
	}, nil
}

// ResolveScheduledFor combines a delivery date with an optional HH:MM time in
// UTC. A missing date means now.
func ResolveScheduledFor(date *time.Time, clock *string, now time.Time) (time.Time, error) {
	if date == nil || date.IsZero() {
		return now.UTC(), nil
	}
	day := date.UTC()
	if clock == nil || strings.TrimSpace(*clock) == "" {
		return day, nil
	}
	parsed, err := time.Parse(deliveryTimeLayout, strings.TrimSpace(*clock))
	if err != nil {
		return time.Time{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "delivery time must be HH:MM")
	}
	return time.Date(day.Year(), day.Month(), day.Day(), parsed.Hour(), parsed.Minute(), 0, 0, time.UTC), nil
}

// Create persists the request and its scheduled_qr_created event. With a nil
// tx it commits on its own and dispatches the delayed trigger; callers passing
// tx must call Dispatch after their commit.
func (s *service) Create(ctx context.Context, tx *gorm.DB, req CreateRequest) (*models.ScheduledQRCode, error) {
	if strings.TrimSpace(req.ClientName) == "" || strings.TrimSpace(req.ClientEmail) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "client name and email are required")
	}
	if req.Guests < 0 || req.Days < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guests and days cannot be negative")
	}

	now := s.now().UTC()
	scheduledFor, err := ResolveScheduledFor(req.DeliveryDate, req.DeliveryTime, now)
	if err != nil {
		return nil, err
	}

	deliveryMethod := req.DeliveryMethod
	if !deliveryMethod.IsValid() {
		deliveryMethod = enums.DeliveryMethodDirect
	}
	record := &models.ScheduledQRCode{
		ID:              uuid.New(),
		ScheduledFor:    scheduledFor,
		ClientName:      strings.TrimSpace(req.ClientName),
		ClientEmail:     strings.ToLower(strings.TrimSpace(req.ClientEmail)),
		Guests:          req.Guests,
		Days:            req.Days,
		SellerID:        req.SellerID,
		ConfigurationID: req.ConfigurationID,
		DeliveryMethod:  deliveryMethod,
		OrderID:         req.OrderID,
		Language:        enums.NormalizeLanguage(string(req.Language)),
		Amount:          req.Amount,
	}

	create := func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, record); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventScheduledQRCreated,
			AggregateType: enums.AggregateScheduledQR,
			AggregateID:   record.ID,
			OccurredAt:    now,
			Data: payloads.ScheduledQRCreatedEvent{
				ScheduledQRCodeID: record.ID,
				OrderID:           record.OrderID,
				ScheduledFor:      record.ScheduledFor,
			},
		})
	}
	if tx != nil {
		if err := create(tx); err != nil {
			return nil, err
		}
		return record, nil
	}

	if err := s.db.WithTx(ctx, create); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create scheduled qr")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"scheduled_qr_id": record.ID.String(),
		"scheduled_for":   record.ScheduledFor,
	}), "scheduled qr created")
	s.Dispatch(ctx, record)
	return record, nil
}

// Dispatch arranges the delayed trigger. Failures are logged only; the overdue
// sweep picks the record up regardless.
func (s *service) Dispatch(ctx context.Context, record *models.ScheduledQRCode) {
	if record == nil {
		return
	}
	logCtx := s.logg.WithScheduledQRID(ctx, record.ID.String())
	if s.dispatcher == nil {
		s.logg.Info(logCtx, "no delayed dispatcher configured, relying on overdue sweep")
		return
	}

	messageID, err := s.dispatcher.Dispatch(ctx, record.ID, record.ScheduledFor)
	if err != nil {
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "scheduling dispatch failed")
		return
	}
	if err := s.repo.SetDispatchMessageID(ctx, record.ID, messageID); err != nil {
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "failed to store dispatch message id")
		return
	}
	record.DispatchMessageID = &messageID
	s.logg.Info(s.logg.WithField(logCtx, "dispatch_message_id", messageID), "scheduled qr dispatched")
}

// ProcessOne issues the pass for a scheduled request. Concurrent callers race
// on the conditional update and the unique scheduled_qr_code_id index; losers
// report skipped with the winner's pass id.
func (s *service) ProcessOne(ctx context.Context, id uuid.UUID, isRetry bool) (*ProcessResult, error) {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"scheduled_qr_id": id.String(),
		"is_retry":        isRetry,
	})

	record, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.IsProcessed {
		s.logg.Info(logCtx, "scheduled qr already processed")
		return s.skipped(record.CreatedQRCodeID), nil
	}

	now := s.now().UTC()
	var issued *qrcodes.Issued
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		issued, err = s.issuer.Issue(ctx, tx, qrcodes.IssueRequest{
			ClientName:        record.ClientName,
			ClientEmail:       record.ClientEmail,
			Guests:            record.Guests,
			Days:              record.Days,
			SellerID:          record.SellerID,
			ConfigurationID:   record.ConfigurationID,
			DeliveryMethod:    record.DeliveryMethod,
			Language:          record.Language,
			OrderID:           record.OrderID,
			ScheduledQRCodeID: &record.ID,
			Amount:            record.Amount,
		})
		if err != nil {
			if isScheduledDuplicate(err) {
				return errLostRace
			}
			return err
		}

		won, err := s.repo.WithTx(tx).MarkProcessed(ctx, record.ID, issued.QRCode.ID, now)
		if err != nil {
			return err
		}
		if !won {
			return errLostRace
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventScheduledQRProcessed,
			AggregateType: enums.AggregateScheduledQR,
			AggregateID:   record.ID,
			OccurredAt:    now,
			Data: payloads.ScheduledQRProcessedEvent{
				ScheduledQRCodeID: record.ID,
				QRCodeID:          issued.QRCode.ID,
				ScheduledFor:      record.ScheduledFor,
				ProcessedAt:       now,
				IsRetry:           isRetry,
			},
		})
	})
	if err != nil {
		if errors.Is(err, errLostRace) || isScheduledDuplicate(err) {
			s.logg.Info(logCtx, "scheduled qr processed concurrently")
			winner, findErr := s.find(ctx, id)
			if findErr != nil {
				return nil, findErr
			}
			return s.skipped(winner.CreatedQRCodeID), nil
		}
		s.metrics.IncScheduledOutcome(string(enums.ProcessingFailed))
		s.logg.Error(logCtx, "failed to process scheduled qr", err)
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "process scheduled qr")
	}

	s.metrics.IncIssued(qrcodes.OriginScheduled)
	s.metrics.IncScheduledOutcome(string(enums.ProcessingProcessed))
	qrID := issued.QRCode.ID
	logCtx = s.logg.WithQRCode(logCtx, qrID.String(), issued.QRCode.Code)
	s.logg.Info(logCtx, "scheduled qr processed")

	if _, err := s.issuer.SendWelcome(ctx, &issued.QRCode); err != nil {
		s.logg.Error(logCtx, "welcome email failed for scheduled qr", err)
	}

	return &ProcessResult{
		Success:  true,
		Status:   enums.ProcessingProcessed,
		Message:  messageProcessed,
		QRCodeID: &qrID,
	}, nil
}

// RetryOverdue processes every overdue request oldest first, paging past
// records it already visited so failing rows cannot hide newer ones. One
// record's failure never stops the sweep.
func (s *service) RetryOverdue(ctx context.Context) (*RetryResult, error) {
	now := s.now().UTC()
	result := &RetryResult{Results: []RetryItem{}}
	var (
		errs    error
		after   *pagination.Key
		loadErr error
	)
	for {
		records, err := s.repo.FindOverdue(ctx, now, after, s.batchSize)
		if err != nil {
			if after == nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load overdue scheduled qr codes")
			}
			loadErr = err
			errs = multierr.Append(errs, err)
			break
		}
		for _, record := range records {
			item, err := s.retryOne(ctx, record)
			result.add(item)
			errs = multierr.Append(errs, err)
		}
		if len(records) < s.batchSize || ctx.Err() != nil {
			break
		}
		last := records[len(records)-1]
		after = &pagination.Key{At: last.ScheduledFor, ID: last.ID}
	}
	result.Success = result.Failed == 0 && loadErr == nil

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"candidates": len(result.Results),
		"retried":    result.Retried,
		"skipped":    result.Skipped,
		"failed":     result.Failed,
	})
	if errs != nil {
		s.logg.Error(logCtx, "overdue sweep finished with failures", errs)
	} else {
		s.logg.Info(logCtx, "overdue sweep finished")
	}
	return result, nil
}

func (s *service) retryOne(ctx context.Context, record models.ScheduledQRCode) (RetryItem, error) {
	item := RetryItem{ID: record.ID, ScheduledFor: record.ScheduledFor}
	processed, err := s.ProcessOne(ctx, record.ID, true)
	if err != nil {
		item.Status = enums.ProcessingFailed
		item.Error = err.Error()
		return item, err
	}
	item.Status = processed.Status
	item.QRCodeID = processed.QRCodeID
	return item, nil
}

func (r *RetryResult) add(item RetryItem) {
	switch item.Status {
	case enums.ProcessingFailed:
		r.Failed++
	case enums.ProcessingSkipped:
		r.Skipped++
	default:
		r.Retried++
	}
	r.Results = append(r.Results, item)
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	window, err := pagination.NewWindow(params.Limit, params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	query := listQuery{now: s.now().UTC(), window: window}
	if status := strings.TrimSpace(params.Status); status != "" {
		parsed, err := enums.ParseScheduledQRStatus(strings.ToLower(status))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		query.status = parsed
	}

	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list scheduled qr codes")
	}

	rows, nextCursor := pagination.Cut(window, rows, func(row models.ScheduledQRCode) pagination.Key {
		return pagination.Key{At: row.CreatedAt, ID: row.ID}
	})
	items := make([]ListItem, len(rows))
	for i, row := range rows {
		items[i] = toListItem(row, query.now)
	}
	return &ListResult{Items: items, Cursor: nextCursor}, nil
}

func (s *service) find(ctx context.Context, id uuid.UUID) (*models.ScheduledQRCode, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "scheduled qr code not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load scheduled qr code")
	}
	return record, nil
}

func (s *service) skipped(qrCodeID *uuid.UUID) *ProcessResult {
	s.metrics.IncScheduledOutcome(string(enums.ProcessingSkipped))
	return &ProcessResult{
		Success:  true,
		Status:   enums.ProcessingSkipped,
		Message:  messageAlreadyProcessed,
		QRCodeID: qrCodeID,
	}
}

// isScheduledDuplicate matches the partial unique index by name on Postgres.
// SQLite only reports the column, so the text match is the fallback there.
func isScheduledDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return dbpkg.IsUniqueViolation(err, scheduledQRCodeIndex)
	}
	return dbpkg.IsUniqueViolation(err, scheduledQRCodeColumn)
}

func toListItem(row models.ScheduledQRCode, now time.Time) ListItem {
	return ListItem{
		ID:                row.ID,
		ScheduledFor:      row.ScheduledFor,
		Status:            row.Status(now),
		ClientName:        row.ClientName,
		ClientEmail:       row.ClientEmail,
		Guests:            row.Guests,
		Days:              row.Days,
		SellerID:          row.SellerID,
		OrderID:           row.OrderID,
		ProcessedAt:       row.ProcessedAt,
		CreatedQRCodeID:   row.CreatedQRCodeID,
		DispatchMessageID: row.DispatchMessageID,
		CreatedAt:         row.CreatedAt,
	}
}

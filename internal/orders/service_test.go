package orders

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/elocalpass/elocalpass-backend/internal/configurations"
	"github.com/elocalpass/elocalpass-backend/internal/emailtemplates"
	"github.com/elocalpass/elocalpass-backend/internal/notifications"
	"github.com/elocalpass/elocalpass-backend/internal/qrcodes"
	"github.com/elocalpass/elocalpass-backend/internal/scheduling"
	"github.com/elocalpass/elocalpass-backend/pkg/config"
	dbpkg "github.com/elocalpass/elocalpass-backend/pkg/db"
	"github.com/elocalpass/elocalpass-backend/pkg/db/dbtest"
	"github.com/elocalpass/elocalpass-backend/pkg/db/models"
	"github.com/elocalpass/elocalpass-backend/pkg/enums"
	pkgerrors "github.com/elocalpass/elocalpass-backend/pkg/errors"
	"github.com/elocalpass/elocalpass-backend/pkg/logger"
	"github.com/elocalpass/elocalpass-backend/pkg/outbox"
)

type fakeNotifier struct {
	sent []notifications.SendRequest
}

func (f *fakeNotifier) Send(_ context.Context, req notifications.SendRequest) error {
	f.sent = append(f.sent, req)
	return nil
}

func (f *fakeNotifier) PurgeDeliveries(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type fakeDispatcher struct {
	calls []uuid.UUID
}

func (f *fakeDispatcher) Dispatch(_ context.Context, id uuid.UUID, _ time.Time) (string, error) {
	f.calls = append(f.calls, id)
	return "msg-" + id.String(), nil
}

type failingScheduler struct {
	scheduling.Service
}

func (failingScheduler) Create(context.Context, *gorm.DB, scheduling.CreateRequest) (*models.ScheduledQRCode, error) {
	return nil, errors.New("insert failed")
}

type intakeHarness struct {
	conn       *gorm.DB
	svc        Service
	issuer     qrcodes.Service
	scheduler  scheduling.Service
	notifier   *fakeNotifier
	dispatcher *fakeDispatcher
	logg       *logger.Logger
	now        time.Time
}

func newIntakeHarness(t *testing.T) *intakeHarness {
	t.Helper()
	conn := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	client := dbpkg.NewFromConn(conn)
	h := &intakeHarness{
		conn:       conn,
		notifier:   &fakeNotifier{},
		dispatcher: &fakeDispatcher{},
		logg:       logg,
		now:        time.Now().UTC().Truncate(time.Second),
	}
	clock := func() time.Time { return h.now }
	outboxSvc := outbox.NewService(outbox.NewRepository(conn), logg)

	configs, err := configurations.NewService(configurations.NewRepository(conn), logg)
	require.NoError(t, err)
	templates, err := emailtemplates.NewService(emailtemplates.ServiceParams{Repo: emailtemplates.NewRepository(conn), DB: client, Logger: logg})
	require.NoError(t, err)
	h.issuer, err = qrcodes.NewService(qrcodes.ServiceParams{
		Repo:           qrcodes.NewRepository(conn),
		DB:             client,
		Configurations: configs,
		Templates:      templates,
		Notifications:  h.notifier,
		Outbox:         outboxSvc,
		Portal:         config.PortalConfig{BaseURL: "https://elocalpass.com"},
		Logger:         logg,
		Now:            clock,
	})
	require.NoError(t, err)
	h.scheduler, err = scheduling.NewService(scheduling.ServiceParams{
		Repo:       scheduling.NewRepository(conn),
		DB:         client,
		Issuer:     h.issuer,
		Outbox:     outboxSvc,
		Dispatcher: h.dispatcher,
		Logger:     logg,
		Now:        clock,
	})
	require.NoError(t, err)
	h.svc = h.build(t, h.scheduler)

	require.NoError(t, conn.Create(&models.EmailTemplate{
		Kind:      enums.EmailKindWelcome,
		Name:      "default welcome",
		Subject:   "Welcome",
		HTML:      "<p>{customerName} {qrCode}</p>",
		IsDefault: true,
	}).Error)
	return h
}

func (h *intakeHarness) build(t *testing.T, scheduler scheduling.Service) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:      NewRepository(h.conn),
		DB:        dbpkg.NewFromConn(h.conn),
		Issuer:    h.issuer,
		Scheduler: scheduler,
		Logger:    h.logg,
	})
	require.NoError(t, err)
	return svc
}

func intakeInput(paymentID string, delivery enums.DeliveryType) IntakeInput {
	return IntakeInput{
		PaymentID:     paymentID,
		Amount:        decimal.RequireFromString("49.90"),
		Currency:      enums.CurrencyUSD,
		CustomerEmail: "Ana@Example.com",
		CustomerName:  "Ana",
		Guests:        2,
		Days:          3,
		DeliveryType:  delivery,
		Status:        enums.OrderStatusPaid,
	}
}

func (h *intakeHarness) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.conn.Model(model).Count(&n).Error)
	return n
}

func TestIntakeImmediateIssuesAndWelcomes(t *testing.T) {
	h := newIntakeHarness(t)

	result, err := h.svc.Intake(context.Background(), intakeInput("pay_1", enums.DeliveryTypeNow))
	require.NoError(t, err)
	require.False(t, result.Duplicate)
	require.NotNil(t, result.QRCodeID)
	require.Nil(t, result.ScheduledQRID)

	qr, err := h.issuer.Get(context.Background(), *result.QRCodeID)
	require.NoError(t, err)
	require.Equal(t, result.OrderID, *qr.OrderID)
	require.Equal(t, "ana@example.com", qr.CustomerEmail)
	require.True(t, qr.Cost.Equal(decimal.RequireFromString("49.90")))
	require.Len(t, h.notifier.sent, 1)
}

func TestIntakeFutureSchedulesAndDispatchesAfterCommit(t *testing.T) {
	h := newIntakeHarness(t)
	input := intakeInput("pay_2", enums.DeliveryTypeFuture)
	date := time.Date(2030, 1, 15, 0, 0, 0, 0, time.UTC)
	clock := "09:45"
	input.DeliveryDate = &date
	input.DeliveryTime = &clock

	result, err := h.svc.Intake(context.Background(), input)
	require.NoError(t, err)
	require.NotNil(t, result.ScheduledQRID)
	require.Nil(t, result.QRCodeID)
	require.Equal(t, []uuid.UUID{*result.ScheduledQRID}, h.dispatcher.calls)

	var record models.ScheduledQRCode
	require.NoError(t, h.conn.Where("id = ?", *result.ScheduledQRID).First(&record).Error)
	require.Equal(t, time.Date(2030, 1, 15, 9, 45, 0, 0, time.UTC), record.ScheduledFor.UTC())
	require.Equal(t, result.OrderID, *record.OrderID)
	require.False(t, record.IsProcessed)
	require.NotNil(t, record.DispatchMessageID)
	require.Zero(t, h.count(t, &models.QRCode{}))
	require.Empty(t, h.notifier.sent)
}

func TestIntakeDuplicatePaymentIsIgnored(t *testing.T) {
	h := newIntakeHarness(t)
	first, err := h.svc.Intake(context.Background(), intakeInput("pay_3", enums.DeliveryTypeNow))
	require.NoError(t, err)

	second, err := h.svc.Intake(context.Background(), intakeInput("pay_3", enums.DeliveryTypeNow))
	require.NoError(t, err)
	require.True(t, second.Duplicate)
	require.Equal(t, first.OrderID, second.OrderID)
	require.EqualValues(t, 1, h.count(t, &models.Order{}))
	require.EqualValues(t, 1, h.count(t, &models.QRCode{}))
	require.Len(t, h.notifier.sent, 1)
}

func TestIntakeUnpaidOrderIsStoredOnly(t *testing.T) {
	h := newIntakeHarness(t)
	input := intakeInput("pay_4", enums.DeliveryTypeNow)
	input.Status = enums.OrderStatusPending

	result, err := h.svc.Intake(context.Background(), input)
	require.NoError(t, err)
	require.Nil(t, result.QRCodeID)
	require.Nil(t, result.ScheduledQRID)
	require.EqualValues(t, 1, h.count(t, &models.Order{}))
	require.Zero(t, h.count(t, &models.QRCode{}))
}

func TestIntakeRollsBackOrderWhenRoutingFails(t *testing.T) {
	h := newIntakeHarness(t)
	svc := h.build(t, failingScheduler{Service: h.scheduler})

	_, err := svc.Intake(context.Background(), intakeInput("pay_5", enums.DeliveryTypeFuture))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	require.Zero(t, h.count(t, &models.Order{}))

	result, err := h.svc.Intake(context.Background(), intakeInput("pay_5", enums.DeliveryTypeFuture))
	require.NoError(t, err)
	require.False(t, result.Duplicate)
}

func TestIntakeValidation(t *testing.T) {
	h := newIntakeHarness(t)
	cases := map[string]func(*IntakeInput){
		"payment id":    func(in *IntakeInput) { in.PaymentID = " " },
		"email":         func(in *IntakeInput) { in.CustomerEmail = "" },
		"guests":        func(in *IntakeInput) { in.Guests = 0 },
		"delivery type": func(in *IntakeInput) { in.DeliveryType = "later" },
		"currency":      func(in *IntakeInput) { in.Currency = "GBP" },
		"amount":        func(in *IntakeInput) { in.Amount = decimal.NewFromInt(-1) },
	}
	for name, mutate := range cases {
		input := intakeInput("pay_v", enums.DeliveryTypeNow)
		mutate(&input)
		_, err := h.svc.Intake(context.Background(), input)
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), name)
	}
	require.Zero(t, h.count(t, &models.Order{}))
}

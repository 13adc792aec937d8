package qrcodes

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/elocalpass/elocalpass-backend/internal/configurations"
	"github.com/elocalpass/elocalpass-backend/internal/emailtemplates"
	"github.com/elocalpass/elocalpass-backend/internal/notifications"
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
	sendFn func(ctx context.Context, req notifications.SendRequest) error
	sent   []notifications.SendRequest
}

func (f *fakeNotifier) Send(ctx context.Context, req notifications.SendRequest) error {
	if f.sendFn != nil {
		if err := f.sendFn(ctx, req); err != nil {
			return err
		}
	}
	f.sent = append(f.sent, req)
	return nil
}

func (f *fakeNotifier) PurgeDeliveries(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type issuerHarness struct {
	svc      Service
	conn     *gorm.DB
	notifier *fakeNotifier
	now      time.Time
}

func newIssuerHarness(t *testing.T) *issuerHarness {
	t.Helper()
	conn := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	client := dbpkg.NewFromConn(conn)

	configs, err := configurations.NewService(configurations.NewRepository(conn), logg)
	require.NoError(t, err)
	templates, err := emailtemplates.NewService(emailtemplates.ServiceParams{Repo: emailtemplates.NewRepository(conn), DB: client, Logger: logg})
	require.NoError(t, err)

	h := &issuerHarness{conn: conn, notifier: &fakeNotifier{}, now: time.Now().UTC().Truncate(time.Second)}
	h.svc, err = NewService(ServiceParams{
		Repo:           NewRepository(conn),
		DB:             client,
		Configurations: configs,
		Templates:      templates,
		Notifications:  h.notifier,
		Outbox:         outbox.NewService(outbox.NewRepository(conn), logg),
		Portal:         config.PortalConfig{BaseURL: "https://elocalpass.com/", MagicLinkSecret: "secret", MagicLinkIssuer: "elocalpass"},
		Logger:         logg,
		Now:            func() time.Time { return h.now },
	})
	require.NoError(t, err)

	require.NoError(t, conn.Create(&models.EmailTemplate{
		ID:        uuid.New(),
		Kind:      enums.EmailKindWelcome,
		Name:      "default welcome",
		Subject:   "Welcome {customerName}",
		HTML:      "<p>{customerName} {qrCode} {guests} {days} {expirationDate} {magicLink}</p>",
		IsDefault: true,
	}).Error)
	return h
}

func (h *issuerHarness) addConfig(t *testing.T, sellerID, cfg, templates string) uuid.UUID {
	t.Helper()
	row := models.QRConfiguration{ID: uuid.New(), SellerID: &sellerID, Name: "cfg", Config: cfg}
	if templates != "" {
		row.EmailTemplates = &templates
	}
	require.NoError(t, h.conn.Create(&row).Error)
	return row.ID
}

func (h *issuerHarness) countEvents(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var count int64
	require.NoError(t, h.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&count).Error)
	return count
}

func TestIssueCreatesPassAnalyticsAndEvent(t *testing.T) {
	h := newIssuerHarness(t)
	seller := "seller-1"
	cfgID := h.addConfig(t, seller, `{"button5SendRebuyEmail": true, "button2PricingType": "FIXED", "button2FixedPrice": 45}`, "")

	issued, err := h.svc.Issue(context.Background(), nil, IssueRequest{
		ClientName:  "Ana",
		ClientEmail: "Ana@Example.com ",
		Guests:      2,
		Days:        3,
		SellerID:    &seller,
		Language:    "es",
	})
	require.NoError(t, err)

	qr := issued.QRCode
	require.Regexp(t, codePattern, qr.Code)
	require.Equal(t, "ana@example.com", qr.CustomerEmail)
	require.Equal(t, cfgID, *qr.ConfigurationID)
	require.True(t, qr.Cost.Equal(decimal.NewFromInt(45)))
	require.Equal(t, h.now.Add(72*time.Hour), qr.ExpiresAt)
	require.Equal(t, enums.LanguageSpanish, qr.Language)

	analytics, err := NewRepository(h.conn).FindAnalytics(context.Background(), qr.ID)
	require.NoError(t, err)
	require.True(t, analytics.RebuyEmailScheduled)
	require.False(t, analytics.WelcomeEmailSent)
	require.EqualValues(t, 1, h.countEvents(t, enums.EventQRCodeIssued))
}

func TestIssueAmountOverridesPricingAndDefaultsApply(t *testing.T) {
	h := newIssuerHarness(t)
	seller := "seller-2"
	h.addConfig(t, seller, `{"button1GuestsDefault": 4, "button1DaysDefault": 2, "button2PricingType": "FIXED", "button2FixedPrice": 45}`, "")
	amount := decimal.RequireFromString("19.999")

	issued, err := h.svc.Issue(context.Background(), nil, IssueRequest{ClientName: "Ana", ClientEmail: "ana@example.com", SellerID: &seller, Amount: &amount})
	require.NoError(t, err)
	require.Equal(t, 4, issued.QRCode.Guests)
	require.Equal(t, 2, issued.QRCode.Days)
	require.True(t, issued.QRCode.Cost.Equal(decimal.NewFromInt(20)))
	require.False(t, issued.Analytics.RebuyEmailScheduled)
}

func TestIssueWithoutConfiguration(t *testing.T) {
	h := newIssuerHarness(t)
	issued, err := h.svc.Issue(context.Background(), nil, IssueRequest{ClientName: "Ana", ClientEmail: "ana@example.com", Guests: 1, Days: 1})
	require.NoError(t, err)
	require.True(t, issued.QRCode.Cost.IsZero())
	require.Equal(t, enums.DeliveryMethodDirect, issued.QRCode.DeliveryMethod)

	_, err = h.svc.Issue(context.Background(), nil, IssueRequest{ClientName: "Ana", ClientEmail: "ana@example.com"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestIssueInCallerTransactionRollsBack(t *testing.T) {
	h := newIssuerHarness(t)
	client := dbpkg.NewFromConn(h.conn)

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		if _, err := h.svc.Issue(context.Background(), tx, IssueRequest{ClientName: "Ana", ClientEmail: "ana@example.com", Guests: 1, Days: 1}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, h.conn.Model(&models.QRCode{}).Count(&count).Error)
	require.Zero(t, count)
	require.Zero(t, h.countEvents(t, enums.EventQRCodeIssued))
}

func TestSendWelcomeRendersAndMarksOnce(t *testing.T) {
	h := newIssuerHarness(t)
	issued, err := h.svc.Issue(context.Background(), nil, IssueRequest{ClientName: "Ana", ClientEmail: "ana@example.com", Guests: 2, Days: 3})
	require.NoError(t, err)

	sent, err := h.svc.SendWelcome(context.Background(), &issued.QRCode)
	require.NoError(t, err)
	require.True(t, sent)
	require.Len(t, h.notifier.sent, 1)

	msg := h.notifier.sent[0].Message
	require.Equal(t, "Welcome Ana", msg.Subject)
	require.Contains(t, msg.HTML, issued.QRCode.Code)
	require.Contains(t, msg.HTML, "https://elocalpass.com/customer/access?token=")
	require.False(t, strings.Contains(msg.HTML, "{"), "all placeholders replaced: %s", msg.HTML)

	sent, err = h.svc.SendWelcome(context.Background(), &issued.QRCode)
	require.NoError(t, err)
	require.False(t, sent)
	require.Len(t, h.notifier.sent, 1)
	require.EqualValues(t, 1, h.countEvents(t, enums.EventWelcomeEmailSent))
}

func TestSendWelcomeUsesCustomTemplateAndHonorsDisable(t *testing.T) {
	h := newIssuerHarness(t)
	seller := "seller-3"
	h.addConfig(t, seller, `{}`, `{"welcomeEmail": {"customHTML": "<b>Hola {customerName}</b>", "subject": "Hola"}}`)
	issued, err := h.svc.Issue(context.Background(), nil, IssueRequest{ClientName: "Ana", ClientEmail: "ana@example.com", Guests: 1, Days: 1, SellerID: &seller})
	require.NoError(t, err)

	sent, err := h.svc.SendWelcome(context.Background(), &issued.QRCode)
	require.NoError(t, err)
	require.True(t, sent)
	require.Equal(t, "<b>Hola Ana</b>", h.notifier.sent[0].Message.HTML)
	require.Equal(t, "Hola", h.notifier.sent[0].Message.Subject)

	disabled := "seller-4"
	h.addConfig(t, disabled, `{"sendWelcomeEmail": false}`, "")
	issued, err = h.svc.Issue(context.Background(), nil, IssueRequest{ClientName: "Ana", ClientEmail: "ana@example.com", Guests: 1, Days: 1, SellerID: &disabled})
	require.NoError(t, err)
	sent, err = h.svc.SendWelcome(context.Background(), &issued.QRCode)
	require.NoError(t, err)
	require.False(t, sent)
	require.Len(t, h.notifier.sent, 1)
}

func TestSendWelcomeFailureLeavesMarkerUnset(t *testing.T) {
	h := newIssuerHarness(t)
	h.notifier.sendFn = func(context.Context, notifications.SendRequest) error {
		return pkgerrors.New(pkgerrors.CodeDependency, "email send failed")
	}
	issued, err := h.svc.Issue(context.Background(), nil, IssueRequest{ClientName: "Ana", ClientEmail: "ana@example.com", Guests: 1, Days: 1})
	require.NoError(t, err)

	sent, err := h.svc.SendWelcome(context.Background(), &issued.QRCode)
	require.Error(t, err)
	require.False(t, sent)

	analytics, err := NewRepository(h.conn).FindAnalytics(context.Background(), issued.QRCode.ID)
	require.NoError(t, err)
	require.False(t, analytics.WelcomeEmailSent)
	require.Zero(t, h.countEvents(t, enums.EventWelcomeEmailSent))
}

func (h *issuerHarness) backdate(t *testing.T, id uuid.UUID, createdAt time.Time) {
	t.Helper()
	require.NoError(t, h.conn.Model(&models.QRCode{}).Where("id = ?", id).UpdateColumn("created_at", createdAt).Error)
}

func TestResendWelcomesPicksUpMissedSends(t *testing.T) {
	h := newIssuerHarness(t)
	ctx := context.Background()
	issue := func(sellerID *string) models.QRCode {
		issued, err := h.svc.Issue(ctx, nil, IssueRequest{ClientName: "Ana", ClientEmail: "ana@example.com", Guests: 1, Days: 2, SellerID: sellerID})
		require.NoError(t, err)
		return issued.QRCode
	}

	missed := issue(nil)
	h.backdate(t, missed.ID, h.now.Add(-time.Hour))

	delivered := issue(nil)
	h.backdate(t, delivered.ID, h.now.Add(-2*time.Hour))
	_, err := h.svc.SendWelcome(ctx, &delivered)
	require.NoError(t, err)

	fresh := issue(nil)
	h.backdate(t, fresh.ID, h.now.Add(-time.Minute))

	disabled := "seller-quiet"
	h.addConfig(t, disabled, `{"sendWelcomeEmail": false}`, "")
	quiet := issue(&disabled)
	h.backdate(t, quiet.ID, h.now.Add(-3*time.Hour))

	window := WelcomeResendWindow{IssuedAfter: h.now.Add(-72 * time.Hour), IssuedBefore: h.now.Add(-15 * time.Minute)}
	result, err := h.svc.ResendWelcomes(ctx, window)
	require.NoError(t, err)
	require.Equal(t, &WelcomeResendResult{Visited: 2, Sent: 1, Skipped: 1}, result)
	require.Len(t, h.notifier.sent, 2)
	require.Equal(t, missed.ID, *h.notifier.sent[1].QRCodeID)

	analytics, err := NewRepository(h.conn).FindAnalytics(ctx, missed.ID)
	require.NoError(t, err)
	require.True(t, analytics.WelcomeEmailSent)

	again, err := h.svc.ResendWelcomes(ctx, window)
	require.NoError(t, err)
	require.Equal(t, &WelcomeResendResult{Visited: 1, Skipped: 1}, again)
	require.Len(t, h.notifier.sent, 2)
}

func TestResendWelcomesCountsFailures(t *testing.T) {
	h := newIssuerHarness(t)
	ctx := context.Background()
	issued, err := h.svc.Issue(ctx, nil, IssueRequest{ClientName: "Ana", ClientEmail: "ana@example.com", Guests: 1, Days: 2})
	require.NoError(t, err)
	h.backdate(t, issued.QRCode.ID, h.now.Add(-time.Hour))
	h.notifier.sendFn = func(context.Context, notifications.SendRequest) error {
		return pkgerrors.New(pkgerrors.CodeDependency, "email send failed")
	}

	result, err := h.svc.ResendWelcomes(ctx, WelcomeResendWindow{IssuedAfter: h.now.Add(-time.Hour), IssuedBefore: h.now})
	require.NoError(t, err)
	require.Equal(t, &WelcomeResendResult{Visited: 1, Failed: 1}, result)

	_, err = h.svc.ResendWelcomes(ctx, WelcomeResendWindow{IssuedAfter: h.now, IssuedBefore: h.now})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestGetNotFound(t *testing.T) {
	h := newIssuerHarness(t)
	_, err := h.svc.Get(context.Background(), uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

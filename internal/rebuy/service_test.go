package rebuy

import (
	"context"
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
	"github.com/elocalpass/elocalpass-backend/internal/qrcodes"
	"github.com/elocalpass/elocalpass-backend/pkg/config"
	dbpkg "github.com/elocalpass/elocalpass-backend/pkg/db"
	"github.com/elocalpass/elocalpass-backend/pkg/db/dbtest"
	"github.com/elocalpass/elocalpass-backend/pkg/db/models"
	"github.com/elocalpass/elocalpass-backend/pkg/enums"
	pkgerrors "github.com/elocalpass/elocalpass-backend/pkg/errors"
	"github.com/elocalpass/elocalpass-backend/pkg/logger"
	"github.com/elocalpass/elocalpass-backend/pkg/outbox"
)

const allTokensTemplate = "<p>{customerName} {qrCode} {guests} {days} {hoursLeft} {qrExpirationTimestamp} {customerPortalUrl} {rebuyUrl}</p>"

type fakeNotifier struct {
	err  error
	sent []notifications.SendRequest
}

func (f *fakeNotifier) Send(_ context.Context, req notifications.SendRequest) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, req)
	return nil
}

func (f *fakeNotifier) PurgeDeliveries(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type rebuyHarness struct {
	conn     *gorm.DB
	svc      Service
	notifier *fakeNotifier
	now      time.Time
}

func newRebuyHarness(t *testing.T) *rebuyHarness {
	t.Helper()
	conn := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	client := dbpkg.NewFromConn(conn)

	configs, err := configurations.NewService(configurations.NewRepository(conn), logg)
	require.NoError(t, err)
	templates, err := emailtemplates.NewService(emailtemplates.ServiceParams{Repo: emailtemplates.NewRepository(conn), DB: client, Logger: logg})
	require.NoError(t, err)

	h := &rebuyHarness{conn: conn, notifier: &fakeNotifier{}, now: time.Now().UTC().Truncate(time.Second)}
	h.svc, err = NewService(ServiceParams{
		QRCodes:        qrcodes.NewRepository(conn),
		DB:             client,
		Configurations: configs,
		Templates:      templates,
		Notifications:  h.notifier,
		Outbox:         outbox.NewService(outbox.NewRepository(conn), logg),
		Portal:         config.PortalConfig{BaseURL: "https://elocalpass.com"},
		Config:         config.RebuyConfig{WindowStart: 6 * time.Hour, WindowEnd: 12 * time.Hour, ClaimLease: 15 * time.Minute, BatchSize: 50},
		Logger:         logg,
		Now:            func() time.Time { return h.now },
	})
	require.NoError(t, err)

	require.NoError(t, conn.Create(&models.EmailTemplate{
		Kind:      enums.EmailKindRebuy,
		Name:      "default rebuy",
		Subject:   "{hoursLeft} hours left on {qrCode}",
		HTML:      allTokensTemplate,
		IsDefault: true,
	}).Error)
	return h
}

func (h *rebuyHarness) addSeller(t *testing.T, sellerID, cfg, templates string) {
	t.Helper()
	row := models.QRConfiguration{SellerID: &sellerID, Name: "cfg", Config: cfg}
	if templates != "" {
		row.EmailTemplates = &templates
	}
	require.NoError(t, h.conn.Create(&row).Error)
}

func (h *rebuyHarness) seedPass(t *testing.T, sellerID string, expiresIn time.Duration, scheduled bool) models.QRCode {
	t.Helper()
	qr := models.QRCode{
		ID:             uuid.New(),
		Code:           "EL-TEST-" + uuid.NewString()[:6],
		SellerID:       &sellerID,
		CustomerName:   "Ana",
		CustomerEmail:  "ana@example.com",
		Guests:         2,
		Days:           3,
		Cost:           decimal.NewFromInt(30),
		ExpiresAt:      h.now.Add(expiresIn),
		IsActive:       true,
		DeliveryMethod: enums.DeliveryMethodDirect,
		Language:       enums.LanguageEnglish,
	}
	require.NoError(t, qrcodes.NewRepository(h.conn).Create(context.Background(), &qr, &models.QRCodeAnalytics{
		RebuyEmailScheduled: scheduled,
		Language:            enums.LanguageEnglish,
	}))
	return qr
}

func (h *rebuyHarness) analytics(t *testing.T, id uuid.UUID) *models.QRCodeAnalytics {
	t.Helper()
	analytics, err := qrcodes.NewRepository(h.conn).FindAnalytics(context.Background(), id)
	require.NoError(t, err)
	return analytics
}

func TestSweepSendsRebuyEmailOnce(t *testing.T) {
	h := newRebuyHarness(t)
	h.addSeller(t, "seller-1", `{"button5SendRebuyEmail": true}`, `{"rebuyEmail": "USE_DEFAULT_TEMPLATE"}`)
	qr := h.seedPass(t, "seller-1", 10*time.Hour, true)

	result, err := h.svc.Sweep(context.Background())
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, 1, result.Sent)
	require.Len(t, h.notifier.sent, 1)

	msg := h.notifier.sent[0].Message
	require.Contains(t, msg.HTML, qr.Code)
	require.Contains(t, msg.HTML, " 10 ")
	require.Contains(t, msg.HTML, "https://elocalpass.com/rebuy?qr="+qr.Code+"&seller=seller-1")
	for _, token := range []string{"{customerName}", "{qrCode}", "{guests}", "{days}", "{hoursLeft}", "{qrExpirationTimestamp}", "{customerPortalUrl}", "{rebuyUrl}"} {
		require.False(t, strings.Contains(msg.HTML, token), token)
	}
	require.Equal(t, "10 hours left on "+qr.Code, msg.Subject)
	require.NotNil(t, h.analytics(t, qr.ID).RebuyEmailSentAt)

	again, err := h.svc.Sweep(context.Background())
	require.NoError(t, err)
	require.Empty(t, again.Results)
	require.Len(t, h.notifier.sent, 1)

	var events int64
	require.NoError(t, h.conn.Model(&models.OutboxEvent{}).Where("event_type = ? AND aggregate_id = ?", enums.EventRebuyEmailSent, qr.ID).Count(&events).Error)
	require.EqualValues(t, 1, events)
}

func TestSweepWindowBoundaries(t *testing.T) {
	h := newRebuyHarness(t)
	h.addSeller(t, "seller-1", `{"button5SendRebuyEmail": true}`, "")
	h.seedPass(t, "seller-1", 6*time.Hour, true)
	h.seedPass(t, "seller-1", 13*time.Hour, true)
	edge := h.seedPass(t, "seller-1", 12*time.Hour, true)

	result, err := h.svc.Sweep(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Results, 1)
	require.Equal(t, edge.ID, result.Results[0].QRCodeID)
}

func TestSweepTreatsSellerConfigurationAsSourceOfTruth(t *testing.T) {
	h := newRebuyHarness(t)
	h.addSeller(t, "enabled", `{"button5SendRebuyEmail": true}`, "")
	h.addSeller(t, "disabled", `{"button5SendRebuyEmail": false}`, "")
	stale := h.seedPass(t, "enabled", 8*time.Hour, false)
	optedOut := h.seedPass(t, "disabled", 8*time.Hour, true)
	orphan := h.seedPass(t, "unknown", 8*time.Hour, true)

	result, err := h.svc.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.Sent)
	require.Equal(t, 2, result.Skipped)

	byID := map[uuid.UUID]Result{}
	for _, r := range result.Results {
		byID[r.QRCodeID] = r
	}
	require.Equal(t, enums.ProcessingSent, byID[stale.ID].Status)
	require.Equal(t, reasonDisabled, byID[optedOut.ID].Reason)
	require.Equal(t, reasonNoConfig, byID[orphan.ID].Reason)
}

func TestSweepFailureReleasesClaimForNextSweep(t *testing.T) {
	h := newRebuyHarness(t)
	h.addSeller(t, "seller-1", `{"button5SendRebuyEmail": true}`, "")
	qr := h.seedPass(t, "seller-1", 8*time.Hour, true)
	h.notifier.err = pkgerrors.New(pkgerrors.CodeDependency, "email send failed")

	result, err := h.svc.Sweep(context.Background())
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, 1, result.Failed)
	require.NotEmpty(t, result.Results[0].Reason)
	analytics := h.analytics(t, qr.ID)
	require.Nil(t, analytics.RebuyEmailSentAt)
	require.Nil(t, analytics.RebuyEmailClaimedAt)

	h.notifier.err = nil
	result, err = h.svc.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.Sent)
	require.Len(t, h.notifier.sent, 1)
}

func TestSweepSkipsPassClaimedByOverlappingRun(t *testing.T) {
	h := newRebuyHarness(t)
	h.addSeller(t, "seller-1", `{"button5SendRebuyEmail": true}`, "")
	qr := h.seedPass(t, "seller-1", 8*time.Hour, true)
	require.NoError(t, h.conn.Model(&models.QRCodeAnalytics{}).Where("qr_code_id = ?", qr.ID).
		UpdateColumn("rebuy_email_claimed_at", h.now.Add(-time.Minute)).Error)

	result, err := h.svc.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.Skipped)
	require.Equal(t, reasonClaimed, result.Results[0].Reason)
	require.Empty(t, h.notifier.sent)

	h.now = h.now.Add(20 * time.Minute)
	result, err = h.svc.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.Sent)
}

func TestSendSingleIgnoresWindowAndAppliesDiscount(t *testing.T) {
	h := newRebuyHarness(t)
	h.addSeller(t, "seller-1", `{"button5SendRebuyEmail": true}`,
		`{"rebuyEmail": {"customHTML": "<a href=\"{rebuyUrl}\">{hoursLeft}h</a>", "subject": "Come back", "enableDiscountCode": true, "discountType": "percentage", "discountValue": 15}}`)
	qr := h.seedPass(t, "seller-1", 2*time.Hour+30*time.Minute, true)

	result, err := h.svc.SendSingle(context.Background(), qr.ID)
	require.NoError(t, err)
	require.Equal(t, enums.ProcessingSent, result.Status)

	msg := h.notifier.sent[0].Message
	require.Equal(t, "Come back", msg.Subject)
	require.Contains(t, msg.HTML, "discount=15")
	require.Contains(t, msg.HTML, "discountType=percentage")
	require.Contains(t, msg.HTML, ">2h<")

	again, err := h.svc.SendSingle(context.Background(), qr.ID)
	require.NoError(t, err)
	require.Equal(t, reasonAlreadySent, again.Reason)
}

func TestSendSingleSkipsAndErrors(t *testing.T) {
	h := newRebuyHarness(t)
	h.addSeller(t, "seller-1", `{"button5SendRebuyEmail": true}`, "")

	expired := h.seedPass(t, "seller-1", -time.Hour, true)
	result, err := h.svc.SendSingle(context.Background(), expired.ID)
	require.NoError(t, err)
	require.Equal(t, reasonExpired, result.Reason)

	inactive := h.seedPass(t, "seller-1", 8*time.Hour, true)
	require.NoError(t, h.conn.Model(&models.QRCode{}).Where("id = ?", inactive.ID).UpdateColumn("is_active", false).Error)
	result, err = h.svc.SendSingle(context.Background(), inactive.ID)
	require.NoError(t, err)
	require.Equal(t, reasonInactive, result.Reason)

	_, err = h.svc.SendSingle(context.Background(), uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	h.notifier.err = pkgerrors.New(pkgerrors.CodeDependency, "email send failed")
	pass := h.seedPass(t, "seller-1", 8*time.Hour, true)
	_, err = h.svc.SendSingle(context.Background(), pass.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestSendSingleWithoutDefaultTemplate(t *testing.T) {
	h := newRebuyHarness(t)
	require.NoError(t, h.conn.Where("kind = ?", enums.EmailKindRebuy).Delete(&models.EmailTemplate{}).Error)
	h.addSeller(t, "seller-1", `{"button5SendRebuyEmail": true}`, "")
	qr := h.seedPass(t, "seller-1", 8*time.Hour, true)

	_, err := h.svc.SendSingle(context.Background(), qr.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConfigurationMissing))
	require.Empty(t, h.notifier.sent)
	require.Nil(t, h.analytics(t, qr.ID).RebuyEmailClaimedAt)
}

func TestBuildURL(t *testing.T) {
	seller := "seller 1"
	qr := &models.QRCode{Code: "EL-ABC-123456", SellerID: &seller}
	portal := config.PortalConfig{BaseURL: "https://elocalpass.com/"}

	require.Equal(t, "https://elocalpass.com/rebuy?qr=EL-ABC-123456&seller=seller+1", BuildURL(portal, qr, nil))

	discount := &configurations.RebuyDiscount{Type: enums.DiscountFixed, Value: decimal.RequireFromString("5.5")}
	require.Equal(t, "https://elocalpass.com/rebuy?discount=5.5&discountType=fixed&qr=EL-ABC-123456&seller=seller+1", BuildURL(portal, qr, discount))

}

package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elocalpass/elocalpass-backend/internal/orders"
	"github.com/elocalpass/elocalpass-backend/pkg/enums"
)

type stubOrdersService struct {
	intakeFn func(ctx context.Context, input orders.IntakeInput) (*orders.IntakeResult, error)
}

func (s *stubOrdersService) Intake(ctx context.Context, input orders.IntakeInput) (*orders.IntakeResult, error) {
	return s.intakeFn(ctx, input)
}

func TestCreateOrderMapsFutureDelivery(t *testing.T) {
	configID := uuid.New()
	scheduledID := uuid.New()
	var captured orders.IntakeInput
	svc := &stubOrdersService{
		intakeFn: func(_ context.Context, input orders.IntakeInput) (*orders.IntakeResult, error) {
			captured = input
			return &orders.IntakeResult{OrderID: uuid.New(), ScheduledQRID: &scheduledID}, nil
		},
	}
	body := `{
		"paymentId": "pi_123",
		"amount": "49.90",
		"currency": "mxn",
		"customerEmail": "ana@example.com",
		"customerName": "Ana",
		"guests": 2,
		"days": 3,
		"deliveryType": "future",
		"deliveryDate": "2030-01-15",
		"deliveryTime": "09:45",
		"sellerId": "seller-1",
		"configurationId": "` + configID.String() + `",
		"language": "es"
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	resp := httptest.NewRecorder()
	CreateOrder(svc, testLogger())(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, "pi_123", captured.PaymentID)
	assert.True(t, captured.Amount.Equal(decimal.RequireFromString("49.90")))
	assert.Equal(t, enums.CurrencyMXN, captured.Currency)
	assert.Equal(t, enums.DeliveryTypeFuture, captured.DeliveryType)
	require.NotNil(t, captured.DeliveryDate)
	assert.Equal(t, "2030-01-15", captured.DeliveryDate.Format("2006-01-02"))
	require.NotNil(t, captured.DeliveryTime)
	assert.Equal(t, "09:45", *captured.DeliveryTime)
	require.NotNil(t, captured.SellerID)
	assert.Equal(t, "seller-1", *captured.SellerID)
	require.NotNil(t, captured.ConfigurationID)
	assert.Equal(t, configID, *captured.ConfigurationID)
	assert.Equal(t, enums.LanguageSpanish, captured.Language)

	var got orders.IntakeResult
	decodeData(t, resp, &got)
	require.NotNil(t, got.ScheduledQRID)
	assert.Equal(t, scheduledID, *got.ScheduledQRID)
}

func TestCreateOrderDuplicateAnswers200(t *testing.T) {
	svc := &stubOrdersService{
		intakeFn: func(context.Context, orders.IntakeInput) (*orders.IntakeResult, error) {
			return &orders.IntakeResult{OrderID: uuid.New(), Duplicate: true}, nil
		},
	}
	body := `{"paymentId":"pi_1","amount":10,"customerEmail":"a@example.com","customerName":"A","guests":1,"days":1,"deliveryType":"now"}`
	resp := httptest.NewRecorder()
	CreateOrder(svc, testLogger())(resp, httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body)))
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestCreateOrderValidation(t *testing.T) {
	svc := &stubOrdersService{
		intakeFn: func(context.Context, orders.IntakeInput) (*orders.IntakeResult, error) {
			t.Fatal("service must not be called for invalid input")
			return nil, nil
		},
	}
	bodies := []string{
		`{"amount":10,"customerEmail":"a@example.com","customerName":"A","guests":1,"days":1,"deliveryType":"now"}`,
		`{"paymentId":"pi","customerEmail":"not-an-email","customerName":"A","guests":1,"days":1,"deliveryType":"now"}`,
		`{"paymentId":"pi","customerEmail":"a@example.com","customerName":"A","guests":0,"days":1,"deliveryType":"now"}`,
		`{"paymentId":"pi","customerEmail":"a@example.com","customerName":"A","guests":1,"days":1,"deliveryType":"later"}`,
		`{"paymentId":"pi","customerEmail":"a@example.com","customerName":"A","guests":1,"days":1,"deliveryType":"future","deliveryDate":"15/01/2030"}`,
		`{"paymentId":"pi","customerEmail":"a@example.com","customerName":"A","guests":1,"days":1,"deliveryType":"now","currency":"GBP"}`,
	}
	for _, body := range bodies {
		resp := httptest.NewRecorder()
		CreateOrder(svc, testLogger())(resp, httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, resp.Code, body)
	}
}

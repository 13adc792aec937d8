package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elocalpass/elocalpass-backend/internal/emailtemplates"
	"github.com/elocalpass/elocalpass-backend/pkg/db/models"
	"github.com/elocalpass/elocalpass-backend/pkg/enums"
	pkgerrors "github.com/elocalpass/elocalpass-backend/pkg/errors"
)

type stubTemplateService struct {
	createFn     func(ctx context.Context, input emailtemplates.CreateInput) (*models.EmailTemplate, error)
	setDefaultFn func(ctx context.Context, id uuid.UUID) (*models.EmailTemplate, error)
}

func (s *stubTemplateService) Resolve(context.Context, emailtemplates.ResolveRequest) (*emailtemplates.Resolved, error) {
	return nil, nil
}

func (s *stubTemplateService) Create(ctx context.Context, input emailtemplates.CreateInput) (*models.EmailTemplate, error) {
	return s.createFn(ctx, input)
}

func (s *stubTemplateService) SetDefault(ctx context.Context, id uuid.UUID) (*models.EmailTemplate, error) {
	return s.setDefaultFn(ctx, id)
}

func TestAdminCreateEmailTemplate(t *testing.T) {
	svc := &stubTemplateService{
		createFn: func(_ context.Context, input emailtemplates.CreateInput) (*models.EmailTemplate, error) {
			assert.Equal(t, enums.EmailKindRebuy, input.Kind)
			assert.True(t, input.MakeDefault)
			return &models.EmailTemplate{
				ID:        uuid.New(),
				Kind:      input.Kind,
				Name:      input.Name,
				Subject:   input.Subject,
				HTML:      input.HTML,
				IsDefault: true,
				CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			}, nil
		},
	}
	body := `{"kind":"rebuy","name":"Summer","subject":"{hoursLeft}h left","html":"<p>{rebuyUrl}</p>","makeDefault":true}`
	resp := httptest.NewRecorder()
	AdminCreateEmailTemplate(svc, testLogger())(resp, httptest.NewRequest(http.MethodPost, "/api/admin/v1/email-templates", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, resp.Code)
	var got templateResponse
	decodeData(t, resp, &got)
	assert.Equal(t, "rebuy", got.Kind)
	assert.True(t, got.IsDefault)
	assert.Equal(t, "2026-01-01T00:00:00Z", got.CreatedAt)
}

func TestAdminCreateEmailTemplateRejectsUnknownKind(t *testing.T) {
	resp := httptest.NewRecorder()
	body := `{"kind":"receipt","name":"x","subject":"x","html":"x"}`
	AdminCreateEmailTemplate(&stubTemplateService{}, testLogger())(resp, httptest.NewRequest(http.MethodPost, "/api/admin/v1/email-templates", strings.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestAdminSetDefaultEmailTemplate(t *testing.T) {
	templateID := uuid.New()
	svc := &stubTemplateService{
		setDefaultFn: func(_ context.Context, id uuid.UUID) (*models.EmailTemplate, error) {
			if id != templateID {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "email template not found")
			}
			return &models.EmailTemplate{ID: id, Kind: enums.EmailKindWelcome, IsDefault: true}, nil
		},
	}
	handler := AdminSetDefaultEmailTemplate(svc, testLogger())

	resp := httptest.NewRecorder()
	handler(resp, withTemplateParam(httptest.NewRequest(http.MethodPost, "/", nil), templateID.String()))
	require.Equal(t, http.StatusOK, resp.Code)

	resp = httptest.NewRecorder()
	handler(resp, withTemplateParam(httptest.NewRequest(http.MethodPost, "/", nil), uuid.NewString()))
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = httptest.NewRecorder()
	handler(resp, withTemplateParam(httptest.NewRequest(http.MethodPost, "/", nil), "nope"))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func withTemplateParam(req *http.Request, id string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("templateId", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/elocalpass/elocalpass-backend/api/responses"
	"github.com/elocalpass/elocalpass-backend/api/validators"
	"github.com/elocalpass/elocalpass-backend/internal/emailtemplates"
	"github.com/elocalpass/elocalpass-backend/pkg/db/models"
	"github.com/elocalpass/elocalpass-backend/pkg/enums"
	pkgerrors "github.com/elocalpass/elocalpass-backend/pkg/errors"
	"github.com/elocalpass/elocalpass-backend/pkg/logger"
)

type createTemplateRequest struct {
	Kind        string `json:"kind" validate:"required,oneof=welcome rebuy"`
	Name        string `json:"name" validate:"required,max=120"`
	Subject     string `json:"subject" validate:"required,max=255"`
	HTML        string `json:"html" validate:"required"`
	MakeDefault bool   `json:"makeDefault"`
}

type templateResponse struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	Subject   string `json:"subject"`
	IsDefault bool   `json:"isDefault"`
	CreatedAt string `json:"createdAt"`
}

func AdminCreateEmailTemplate(svc emailtemplates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "email template service unavailable"))
			return
		}
		var req createTemplateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		kind, err := enums.ParseEmailKind(req.Kind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, fieldError(err, "kind"))
			return
		}
		tpl, err := svc.Create(r.Context(), emailtemplates.CreateInput{
			Kind:        kind,
			Name:        validators.SanitizeString(req.Name, 120),
			Subject:     req.Subject,
			HTML:        req.HTML,
			MakeDefault: req.MakeDefault,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toTemplateResponse(tpl))
	}
}

func AdminSetDefaultEmailTemplate(svc emailtemplates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "email template service unavailable"))
			return
		}
		id, err := validators.ParseUUID(chi.URLParam(r, "templateId"), "templateId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tpl, err := svc.SetDefault(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toTemplateResponse(tpl))
	}
}

func toTemplateResponse(tpl *models.EmailTemplate) templateResponse {
	return templateResponse{
		ID:        tpl.ID.String(),
		Kind:      tpl.Kind.String(),
		Name:      tpl.Name,
		Subject:   tpl.Subject,
		IsDefault: tpl.IsDefault,
		CreatedAt: tpl.CreatedAt.UTC().Format(time.RFC3339),
	}
}

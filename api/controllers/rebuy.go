package controllers

import (
	"net/http"

	"github.com/elocalpass/elocalpass-backend/api/responses"
	"github.com/elocalpass/elocalpass-backend/api/validators"
	"github.com/elocalpass/elocalpass-backend/internal/rebuy"
	pkgerrors "github.com/elocalpass/elocalpass-backend/pkg/errors"
	"github.com/elocalpass/elocalpass-backend/pkg/logger"
)

type sendSingleRequest struct {
	QRCodeID string `json:"qrCodeId" validate:"required,uuid"`
}

func SendRebuyEmails(svc rebuy.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rebuy service unavailable"))
			return
		}
		result, err := svc.Sweep(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteResult(w, result)
	}
}

func SendSingleRebuyEmail(svc rebuy.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rebuy service unavailable"))
			return
		}
		var req sendSingleRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseUUID(req.QRCodeID, "qrCodeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithField(r.Context(), "qr_code_id", id.String())
		result, err := svc.SendSingle(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteResult(w, result)
	}
}

package controllers

import (
	"net/http"

	"github.com/elocalpass/elocalpass-backend/api/responses"
	"github.com/elocalpass/elocalpass-backend/api/validators"
	"github.com/elocalpass/elocalpass-backend/internal/scheduling"
	pkgerrors "github.com/elocalpass/elocalpass-backend/pkg/errors"
	"github.com/elocalpass/elocalpass-backend/pkg/logger"
)

type processSingleRequest struct {
	ScheduledQRID string `json:"scheduledQRId" validate:"required,uuid"`
	IsRetry       bool   `json:"isRetry"`
}

// ProcessScheduledQR is the delayed-dispatch callback. Duplicate deliveries
// answer 200 with status "skipped" so QStash stops retrying.
func ProcessScheduledQR(svc scheduling.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "scheduling service unavailable"))
			return
		}

		var req processSingleRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseUUID(req.ScheduledQRID, "scheduledQRId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithFields(r.Context(), map[string]any{
			"scheduled_qr_id": id.String(),
			"is_retry":        req.IsRetry,
		})
		result, err := svc.ProcessOne(ctx, id, req.IsRetry)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteResult(w, result)
	}
}

// RetryOverdue sweeps pending records whose trigger never fired. Per-record
// failures are reported in the body with a 200.
func RetryOverdue(svc scheduling.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "scheduling service unavailable"))
			return
		}
		result, err := svc.RetryOverdue(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteResult(w, result)
	}
}

// RetryOverdueInfo answers GET probes without touching any record.
func RetryOverdueInfo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteResult(w, map[string]any{
			"success": true,
			"message": "Use POST to retry overdue scheduled QR codes.",
		})
	}
}

// ListScheduledQR lists scheduled requests by derived state, newest first.
func ListScheduledQR(svc scheduling.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "scheduling service unavailable"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := validators.ParseQueryOneOf(r, "status", "pending", "overdue", "processed")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.List(r.Context(), scheduling.ListParams{
			Status: status,
			Cursor: validators.QueryString(r, "cursor", 512),
			Limit:  limit,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/elocalpass/elocalpass-backend/api/responses"
	"github.com/elocalpass/elocalpass-backend/api/validators"
	"github.com/elocalpass/elocalpass-backend/pkg/db/models"
	pkgerrors "github.com/elocalpass/elocalpass-backend/pkg/errors"
	"github.com/elocalpass/elocalpass-backend/pkg/logger"
	"github.com/elocalpass/elocalpass-backend/pkg/pagination"
)

// DLQLister reads dead-lettered outbox events.
type DLQLister interface {
	List(ctx context.Context, limit int) ([]models.OutboxDLQ, error)
}

type dlqEntryResponse struct {
	ID            string  `json:"id"`
	EventID       string  `json:"eventId"`
	EventType     string  `json:"eventType"`
	AggregateType string  `json:"aggregateType"`
	AggregateID   string  `json:"aggregateId"`
	ErrorReason   string  `json:"errorReason"`
	ErrorMessage  *string `json:"errorMessage,omitempty"`
	AttemptCount  int     `json:"attemptCount"`
	FailedAt      string  `json:"failedAt"`
}

func AdminListOutboxDLQ(repo DLQLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "outbox dlq unavailable"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := repo.List(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list outbox dlq"))
			return
		}
		out := make([]dlqEntryResponse, 0, len(rows))
		for _, row := range rows {
			out = append(out, dlqEntryResponse{
				ID:            row.ID.String(),
				EventID:       row.EventID.String(),
				EventType:     string(row.EventType),
				AggregateType: string(row.AggregateType),
				AggregateID:   row.AggregateID.String(),
				ErrorReason:   string(row.ErrorReason),
				ErrorMessage:  row.ErrorMessage,
				AttemptCount:  row.AttemptCount,
				FailedAt:      row.FailedAt.UTC().Format(time.RFC3339),
			})
		}
		responses.WriteSuccess(w, map[string]any{"entries": out})
	}
}

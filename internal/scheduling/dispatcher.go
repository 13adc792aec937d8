package scheduling

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/elocalpass/elocalpass-backend/pkg/qstash"
)

// ProcessSinglePath is the callback route a delayed trigger targets.
const ProcessSinglePath = "/scheduled-qr/process-single"

// Dispatcher arranges a delayed callback that processes one scheduled request.
type Dispatcher interface {
	Dispatch(ctx context.Context, scheduledID uuid.UUID, notBefore time.Time) (string, error)
}

type publisher interface {
	Publish(ctx context.Context, req qstash.PublishRequest) (string, error)
}

// ProcessSingleBody is the JSON body posted back to ProcessSinglePath.
type ProcessSingleBody struct {
	ScheduledQRID uuid.UUID `json:"scheduledQRId"`
	IsRetry       bool      `json:"isRetry,omitempty"`
}

// QStashDispatcher publishes delayed callbacks through QStash.
type QStashDispatcher struct {
	client      publisher
	callbackURL string
	retries     *int
}

// NewQStashDispatcher targets callbackBaseURL + ProcessSinglePath. A negative
// retries leaves the delivery retry count to the QStash account default.
func NewQStashDispatcher(client publisher, callbackBaseURL string, retries int) *QStashDispatcher {
	d := &QStashDispatcher{
		client:      client,
		callbackURL: strings.TrimRight(strings.TrimSpace(callbackBaseURL), "/") + ProcessSinglePath,
	}
	if retries >= 0 {
		d.retries = &retries
	}
	return d
}

func (d *QStashDispatcher) Dispatch(ctx context.Context, scheduledID uuid.UUID, notBefore time.Time) (string, error) {
	return d.client.Publish(ctx, qstash.PublishRequest{
		Destination: d.callbackURL,
		Body:        ProcessSingleBody{ScheduledQRID: scheduledID},
		NotBefore:   notBefore,
		Retries:     d.retries,
	})
}

// Package registry maps outbox event types to their Pub/Sub topic and typed
// payload so the relay can validate rows before publishing them.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/elocalpass/elocalpass-backend/pkg/config"
	"github.com/elocalpass/elocalpass-backend/pkg/db/models"
	"github.com/elocalpass/elocalpass-backend/pkg/enums"
	"github.com/elocalpass/elocalpass-backend/pkg/outbox"
	"github.com/elocalpass/elocalpass-backend/pkg/outbox/payloads"
)

// EventDescriptor links an event type to its aggregate, topic and payload.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

// ResolvedEvent is a row that passed validation, with its payload decoded.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

func payloadOf[T any]() func() any {
	return func() any { return new(T) }
}

// catalog lists every event the services emit. Topic is filled in from config.
var catalog = []EventDescriptor{
	{EventType: enums.EventQRCodeIssued, AggregateType: enums.AggregateQRCode, PayloadFactory: payloadOf[payloads.QRCodeIssuedEvent]()},
	{EventType: enums.EventScheduledQRCreated, AggregateType: enums.AggregateScheduledQR, PayloadFactory: payloadOf[payloads.ScheduledQRCreatedEvent]()},
	{EventType: enums.EventScheduledQRProcessed, AggregateType: enums.AggregateScheduledQR, PayloadFactory: payloadOf[payloads.ScheduledQRProcessedEvent]()},
	{EventType: enums.EventWelcomeEmailSent, AggregateType: enums.AggregateQRCode, PayloadFactory: payloadOf[payloads.EmailSentEvent]()},
	{EventType: enums.EventRebuyEmailSent, AggregateType: enums.AggregateQRCode, PayloadFactory: payloadOf[payloads.EmailSentEvent]()},
}

// NewEventRegistry routes every catalogued event to the events topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.EventsTopic == "" {
		return nil, errors.New("events topic is required")
	}
	r := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor, len(catalog))}
	for _, desc := range catalog {
		desc.Topic = cfg.EventsTopic
		r.entries[desc.EventType] = desc
	}
	return r, nil
}

// Resolve checks the row against its descriptor and decodes the payload.
// Every failure is non-retryable: the stored row will not change.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, err := r.describe(event)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("%s: %w", event.EventType, err))
	}
	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}

func (r *EventRegistry) describe(event models.OutboxEvent) (EventDescriptor, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return desc, fmt.Errorf("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return desc, fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return desc, errors.New("missing aggregate_id")
	}
	return desc, nil
}

package enums

// OutboxAggregateType names the entity an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder       OutboxAggregateType = "order"
	AggregateQRCode      OutboxAggregateType = "qr_code"
	AggregateScheduledQR OutboxAggregateType = "scheduled_qr_code"
)

var validAggregateTypes = []OutboxAggregateType{AggregateOrder, AggregateQRCode, AggregateScheduledQR}

func (a OutboxAggregateType) IsValid() bool { return oneOf(validAggregateTypes, a) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parseOneOf("aggregate type", validAggregateTypes, value)
}

// OutboxEventType names a domain event relayed to Pub/Sub.
type OutboxEventType string

const (
	EventQRCodeIssued         OutboxEventType = "qr_code_issued"
	EventScheduledQRCreated   OutboxEventType = "scheduled_qr_created"
	EventScheduledQRProcessed OutboxEventType = "scheduled_qr_processed"
	EventWelcomeEmailSent     OutboxEventType = "welcome_email_sent"
	EventRebuyEmailSent       OutboxEventType = "rebuy_email_sent"
)

var validOutboxEventTypes = []OutboxEventType{
	EventQRCodeIssued,
	EventScheduledQRCreated,
	EventScheduledQRProcessed,
	EventWelcomeEmailSent,
	EventRebuyEmailSent,
}

func (e OutboxEventType) IsValid() bool { return oneOf(validOutboxEventTypes, e) }

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parseOneOf("event type", validOutboxEventTypes, value)
}

// OutboxDLQErrorReason records why the publisher gave up on an event.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	return oneOf([]OutboxDLQErrorReason{OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable}, r)
}

package enums

// EmailKind identifies which customer email a template renders.
type EmailKind string

const (
	EmailKindWelcome EmailKind = "welcome"
	EmailKindRebuy   EmailKind = "rebuy"
)

var validEmailKinds = []EmailKind{EmailKindWelcome, EmailKindRebuy}

func (k EmailKind) String() string { return string(k) }

func (k EmailKind) IsValid() bool { return oneOf(validEmailKinds, k) }

func ParseEmailKind(value string) (EmailKind, error) {
	return parseOneOf("email kind", validEmailKinds, value)
}

// EmailDeliveryStatus is the outcome of a single send attempt.
type EmailDeliveryStatus string

const (
	EmailDeliverySent   EmailDeliveryStatus = "sent"
	EmailDeliveryFailed EmailDeliveryStatus = "failed"
)

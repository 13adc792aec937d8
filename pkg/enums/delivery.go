package enums

// DeliveryType selects immediate or deferred QR issuance for an order.
type DeliveryType string

const (
	DeliveryTypeNow    DeliveryType = "now"
	DeliveryTypeFuture DeliveryType = "future"
)

var validDeliveryTypes = []DeliveryType{DeliveryTypeNow, DeliveryTypeFuture}

func (d DeliveryType) IsValid() bool { return oneOf(validDeliveryTypes, d) }

func ParseDeliveryType(value string) (DeliveryType, error) {
	return parseOneOf("delivery type", validDeliveryTypes, value)
}

// DeliveryMethod describes how the customer receives the pass.
type DeliveryMethod string

const (
	DeliveryMethodDirect DeliveryMethod = "DIRECT"
	DeliveryMethodURLs   DeliveryMethod = "URLS"
	DeliveryMethodBoth   DeliveryMethod = "BOTH"
)

var validDeliveryMethods = []DeliveryMethod{DeliveryMethodDirect, DeliveryMethodURLs, DeliveryMethodBoth}

func (d DeliveryMethod) IsValid() bool { return oneOf(validDeliveryMethods, d) }

func ParseDeliveryMethod(value string) (DeliveryMethod, error) {
	return parseOneOf("delivery method", validDeliveryMethods, value)
}

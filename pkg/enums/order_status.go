package enums

// OrderStatus tracks the payment state of a captured order.
type OrderStatus string

const (
	OrderStatusPaid     OrderStatus = "PAID"
	OrderStatusPending  OrderStatus = "PENDING"
	OrderStatusFailed   OrderStatus = "FAILED"
	OrderStatusRefunded OrderStatus = "REFUNDED"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPaid,
	OrderStatusPending,
	OrderStatusFailed,
	OrderStatusRefunded,
}

func (s OrderStatus) IsValid() bool { return oneOf(validOrderStatuses, s) }

func ParseOrderStatus(value string) (OrderStatus, error) {
	return parseOneOf("order status", validOrderStatuses, value)
}

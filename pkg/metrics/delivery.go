package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DeliveryMetrics counts pass issuance and customer email outcomes.
type DeliveryMetrics struct {
	issued        *prometheus.CounterVec
	scheduled     *prometheus.CounterVec
	emails        *prometheus.CounterVec
	unknownTokens *prometheus.CounterVec
}

// NewDeliveryMetrics registers the delivery metrics on the provided registerer.
func NewDeliveryMetrics(reg prometheus.Registerer) *DeliveryMetrics {
	if reg == nil {
		return &DeliveryMetrics{}
	}
	issued := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "qr_codes_issued_total",
		Help:      "QR codes issued, by origin (immediate or scheduled).",
	}, []string{"origin"})
	scheduled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scheduled_qr_outcomes_total",
		Help:      "Scheduled QR processing outcomes.",
	}, []string{"status"})
	emails := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "emails_total",
		Help:      "Customer email send attempts, by kind and outcome.",
	}, []string{"kind", "status"})
	unknownTokens := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "template_unknown_tokens_total",
		Help:      "Placeholders left unresolved during rendering.",
	}, []string{"kind"})
	reg.MustRegister(issued, scheduled, emails, unknownTokens)
	return &DeliveryMetrics{
		issued:        issued,
		scheduled:     scheduled,
		emails:        emails,
		unknownTokens: unknownTokens,
	}
}

// IncIssued counts an issued QR code.
func (d *DeliveryMetrics) IncIssued(origin string) {
	if d == nil || d.issued == nil {
		return
	}
	d.issued.WithLabelValues(labelOrUnknown(origin)).Inc()
}

// IncScheduledOutcome counts a processOne result.
func (d *DeliveryMetrics) IncScheduledOutcome(status string) {
	if d == nil || d.scheduled == nil {
		return
	}
	d.scheduled.WithLabelValues(labelOrUnknown(status)).Inc()
}

// IncEmail counts a send attempt.
func (d *DeliveryMetrics) IncEmail(kind, status string) {
	if d == nil || d.emails == nil {
		return
	}
	d.emails.WithLabelValues(labelOrUnknown(kind), labelOrUnknown(status)).Inc()
}

// AddUnknownTokens counts placeholders a render could not resolve.
func (d *DeliveryMetrics) AddUnknownTokens(kind string, n int) {
	if d == nil || d.unknownTokens == nil || n <= 0 {
		return
	}
	d.unknownTokens.WithLabelValues(labelOrUnknown(kind)).Add(float64(n))
}

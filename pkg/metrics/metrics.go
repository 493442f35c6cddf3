// insurance-portal/pkg/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// label "service" lets one query compare api-gateway and payments-grpc
	PaymentRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payment",
			Name:      "requests_total",
			Help:      "Total payment requests per service",
		},
		[]string{"service", "status", "method"},
	)

	PaymentRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "payment",
			Name:      "request_duration_seconds",
			Help:      "Payment request duration per service",
			Buckets: []float64{
				0.01, 0.02, 0.03, 0.05, 0.08, 0.12,
				0.2, 0.3, 0.5, 0.8, 1.2, 2, 3, 5,
			},
		},
		[]string{"service", "status"},
	)

	paymentLinks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payment",
			Subsystem: "vnpay",
			Name:      "links_total",
			Help:      "Payment links issued, by result",
		},
		[]string{"result"},
	)

	callbackOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payment",
			Subsystem: "vnpay",
			Name:      "callback_outcomes_total",
			Help:      "Gateway callbacks by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)

	notificationsFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "payment",
			Subsystem: "vnpay",
			Name:      "notifications_failed_total",
			Help:      "Activation notifications that could not be emitted",
		},
	)
)

func init() {
	prometheus.MustRegister(PaymentRequestsTotal, PaymentRequestDuration)
}

func IncRequest(service, status, method string) {
	PaymentRequestsTotal.WithLabelValues(service, status, method).Inc()
}
func ObserveDuration(service, status string, seconds float64) {
	PaymentRequestDuration.WithLabelValues(service, status).Observe(seconds)
}

func IncPaymentLink(result string) {
	paymentLinks.WithLabelValues(result).Inc()
}

func IncCallbackOutcome(channel, outcome string) {
	callbackOutcomes.WithLabelValues(channel, outcome).Inc()
}

func IncNotificationFailed() {
	notificationsFailed.Inc()
}

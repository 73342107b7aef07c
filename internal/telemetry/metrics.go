package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics holds Prometheus metrics for billing observability.
type BusinessMetrics struct {
	// Mandate flow
	MandatesCreated  *prometheus.CounterVec
	MandatesVerified *prometheus.CounterVec
	RefundsIssued    prometheus.Counter
	RefundsFailed    prometheus.Counter

	// Webhook reconciliation
	WebhookReceived  *prometheus.CounterVec
	WebhookProcessed *prometheus.CounterVec
	WebhookFailed    *prometheus.CounterVec
	WebhookRejected  prometheus.Counter
	WebhookLatency   *prometheus.HistogramVec

	// Ledger outcomes
	PaymentSucceeded *prometheus.CounterVec
	PaymentFailed    *prometheus.CounterVec

	// Cancellations
	SubscriptionsCancelled prometheus.Counter

	// Access gate
	AccessDenied *prometheus.CounterVec
}

// Business is the global metrics instance, nil until InitBusinessMetrics
// runs. Callers nil-check before use so tests can skip registration.
var Business *BusinessMetrics

// InitBusinessMetrics creates and registers all business metrics.
func InitBusinessMetrics(namespace string) *BusinessMetrics {
	if namespace == "" {
		namespace = "counterbook"
	}

	subsystem := "billing"

	m := &BusinessMetrics{
		MandatesCreated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "mandates_created_total",
				Help:      "Total recurring-payment mandates created at the gateway",
			},
			[]string{"plan"},
		),
		MandatesVerified: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "mandates_verified_total",
				Help:      "Total mandate signature verifications by outcome",
			},
			[]string{"outcome"},
		),
		RefundsIssued: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "verification_refunds_total",
				Help:      "Total verification charges refunded",
			},
		),
		RefundsFailed: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "verification_refund_failures_total",
				Help:      "Total verification charge refunds that failed (best-effort, needs operator follow-up)",
			},
		),
		WebhookReceived: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_received_total",
				Help:      "Total webhook deliveries received, by event type",
			},
			[]string{"event"},
		),
		WebhookProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_processed_total",
				Help:      "Total webhook deliveries fully applied, by event type",
			},
			[]string{"event"},
		),
		WebhookFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_failed_total",
				Help:      "Total webhook deliveries acknowledged despite an internal failure",
			},
			[]string{"event", "reason"},
		),
		WebhookRejected: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_rejected_total",
				Help:      "Total webhook deliveries rejected for a bad signature",
			},
		),
		WebhookLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_duration_seconds",
				Help:      "Webhook processing time, by event type",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"event"},
		),
		PaymentSucceeded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payments_succeeded_total",
				Help:      "Total successful subscription charges recorded",
			},
			[]string{"plan"},
		),
		PaymentFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payments_failed_total",
				Help:      "Total failed subscription charges recorded",
			},
			[]string{"plan"},
		),
		SubscriptionsCancelled: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "subscriptions_cancelled_total",
				Help:      "Total owner-initiated cancellation requests accepted by the gateway",
			},
		),
		AccessDenied: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "access_denied_total",
				Help:      "Total requests denied by the subscription gate, by subscription status",
			},
			[]string{"status"},
		),
	}

	Business = m
	return m
}

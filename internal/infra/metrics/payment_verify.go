package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		PaymentVerifyRequests,
		WebhookEventsTotal,
	)
}

var (
	// Count of verify calls grouped by flow and bounded result.
	// flow: order|plan_change|subscription
	// result: ok|noop|bad_signature|not_configured|mismatch|error
	PaymentVerifyRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_verify_requests_total",
			Help: "Count of synchronous payment verifications by flow and result.",
		},
		[]string{"flow", "result"},
	)

	// Webhook deliveries grouped by event type and outcome.
	// outcome: applied|noop|not_found|ignored|duplicate|bad_signature|malformed|error
	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Gateway webhook deliveries by event type and outcome.",
		},
		[]string{"event", "outcome"},
	)
)

func IncVerify(flow, result string) {
	PaymentVerifyRequests.WithLabelValues(norm(flow), norm(result)).Inc()
}

func IncWebhook(event, outcome string) {
	if event == "" {
		event = "unknown"
	}
	WebhookEventsTotal.WithLabelValues(norm(event), norm(outcome)).Inc()
}

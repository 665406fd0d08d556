package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		planChangesTotal,
		provisioningTotal,
	)
}

var (
	planChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plan_changes_total",
			Help: "Plan change attempts by terminal or waiting state.",
		},
		[]string{"state"}, // DOWNGRADE_COMMITTED, AWAITING_PAYMENT, UPGRADE_COMMITTED, FAILED
	)

	provisioningTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenant_provisioning_total",
			Help: "Tenant provisioning runs by result (created/resumed/noop/partial).",
		},
		[]string{"result"},
	)
)

func IncPlanChange(state string) {
	planChangesTotal.WithLabelValues(state).Inc()
}

func IncProvisioning(result string) {
	provisioningTotal.WithLabelValues(norm(result)).Inc()
}

package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentsTotal,
		paymentsRevenueTotal,
		gatewayOrdersTotal,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_payments_total",
			Help: "Subscription payments by type (new_subscription/upgrade/downgrade) and status (pending/completed/failed).",
		},
		[]string{"type", "status"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "The total monetary value of completed payments, labeled by currency.",
		},
		[]string{"currency"},
	)

	// scope: platform|tenant, result: ok|fail
	gatewayOrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_orders_total",
			Help: "Gateway order creation attempts by credential scope and result.",
		},
		[]string{"scope", "result"},
	)
)

func IncPayment(paymentType, status string) {
	paymentsTotal.WithLabelValues(norm(paymentType), norm(status)).Inc()
}

func AddPaymentRevenue(currency string, amount int64) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}

func IncGatewayOrder(scope string, ok bool) {
	result := "ok"
	if !ok {
		result = "fail"
	}
	gatewayOrdersTotal.WithLabelValues(norm(scope), result).Inc()
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nguvuhire_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nguvuhire_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	OrdersCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nguvuhire_payment_orders_created_total",
			Help: "Payment orders submitted to Pesapal",
		},
		[]string{"kind", "outcome"},
	)

	OrdersFinalizedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nguvuhire_payment_orders_finalized_total",
			Help: "Payment orders moved to a terminal status",
		},
		[]string{"kind", "status", "source"},
	)

	GatewayErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nguvuhire_pesapal_errors_total",
			Help: "Failed calls to the Pesapal API",
		},
		[]string{"op"},
	)

	IPNReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nguvuhire_ipn_received_total",
			Help: "IPN notifications received",
		},
		[]string{"outcome"},
	)

	CreditDebitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nguvuhire_credit_debits_total",
			Help: "Boost credit debit attempts",
		},
		[]string{"outcome"},
	)

	BoostsAppliedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nguvuhire_boosts_applied_total",
			Help: "Boosts activated",
		},
		[]string{"post_type", "boost_type"},
	)

	ReconcileOrdersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nguvuhire_reconcile_orders_total",
			Help: "Orders examined by the reconciler",
		},
		[]string{"result"},
	)

	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nguvuhire_ws_connections",
			Help: "Open payment websocket connections",
		},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordOrderCreated(kind, outcome string) {
	OrdersCreatedTotal.WithLabelValues(kind, outcome).Inc()
}

func RecordOrderFinalized(kind, status, source string) {
	OrdersFinalizedTotal.WithLabelValues(kind, status, source).Inc()
}

func RecordGatewayError(op string) {
	GatewayErrorsTotal.WithLabelValues(op).Inc()
}

func RecordIPN(outcome string) {
	IPNReceivedTotal.WithLabelValues(outcome).Inc()
}

func RecordCreditDebit(outcome string) {
	CreditDebitsTotal.WithLabelValues(outcome).Inc()
}

func RecordBoost(postType, boostType string) {
	BoostsAppliedTotal.WithLabelValues(postType, boostType).Inc()
}

func RecordReconcile(result string, n int) {
	if n > 0 {
		ReconcileOrdersTotal.WithLabelValues(result).Add(float64(n))
	}
}

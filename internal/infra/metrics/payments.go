package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentRequestsTotal,
		settlementOutcomesTotal,
		settledRevenueTotal,
		reconciliationItemsTotal,
	)
}

var (
	// result: created|reused|rejected
	paymentRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_requests_total",
			Help: "Payment request create calls by kind and result.",
		},
		[]string{"kind", "result"},
	)

	settlementOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_outcomes_total",
			Help: "Settlement checks by source (poll/push) and outcome.",
		},
		[]string{"source", "outcome"},
	)

	settledRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settled_revenue_vnd_total",
			Help: "Sum of settled payment amounts in VND, labeled by product kind.",
		},
		[]string{"kind"},
	)

	reconciliationItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciliation_items_total",
			Help: "Transfers parked for manual reconciliation, by reason.",
		},
		[]string{"reason"},
	)
)

func IncPaymentRequest(kind, result string) {
	paymentRequestsTotal.WithLabelValues(norm(kind), norm(result)).Inc()
}

func IncSettlementOutcome(source, outcome string) {
	settlementOutcomesTotal.WithLabelValues(norm(source), norm(outcome)).Inc()
}

func AddSettledRevenue(kind string, amount int64) {
	settledRevenueTotal.WithLabelValues(norm(kind)).Add(float64(amount))
}

func IncReconciliationItem(reason string) {
	reconciliationItemsTotal.WithLabelValues(norm(reason)).Inc()
}

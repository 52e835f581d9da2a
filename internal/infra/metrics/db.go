package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(ledgerPoolConns, ledgerPoolEmptyAcquires) }

var (
	ledgerPoolConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "billing_ledger_pool_connections",
			Help: "Connections in the ledger database pool, by state.",
		},
		[]string{"state"}, // total, idle, acquired, max
	)

	ledgerPoolEmptyAcquires = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "billing_ledger_pool_empty_acquires",
			Help: "Acquires since start that found no idle connection and had to wait.",
		},
	)
)

// LedgerPoolStats is a point-in-time view of the ledger's pgx pool.
type LedgerPoolStats struct {
	Total, Idle, Acquired, Max int32
	EmptyAcquires              int64
}

func SetLedgerPoolStats(s LedgerPoolStats) {
	ledgerPoolConns.WithLabelValues("total").Set(float64(s.Total))
	ledgerPoolConns.WithLabelValues("idle").Set(float64(s.Idle))
	ledgerPoolConns.WithLabelValues("acquired").Set(float64(s.Acquired))
	ledgerPoolConns.WithLabelValues("max").Set(float64(s.Max))
	ledgerPoolEmptyAcquires.Set(float64(s.EmptyAcquires))
}

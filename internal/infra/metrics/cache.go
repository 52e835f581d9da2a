package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(cacheRequestsTotal, catalogTiers) }

var (
	cacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Tracks cache hits and misses for various caches.",
		},
		[]string{"cache", "result"}, // e.g., cache="catalog", result="hit"
	)

	catalogTiers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "catalog_tiers",
			Help: "Tiers in the current catalog snapshot, by kind.",
		},
		[]string{"kind"},
	)
)

func IncCacheRequest(cacheName, result string) {
	cacheRequestsTotal.WithLabelValues(norm(cacheName), norm(result)).Inc()
}

func SetCatalogTiers(kind string, n int) {
	catalogTiers.WithLabelValues(norm(kind)).Set(float64(n))
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(jobRunsTotal, jobDuration, expiredRequestsTotal) }

var (
	jobRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "background_job_runs_total",
			Help: "Background job ticks by job and status.",
		},
		[]string{"job", "status"}, // status: ok|error|skipped
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "background_job_duration_seconds",
			Help:    "Duration of one background job tick.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"job"},
	)

	expiredRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_requests_expired_total",
			Help: "Pending requests moved to expired, by path (lazy/sweep/detector).",
		},
		[]string{"path"},
	)
)

func ObserveJob(job, status string, d time.Duration) {
	jobRunsTotal.WithLabelValues(norm(job), norm(status)).Inc()
	jobDuration.WithLabelValues(norm(job)).Observe(d.Seconds())
}

func AddExpired(path string, n int) {
	if n <= 0 {
		return
	}
	expiredRequestsTotal.WithLabelValues(norm(path)).Add(float64(n))
}

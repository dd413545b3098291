package gateway

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records per-operation request counts and latencies.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the gateway collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "foodguardian",
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Backend calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "foodguardian",
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "Backend call latency by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	reg.MustRegister(m.requests, m.duration)
	return m
}

func (m *Metrics) observe(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = string(KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	m.requests.WithLabelValues(operation, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

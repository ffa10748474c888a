package authapi

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the auth endpoint Prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "credstore_auth_requests_total",
			Help: "Auth requests by operation and outcome.",
		}, []string{"op", "result"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "credstore_auth_duration_seconds",
			Help:    "Auth request latency by operation, including hashing.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"op"}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.Requests, m.Duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(op, result string, started time.Time) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(op, result).Inc()
	m.Duration.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

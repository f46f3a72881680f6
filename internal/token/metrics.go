package token

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Refresh outcomes recorded by Metrics.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomePeer     = "peer"
	OutcomeTimeout  = "timeout"
	OutcomeError    = "error"
)

// Metrics holds the coordinator's prometheus collectors.
type Metrics struct {
	refreshes *prometheus.CounterVec
	shared    prometheus.Counter
	duration  prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "drawer_token_refresh_total",
				Help: "Access token refreshes by outcome",
			},
			[]string{"outcome"},
		),
		shared: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "drawer_token_refresh_shared_total",
			Help: "Callers that received the result of a refresh started by another request",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "drawer_token_refresh_duration_seconds",
			Help:    "Duration of refresh calls to the identity provider",
			Buckets: prometheus.DefBuckets,
		}),
	}

	if reg != nil {
		reg.MustRegister(m.refreshes, m.shared, m.duration)
	}
	return m
}

func (m *Metrics) observeRefresh(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome).Inc()
	if outcome == OutcomeSuccess || outcome == OutcomeRejected {
		m.duration.Observe(seconds)
	}
}

func (m *Metrics) observeShared() {
	if m == nil {
		return
	}
	m.shared.Inc()
}

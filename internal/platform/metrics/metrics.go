package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the register flow.
type Metrics struct {
	// Sale commit outcomes by final status: completed, stock_conflict,
	// payment_incomplete, session_not_open, partial_failure, error.
	SaleOutcome *prometheus.CounterVec

	// Full commit latency including server-side revalidation.
	CommitLatency prometheus.Histogram

	// Cash session lifecycle transitions: opened, closed, cancelled.
	SessionTransitions *prometheus.CounterVec

	// Commits lost to another register taking the last units.
	StockConflicts prometheus.Counter

	// Request latency by route.
	RequestLatency *prometheus.HistogramVec
}

// New creates a Metrics instance with all register metrics registered.
func New() *Metrics {
	return &Metrics{
		SaleOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pdv_sale_commits_total",
			Help: "Total sale commit attempts by outcome",
		}, []string{"outcome"}),

		CommitLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pdv_sale_commit_duration_seconds",
			Help:    "Duration of sale commits including revalidation and persistence",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),

		SessionTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pdv_cash_session_transitions_total",
			Help: "Cash session lifecycle transitions",
		}, []string{"transition"}),

		StockConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pdv_stock_conflicts_total",
			Help: "Commits rejected because another register took the remaining stock",
		}),

		RequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pdv_http_request_duration_seconds",
			Help:    "HTTP request duration by route and status",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"route", "status"}),
	}
}

// ObserveCommit records a commit attempt outcome and duration.
func (m *Metrics) ObserveCommit(outcome string, d time.Duration) {
	if m != nil {
		m.SaleOutcome.WithLabelValues(outcome).Inc()
		m.CommitLatency.Observe(d.Seconds())
	}
}

// IncrementSessionTransition records a session lifecycle change.
func (m *Metrics) IncrementSessionTransition(transition string) {
	if m != nil {
		m.SessionTransitions.WithLabelValues(transition).Inc()
	}
}

// IncrementStockConflict records a lost stock race.
func (m *Metrics) IncrementStockConflict() {
	if m != nil {
		m.StockConflicts.Inc()
	}
}

// ObserveRequest records HTTP latency for a route.
func (m *Metrics) ObserveRequest(route, status string, d time.Duration) {
	if m != nil {
		m.RequestLatency.WithLabelValues(route, status).Observe(d.Seconds())
	}
}

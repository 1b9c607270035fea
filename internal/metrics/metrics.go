package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "meetup"

// Metrics holds the Prometheus collectors for matchmaking.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	PresenceReports *prometheus.CounterVec
	PairsCreated    prometheus.Counter
	PairsResolved   *prometheus.CounterVec
	Decisions       *prometheus.CounterVec
	UsersEvicted    prometheus.Counter
	HistoryDropped  prometheus.Counter
	HTTPDuration    *prometheus.HistogramVec
}

// New creates the collectors and registers them with r
func New(r prometheus.Registerer) *Metrics {
	m := &Metrics{
		PresenceReports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presence_reports_total",
			Help:      "Presence reports by resulting status.",
		}, []string{"status"}),
		PairsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pairs_created_total",
			Help:      "Pairs opened between two waiting users.",
		}),
		PairsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pairs_resolved_total",
			Help:      "Pairs removed from the ledger by outcome.",
		}, []string{"outcome"}),
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Decision submissions by outcome returned to the caller.",
		}, []string{"outcome"}),
		UsersEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "users_evicted_total",
			Help:      "Waiting users removed after exceeding the presence TTL.",
		}),
		HistoryDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_dropped_total",
			Help:      "Pair history events dropped because the writer queue was full.",
		}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "code"}),
	}

	r.MustRegister(
		m.PresenceReports,
		m.PairsCreated,
		m.PairsResolved,
		m.Decisions,
		m.UsersEvicted,
		m.HistoryDropped,
		m.HTTPDuration,
	)

	return m
}

// StatsFunc reports current registry and ledger sizes
type StatsFunc func() (users, waiting, pairs int)

// RegisterStats exposes live sizes as gauges sampled at scrape time
func RegisterStats(r prometheus.Registerer, stats StatsFunc) {
	gauge := func(name, help string, pick func(users, waiting, pairs int) int) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, func() float64 {
			return float64(pick(stats()))
		})
	}

	r.MustRegister(
		gauge("users", "Users known to the presence registry.", func(u, _, _ int) int { return u }),
		gauge("users_waiting", "Users currently waiting for a partner.", func(_, w, _ int) int { return w }),
		gauge("pairs_active", "Pairs awaiting decisions.", func(_, _, p int) int { return p }),
	)
}

// ObservePresence counts a presence report
func (m *Metrics) ObservePresence(status string) {
	if m == nil {
		return
	}
	m.PresenceReports.WithLabelValues(status).Inc()
}

// ObservePairCreated counts a newly opened pair
func (m *Metrics) ObservePairCreated() {
	if m == nil {
		return
	}
	m.PairsCreated.Inc()
}

// ObservePairResolved counts a pair leaving the ledger
func (m *Metrics) ObservePairResolved(outcome string) {
	if m == nil {
		return
	}
	m.PairsResolved.WithLabelValues(outcome).Inc()
}

// ObserveDecision counts a decision submission
func (m *Metrics) ObserveDecision(outcome string) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(outcome).Inc()
}

// ObserveEvicted counts stale waiting users removed by the sweeper
func (m *Metrics) ObserveEvicted(n int) {
	if m == nil || n == 0 {
		return
	}
	m.UsersEvicted.Add(float64(n))
}

// ObserveHistoryDropped counts a history event lost to back-pressure
func (m *Metrics) ObserveHistoryDropped() {
	if m == nil {
		return
	}
	m.HistoryDropped.Inc()
}

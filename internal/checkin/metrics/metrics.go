package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ScanOutcomes       *prometheus.CounterVec
	ScanDuration       prometheus.Histogram
	ActiveSessions     prometheus.Gauge
	CheckIns           *prometheus.CounterVec
	SouvenirsGiven     prometheus.Counter
	BindConflicts      prometheus.Counter
	TagBindings        *prometheus.CounterVec
	OutcomeFeedClients prometheus.Gauge
}

// New registers the check-in collectors with the default registry. Call it
// once per process; tests use NewWithRegistry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ScanOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "checkin_scan_outcomes_total",
			Help: "Total number of scan outcomes by kind",
		}, []string{"kind", "mode"}),
		ScanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "checkin_scan_duration_seconds",
			Help:    "Time from scan start to outcome",
			Buckets: []float64{0.1, 0.5, 1, 2, 3, 5, 10, 30, 60},
		}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "checkin_active_scan_sessions",
			Help: "Current number of scan sessions that are not idle",
		}),
		CheckIns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "checkin_check_ins_total",
			Help: "Total number of check-in attempts by result",
		}, []string{"result"}),
		SouvenirsGiven: factory.NewCounter(prometheus.CounterOpts{
			Name: "checkin_souvenirs_given_total",
			Help: "Total number of souvenirs handed out",
		}),
		BindConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "checkin_tag_bind_conflicts_total",
			Help: "Total number of bind attempts rejected because the tag is held elsewhere",
		}),
		TagBindings: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "checkin_tag_binding_changes_total",
			Help: "Total number of registry changes by operation",
		}, []string{"op"}),
		OutcomeFeedClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "checkin_outcome_feed_clients",
			Help: "Current number of connected outcome feed clients",
		}),
	}
}

func (m *Metrics) ObserveOutcome(kind, mode string, seconds float64) {
	m.ScanOutcomes.WithLabelValues(kind, mode).Inc()
	m.ScanDuration.Observe(seconds)
}

func (m *Metrics) IncrementActiveSessions() { m.ActiveSessions.Inc() }
func (m *Metrics) DecrementActiveSessions() { m.ActiveSessions.Dec() }

func (m *Metrics) IncrementCheckIns(repeated bool) {
	result := "first"
	if repeated {
		result = "repeated"
	}
	m.CheckIns.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementSouvenirs() { m.SouvenirsGiven.Inc() }

func (m *Metrics) IncrementBindConflicts() { m.BindConflicts.Inc() }

func (m *Metrics) IncrementBindingChange(op string) {
	m.TagBindings.WithLabelValues(op).Inc()
}

func (m *Metrics) IncrementFeedClients() { m.OutcomeFeedClients.Inc() }
func (m *Metrics) DecrementFeedClients() { m.OutcomeFeedClients.Dec() }

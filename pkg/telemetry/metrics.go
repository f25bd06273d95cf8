package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus observability primitives for the metering core.
type Metrics struct {
	gateDecisions       *prometheus.CounterVec
	gateDuration        *prometheus.HistogramVec
	ledgerIncrements    *prometheus.CounterVec
	webhookEvents       *prometheus.CounterVec
	thresholdNotices    *prometheus.CounterVec
	graceWindowsOpen    prometheus.Gauge
	checkoutValidations *prometheus.CounterVec
}

// NewMetrics registers and returns Prometheus metrics for telemetry.
func NewMetrics() *Metrics {
	gateDecisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "askrita_gate_decisions_total",
		Help: "Counts limit gate decisions by limit type and outcome.",
	}, []string{"limit_type", "outcome"})

	gateDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "askrita_gate_duration_seconds",
		Help:    "Limit gate latency by limit type.",
		Buckets: prometheus.DefBuckets,
	}, []string{"limit_type"})

	ledgerIncrements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "askrita_ledger_increments_total",
		Help: "Counts ledger counter bumps by kind (metered, unmetered, credits).",
	}, []string{"kind"})

	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "askrita_billing_events_total",
		Help: "Counts ingested billing provider events by type and outcome.",
	}, []string{"event_type", "outcome"})

	thresholdNotices := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "askrita_usage_threshold_notifications_total",
		Help: "Counts usage threshold notifications by threshold.",
	}, []string{"threshold"})

	graceWindowsOpen := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "askrita_grace_windows_open",
		Help: "Organizations currently inside a payment grace window.",
	})

	checkoutValidations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "askrita_checkout_validations_total",
		Help: "Counts checkout session validations by outcome.",
	}, []string{"outcome"})

	prometheus.MustRegister(
		gateDecisions,
		gateDuration,
		ledgerIncrements,
		webhookEvents,
		thresholdNotices,
		graceWindowsOpen,
		checkoutValidations,
	)

	return &Metrics{
		gateDecisions:       gateDecisions,
		gateDuration:        gateDuration,
		ledgerIncrements:    ledgerIncrements,
		webhookEvents:       webhookEvents,
		thresholdNotices:    thresholdNotices,
		graceWindowsOpen:    graceWindowsOpen,
		checkoutValidations: checkoutValidations,
	}
}

func (m *Metrics) ObserveGateDecision(limitType, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.gateDecisions.WithLabelValues(limitType, outcome).Inc()
	m.gateDuration.WithLabelValues(limitType).Observe(seconds)
}

func (m *Metrics) IncLedgerIncrement(kind string) {
	if m == nil {
		return
	}
	m.ledgerIncrements.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncBillingEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

func (m *Metrics) IncThresholdNotice(threshold string) {
	if m == nil {
		return
	}
	m.thresholdNotices.WithLabelValues(threshold).Inc()
}

func (m *Metrics) SetGraceWindowsOpen(n float64) {
	if m == nil {
		return
	}
	m.graceWindowsOpen.Set(n)
}

func (m *Metrics) IncCheckoutValidation(outcome string) {
	if m == nil {
		return
	}
	m.checkoutValidations.WithLabelValues(outcome).Inc()
}

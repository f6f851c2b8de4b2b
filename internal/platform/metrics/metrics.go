package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for consent operations.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	ValidityChecks    *prometheus.CounterVec
	Notifications     *prometheus.CounterVec
	OutboxBacklog     prometheus.Gauge
}

// New creates and registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "consent_operations_total",
			Help: "Consent operations by operation and outcome",
		}, []string{"op", "outcome"}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "consent_operation_duration_seconds",
			Help:    "Latency of consent operations including the store transaction",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"op"}),
		ValidityChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "consent_validity_checks_total",
			Help: "Validity checks by result",
		}, []string{"result"}),
		Notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "consent_notifications_total",
			Help: "ConsentGiven notifications by sink and outcome",
		}, []string{"sink", "outcome"}),
		OutboxBacklog: factory.NewGauge(prometheus.GaugeOpts{
			Name: "consent_outbox_backlog",
			Help: "Unpublished rows seen by the last outbox poll",
		}),
	}
}

func (m *Metrics) IncOperation(op, outcome string) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) ObserveOperationDuration(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) IncValidityCheck(valid bool) {
	if m == nil {
		return
	}
	result := "invalid"
	if valid {
		result = "valid"
	}
	m.ValidityChecks.WithLabelValues(result).Inc()
}

func (m *Metrics) IncNotification(sink string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Notifications.WithLabelValues(sink, outcome).Inc()
}

func (m *Metrics) SetOutboxBacklog(n int) {
	if m == nil {
		return
	}
	m.OutboxBacklog.Set(float64(n))
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for audited writes and exports.
type Metrics struct {
	AuditedWrites  *prometheus.CounterVec
	AuditFailures  *prometheus.CounterVec
	ExportsTotal   *prometheus.CounterVec
	ExportDuration prometheus.Histogram
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AuditedWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "data_audit_writes_total",
			Help: "Writes whose audit fields were populated, by operation",
		}, []string{"operation"}),
		AuditFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "data_audit_failures_total",
			Help: "Writes rejected while populating audit fields, by reason",
		}, []string{"reason"}),
		ExportsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "data_audit_exports_total",
			Help: "Audit trail exports, by result",
		}, []string{"result"}),
		ExportDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "data_audit_export_duration_seconds",
			Help:    "Time spent exporting one audit trail",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncWrite(operation string) {
	if m == nil {
		return
	}
	m.AuditedWrites.WithLabelValues(operation).Inc()
}

func (m *Metrics) IncFailure(reason string) {
	if m == nil {
		return
	}
	m.AuditFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveExport(result string, seconds float64) {
	if m == nil {
		return
	}
	m.ExportsTotal.WithLabelValues(result).Inc()
	m.ExportDuration.Observe(seconds)
}

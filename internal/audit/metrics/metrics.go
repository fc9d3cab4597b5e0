package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the audit logger.
type Metrics struct {
	QueueDepth      prometheus.Gauge
	EntriesDropped  prometheus.Counter
	EntriesWritten  *prometheus.CounterVec
	PersistFailures prometheus.Counter
	PersistDuration prometheus.Histogram
	AlertsSent      prometheus.Counter
	AlertFailures   prometheus.Counter
}

// New registers the audit metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "admissions_audit_queue_depth",
			Help: "Current number of entries waiting to be persisted",
		}),
		EntriesDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "admissions_audit_entries_dropped_total",
			Help: "Entries dropped because the queue was full or the logger closed",
		}),
		EntriesWritten: f.NewCounterVec(prometheus.CounterOpts{
			Name: "admissions_audit_entries_written_total",
			Help: "Entries persisted, by severity",
		}, []string{"severity"}),
		PersistFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "admissions_audit_persist_failures_total",
			Help: "Entries whose persistence failed and was swallowed",
		}),
		PersistDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "admissions_audit_persist_duration_seconds",
			Help:    "Time taken to persist an entry to the store",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		AlertsSent: f.NewCounter(prometheus.CounterOpts{
			Name: "admissions_audit_alerts_sent_total",
			Help: "Critical entries forwarded to the alert sink",
		}),
		AlertFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "admissions_audit_alert_failures_total",
			Help: "Critical entries the alert sink failed to accept",
		}),
	}
}

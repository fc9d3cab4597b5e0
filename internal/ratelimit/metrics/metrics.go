package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ChecksTotal            *prometheus.CounterVec
	StoreErrorsTotal       *prometheus.CounterVec
	FallbackActive         prometheus.Gauge
	CleanupRunsTotal       *prometheus.CounterVec
	CleanupRemovedTotal    prometheus.Counter
	CleanupDurationSeconds prometheus.Histogram
	TrackedKeys            prometheus.Gauge
}

// New registers the rate limit metrics on reg. Pass prometheus.NewRegistry()
// in tests to keep registrations isolated.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ChecksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "admissions_ratelimit_checks_total",
			Help: "Rate limit checks by profile and outcome",
		}, []string{"profile", "outcome"}),
		StoreErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "admissions_ratelimit_store_errors_total",
			Help: "Rate limit checks that failed open because the store errored",
		}, []string{"profile"}),
		FallbackActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "admissions_ratelimit_fallback_active",
			Help: "1 while the shared store circuit is open and the in-memory fallback serves checks",
		}),
		CleanupRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "admissions_ratelimit_cleanup_runs_total",
			Help: "Total number of sweep runs",
		}, []string{"status"}),
		CleanupRemovedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "admissions_ratelimit_cleanup_removed_total",
			Help: "Expired rate limit records removed by the sweep",
		}),
		CleanupDurationSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name: "admissions_ratelimit_cleanup_duration_seconds",
			Help: "Duration of sweep runs in seconds",
		}),
		TrackedKeys: f.NewGauge(prometheus.GaugeOpts{
			Name: "admissions_ratelimit_tracked_keys",
			Help: "Records held by the in-memory store after the last sweep",
		}),
	}
}

func (m *Metrics) ObserveCheck(profile string, allowed bool) {
	outcome := "allowed"
	if !allowed {
		outcome = "rejected"
	}
	m.ChecksTotal.WithLabelValues(profile, outcome).Inc()
}

func (m *Metrics) IncrementStoreErrors(profile string) {
	m.StoreErrorsTotal.WithLabelValues(profile).Inc()
}

func (m *Metrics) SetFallbackActive(active bool) {
	if active {
		m.FallbackActive.Set(1)
		return
	}
	m.FallbackActive.Set(0)
}

func (m *Metrics) IncrementCleanupRuns(status string) {
	m.CleanupRunsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveCleanup(removed, remaining int, durationSeconds float64) {
	m.CleanupRemovedTotal.Add(float64(removed))
	m.TrackedKeys.Set(float64(remaining))
	m.CleanupDurationSeconds.Observe(durationSeconds)
}

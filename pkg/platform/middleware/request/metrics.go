package request

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are labelled by chi route pattern, never by raw path.
type Metrics struct {
	Latency  *prometheus.HistogramVec
	Requests *prometheus.CounterVec
}

// NewMetrics registers the HTTP request metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "admissions_http_request_duration_seconds",
			Help:    "Latency of HTTP requests by route",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"method", "route"}),
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "admissions_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) Observe(method, route string, status int, durationSeconds float64) {
	m.Latency.WithLabelValues(method, route).Observe(durationSeconds)
	m.Requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

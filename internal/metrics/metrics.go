// Package metrics holds the Prometheus collectors for census resolutions
// and their upstream traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors. A nil *Metrics records nothing.
type Metrics struct {
	resolutions  *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	upstream     *prometheus.CounterVec
	supplemental prometheus.Counter
	ambiguous    prometheus.Counter
	gatherer     prometheus.Gatherer
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in
// tests to keep them isolated.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "citysdk_resolutions_total",
			Help: "Top-level resolutions by kind and outcome",
		}, []string{"kind", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "citysdk_resolution_duration_ms",
			Help:    "Top-level resolution duration in milliseconds",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		}, []string{"kind"}),
		upstream: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "citysdk_upstream_requests_total",
			Help: "Upstream HTTP responses by host and status (0 = no response)",
		}, []string{"host", "status"}),
		supplemental: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "citysdk_supplemental_requests_total",
			Help: "Per-feature statistics requests issued during reconciliation",
		}),
		ambiguous: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "citysdk_ambiguous_reconciliations_total",
			Help: "Features left unmerged because several statistics records matched",
		}),
		gatherer: reg,
	}
	reg.MustRegister(m.resolutions, m.duration, m.upstream, m.supplemental, m.ambiguous)
	return m
}

// ObserveResolution records one finished top-level resolution.
func (m *Metrics) ObserveResolution(kind string, err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.resolutions.WithLabelValues(kind, outcome).Inc()
	m.duration.WithLabelValues(kind).Observe(float64(d.Milliseconds()))
}

// ObserveUpstream matches fetcher.Observer.
func (m *Metrics) ObserveUpstream(host string, status int) {
	if m == nil {
		return
	}
	m.upstream.WithLabelValues(host, strconv.Itoa(status)).Inc()
}

// SupplementalRequest counts one reconciliation fallback request.
func (m *Metrics) SupplementalRequest() {
	if m == nil {
		return
	}
	m.supplemental.Inc()
}

// AmbiguousMatch counts one ambiguous feature.
func (m *Metrics) AmbiguousMatch() {
	if m == nil {
		return
	}
	m.ambiguous.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

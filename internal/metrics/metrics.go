package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides observability for the solver service.
type Metrics struct {
	registry *prometheus.Registry

	// Solves by endpoint and outcome kind
	Solves *prometheus.CounterVec

	// Newton-Raphson passes per successful operating point
	Iterations prometheus.Histogram

	// Wall time of a request's solve, cache lookups included
	SolveLatency *prometheus.HistogramVec

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// New creates the metrics on a private registry, so several instances can
// coexist in one process.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Solves: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dcop_solves_total",
			Help: "Total solves by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),

		Iterations: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dcop_newton_iterations",
			Help:    "Newton-Raphson iterations per converged operating point",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34, 55, 100},
		}),

		SolveLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dcop_solve_duration_seconds",
			Help:    "Duration of solve requests by endpoint",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"endpoint"}),

		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "dcop_cache_hits_total",
			Help: "Solve results served from the cache",
		}),

		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "dcop_cache_misses_total",
			Help: "Solve results not found in the cache",
		}),
	}
}

// IncrementSolve records one solve outcome.
func (m *Metrics) IncrementSolve(endpoint, outcome string) {
	if m != nil {
		m.Solves.WithLabelValues(endpoint, outcome).Inc()
	}
}

func (m *Metrics) ObserveIterations(n int) {
	if m != nil {
		m.Iterations.Observe(float64(n))
	}
}

// ObserveSolveLatency records the time since start.
func (m *Metrics) ObserveSolveLatency(endpoint string, start time.Time) {
	if m != nil {
		m.SolveLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) IncrementCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.Inc()
	} else {
		m.CacheMisses.Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

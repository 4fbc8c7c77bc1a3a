package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	requestsTotal         *prometheus.CounterVec
	latencySeconds        *prometheus.HistogramVec
	transitionsTotal      *prometheus.CounterVec
	samplingOutcomesTotal *prometheus.CounterVec
	importsTotal          *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors for the review workflow.
func RegisterMetrics() {
	registerOnce.Do(func() {
		requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "review_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		latencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "review_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		transitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "review_transitions_total",
			Help: "Total number of completed workflow transitions.",
		}, []string{"action", "new_status"})

		samplingOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "review_sampling_outcomes_total",
			Help: "Sampling gate runs split by chosen destination.",
		}, []string{"destination"})

		importsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "review_imports_total",
			Help: "Survey responses handled by the importer, by outcome.",
		}, []string{"outcome"})

		prometheus.MustRegister(requestsTotal, latencySeconds, transitionsTotal, samplingOutcomesTotal, importsTotal)
	})
}

// Requests exposes the counter for served requests.
func Requests() *prometheus.CounterVec {
	RegisterMetrics()
	return requestsTotal
}

// Latency exposes the request latency histogram.
func Latency() *prometheus.HistogramVec {
	RegisterMetrics()
	return latencySeconds
}

// TransitionsTotal exposes the counter for completed transitions.
func TransitionsTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return transitionsTotal
}

// SamplingOutcomesTotal exposes the counter for sampling gate outcomes.
func SamplingOutcomesTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return samplingOutcomesTotal
}

// ImportsTotal exposes the counter for importer outcomes.
func ImportsTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return importsTotal
}

// Package observability exposes the Prometheus instruments of the service.
package observability

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scrypster/companion/internal/llm"
)

// Namespace prefixes every metric name.
const Namespace = "companion"

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	AICalls          *prometheus.CounterVec
	AIDuration       *prometheus.HistogramVec
	CacheLookups     *prometheus.CounterVec
	EnrichmentJobs   *prometheus.CounterVec
	WebSocketClients prometheus.Gauge
	Backups          *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewMetrics registers the instruments with reg. A nil reg uses the
// default registry, which can only be done once per process.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if reg != nil {
		registerer, gatherer = reg, reg
	}
	factory := promauto.With(registerer)

	return &Metrics{
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		AICalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "ai_calls_total",
			Help:      "AI model calls by provider, operation and outcome.",
		}, []string{"provider", "op", "outcome"}),
		AIDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "ai_call_duration_seconds",
			Help:      "AI model call latency by provider and operation.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		}, []string{"provider", "op"}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "analysis_cache_lookups_total",
			Help:      "Analysis cache lookups by result (hit or miss).",
		}, []string{"result"}),
		EnrichmentJobs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "enrichment_jobs_total",
			Help:      "Background enrichment jobs by outcome.",
		}, []string{"outcome"}),
		WebSocketClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "websocket_clients",
			Help:      "Connected WebSocket clients.",
		}),
		Backups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "backups_total",
			Help:      "Backup runs by outcome.",
		}, []string{"outcome"}),
		gatherer: gatherer,
	}
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// AICallObserver returns an llm.CallObserver labelled with provider.
func (m *Metrics) AICallObserver(provider string) llm.CallObserver {
	return func(op string, elapsed time.Duration, err error) {
		m.AICalls.WithLabelValues(provider, op, aiOutcome(err)).Inc()
		m.AIDuration.WithLabelValues(provider, op).Observe(elapsed.Seconds())
	}
}

func aiOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, llm.ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, llm.ErrEmptyResponse), errors.Is(err, llm.ErrNoResponse):
		return "empty"
	default:
		return "error"
	}
}

// ObserveCache records an analysis cache lookup.
func (m *Metrics) ObserveCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// ObserveEnrichment records the outcome of an enrichment job.
func (m *Metrics) ObserveEnrichment(outcome string) {
	m.EnrichmentJobs.WithLabelValues(outcome).Inc()
}

// ObserveBackup records a backup run.
func (m *Metrics) ObserveBackup(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Backups.WithLabelValues(outcome).Inc()
}

// Handler serves the metrics of the registry the instruments live in.
func (m *Metrics) Handler() http.Handler {
	if m.gatherer == prometheus.DefaultGatherer {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

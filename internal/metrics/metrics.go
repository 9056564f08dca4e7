// Package metrics exposes Prometheus collectors for the inspection service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Probe kinds.
const (
	ProbePrimary   = "primary"
	ProbeAuxiliary = "auxiliary"
	ProbeDNS       = "dns"
	ProbeTLS       = "tls"
)

// Cache lookup results.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheStale = "stale"
	CacheError = "error"
)

var (
	probesTotal                *prometheus.CounterVec
	probeDurationSeconds       *prometheus.HistogramVec
	cacheLookupsTotal          *prometheus.CounterVec
	cacheWritesTotal           *prometheus.CounterVec
	inspectionsTotal           *prometheus.CounterVec
	inflightJoinsTotal         prometheus.Counter
	bytesFetchedTotal          prometheus.Counter
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		probesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitedigger_probes_total",
				Help: "Total number of probes issued, labeled by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		)

		probeDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sitedigger_probe_duration_seconds",
				Help:    "Histogram of probe latencies, labeled by kind.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"kind"},
		)

		cacheLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitedigger_cache_lookups_total",
				Help: "Total number of cache lookups, labeled by result.",
			},
			[]string{"result"},
		)

		cacheWritesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitedigger_cache_writes_total",
				Help: "Total number of cache writes, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		inspectionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitedigger_inspections_total",
				Help: "Total number of inspect calls, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		inflightJoinsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sitedigger_inflight_joins_total",
				Help: "Inspect calls that attached to an in-flight fetch for the same key.",
			},
		)

		bytesFetchedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sitedigger_bytes_fetched_total",
				Help: "Total number of body bytes fetched by primary probes.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveProbe records one probe of the given kind.
func ObserveProbe(kind, outcome string, duration time.Duration) {
	Init()
	probesTotal.WithLabelValues(kind, outcome).Inc()
	probeDurationSeconds.WithLabelValues(kind).Observe(duration.Seconds())
}

// ObserveBytes adds fetched body bytes. Sites are not labeled: the set of
// inspected hosts is unbounded.
func ObserveBytes(n int) {
	Init()
	if n > 0 {
		bytesFetchedTotal.Add(float64(n))
	}
}

// ObserveCacheLookup records a cache lookup result.
func ObserveCacheLookup(result string) {
	Init()
	cacheLookupsTotal.WithLabelValues(result).Inc()
}

// ObserveCacheWrite records a cache write outcome.
func ObserveCacheWrite(outcome string) {
	Init()
	cacheWritesTotal.WithLabelValues(outcome).Inc()
}

// ObserveInspection records the outcome of an inspect call.
func ObserveInspection(outcome string) {
	Init()
	inspectionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveInflightJoin records a caller sharing an in-flight fetch.
func ObserveInflightJoin() {
	Init()
	inflightJoinsTotal.Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

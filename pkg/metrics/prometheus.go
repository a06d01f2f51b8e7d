// Package metrics provides Prometheus metrics for the breed quiz service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Outcome label values shared by several collectors.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeEmpty   = "empty"
)

// Manager manages all Prometheus metrics for the quiz service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Breed catalog cache
	catalogFetches   *prometheus.CounterVec
	catalogCacheHits prometheus.Counter
	catalogSize      prometheus.Gauge

	// Rounds
	roundsStarted    prometheus.Counter
	roundsCommitted  *prometheus.CounterVec
	roundsSuperseded prometheus.Counter
	roundLatency     prometheus.Histogram
	guesses          *prometheus.CounterVec

	// Upstream dog API
	upstreamRequests *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec

	// Sessions
	sessionsActive  prometheus.Gauge
	sessionsCreated prometheus.Counter
	sessionsEvicted prometheus.Counter
	subscribers     prometheus.Gauge

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error tracking
	errorRateByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "breedquiz",
		subsystem:        "quiz",
		histogramBuckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)

	m.catalogFetches = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("catalog_fetches_total"),
		Help:        "Upstream breed catalog fetches by outcome",
		ConstLabels: labels,
	}, []string{"outcome"})

	m.catalogCacheHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("catalog_cache_hits_total"),
		Help:        "Breed catalog reads served from memory",
		ConstLabels: labels,
	})

	m.catalogSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("catalog_breeds"),
		Help:        "Number of breeds held by the catalog cache",
		ConstLabels: labels,
	})

	m.roundsStarted = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("rounds_started_total"),
		Help:        "Rounds started",
		ConstLabels: labels,
	})

	m.roundsCommitted = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("rounds_completed_total"),
		Help:        "Rounds whose result was applied, by outcome",
		ConstLabels: labels,
	}, []string{"outcome"})

	m.roundsSuperseded = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("rounds_superseded_total"),
		Help:        "Round results discarded because a newer round had started",
		ConstLabels: labels,
	})

	m.roundLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("round_latency_milliseconds"),
		Help:        "Time from round start to applied result in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	})

	m.guesses = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("guesses_total"),
		Help:        "Guesses evaluated, by correctness",
		ConstLabels: labels,
	}, []string{"correct"})

	m.upstreamRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("upstream_requests_total"),
		Help:        "Requests to the dog API by endpoint and outcome",
		ConstLabels: labels,
	}, []string{"endpoint", "outcome"})

	m.upstreamLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("upstream_latency_milliseconds"),
		Help:        "Dog API request latency in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	}, []string{"endpoint"})

	m.sessionsActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("sessions_active"),
		Help:        "Quiz sessions currently registered",
		ConstLabels: labels,
	})

	m.sessionsCreated = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("sessions_created_total"),
		Help:        "Quiz sessions created",
		ConstLabels: labels,
	})

	m.sessionsEvicted = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("sessions_evicted_total"),
		Help:        "Quiz sessions removed by the idle sweeper",
		ConstLabels: labels,
	})

	m.subscribers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("state_subscribers"),
		Help:        "Open round state subscriptions",
		ConstLabels: labels,
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("http_requests_total"),
			Help:        "Total number of HTTP requests by endpoint and method",
			ConstLabels: labels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("http_request_duration_milliseconds"),
			Help:        "HTTP request duration in milliseconds",
			Buckets:     m.histogramBuckets,
			ConstLabels: labels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("errors_by_component_total"),
			Help:        "Errors by component and type",
			ConstLabels: labels,
		},
		[]string{"component", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "system",
		Name:        m.name("memory_usage_bytes"),
		Help:        "Heap bytes allocated",
		ConstLabels: labels,
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "system",
		Name:        m.name("goroutines"),
		Help:        "Number of goroutines",
		ConstLabels: labels,
	})

	m.systemGCPauseTime = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "system",
		Name:        m.name("gc_pause_milliseconds"),
		Help:        "Average GC pause in milliseconds",
		ConstLabels: labels,
	})
}

// RefreshInterval is how often sampled gauges should be updated.
func (m *Manager) RefreshInterval() time.Duration {
	return m.refreshInterval
}

// RefreshInterval reports the global manager's gauge sampling interval.
func RefreshInterval() time.Duration {
	return globalManager.RefreshInterval()
}

// RecordCatalogFetch counts an upstream catalog fetch with its outcome.
func RecordCatalogFetch(outcome string) {
	if !globalManager.enabled {
		return
	}
	globalManager.catalogFetches.WithLabelValues(outcome).Inc()
}

// RecordCatalogCacheHit counts a catalog read served from memory.
func RecordCatalogCacheHit() {
	if !globalManager.enabled {
		return
	}
	globalManager.catalogCacheHits.Inc()
}

// UpdateCatalogSize sets the number of cached breeds.
func UpdateCatalogSize(n int) {
	if !globalManager.enabled {
		return
	}
	globalManager.catalogSize.Set(float64(n))
}

// RecordRoundStarted counts a started round.
func RecordRoundStarted() {
	if !globalManager.enabled {
		return
	}
	globalManager.roundsStarted.Inc()
}

// RecordRoundCompleted counts an applied round result and its latency.
func RecordRoundCompleted(outcome string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.roundsCommitted.WithLabelValues(outcome).Inc()
	globalManager.roundLatency.Observe(latencyMs)
}

// RecordRoundSuperseded counts a discarded round result.
func RecordRoundSuperseded() {
	if !globalManager.enabled {
		return
	}
	globalManager.roundsSuperseded.Inc()
}

// RecordGuess counts an evaluated guess.
func RecordGuess(correct bool) {
	if !globalManager.enabled {
		return
	}
	label := "false"
	if correct {
		label = "true"
	}
	globalManager.guesses.WithLabelValues(label).Inc()
}

// RecordUpstreamRequest records a dog API call.
func RecordUpstreamRequest(endpoint, outcome string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.upstreamRequests.WithLabelValues(endpoint, outcome).Inc()
	globalManager.upstreamLatency.WithLabelValues(endpoint).Observe(latencyMs)
}

// UpdateSessionsActive sets the number of registered sessions.
func UpdateSessionsActive(n int) {
	if !globalManager.enabled {
		return
	}
	globalManager.sessionsActive.Set(float64(n))
}

// RecordSessionCreated counts a created session.
func RecordSessionCreated() {
	if !globalManager.enabled {
		return
	}
	globalManager.sessionsCreated.Inc()
}

// RecordSessionEvicted counts a session removed for idleness.
func RecordSessionEvicted() {
	if !globalManager.enabled {
		return
	}
	globalManager.sessionsEvicted.Inc()
}

// AddSubscribers adjusts the open subscription gauge by delta.
func AddSubscribers(delta int) {
	if !globalManager.enabled {
		return
	}
	globalManager.subscribers.Add(float64(delta))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records errors by component.
func RecordErrorByComponent(component, errorType string) {
	if !globalManager.enabled {
		return
	}
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the heap allocation in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	if !globalManager.enabled {
		return
	}
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	if !globalManager.enabled {
		return
	}
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime sets the average GC pause in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.systemGCPauseTime.Set(pauseMs)
}

// GetRegistry returns the custom Prometheus registry.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Handler serves the custom registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(customRegistry, promhttp.HandlerOpts{})
}

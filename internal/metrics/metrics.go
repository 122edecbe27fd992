package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns the process registry and every collector the clinic client
// exports. A singleton keeps registration idempotent across packages.
type Manager struct {
	registry *prometheus.Registry

	dispatchTotal    *prometheus.CounterVec
	announcements    prometheus.Counter
	evictionsTotal   *prometheus.CounterVec
	feedPublished    prometheus.Counter
	feedReceived     *prometheus.CounterVec
	syncFailures     *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	queueDepth       *prometheus.GaugeVec
	systemCPUPercent prometheus.Gauge
	systemMemUsed    prometheus.Gauge
	goroutines       prometheus.Gauge

	mu          sync.Mutex
	initialized bool
}

var (
	instance *Manager
	once     sync.Once
)

// GetInstance returns the process-wide metrics manager.
func GetInstance() *Manager {
	once.Do(func() {
		instance = &Manager{registry: prometheus.NewRegistry()}
	})
	return instance
}

func (m *Manager) init() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialized {
		return
	}

	m.dispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_transitions_total",
			Help: "Total dispatch engine transitions by operation and station",
		},
		[]string{"operation", "station"},
	)
	m.announcements = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "announcements_total",
			Help: "Total public call announcements emitted",
		},
	)
	m.evictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evictions_total",
			Help: "Total sweeper evictions by reason",
		},
		[]string{"reason"},
	)
	m.feedPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_events_published_total",
			Help: "Total change feed events published by this client",
		},
	)
	m.feedReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_events_received_total",
			Help: "Total change feed events received by outcome",
		},
		[]string{"outcome"}, // applied, duplicate, self, stale
	)
	m.syncFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_failures_total",
			Help: "Total shared-store or feed operations that failed",
		},
		[]string{"operation"},
	)
	m.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	m.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)
	m.queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "station_queue_depth",
			Help: "Current waiting list length per station",
		},
		[]string{"station"},
	)
	m.systemCPUPercent = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "system_cpu_usage_percent",
			Help: "Current CPU usage percentage",
		},
	)
	m.systemMemUsed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "system_memory_used_bytes",
			Help: "Current memory usage in bytes",
		},
	)
	m.goroutines = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "process_goroutines",
			Help: "Number of goroutines that currently exist",
		},
	)

	m.registry.MustRegister(
		m.dispatchTotal,
		m.announcements,
		m.evictionsTotal,
		m.feedPublished,
		m.feedReceived,
		m.syncFailures,
		m.httpRequests,
		m.httpDuration,
		m.queueDepth,
		m.systemCPUPercent,
		m.systemMemUsed,
		m.goroutines,
	)
	m.initialized = true
}

// Handler exposes the registry for the /metrics endpoint.
func (m *Manager) Handler() http.Handler {
	m.init()
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordDispatch counts a dispatch engine transition.
func RecordDispatch(operation, station string) {
	m := GetInstance()
	m.init()
	m.dispatchTotal.WithLabelValues(operation, station).Inc()
}

// RecordAnnouncement counts an emitted call announcement.
func RecordAnnouncement() {
	m := GetInstance()
	m.init()
	m.announcements.Inc()
}

// RecordEviction counts a sweeper eviction by reason.
func RecordEviction(reason string) {
	m := GetInstance()
	m.init()
	m.evictionsTotal.WithLabelValues(reason).Inc()
}

// RecordFeedPublished counts a published change feed event.
func RecordFeedPublished() {
	m := GetInstance()
	m.init()
	m.feedPublished.Inc()
}

// RecordFeedReceived counts a received change feed event by outcome.
func RecordFeedReceived(outcome string) {
	m := GetInstance()
	m.init()
	m.feedReceived.WithLabelValues(outcome).Inc()
}

// RecordSyncFailure counts a failed shared-store or feed operation.
func RecordSyncFailure(operation string) {
	m := GetInstance()
	m.init()
	m.syncFailures.WithLabelValues(operation).Inc()
}

// RecordHTTPRequest records counters and latency for an HTTP request.
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	m := GetInstance()
	m.init()
	status := strconv.Itoa(statusCode)
	m.httpRequests.WithLabelValues(method, endpoint, status).Inc()
	m.httpDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
}

// SetQueueDepth publishes the current waiting list length of a station.
func SetQueueDepth(station string, depth int) {
	m := GetInstance()
	m.init()
	m.queueDepth.WithLabelValues(station).Set(float64(depth))
}

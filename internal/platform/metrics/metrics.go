package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the NVR engine.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal      prometheus.Counter
	errorsTotal        prometheus.Counter
	activeChannels     prometheus.Gauge
	captureStarts      prometheus.Counter
	captureCrashes     prometheus.Counter
	captureStalls      prometheus.Counter
	evictionPasses     prometheus.Counter
	filesEvicted       prometheus.Counter
	bytesEvicted       prometheus.Counter
	emergencyEvictions prometheus.Counter
	probeCacheHits     prometheus.Counter
	probeCacheMisses   prometheus.Counter
}

// New creates and registers Prometheus metrics for the engine.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nvr_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nvr_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		activeChannels: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nvr_active_channels",
			Help: "Number of channels with a running recorder loop",
		}),
		captureStarts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nvr_capture_starts_total",
			Help: "Total number of capture process launches",
		}),
		captureCrashes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nvr_capture_crashes_total",
			Help: "Total number of capture process exits classified as crashes",
		}),
		captureStalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nvr_capture_stalls_total",
			Help: "Total number of capture restarts due to missing output files",
		}),
		evictionPasses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nvr_eviction_passes_total",
			Help: "Total number of eviction engine passes",
		}),
		filesEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nvr_files_evicted_total",
			Help: "Total number of recording files deleted by eviction",
		}),
		bytesEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nvr_bytes_evicted_total",
			Help: "Total bytes freed by eviction",
		}),
		emergencyEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nvr_emergency_evictions_total",
			Help: "Total number of critical-limit passes that deleted files regardless of upload status",
		}),
		probeCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nvr_probe_cache_hits_total",
			Help: "Duration lookups answered from the cache",
		}),
		probeCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nvr_probe_cache_misses_total",
			Help: "Duration lookups that required an ffprobe invocation",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.activeChannels,
		m.captureStarts,
		m.captureCrashes,
		m.captureStalls,
		m.evictionPasses,
		m.filesEvicted,
		m.bytesEvicted,
		m.emergencyEvictions,
		m.probeCacheHits,
		m.probeCacheMisses,
	)

	return m
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// SetActiveChannels sets the active channels gauge.
func (m *Metrics) SetActiveChannels(n int) {
	m.activeChannels.Set(float64(n))
}

// IncCaptureStarts counts a capture process launch.
func (m *Metrics) IncCaptureStarts() {
	m.captureStarts.Inc()
}

// IncCaptureCrashes counts a capture process crash.
func (m *Metrics) IncCaptureCrashes() {
	m.captureCrashes.Inc()
}

// IncCaptureStalls counts a stall-triggered restart.
func (m *Metrics) IncCaptureStalls() {
	m.captureStalls.Inc()
}

// IncEvictionPasses counts an eviction pass.
func (m *Metrics) IncEvictionPasses() {
	m.evictionPasses.Inc()
}

// IncFilesEvicted counts one deleted file and its size.
func (m *Metrics) IncFilesEvicted(bytes int64) {
	m.filesEvicted.Inc()
	m.bytesEvicted.Add(float64(bytes))
}

// IncEmergencyEvictions counts a critical-limit deletion event.
func (m *Metrics) IncEmergencyEvictions() {
	m.emergencyEvictions.Inc()
}

// IncProbeCacheHits counts a duration-cache hit.
func (m *Metrics) IncProbeCacheHits() {
	m.probeCacheHits.Inc()
}

// IncProbeCacheMisses counts a duration-cache miss.
func (m *Metrics) IncProbeCacheMisses() {
	m.probeCacheMisses.Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

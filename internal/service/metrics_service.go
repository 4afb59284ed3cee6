package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/campus-ops-api/internal/models"
)

// MetricsService owns the Prometheus registry for HTTP, cache and workflow
// instrumentation and keeps a few counters for JSON snapshots.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Histogram
	cacheWrite      prometheus.Histogram
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	complaintsCreated *prometheus.CounterVec
	autoAssignments   *prometheus.CounterVec
	libraryBookings   *prometheus.CounterVec
	bookingsExpired   prometheus.Counter
	sweepDuration     prometheus.Histogram
	usageAlerts       *prometheus.CounterVec
	realtimeClients   prometheus.Gauge

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	expiredCount         uint64
	alertCount           uint64
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_latency_seconds",
			Help:    "Latency for cache lookups",
			Buckets: prometheus.DefBuckets,
		}),
		cacheWrite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_write_seconds",
			Help:    "Latency for cache writes",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHitRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cache_hit_ratio",
			Help: "Ratio of cache hits to total cache lookups",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total cache hits",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total cache misses",
		}),
		complaintsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "complaints_created_total",
			Help: "Complaints filed by category",
		}, []string{"category"}),
		autoAssignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "complaint_auto_assignments_total",
			Help: "Auto-assignment outcomes",
		}, []string{"outcome"}),
		libraryBookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "library_bookings_total",
			Help: "Library booking attempts by outcome",
		}, []string{"outcome"}),
		bookingsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "library_bookings_expired_total",
			Help: "Bookings completed by the expiry sweep",
		}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "library_sweep_duration_seconds",
			Help:    "Duration of expiry sweeps",
			Buckets: prometheus.DefBuckets,
		}),
		usageAlerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "usage_alerts_total",
			Help: "Alerts raised by the usage analyzer",
		}, []string{"severity"}),
		realtimeClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "realtime_connections",
			Help: "Open websocket connections",
		}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		m.requestDuration, m.requestTotal,
		m.cacheLatency, m.cacheWrite, m.cacheHitRatio, m.cacheHits, m.cacheMisses,
		m.complaintsCreated, m.autoAssignments, m.libraryBookings, m.bookingsExpired, m.sweepDuration,
		m.usageAlerts, m.realtimeClients, goroutines,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records a cache lookup and updates the hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration of cache writes.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ComplaintCreated counts a new complaint.
func (m *MetricsService) ComplaintCreated(category models.ComplaintCategory) {
	if m == nil {
		return
	}
	m.complaintsCreated.WithLabelValues(string(category)).Inc()
}

// AutoAssigned counts an auto-assignment outcome: employee, fallback or none.
func (m *MetricsService) AutoAssigned(outcome string) {
	if m == nil {
		return
	}
	m.autoAssignments.WithLabelValues(outcome).Inc()
}

// LibraryBooking counts a booking attempt outcome.
func (m *MetricsService) LibraryBooking(outcome string) {
	if m == nil {
		return
	}
	m.libraryBookings.WithLabelValues(outcome).Inc()
}

// ObserveSweep records one expiry sweep.
func (m *MetricsService) ObserveSweep(expired int, duration time.Duration) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(duration.Seconds())
	if expired > 0 {
		m.bookingsExpired.Add(float64(expired))
		atomic.AddUint64(&m.expiredCount, uint64(expired))
	}
}

// UsageAlert counts an analyzer alert.
func (m *MetricsService) UsageAlert(severity models.Severity) {
	if m == nil {
		return
	}
	m.usageAlerts.WithLabelValues(string(severity)).Inc()
	atomic.AddUint64(&m.alertCount, 1)
}

// RealtimeConnections sets the open websocket count.
func (m *MetricsService) RealtimeConnections(n int) {
	if m == nil {
		return
	}
	m.realtimeClients.Set(float64(n))
}

// Snapshot returns aggregated counters.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	if total := hits + misses; total > 0 {
		cacheRatio = float64(hits) / float64(total)
	}
	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		BookingsExpired:          atomic.LoadUint64(&m.expiredCount),
		AlertsRaised:             atomic.LoadUint64(&m.alertCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}

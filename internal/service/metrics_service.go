package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	mutations        *prometheus.CounterVec
	rejections       *prometheus.CounterVec
	regenerations    *prometheus.CounterVec
	regenDuration    prometheus.Observer
	rebuildDuration  prometheus.Observer
	indexConflicts   prometheus.Counter
	persistFailures  *prometheus.CounterVec
	persistDuration  *prometheus.HistogramVec
	classroomsLoaded prometheus.Gauge

	requestCount         uint64
	requestDurationTotal uint64
	mutationCount        uint64
	rejectionCount       uint64
	regenerationCount    uint64
	indexConflictCount   uint64
	persistFailureCount  uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_mutations_total",
		Help: "Slot mutations by operation and outcome",
	}, []string{"operation", "outcome"})

	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_rejections_total",
		Help: "Rejected assignments by reason",
	}, []string{"reason"})

	regenerations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_regenerations_total",
		Help: "Regeneration attempts by outcome",
	}, []string{"outcome"})

	regenDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "timetable_regeneration_seconds",
		Help:    "Duration of classroom regeneration including the generator call",
		Buckets: prometheus.DefBuckets,
	})

	rebuildDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "timetable_index_rebuild_seconds",
		Help:    "Duration of full availability index rebuilds",
		Buckets: prometheus.DefBuckets,
	})

	indexConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timetable_index_conflicts_total",
		Help: "Availability index consistency violations",
	})

	persistFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_persist_failures_total",
		Help: "Grid persistence failures by backend",
	}, []string{"backend"})

	persistDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "timetable_persist_seconds",
		Help:    "Duration of grid persistence calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend"})

	classroomsLoaded := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "timetable_classrooms_loaded",
		Help: "Classrooms held by the in-memory grid store",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, mutations, rejections, regenerations, regenDuration, rebuildDuration, indexConflicts, persistFailures, persistDuration, classroomsLoaded, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:         registry,
		handler:          handler,
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		mutations:        mutations,
		rejections:       rejections,
		regenerations:    regenerations,
		regenDuration:    regenDuration,
		rebuildDuration:  rebuildDuration,
		indexConflicts:   indexConflicts,
		persistFailures:  persistFailures,
		persistDuration:  persistDuration,
		classroomsLoaded: classroomsLoaded,
	}
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

// Registry returns the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
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

// RecordMutation counts a slot mutation. An empty reason means committed.
func (m *MetricsService) RecordMutation(operation string, reason string) {
	if m == nil {
		return
	}
	outcome := "committed"
	if reason != "" {
		outcome = "rejected"
		m.rejections.WithLabelValues(reason).Inc()
		atomic.AddUint64(&m.rejectionCount, 1)
	}
	m.mutations.WithLabelValues(operation, outcome).Inc()
	atomic.AddUint64(&m.mutationCount, 1)
}

// RecordRegeneration counts a regeneration by outcome and its duration.
func (m *MetricsService) RecordRegeneration(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.regenerations.WithLabelValues(outcome).Inc()
	m.regenDuration.Observe(duration.Seconds())
	atomic.AddUint64(&m.regenerationCount, 1)
}

// ObserveRebuild tracks a full index rebuild.
func (m *MetricsService) ObserveRebuild(classrooms int, duration time.Duration) {
	if m == nil {
		return
	}
	m.rebuildDuration.Observe(duration.Seconds())
	m.classroomsLoaded.Set(float64(classrooms))
}

// RecordIndexConflict counts consistency violations.
func (m *MetricsService) RecordIndexConflict(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.indexConflicts.Add(float64(count))
	atomic.AddUint64(&m.indexConflictCount, uint64(count))
}

// ObservePersist records one persistence call.
func (m *MetricsService) ObservePersist(backend string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.persistDuration.WithLabelValues(backend).Observe(duration.Seconds())
	if err != nil {
		m.persistFailures.WithLabelValues(backend).Inc()
		atomic.AddUint64(&m.persistFailureCount, 1)
	}
}

// Snapshot returns aggregated metrics suitable for the API.
func (m *MetricsService) Snapshot() models.EngineMetrics {
	if m == nil {
		return models.EngineMetrics{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return models.EngineMetrics{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		Mutations:                atomic.LoadUint64(&m.mutationCount),
		Rejections:               atomic.LoadUint64(&m.rejectionCount),
		Regenerations:            atomic.LoadUint64(&m.regenerationCount),
		IndexConflicts:           atomic.LoadUint64(&m.indexConflictCount),
		PersistFailures:          atomic.LoadUint64(&m.persistFailureCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}

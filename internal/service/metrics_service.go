package service

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the sync
// pipeline and the notification dispatch.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	syncRuns       *prometheus.CounterVec
	syncDuration   *prometheus.HistogramVec
	portalDuration *prometheus.HistogramVec
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	notifyTotal    *prometheus.CounterVec
}

// NewMetricsService registers the core collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	syncRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_sync_runs_total",
		Help: "Total schedule sync ticks by class and outcome",
	}, []string{"class", "status"})

	syncDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "schedule_sync_duration_seconds",
		Help:    "Duration of schedule sync ticks",
		Buckets: prometheus.DefBuckets,
	}, []string{"class"})

	portalDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "portal_request_duration_seconds",
		Help:    "Duration of portal HTTP requests by endpoint and status",
		Buckets: prometheus.DefBuckets,
	}, []string{"path", "status"})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "schedule_cache_hits_total",
		Help: "Schedule cache lookups that returned lessons",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "schedule_cache_misses_total",
		Help: "Schedule cache lookups that returned nothing",
	})

	notifyTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_total",
		Help: "Notification messages by outcome",
	}, []string{"status"})

	registry.MustRegister(syncRuns, syncDuration, portalDuration, cacheHits, cacheMisses, notifyTotal)

	return &MetricsService{
		registry:       registry,
		handler:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		syncRuns:       syncRuns,
		syncDuration:   syncDuration,
		portalDuration: portalDuration,
		cacheHits:      cacheHits,
		cacheMisses:    cacheMisses,
		notifyTotal:    notifyTotal,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// RecordSyncRun tracks one sync tick outcome.
func (s *MetricsService) RecordSyncRun(class string, err error, duration time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.syncRuns.WithLabelValues(class, status).Inc()
	s.syncDuration.WithLabelValues(class).Observe(duration.Seconds())
}

// RecordPortalRequest tracks one portal round trip.
func (s *MetricsService) RecordPortalRequest(path, status string, duration time.Duration) {
	s.portalDuration.WithLabelValues(path, status).Observe(duration.Seconds())
}

// RecordCacheLookup tracks a schedule cache hit or miss.
func (s *MetricsService) RecordCacheLookup(hit bool) {
	if hit {
		s.cacheHits.Inc()
		return
	}
	s.cacheMisses.Inc()
}

// RecordNotification tracks one dispatched message outcome.
func (s *MetricsService) RecordNotification(status string) {
	s.notifyTotal.WithLabelValues(status).Inc()
}

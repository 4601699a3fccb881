// Package metrics exports Prometheus instrumentation for Imagevault.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the application's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	uploadsTotal      *prometheus.CounterVec
	uploadBytes       prometheus.Counter
	thumbnailDuration prometheus.Histogram
	downloadsRecorded prometheus.Counter
}

// New creates and registers the application collectors on a fresh registry.
func New() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imagevault",
			Name:      "http_requests_total",
			Help:      "Count of HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "imagevault",
			Name:      "http_request_duration_seconds",
			Help:      "Latency of HTTP requests by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		uploadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imagevault",
			Name:      "uploads_total",
			Help:      "Count of image upload attempts by outcome.",
		}, []string{"status"}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "imagevault",
			Name:      "uploaded_bytes_total",
			Help:      "Cumulative size of successfully ingested originals.",
		}),
		thumbnailDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "imagevault",
			Name:      "thumbnail_duration_seconds",
			Help:      "Latency of thumbnail generation.",
			Buckets:   prometheus.DefBuckets,
		}),
		downloadsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "imagevault",
			Name:      "downloads_recorded_total",
			Help:      "Count of recorded download events.",
		}),
	}

	toRegister := []prometheus.Collector{
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.uploadsTotal,
		m.uploadBytes,
		m.thumbnailDuration,
		m.downloadsRecorded,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range toRegister {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}

	return m, nil
}

// Handler returns the scrape endpoint handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveUpload records one upload attempt.
func (m *Metrics) ObserveUpload(success bool, sizeBytes int64) {
	if success {
		m.uploadsTotal.WithLabelValues("ok").Inc()
		m.uploadBytes.Add(float64(sizeBytes))
		return
	}
	m.uploadsTotal.WithLabelValues("error").Inc()
}

// ObserveThumbnail records one thumbnail generation.
func (m *Metrics) ObserveThumbnail(duration time.Duration) {
	m.thumbnailDuration.Observe(duration.Seconds())
}

// ObserveDownload records one download event.
func (m *Metrics) ObserveDownload() {
	m.downloadsRecorded.Inc()
}

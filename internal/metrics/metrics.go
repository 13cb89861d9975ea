// Package metrics provides Prometheus metrics for the deskcanvas server.
package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deskcanvas_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deskcanvas_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// WebSocket metrics
	wsConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "deskcanvas_ws_connections_active",
			Help: "Number of active WebSocket connections",
		},
	)

	wsMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deskcanvas_ws_messages_total",
			Help: "Total WebSocket messages received",
		},
		[]string{"type"},
	)

	// Snapshot metrics
	snapshotBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deskcanvas_snapshot_build_duration_seconds",
			Help:    "Directory snapshot build duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	snapshotBuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deskcanvas_snapshot_builds_total",
			Help: "Total directory snapshot builds",
		},
		[]string{"status"},
	)

	// Layout sidecar metrics
	layoutReadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deskcanvas_layout_reads_total",
			Help: "Total layout sidecar reads",
		},
		[]string{"status"},
	)

	layoutWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deskcanvas_layout_writes_total",
			Help: "Total layout sidecar writes",
		},
		[]string{"status"},
	)

	// Thumbnail metrics
	thumbnailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deskcanvas_thumbnails_total",
			Help: "Total thumbnail renders",
		},
		[]string{"status"},
	)

	thumbnailDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deskcanvas_thumbnail_duration_seconds",
			Help:    "Thumbnail render duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// SetWSConnectionsActive sets the number of active WebSocket connections.
func SetWSConnectionsActive(count int64) {
	wsConnectionsActive.Set(float64(count))
}

// RecordMessage records a received protocol message by type.
func RecordMessage(msgType string) {
	wsMessagesTotal.WithLabelValues(msgType).Inc()
}

// RecordSnapshotBuild records a snapshot build.
func RecordSnapshotBuild(duration time.Duration, success bool) {
	snapshotBuildDuration.Observe(duration.Seconds())
	snapshotBuildsTotal.WithLabelValues(statusLabel(success)).Inc()
}

// RecordLayoutRead records a layout sidecar read.
func RecordLayoutRead(success bool) {
	layoutReadsTotal.WithLabelValues(statusLabel(success)).Inc()
}

// RecordLayoutWrite records a layout sidecar write.
func RecordLayoutWrite(success bool) {
	layoutWritesTotal.WithLabelValues(statusLabel(success)).Inc()
}

// RecordThumbnail records a thumbnail render.
func RecordThumbnail(duration time.Duration, success bool) {
	thumbnailDuration.Observe(duration.Seconds())
	thumbnailsTotal.WithLabelValues(statusLabel(success)).Inc()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Hijack is required for WebSocket upgrades behind this middleware.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("response writer does not support hijacking")
}

// Middleware returns HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		RecordHTTPRequest(r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	})
}

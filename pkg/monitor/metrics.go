package monitor

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Metrics holds every Prometheus metric the monitoring server exposes
// for a running buffer tree.
type Metrics struct {
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight *prometheus.GaugeVec

	insertsTotal        *prometheus.CounterVec
	flushesTotal        *prometheus.CounterVec
	flushDuration       *prometheus.HistogramVec
	bytesWritten        prometheus.Counter
	handoffQueueDepth   prometheus.Gauge
	handoffQueueDropped prometheus.Counter

	sinkBatchesTotal prometheus.Counter
	sinkRecordsTotal prometheus.Counter
}

// NewMetrics creates and registers every metric.
func NewMetrics() *Metrics {
	return &Metrics{
		httpRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buffertree_http_requests_total",
				Help: "Total number of HTTP requests to the monitoring server",
			},
			[]string{"method", "endpoint", "status_code"},
		),
		httpRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "buffertree_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		httpRequestsInFlight: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "buffertree_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
			[]string{"method", "endpoint"},
		),

		insertsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buffertree_inserts_total",
				Help: "Total number of update records inserted into the tree",
			},
			[]string{"status"},
		),
		flushesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buffertree_flushes_total",
				Help: "Total number of buffer control block flushes, by level",
			},
			[]string{"level", "status"},
		),
		flushDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "buffertree_flush_duration_seconds",
				Help:    "Flush duration in seconds, by level",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"level"},
		),
		bytesWritten: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "buffertree_bytes_written_total",
				Help: "Total bytes written to the backing store across all flushes",
			},
		),
		handoffQueueDepth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "buffertree_handoff_queue_depth",
				Help: "Number of filled slots currently queued for a downstream consumer",
			},
		),
		handoffQueueDropped: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "buffertree_handoff_queue_dropped_total",
				Help: "Total number of batches dropped because no consumer drained them before shutdown",
			},
		),

		sinkBatchesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "buffertree_sink_batches_total",
				Help: "Total number of batches applied by the demo downstream sink",
			},
		),
		sinkRecordsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "buffertree_sink_records_total",
				Help: "Total number of update records applied by the demo downstream sink",
			},
		),
	}
}

// RecordHTTPRequest records one completed HTTP request.
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordInsert records one Insert call's outcome.
func (m *Metrics) RecordInsert(success bool) {
	m.insertsTotal.WithLabelValues(statusLabel(success)).Inc()
}

// RecordFlush records one flushControlBlock invocation.
func (m *Metrics) RecordFlush(level int, success bool, duration time.Duration, bytes int) {
	lvl := strconv.Itoa(level)
	m.flushesTotal.WithLabelValues(lvl, statusLabel(success)).Inc()
	m.flushDuration.WithLabelValues(lvl).Observe(duration.Seconds())
	if success {
		m.bytesWritten.Add(float64(bytes))
	}
}

// SetHandoffQueueDepth updates the handoff queue depth gauge.
func (m *Metrics) SetHandoffQueueDepth(depth int) {
	m.handoffQueueDepth.Set(float64(depth))
}

// RecordHandoffQueueDropped records one batch dropped at shutdown.
func (m *Metrics) RecordHandoffQueueDropped() {
	m.handoffQueueDropped.Inc()
}

// RecordSinkApply records one sink batch application.
func (m *Metrics) RecordSinkApply(records int) {
	m.sinkBatchesTotal.Inc()
	m.sinkRecordsTotal.Add(float64(records))
}

func statusLabel(success bool) string {
	if success {
		return statusSuccess
	}
	return statusError
}

// InstrumentHandler wraps handler so every request updates the HTTP
// metrics above.
func (m *Metrics) InstrumentHandler(method, endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		gauge := m.httpRequestsInFlight.WithLabelValues(method, endpoint)
		gauge.Inc()
		defer gauge.Dec()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		handler(rw, r)

		m.RecordHTTPRequest(method, endpoint, rw.statusCode, time.Since(start))
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

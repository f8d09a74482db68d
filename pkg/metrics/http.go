package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTPMetrics provides observability for the skiff HTTP engine. The engine
// accepts a nil implementation and substitutes a no-op, so metrics never
// become a hard dependency of the serving path.
type HTTPMetrics interface {
	// RecordRequest records one finished exchange with its method, the
	// status announced to the client, and the processing duration.
	RecordRequest(method string, status int, duration time.Duration)

	// RecordBytesSent records response body bytes written to a client.
	RecordBytesSent(bytes int64)

	// RecordAbort records an exchange cut short by client disconnect.
	RecordAbort()

	// SetActiveConnections updates the current connection count.
	SetActiveConnections(count int32)
}

// NewHTTPMetrics creates a Prometheus-backed HTTPMetrics instance, or a
// no-op one if InitRegistry has not been called.
func NewHTTPMetrics() HTTPMetrics {
	if !IsEnabled() {
		return NewNoopHTTPMetrics()
	}

	reg := GetRegistry()

	return &httpMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "skiff_http_requests_total",
				Help: "Total number of HTTP exchanges by method and status",
			},
			[]string{"method", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "skiff_http_request_duration_milliseconds",
				Help: "Duration of HTTP exchanges in milliseconds",
				Buckets: []float64{
					1,     // 1ms
					10,    // 10ms
					100,   // 100ms
					1000,  // 1s
					10000, // 10s
				},
			},
			[]string{"method"},
		),
		bytesSent: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "skiff_http_bytes_sent_total",
				Help: "Total response body bytes sent to clients",
			},
		),
		abortsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "skiff_http_aborted_requests_total",
				Help: "Total exchanges terminated by client disconnect",
			},
		),
		activeConnections: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "skiff_http_active_connections",
				Help: "Current number of open client connections",
			},
		),
	}
}

type httpMetrics struct {
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	bytesSent         prometheus.Counter
	abortsTotal       prometheus.Counter
	activeConnections prometheus.Gauge
}

func (m *httpMetrics) RecordRequest(method string, status int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method).Observe(float64(duration.Milliseconds()))
}

func (m *httpMetrics) RecordBytesSent(bytes int64) {
	m.bytesSent.Add(float64(bytes))
}

func (m *httpMetrics) RecordAbort() {
	m.abortsTotal.Inc()
}

func (m *httpMetrics) SetActiveConnections(count int32) {
	m.activeConnections.Set(float64(count))
}

// NewNoopHTTPMetrics returns an HTTPMetrics that discards everything.
func NewNoopHTTPMetrics() HTTPMetrics {
	return noopHTTPMetrics{}
}

type noopHTTPMetrics struct{}

func (noopHTTPMetrics) RecordRequest(string, int, time.Duration) {}
func (noopHTTPMetrics) RecordBytesSent(int64)                    {}
func (noopHTTPMetrics) RecordAbort()                             {}
func (noopHTTPMetrics) SetActiveConnections(int32)               {}

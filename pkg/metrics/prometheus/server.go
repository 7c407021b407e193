package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/0xkonsti/chatd/pkg/metrics"
	"github.com/0xkonsti/chatd/pkg/server"
)

// serverMetrics is the Prometheus implementation of server.MetricsRecorder.
type serverMetrics struct {
	connectionsAccepted    prometheus.Counter
	connectionsRejected    prometheus.Counter
	connectionsClosed      prometheus.Counter
	connectionsForceClosed prometheus.Counter
	activeConnections      prometheus.Gauge
	frames                 *prometheus.CounterVec
	frameErrors            prometheus.Counter
	backpressure           prometheus.Counter
	queueDepth             prometheus.Gauge
	handlerDuration        *prometheus.HistogramVec
}

// NewServerMetrics creates a new Prometheus-backed server metrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called). The
// engine treats a nil recorder as a no-op.
func NewServerMetrics() server.MetricsRecorder {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &serverMetrics{
		connectionsAccepted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "chatd_connections_accepted_total",
				Help: "Total number of accepted client connections",
			},
		),
		connectionsRejected: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "chatd_connections_rejected_total",
				Help: "Total number of connections rejected at the connection ceiling",
			},
		),
		connectionsClosed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "chatd_connections_closed_total",
				Help: "Total number of closed client connections",
			},
		),
		connectionsForceClosed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "chatd_connections_force_closed_total",
				Help: "Total number of connections force-closed after the shutdown grace period",
			},
		),
		activeConnections: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "chatd_active_connections",
				Help: "Current number of active client connections",
			},
		),
		frames: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatd_frames_total",
				Help: "Total number of dispatched frames by message type",
			},
			[]string{"message_type"},
		),
		frameErrors: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "chatd_frame_errors_total",
				Help: "Total number of framing errors that closed a session",
			},
		),
		backpressure: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "chatd_backpressure_total",
				Help: "Total number of frames refused because the dispatch queue was full",
			},
		),
		queueDepth: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "chatd_dispatch_queue_depth",
				Help: "Current number of frames waiting in the dispatch queue",
			},
		),
		handlerDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "chatd_handler_duration_seconds",
				Help: "Duration of frame handler executions by message type",
				Buckets: []float64{
					0.0001, // 100us - presence lookups
					0.0005,
					0.001,
					0.005,
					0.01,
					0.05,
					0.1, // bcrypt verification lands here
					0.5,
					1,
				},
			},
			[]string{"message_type"},
		),
	}
}

func (m *serverMetrics) RecordConnectionAccepted() {
	if m == nil {
		return
	}
	m.connectionsAccepted.Inc()
}

func (m *serverMetrics) RecordConnectionRejected() {
	if m == nil {
		return
	}
	m.connectionsRejected.Inc()
}

func (m *serverMetrics) RecordConnectionClosed() {
	if m == nil {
		return
	}
	m.connectionsClosed.Inc()
}

func (m *serverMetrics) RecordConnectionForceClosed() {
	if m == nil {
		return
	}
	m.connectionsForceClosed.Inc()
}

func (m *serverMetrics) SetActiveConnections(count int32) {
	if m == nil {
		return
	}
	m.activeConnections.Set(float64(count))
}

func (m *serverMetrics) RecordFrame(messageType string) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(messageType).Inc()
}

func (m *serverMetrics) RecordFrameError() {
	if m == nil {
		return
	}
	m.frameErrors.Inc()
}

func (m *serverMetrics) RecordBackpressure() {
	if m == nil {
		return
	}
	m.backpressure.Inc()
}

func (m *serverMetrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

func (m *serverMetrics) ObserveHandlerDuration(messageType string, seconds float64) {
	if m == nil {
		return
	}
	m.handlerDuration.WithLabelValues(messageType).Observe(seconds)
}

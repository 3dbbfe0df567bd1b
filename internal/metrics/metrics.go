package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coderoom_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coderoom_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Connection metrics
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coderoom_connections_active",
			Help: "Currently registered websocket connections",
		},
	)

	ConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coderoom_connections_total",
			Help: "Total websocket connections accepted",
		},
	)

	// Room engine metrics
	RoomsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coderoom_rooms_active",
			Help: "Rooms currently held in memory",
		},
	)

	MessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coderoom_messages_received_total",
			Help: "Inbound messages by type",
		},
		[]string{"type"},
	)

	ProtocolErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coderoom_protocol_errors_total",
			Help: "Inbound frames rejected before dispatch",
		},
	)

	BroadcastDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coderoom_broadcast_deliveries_total",
			Help: "Per-recipient broadcast outcomes",
		},
		[]string{"result"}, // "delivered" or "failed"
	)

	DroppedFrames = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coderoom_dropped_frames_total",
			Help: "Outbound frames dropped because a send queue was full",
		},
	)

	// Execution sandbox metrics
	ExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coderoom_executions_total",
			Help: "Sandbox runs by outcome",
		},
		[]string{"outcome"}, // "success", "error", "timeout", "unavailable"
	)

	ExecutionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "coderoom_execution_duration_seconds",
			Help:    "Sandbox run wall-clock duration",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	ExecutionsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coderoom_executions_in_flight",
			Help: "Sandbox runs currently executing",
		},
	)

	// AI collaborator metrics
	AIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coderoom_ai_requests_total",
			Help: "Text-completion requests by action",
		},
		[]string{"action"},
	)

	AILatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "coderoom_ai_latency_seconds",
			Help:    "Text-completion round-trip latency",
			Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	// Reaper metrics
	RoomsReaped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coderoom_rooms_reaped_total",
			Help: "Rooms retired by the periodic sweep",
		},
	)

	ConnectionsReaped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coderoom_connections_reaped_total",
			Help: "Stale connections cleaned by the periodic sweep",
		},
	)

	// Persistence metrics
	PersistenceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coderoom_persistence_failures_total",
			Help: "Best-effort persistence write failures",
		},
		[]string{"op"},
	)

	SnapshotDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "coderoom_snapshot_duration_seconds",
			Help:    "File snapshot write duration",
			Buckets: []float64{.001, .005, .01, .05, .1, .5},
		},
	)
)

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatroom_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// ModerationActionsTotal counts moderation actions by action and outcome.
	ModerationActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatroom_moderation_actions_total",
		Help: "Total number of moderation actions by action and outcome",
	}, []string{"action", "outcome"})

	// AuthorizationDenials counts gate refusals by reason.
	AuthorizationDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatroom_authorization_denials_total",
		Help: "Total number of authorization denials by reason",
	}, []string{"reason"})

	// AuditWriteFailures counts audit records that could not be persisted.
	AuditWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatroom_audit_write_failures_total",
		Help: "Total number of moderation log entries that failed to persist",
	})

	// EnforcementOutcomes counts enforcement decisions on new messages.
	EnforcementOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatroom_enforcement_outcomes_total",
		Help: "Total number of enforcement decisions by outcome",
	}, []string{"outcome"})

	// MessagesDeleted counts messages removed by bulk delete or enforcement.
	MessagesDeleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatroom_messages_deleted_total",
		Help: "Total number of messages deleted by source",
	}, []string{"source"})

	// EventDeliveries counts message-created event deliveries by backend and result.
	EventDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatroom_event_deliveries_total",
		Help: "Total number of event deliveries by backend and result",
	}, []string{"backend", "result"})

	// WebSocketConnectionsTotal is the gauge of total WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chatroom_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatroom_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"reason"})

	// DBQueryDuration observes SQL statement latency by verb.
	DBQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chatroom_db_query_duration_seconds",
		Help:    "SQL statement latency by verb",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"verb"})
)

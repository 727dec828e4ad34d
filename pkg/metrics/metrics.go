// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// BackendCallDuration tracks latency of calls into the hosted backend.
	BackendCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backend_call_duration_seconds",
			Help:    "Hosted backend call duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"op", "status"},
	)

	// SSEConnectionsActive tracks active SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	// SessionsActive tracks mounted screen sessions by kind.
	SessionsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sessions_active",
			Help: "Number of mounted screen sessions",
		},
		[]string{"kind"},
	)

	// FeedSubscriptionsActive tracks change-feed channels in the Active state.
	FeedSubscriptionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feed_subscriptions_active",
			Help: "Number of active change-feed subscriptions",
		},
	)

	// FeedSubscriptionErrors tracks channels that failed to establish.
	FeedSubscriptionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_subscription_errors_total",
			Help: "Change-feed subscriptions that failed",
		},
		[]string{"table"},
	)

	// FeedEventsTotal tracks change events routed by the multiplexer.
	FeedEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_events_total",
			Help: "Change events handled by the multiplexer",
		},
		[]string{"table", "type", "outcome"},
	)

	// ConversationsTotal tracks conversations created.
	ConversationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conversations_total",
			Help: "Total conversations created",
		},
	)

	// MessagesTotal tracks message sends by outcome.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Total messages sent",
		},
		[]string{"status"},
	)

	// OptimisticRollbacks tracks provisional messages removed after a failed send.
	OptimisticRollbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "optimistic_rollbacks_total",
			Help: "Provisional messages rolled back after a failed send",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordBackendCall records the latency of one backend operation.
func RecordBackendCall(op string, err error, duration float64) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	BackendCallDuration.WithLabelValues(op, status).Observe(duration)
}

// RecordSend records the outcome of an optimistic send.
func RecordSend(err error) {
	if err != nil {
		MessagesTotal.WithLabelValues("failed").Inc()
		OptimisticRollbacks.Inc()
		return
	}
	MessagesTotal.WithLabelValues("confirmed").Inc()
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}

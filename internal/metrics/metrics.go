// Package metrics provides Prometheus metrics for the avatar SDK.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveSessions tracks the number of session managers held by a registry.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "avatar_sdk_active_sessions",
			Help: "Number of session managers currently registered",
		},
	)

	// SessionsCreated tracks the total number of session managers created.
	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "avatar_sdk_sessions_created_total",
			Help: "Total number of session managers created",
		},
	)

	// SessionsRemoved tracks the total number of session managers torn down.
	SessionsRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "avatar_sdk_sessions_removed_total",
			Help: "Total number of session managers removed from the registry",
		},
	)

	// EventsDispatched tracks emitted domain events by kind. One increment
	// per emit with at least one registered handler, not per handler.
	EventsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avatar_sdk_events_dispatched_total",
			Help: "Total number of domain events emitted with at least one registered handler",
		},
		[]string{"kind"},
	)

	// PayloadsDropped tracks data-channel payloads discarded during decoding.
	PayloadsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "avatar_sdk_payloads_dropped_total",
			Help: "Total number of data-channel payloads dropped as malformed or unknown",
		},
	)

	// StateTransitions tracks session state changes.
	StateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avatar_sdk_session_state_transitions_total",
			Help: "Total number of session state transitions",
		},
		[]string{"from_state", "to_state"},
	)
)

// RecordSessionCreated increments session creation metrics.
func RecordSessionCreated() {
	SessionsCreated.Inc()
	ActiveSessions.Inc()
}

// RecordSessionRemoved increments session teardown metrics.
func RecordSessionRemoved() {
	SessionsRemoved.Inc()
	ActiveSessions.Dec()
}

// RecordEventDispatched records one emitted domain event.
func RecordEventDispatched(kind string) {
	EventsDispatched.WithLabelValues(kind).Inc()
}

// RecordPayloadDropped records a discarded data-channel payload.
func RecordPayloadDropped() {
	PayloadsDropped.Inc()
}

// RecordStateTransition records a session state change.
func RecordStateTransition(fromState, toState string) {
	StateTransitions.WithLabelValues(fromState, toState).Inc()
}

// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

// Package metrics holds the Prometheus collectors for the realtime client
// and the development broker. Collectors are registered on the default
// registry through promauto and exposed by the broker at GET /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Connection states reported by ClientConnectionState.
const (
	ConnStateInactive     = 0
	ConnStateConnecting   = 1
	ConnStateConnected    = 2
	ConnStateReconnecting = 3
)

var (
	// Realtime client metrics

	ClientConnectionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agora_client_connection_state",
			Help: "Shared connection state (0=inactive, 1=connecting, 2=connected, 3=reconnecting)",
		},
	)

	ClientConnectAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agora_client_connect_attempts_total",
			Help: "Total number of broker connection attempts",
		},
	)

	ClientConnectFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agora_client_connect_failures_total",
			Help: "Total number of failed broker connection attempts",
		},
		[]string{"stage"}, // "dial", "handshake"
	)

	ClientDisconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agora_client_disconnects_total",
			Help: "Total number of established sessions that were lost",
		},
	)

	ClientFramesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agora_client_frames_received_total",
			Help: "Total number of STOMP frames received by the client",
		},
		[]string{"command"},
	)

	ClientFramesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agora_client_frames_sent_total",
			Help: "Total number of STOMP frames sent by the client",
		},
		[]string{"command"},
	)

	ClientDecodeFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agora_client_decode_fallbacks_total",
			Help: "Total number of MESSAGE bodies delivered as raw strings because they were not JSON",
		},
	)

	ClientActiveSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agora_client_active_subscriptions",
			Help: "Number of topics with a live broker subscription",
		},
	)

	ClientPublishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agora_client_publishes_total",
			Help: "Total number of outbound chat messages by result",
		},
		[]string{"result"}, // "sent", "invalid", "error"
	)

	BridgeEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agora_bridge_events_total",
			Help: "Total number of notifications handled by the UI bridge",
		},
		[]string{"outcome"}, // "emitted", "foreign_user", "error"
	)

	BusDroppedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agora_bus_dropped_events_total",
			Help: "Total number of UI events dropped because a listener's buffer was full",
		},
		[]string{"event"},
	)

	// Broker metrics

	BrokerSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agora_broker_sessions",
			Help: "Current number of STOMP sessions on the broker",
		},
	)

	BrokerFrames = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agora_broker_frames_total",
			Help: "Total number of STOMP frames handled by the broker",
		},
		[]string{"direction", "command"}, // direction: "in", "out"
	)

	BrokerDroppedFrames = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agora_broker_dropped_frames_total",
			Help: "Total number of frames dropped because a session send buffer was full",
		},
	)

	BrokerProtocolErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agora_broker_protocol_errors_total",
			Help: "Total number of ERROR frames sent to clients",
		},
	)

	RelayPublishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agora_relay_publishes_total",
			Help: "Total number of relay publishes by result",
		},
		[]string{"mode", "result"}, // result: "ok", "error", "rejected"
	)

	RelayDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agora_relay_deliveries_total",
			Help: "Total number of relayed messages fanned out to local subscribers",
		},
		[]string{"mode"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agora_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agora_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agora_api_requests_total",
			Help: "Total number of broker HTTP API requests",
		},
		[]string{"method", "route", "status"},
	)
)

// SetClientConnectionState records the shared connection state.
func SetClientConnectionState(state int) {
	ClientConnectionState.Set(float64(state))
}

// RecordConnectAttempt records one connection attempt and, if err is
// non-nil, the stage it failed at.
func RecordConnectAttempt(stage string, err error) {
	ClientConnectAttempts.Inc()
	if err != nil {
		ClientConnectFailures.WithLabelValues(stage).Inc()
	}
}

// RecordClientFrame records a client-side frame in the given direction.
func RecordClientFrame(inbound bool, command string) {
	if inbound {
		ClientFramesReceived.WithLabelValues(command).Inc()
		return
	}
	ClientFramesSent.WithLabelValues(command).Inc()
}

// RecordPublish records the outcome of an outbound chat message.
func RecordPublish(result string) {
	ClientPublishes.WithLabelValues(result).Inc()
}

// RecordBridgeEvent records what the UI bridge did with a notification.
func RecordBridgeEvent(outcome string) {
	BridgeEvents.WithLabelValues(outcome).Inc()
}

// RecordBusDrop records a UI event a slow listener did not receive.
func RecordBusDrop(event string) {
	BusDroppedEvents.WithLabelValues(event).Inc()
}

// RecordBrokerFrame records a broker-side frame in the given direction.
func RecordBrokerFrame(inbound bool, command string) {
	direction := "out"
	if inbound {
		direction = "in"
	}
	BrokerFrames.WithLabelValues(direction, command).Inc()
}

// TrackBrokerSession increments or decrements the broker session gauge.
func TrackBrokerSession(inc bool) {
	if inc {
		BrokerSessions.Inc()
	} else {
		BrokerSessions.Dec()
	}
}

// RecordRelayPublish records a relay publish result for the given relay mode.
func RecordRelayPublish(mode, result string) {
	RelayPublishes.WithLabelValues(mode, result).Inc()
}

// RecordRelayDelivery records one relayed message fanned out locally.
func RecordRelayDelivery(mode string) {
	RelayDeliveries.WithLabelValues(mode).Inc()
}

// RecordCircuitBreakerTransition updates breaker state gauges.
// States use gobreaker names: "closed", "half-open", "open".
func RecordCircuitBreakerTransition(name, from, to string) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
}

func breakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}

// RecordAPIRequest records a broker HTTP API request.
func RecordAPIRequest(method, route, status string) {
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
}

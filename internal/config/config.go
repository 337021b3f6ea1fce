// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

// Package config loads Agora configuration with Koanf.
//
// Configuration is layered, lowest priority first:
//
//  1. Built-in defaults (defaultConfig)
//  2. Optional YAML file (CONFIG_PATH, config.yaml, /etc/agora/config.yaml)
//  3. Environment variables mapped through envTransformFunc
//
// The realtime section configures the client side (shared STOMP connection,
// publisher pacing). The broker and nats sections configure the development
// broker in cmd/agora-broker.
package config

import "time"

// Config holds all application configuration.
type Config struct {
	Realtime   RealtimeConfig   `koanf:"realtime"`
	Broker     BrokerConfig     `koanf:"broker"`
	NATS       NATSConfig       `koanf:"nats"`
	Logging    LoggingConfig    `koanf:"logging"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
}

// RealtimeConfig configures the client-side real-time event delivery layer.
//
// Environment Variables:
//   - API_BASE_URL: HTTP API base the broker URL is derived from (default: http://localhost:3857)
//   - BROKER_PATH: path suffix of the WebSocket endpoint (default: /ws)
//   - BROKER_URL: explicit ws:// or wss:// URL, bypasses derivation
//   - RECONNECT_DELAY: fixed delay between connection attempts (default: 5s)
//   - STOMP_HEARTBEAT_OUTGOING / STOMP_HEARTBEAT_INCOMING (default: 10s)
//   - STOMP_TOPIC_PREFIX (default: /topic/), STOMP_APP_PREFIX (default: /app/)
//   - STOMP_LOGIN, STOMP_PASSCODE, STOMP_VHOST
//   - PUBLISH_RATE (messages/sec, 0 disables pacing), PUBLISH_BURST
type RealtimeConfig struct {
	APIBaseURL string `koanf:"api_base_url"`
	BrokerPath string `koanf:"broker_path"`

	// BrokerURL overrides the URL derived from APIBaseURL when set.
	BrokerURL string `koanf:"broker_url"`

	ReconnectDelay time.Duration `koanf:"reconnect_delay"`

	// Heart-beat intervals offered in the CONNECT frame. Zero disables
	// that direction.
	HeartbeatOutgoing time.Duration `koanf:"heartbeat_outgoing"`
	HeartbeatIncoming time.Duration `koanf:"heartbeat_incoming"`

	TopicPrefix string `koanf:"topic_prefix"`
	AppPrefix   string `koanf:"app_prefix"`

	// Optional STOMP credentials for brokers that require them.
	Login       string `koanf:"login"`
	Passcode    string `koanf:"passcode"`
	VirtualHost string `koanf:"virtual_host"`

	PublishRate  float64 `koanf:"publish_rate"`
	PublishBurst int     `koanf:"publish_burst"`
}

// BrokerConfig configures the development STOMP broker.
//
// Environment Variables:
//   - BROKER_HOST (default: 0.0.0.0), BROKER_PORT (default: 3857)
//   - BROKER_ALLOWED_ORIGINS: comma-separated CORS/WebSocket origins (default: *)
//   - BROKER_RATE_LIMIT_REQUESTS, BROKER_RATE_LIMIT_WINDOW
//   - BROKER_RELAY_MODE: memory or nats (default: memory)
//   - BROKER_SEND_BUFFER: per-session outbound frame buffer (default: 256)
type BrokerConfig struct {
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port"`
	AllowedOrigins    []string      `koanf:"allowed_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RelayMode         string        `koanf:"relay_mode"`
	SendBuffer        int           `koanf:"send_buffer"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
}

// Relay modes for BrokerConfig.RelayMode.
const (
	RelayModeMemory = "memory"
	RelayModeNATS   = "nats"
)

// NATSConfig configures the NATS relay used when BrokerConfig.RelayMode is "nats".
//
// Environment Variables:
//   - NATS_URL (default: nats://127.0.0.1:4222)
//   - NATS_EMBEDDED: run an in-process nats-server (default: true)
//   - NATS_HOST, NATS_PORT: embedded server listen address
//   - NATS_SUBJECT: relay subject (default: agora.relay)
//   - NATS_MAX_RECONNECTS, NATS_RECONNECT_WAIT
type NATSConfig struct {
	URL            string        `koanf:"url"`
	EmbeddedServer bool          `koanf:"embedded_server"`
	Host           string        `koanf:"host"`
	Port           int           `koanf:"port"`
	Subject        string        `koanf:"subject"`
	MaxReconnects  int           `koanf:"max_reconnects"`
	ReconnectWait  time.Duration `koanf:"reconnect_wait"`
}

// LoggingConfig holds logging settings for zerolog.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: true/false - include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// SupervisorConfig holds suture tree settings for the broker process.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold"`
	FailureDecay     float64       `koanf:"failure_decay"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}

// Load is the package entry point; it delegates to LoadWithKoanf.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/agora/config.yaml",
	"/etc/agora/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Realtime: RealtimeConfig{
			APIBaseURL:        "http://localhost:3857",
			BrokerPath:        "/ws",
			ReconnectDelay:    5 * time.Second,
			HeartbeatOutgoing: 10 * time.Second,
			HeartbeatIncoming: 10 * time.Second,
			TopicPrefix:       "/topic/",
			AppPrefix:         "/app/",
			PublishRate:       20,
			PublishBurst:      40,
		},
		Broker: BrokerConfig{
			Host:              "0.0.0.0",
			Port:              3857,
			AllowedOrigins:    []string{"*"},
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
			RelayMode:         RelayModeMemory,
			SendBuffer:        256,
			ShutdownTimeout:   10 * time.Second,
		},
		NATS: NATSConfig{
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: true,
			Host:           "127.0.0.1",
			Port:           4222,
			Subject:        "agora.relay",
			MaxReconnects:  -1,
			ReconnectWait:  2 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf with layered sources:
//
//  1. Defaults: built-in values from defaultConfig
//  2. Config File: optional YAML config file (if exists)
//  3. Environment Variables: override any mapped setting
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// API_BASE_URL -> realtime.api_base_url, NATS_SUBJECT -> nats.subject
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file found, or "" if none exists.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths are parsed as comma-separated slices.
var sliceConfigPaths = []string{
	"broker.allowed_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars arrive as strings while YAML already yields slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) == 0 {
			continue
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
// Unmapped variables are ignored so unrelated environment does not leak into config.
var envMappings = map[string]string{
	"api_base_url":             "realtime.api_base_url",
	"broker_path":              "realtime.broker_path",
	"broker_url":               "realtime.broker_url",
	"reconnect_delay":          "realtime.reconnect_delay",
	"stomp_heartbeat_outgoing": "realtime.heartbeat_outgoing",
	"stomp_heartbeat_incoming": "realtime.heartbeat_incoming",
	"stomp_topic_prefix":       "realtime.topic_prefix",
	"stomp_app_prefix":         "realtime.app_prefix",
	"stomp_login":              "realtime.login",
	"stomp_passcode":           "realtime.passcode",
	"stomp_vhost":              "realtime.virtual_host",
	"publish_rate":             "realtime.publish_rate",
	"publish_burst":            "realtime.publish_burst",

	"broker_host":                "broker.host",
	"broker_port":                "broker.port",
	"broker_allowed_origins":     "broker.allowed_origins",
	"broker_rate_limit_requests": "broker.rate_limit_requests",
	"broker_rate_limit_window":   "broker.rate_limit_window",
	"broker_relay_mode":          "broker.relay_mode",
	"broker_send_buffer":         "broker.send_buffer",
	"broker_shutdown_timeout":    "broker.shutdown_timeout",

	"nats_url":            "nats.url",
	"nats_embedded":       "nats.embedded_server",
	"nats_host":           "nats.host",
	"nats_port":           "nats.port",
	"nats_subject":        "nats.subject",
	"nats_max_reconnects": "nats.max_reconnects",
	"nats_reconnect_wait": "nats.reconnect_wait",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"supervisor_failure_threshold": "supervisor.failure_threshold",
	"supervisor_failure_decay":     "supervisor.failure_decay",
	"supervisor_failure_backoff":   "supervisor.failure_backoff",
	"supervisor_shutdown_timeout":  "supervisor.shutdown_timeout",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - API_BASE_URL -> realtime.api_base_url
//   - BROKER_RELAY_MODE -> broker.relay_mode
//   - LOG_LEVEL -> logging.level
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	minReconnectDelay    = 100 * time.Millisecond
	maxReconnectDelay    = 5 * time.Minute
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour
)

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

var validLogFormats = map[string]bool{"json": true, "console": true}

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateRealtime(); err != nil {
		return err
	}
	if err := c.validateBroker(); err != nil {
		return err
	}
	if err := c.validateNATS(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateRealtime() error {
	r := &c.Realtime

	if r.BrokerURL != "" {
		if err := validateWebSocketURL(r.BrokerURL, "BROKER_URL"); err != nil {
			return err
		}
	} else {
		if err := validateHTTPURL(r.APIBaseURL, "API_BASE_URL"); err != nil {
			return err
		}
		if !strings.HasPrefix(r.BrokerPath, "/") {
			return fmt.Errorf("BROKER_PATH must start with '/', got: %q", r.BrokerPath)
		}
	}

	if r.ReconnectDelay < minReconnectDelay || r.ReconnectDelay > maxReconnectDelay {
		return fmt.Errorf("RECONNECT_DELAY must be between %v and %v", minReconnectDelay, maxReconnectDelay)
	}
	if r.HeartbeatOutgoing < 0 || r.HeartbeatIncoming < 0 {
		return fmt.Errorf("STOMP heart-beat intervals must not be negative")
	}
	if err := validateDestinationPrefix(r.TopicPrefix, "STOMP_TOPIC_PREFIX"); err != nil {
		return err
	}
	if err := validateDestinationPrefix(r.AppPrefix, "STOMP_APP_PREFIX"); err != nil {
		return err
	}
	if r.PublishRate < 0 {
		return fmt.Errorf("PUBLISH_RATE must not be negative")
	}
	if r.PublishRate > 0 && r.PublishBurst < 1 {
		return fmt.Errorf("PUBLISH_BURST must be at least 1 when PUBLISH_RATE is set")
	}
	return nil
}

func validateDestinationPrefix(prefix, fieldName string) error {
	if !strings.HasPrefix(prefix, "/") || !strings.HasSuffix(prefix, "/") {
		return fmt.Errorf("%s must start and end with '/', got: %q", fieldName, prefix)
	}
	return nil
}

func (c *Config) validateBroker() error {
	b := &c.Broker

	if b.Port < 1 || b.Port > 65535 {
		return fmt.Errorf("BROKER_PORT must be between 1 and 65535")
	}
	if b.RateLimitRequests < minRateLimitRequests || b.RateLimitRequests > maxRateLimitRequests {
		return fmt.Errorf("BROKER_RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if b.RateLimitWindow < minRateLimitWindow || b.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("BROKER_RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	if b.RelayMode != RelayModeMemory && b.RelayMode != RelayModeNATS {
		return fmt.Errorf("BROKER_RELAY_MODE must be one of: %s, %s", RelayModeMemory, RelayModeNATS)
	}
	if b.SendBuffer < 1 {
		return fmt.Errorf("BROKER_SEND_BUFFER must be at least 1")
	}
	return nil
}

// validateNATS only applies when the broker relays through NATS.
func (c *Config) validateNATS() error {
	if c.Broker.RelayMode != RelayModeNATS {
		return nil
	}
	if !c.NATS.EmbeddedServer {
		if err := validateNATSURL(c.NATS.URL); err != nil {
			return fmt.Errorf("NATS_URL: %w", err)
		}
	}
	if c.NATS.Port < 1 || c.NATS.Port > 65535 {
		return fmt.Errorf("NATS_PORT must be between 1 and 65535")
	}
	if c.NATS.Subject == "" {
		return fmt.Errorf("NATS_SUBJECT is required")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if !validLogFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

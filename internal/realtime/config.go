// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

package realtime

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/agora/internal/config"
	"github.com/tomtom215/agora/internal/stomp"
)

const (
	writeWait        = 10 * time.Second
	handshakeTimeout = 10 * time.Second
	maxMessageSize   = 1024 * 1024 // 1 MB

	// Subprotocol offered during the WebSocket upgrade.
	stompSubprotocol = "v12.stomp"
)

// Dialer opens the WebSocket underneath a Connection.
// *websocket.Dialer satisfies it; tests substitute flaky dialers.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// Config configures a Connection.
type Config struct {
	// URL is the ws:// or wss:// broker endpoint.
	URL string

	// ReconnectDelay is the fixed wait between connection attempts.
	ReconnectDelay time.Duration

	// HeartBeat is offered in CONNECT; the broker's reply decides the
	// effective intervals.
	HeartBeat stomp.HeartBeat

	// Host is the STOMP virtual host; defaults to the URL host.
	Host     string
	Login    string
	Passcode string

	TopicPrefix string
	AppPrefix   string

	Dialer Dialer
}

// DefaultConfig returns the configuration of a local development broker.
func DefaultConfig() Config {
	return Config{
		URL:            "ws://localhost:3857/ws",
		ReconnectDelay: 5 * time.Second,
		HeartBeat:      stomp.HeartBeat{Outgoing: 10 * time.Second, Incoming: 10 * time.Second},
		TopicPrefix:    "/topic/",
		AppPrefix:      "/app/",
	}
}

// ConfigFromSettings builds a Config from the loaded realtime settings.
func ConfigFromSettings(rc *config.RealtimeConfig) (Config, error) {
	brokerURL, err := rc.ResolveBrokerURL()
	if err != nil {
		return Config{}, fmt.Errorf("resolve broker url: %w", err)
	}
	return Config{
		URL:            brokerURL,
		ReconnectDelay: rc.ReconnectDelay,
		HeartBeat:      stomp.HeartBeat{Outgoing: rc.HeartbeatOutgoing, Incoming: rc.HeartbeatIncoming},
		Host:           rc.VirtualHost,
		Login:          rc.Login,
		Passcode:       rc.Passcode,
		TopicPrefix:    rc.TopicPrefix,
		AppPrefix:      rc.AppPrefix,
	}, nil
}

// withDefaults fills zero values and validates the URL.
func (c Config) withDefaults() (Config, error) {
	def := DefaultConfig()
	if c.URL == "" {
		c.URL = def.URL
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return c, fmt.Errorf("parse broker url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return c, fmt.Errorf("broker url scheme must be ws or wss, got %q", u.Scheme)
	}
	if c.Host == "" {
		c.Host = u.Hostname()
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = def.ReconnectDelay
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = def.TopicPrefix
	}
	if c.AppPrefix == "" {
		c.AppPrefix = def.AppPrefix
	}
	if c.Dialer == nil {
		c.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
			Subprotocols:     []string{stompSubprotocol},
		}
	}
	return c, nil
}

// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

package config

import (
	"fmt"
	"net/url"
	"strconv"
)

// validateHTTPURL validates that a URL is properly formatted for HTTP/HTTPS services.
func validateHTTPURL(rawURL, fieldName string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}

	if parsedURL.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters, remove: ?%s", fieldName, parsedURL.RawQuery)
	}

	return nil
}

// validateWebSocketURL validates an explicit ws:// or wss:// broker URL.
func validateWebSocketURL(rawURL, fieldName string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}

	if parsedURL.Scheme != "ws" && parsedURL.Scheme != "wss" {
		return fmt.Errorf("%s scheme must be ws or wss, got: %s", fieldName, parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}

	return nil
}

// validateNATSURL validates that the NATS URL is properly formatted.
// Supports: nats://, tls://, ws:// and wss:// schemes.
func validateNATSURL(rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}

	validSchemes := map[string]bool{"nats": true, "tls": true, "ws": true, "wss": true}
	if !validSchemes[parsedURL.Scheme] {
		return fmt.Errorf("scheme must be nats, tls, ws, or wss, got: %s", parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("host is required (e.g., localhost:4222)")
	}

	return nil
}

// DeriveBrokerURL maps an HTTP API base URL to the broker WebSocket URL:
// http becomes ws, https becomes wss, and the path is replaced by brokerPath.
//
//	DeriveBrokerURL("https://forum.example.com/api", "/ws") // wss://forum.example.com/ws
func DeriveBrokerURL(apiBaseURL, brokerPath string) (string, error) {
	u, err := url.Parse(apiBaseURL)
	if err != nil {
		return "", fmt.Errorf("parse api base url: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported api base url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("api base url %q has no host", apiBaseURL)
	}

	u.Path = brokerPath
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// ResolveBrokerURL returns the WebSocket URL the realtime client dials:
// BrokerURL when set, otherwise the URL derived from APIBaseURL.
func (r *RealtimeConfig) ResolveBrokerURL() (string, error) {
	if r.BrokerURL != "" {
		return r.BrokerURL, nil
	}
	return DeriveBrokerURL(r.APIBaseURL, r.BrokerPath)
}

// ListenAddr returns host:port for the broker HTTP server.
func (b *BrokerConfig) ListenAddr() string {
	return b.Host + ":" + strconv.Itoa(b.Port)
}

// EmbeddedClientURL returns the nats:// URL of the embedded server.
func (n *NATSConfig) EmbeddedClientURL() string {
	return "nats://" + n.Host + ":" + strconv.Itoa(n.Port)
}

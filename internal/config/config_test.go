// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

package config

import "testing"

func TestDeriveBrokerURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		base    string
		path    string
		want    string
		wantErr bool
	}{
		{"http to ws", "http://localhost:3857", "/ws", "ws://localhost:3857/ws", false},
		{"https to wss", "https://forum.example.com", "/ws", "wss://forum.example.com/ws", false},
		{"path replaced", "https://forum.example.com/api/v1", "/ws", "wss://forum.example.com/ws", false},
		{"query dropped", "http://localhost:8080/?x=1", "/stomp", "ws://localhost:8080/stomp", false},
		{"already ws", "ws://localhost:8080", "/ws", "ws://localhost:8080/ws", false},
		{"unsupported scheme", "ftp://localhost", "/ws", "", true},
		{"missing host", "http://", "/ws", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := DeriveBrokerURL(tt.base, tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DeriveBrokerURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("DeriveBrokerURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveBrokerURL_Override(t *testing.T) {
	t.Parallel()

	r := RealtimeConfig{
		APIBaseURL: "http://ignored:1",
		BrokerPath: "/ws",
		BrokerURL:  "wss://broker.example.com/stomp",
	}
	got, err := r.ResolveBrokerURL()
	if err != nil {
		t.Fatal(err)
	}
	if got != "wss://broker.example.com/stomp" {
		t.Errorf("ResolveBrokerURL() = %q", got)
	}
}

func TestValidateNATSURL(t *testing.T) {
	t.Parallel()

	valid := []string{"nats://localhost:4222", "tls://nats.example.com:4222", "ws://127.0.0.1:8080"}
	for _, u := range valid {
		if err := validateNATSURL(u); err != nil {
			t.Errorf("validateNATSURL(%q) error = %v", u, err)
		}
	}

	invalid := []string{"http://localhost:4222", "nats://", "localhost:4222"}
	for _, u := range invalid {
		if err := validateNATSURL(u); err == nil {
			t.Errorf("validateNATSURL(%q) expected error", u)
		}
	}
}

func TestValidate_NATSOnlyWhenRelayModeNATS(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.NATS.URL = "not a url"
	cfg.NATS.EmbeddedServer = false
	if err := cfg.Validate(); err != nil {
		t.Errorf("NATS settings must be ignored in memory mode: %v", err)
	}

	cfg.Broker.RelayMode = RelayModeNATS
	if err := cfg.Validate(); err == nil {
		t.Error("expected NATS_URL error in nats mode")
	}
}

func TestValidate_PublishPacing(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.Realtime.PublishRate = 0
	cfg.Realtime.PublishBurst = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled pacing should validate: %v", err)
	}

	cfg.Realtime.PublishRate = 5
	if err := cfg.Validate(); err == nil {
		t.Error("expected PUBLISH_BURST error")
	}
}

func TestListenAddrs(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	if got := cfg.Broker.ListenAddr(); got != "0.0.0.0:3857" {
		t.Errorf("ListenAddr() = %q", got)
	}
	if got := cfg.NATS.EmbeddedClientURL(); got != "nats://127.0.0.1:4222" {
		t.Errorf("EmbeddedClientURL() = %q", got)
	}
}

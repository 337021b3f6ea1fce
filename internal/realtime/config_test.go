// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

package realtime

import (
	"testing"
	"time"

	"github.com/tomtom215/agora/internal/config"
)

func TestConfigFromSettings(t *testing.T) {
	t.Parallel()

	cfg, err := ConfigFromSettings(&config.RealtimeConfig{
		APIBaseURL:        "https://forum.example.com/api",
		BrokerPath:        "/ws",
		ReconnectDelay:    3 * time.Second,
		HeartbeatOutgoing: 4 * time.Second,
		HeartbeatIncoming: 8 * time.Second,
		TopicPrefix:       "/topic/",
		AppPrefix:         "/app/",
		Login:             "guest",
		Passcode:          "guest",
	})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.URL != "wss://forum.example.com/ws" {
		t.Errorf("URL = %q", cfg.URL)
	}
	if cfg.ReconnectDelay != 3*time.Second {
		t.Errorf("ReconnectDelay = %v", cfg.ReconnectDelay)
	}
	if cfg.HeartBeat.String() != "4000,8000" {
		t.Errorf("HeartBeat = %s", cfg.HeartBeat)
	}
	if cfg.Login != "guest" {
		t.Errorf("Login = %q", cfg.Login)
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Config{URL: "ws://broker.internal:15674/ws"}.withDefaults()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Host != "broker.internal" {
		t.Errorf("Host = %q, want the URL host", cfg.Host)
	}
	if cfg.ReconnectDelay != 5*time.Second {
		t.Errorf("ReconnectDelay = %v, want 5s", cfg.ReconnectDelay)
	}
	if cfg.TopicPrefix != "/topic/" || cfg.AppPrefix != "/app/" {
		t.Errorf("prefixes = %q %q", cfg.TopicPrefix, cfg.AppPrefix)
	}
	if cfg.Dialer == nil {
		t.Error("Dialer not defaulted")
	}

	if _, err := (Config{URL: "ftp://x"}).withDefaults(); err == nil {
		t.Error("expected scheme error")
	}
}

func TestTopics(t *testing.T) {
	t.Parallel()

	if got := UserTopic("u-7"); got != "user.u-7" {
		t.Errorf("UserTopic() = %q", got)
	}
	if got := ChatTopic("conv-42"); got != "chat.conv-42" {
		t.Errorf("ChatTopic() = %q", got)
	}
}

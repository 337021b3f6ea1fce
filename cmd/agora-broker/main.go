// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

// Command agora-broker runs a STOMP-over-WebSocket broker for developing and
// testing Agora clients.
//
// It serves /ws for STOMP sessions, relays SEND frames to subscribers
// (echoing /app/<topic> to /topic/<topic>), and accepts
// POST /api/notifications/{userID} to push per-user notifications.
//
// # Relay Modes
//
//	BROKER_RELAY_MODE=memory   single process, watermill gochannel (default)
//	BROKER_RELAY_MODE=nats     several brokers share one NATS subject
//
// In nats mode NATS_EMBEDDED=true (the default) starts an in-process
// nats-server, so one binary is enough:
//
//	BROKER_RELAY_MODE=nats ./agora-broker
//
// Two brokers sharing an external NATS:
//
//	BROKER_RELAY_MODE=nats NATS_EMBEDDED=false NATS_URL=nats://nats:4222 BROKER_PORT=3857 ./agora-broker
//	BROKER_RELAY_MODE=nats NATS_EMBEDDED=false NATS_URL=nats://nats:4222 BROKER_PORT=3858 ./agora-broker
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the supervisor tree: the HTTP server stops
// accepting requests, the hub closes every session, the relay closes and
// the embedded NATS server (if any) shuts down.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/agora/internal/api"
	"github.com/tomtom215/agora/internal/broker"
	"github.com/tomtom215/agora/internal/config"
	"github.com/tomtom215/agora/internal/logging"
	"github.com/tomtom215/agora/internal/supervisor"
	"github.com/tomtom215/agora/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("agora-broker failed")
	}
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: cfg.Supervisor.FailureThreshold,
		FailureDecay:     cfg.Supervisor.FailureDecay,
		FailureBackoff:   cfg.Supervisor.FailureBackoff,
		ShutdownTimeout:  cfg.Supervisor.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	hub := broker.NewHub()
	tree.AddTransportService(services.NewHubService(hub))

	relay, err := newRelay(cfg, hub, tree)
	if err != nil {
		return err
	}
	defer func() {
		if err := relay.Close(); err != nil {
			logging.Err(err).Msg("Error closing relay")
		}
	}()
	tree.AddMessagingService(relay)

	opts := broker.DefaultOptions()
	opts.TopicPrefix = cfg.Realtime.TopicPrefix
	opts.AppPrefix = cfg.Realtime.AppPrefix
	opts.SendBuffer = cfg.Broker.SendBuffer
	opts.CheckOrigin = broker.AllowOrigins(cfg.Broker.AllowedOrigins)
	stompBroker := broker.New(hub, relay, opts)

	mw := api.NewChiMiddleware(&api.ChiMiddlewareConfig{
		CORSAllowedOrigins: cfg.Broker.AllowedOrigins,
		CORSMaxAge:         86400,
		RateLimitRequests:  cfg.Broker.RateLimitRequests,
		RateLimitWindow:    cfg.Broker.RateLimitWindow,
	})
	handler := api.NewHandler(relay, hub, opts.TopicPrefix)
	router := api.NewRouter(handler, http.HandlerFunc(stompBroker.ServeWS), cfg.Realtime.BrokerPath, mw)

	server := &http.Server{
		Addr:              cfg.Broker.ListenAddr(),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Broker.ShutdownTimeout))

	logging.Info().
		Str("addr", server.Addr).
		Str("ws_path", cfg.Realtime.BrokerPath).
		Str("relay_mode", relay.Mode()).
		Strs("allowed_origins", cfg.Broker.AllowedOrigins).
		Msg("Starting agora-broker")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := <-tree.ServeBackground(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("agora-broker stopped")
	return nil
}

// newRelay builds the relay for cfg.Broker.RelayMode. In nats mode with
// an embedded server, the server is started here and its shutdown is
// handed to the messaging layer.
func newRelay(cfg *config.Config, hub *broker.Hub, tree *supervisor.SupervisorTree) (*broker.Relay, error) {
	relayCfg := broker.RelayConfig{Topic: cfg.NATS.Subject}

	switch cfg.Broker.RelayMode {
	case config.RelayModeNATS:
		natsURL := cfg.NATS.URL
		if cfg.NATS.EmbeddedServer {
			ns, err := broker.NewEmbeddedServer(broker.EmbeddedServerConfig{
				Host: cfg.NATS.Host,
				Port: cfg.NATS.Port,
			})
			if err != nil {
				return nil, fmt.Errorf("start embedded NATS: %w", err)
			}
			natsURL = ns.ClientURL()
			tree.AddMessagingService(services.NewEmbeddedNATSService(ns, cfg.Supervisor.ShutdownTimeout))
		}

		relay, err := broker.NewNATSRelay(hub, broker.NATSRelayConfig{
			RelayConfig:   relayCfg,
			URL:           natsURL,
			MaxReconnects: cfg.NATS.MaxReconnects,
			ReconnectWait: cfg.NATS.ReconnectWait,
		})
		if err != nil {
			return nil, fmt.Errorf("create NATS relay: %w", err)
		}
		logging.Info().Str("url", natsURL).Str("subject", cfg.NATS.Subject).Msg("NATS relay configured")
		return relay, nil

	default:
		return broker.NewMemoryRelay(hub, relayCfg), nil
	}
}

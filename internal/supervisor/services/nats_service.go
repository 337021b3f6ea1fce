// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

package services

import (
	"context"
	"errors"
	"time"

	"github.com/thejerf/suture/v4"
)

// ErrNATSServerStopped is returned when the embedded server is found not
// running. The server cannot be restarted in place, so the service also
// asks suture not to restart it.
var ErrNATSServerStopped = errors.New("embedded NATS server is not running")

// NATSServer is satisfied by *broker.EmbeddedServer.
type NATSServer interface {
	IsRunning() bool
	Shutdown(ctx context.Context) error
}

// EmbeddedNATSService owns the shutdown of an embedded NATS server that
// was started before the tree so relays can connect during startup.
type EmbeddedNATSService struct {
	server          NATSServer
	shutdownTimeout time.Duration
	checkInterval   time.Duration
	name            string
}

// NewEmbeddedNATSService wraps server.
func NewEmbeddedNATSService(server NATSServer, shutdownTimeout time.Duration) *EmbeddedNATSService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &EmbeddedNATSService{
		server:          server,
		shutdownTimeout: shutdownTimeout,
		checkInterval:   5 * time.Second,
		name:            "embedded-nats",
	}
}

// Serve implements suture.Service. It polls IsRunning so a server that
// died on its own surfaces in the supervisor log.
func (s *EmbeddedNATSService) Serve(ctx context.Context) error {
	if !s.server.IsRunning() {
		return errors.Join(ErrNATSServerStopped, suture.ErrDoNotRestart)
	}

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
			defer cancel()
			if err := s.server.Shutdown(shutdownCtx); err != nil {
				return err
			}
			return ctx.Err()
		case <-ticker.C:
			if !s.server.IsRunning() {
				return errors.Join(ErrNATSServerStopped, suture.ErrDoNotRestart)
			}
		}
	}
}

func (s *EmbeddedNATSService) String() string {
	return s.name
}

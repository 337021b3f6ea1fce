// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

package realtime

import (
	"context"
	"sync"

	"github.com/tomtom215/agora/internal/logging"
)

var (
	sharedMu   sync.Mutex
	sharedCfg  = DefaultConfig()
	sharedConn *Connection
	sharedOnce sync.Once

	sharedRegistryOnce  sync.Once
	sharedRegistry      *Registry
	sharedPublisherOnce sync.Once
	sharedPublisher     *Publisher
)

// SetSharedConfig sets the configuration GetConnection will use. It must be
// called before the first GetConnection; afterwards it returns
// ErrSharedConnectionStarted.
func SetSharedConfig(cfg Config) error {
	if _, err := cfg.withDefaults(); err != nil {
		return err
	}

	sharedMu.Lock()
	defer sharedMu.Unlock()
	if sharedConn != nil {
		return ErrSharedConnectionStarted
	}
	sharedCfg = cfg
	return nil
}

// GetConnection returns the process-wide connection, constructing it on the
// first call. Every call returns the same instance. It is inactive until the
// first EnsureConnected and has no teardown.
func GetConnection() *Connection {
	sharedOnce.Do(func() {
		sharedMu.Lock()
		defer sharedMu.Unlock()

		conn, err := NewConnection(sharedCfg)
		if err != nil {
			// SetSharedConfig validated sharedCfg, so only a zero-value
			// edit could land here.
			logging.Error().Err(err).Msg("invalid shared realtime config, using defaults")
			conn, _ = NewConnection(DefaultConfig())
		}
		conn.shared = true
		sharedConn = conn
	})
	return sharedConn
}

// EnsureConnected waits for the shared connection. See Connection.EnsureConnected.
func EnsureConnected(ctx context.Context) error {
	return GetConnection().EnsureConnected(ctx)
}

// DefaultRegistry returns the subscription registry bound to the shared connection.
func DefaultRegistry() *Registry {
	sharedRegistryOnce.Do(func() {
		sharedRegistry = NewRegistry(GetConnection())
	})
	return sharedRegistry
}

// Subscribe registers handler for topic on the shared connection.
// See Registry.Subscribe.
func Subscribe(topic string, handler Handler) *Subscription {
	return DefaultRegistry().Subscribe(topic, handler)
}

// DefaultPublisher returns the publisher bound to the shared connection.
func DefaultPublisher() *Publisher {
	sharedPublisherOnce.Do(func() {
		sharedPublisher = NewPublisher(GetConnection(), PublisherConfig{})
	})
	return sharedPublisher
}

// Send publishes a chat message on the shared connection. See Publisher.Send.
func Send(ctx context.Context, conversationID, senderID, recipientID, content, tempID string) (*OutboundMessage, error) {
	return DefaultPublisher().Send(ctx, conversationID, senderID, recipientID, content, tempID)
}

// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

package realtime

import (
	"errors"
)

// Client bundles the pieces a front-end needs: one connection with its
// registry, publisher, UI bus and notification bridge.
type Client struct {
	Conn      *Connection
	Registry  *Registry
	Publisher *Publisher
	Bus       *Bus
	Bridge    *Bridge
}

// NewClient builds a Client over conn. Connection state transitions are
// emitted on the bus as ConnectionStateEvent.
func NewClient(conn *Connection, pubCfg PublisherConfig) *Client {
	registry := NewRegistry(conn)
	bus := NewBus(nil)
	bus.BridgeConnectionState(conn)
	return &Client{
		Conn:      conn,
		Registry:  registry,
		Publisher: NewPublisher(conn, pubCfg),
		Bus:       bus,
		Bridge:    NewBridge(registry, bus),
	}
}

// Close tears down the bridge, the bus and, unless shared, the connection.
func (c *Client) Close() error {
	c.Bridge.Close()
	err := c.Conn.Close()
	if errors.Is(err, ErrSharedConnection) {
		err = nil
	}
	return errors.Join(err, c.Bus.Close())
}

// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

package broker

import (
	"context"
	"errors"
	"sync"
)

// Node is a self-contained single-process broker: hub, in-memory relay and
// WebSocket endpoint. agora-broker runs the same parts under a supervisor;
// Node is for embedding and tests.
type Node struct {
	Hub    *Hub
	Relay  *Relay
	Broker *Broker

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMemoryNode wires a hub to a memory relay.
func NewMemoryNode(opts Options) *Node {
	hub := NewHub()
	relay := NewMemoryRelay(hub, RelayConfig{})
	return &Node{
		Hub:    hub,
		Relay:  relay,
		Broker: New(hub, relay, opts),
	}
}

// Start runs the hub and relay in the background and returns once the relay
// is subscribed.
func (n *Node) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel

	n.wg.Add(2)
	go func() {
		defer n.wg.Done()
		_ = n.Hub.RunWithContext(runCtx)
	}()
	go func() {
		defer n.wg.Done()
		_ = n.Relay.Serve(runCtx)
	}()

	select {
	case <-n.Relay.Ready():
		return nil
	case <-ctx.Done():
		n.Stop()
		return ctx.Err()
	}
}

// Stop closes every session and the relay.
func (n *Node) Stop() error {
	if n.cancel != nil {
		n.cancel()
	}
	n.wg.Wait()
	err := n.Relay.Close()
	if errors.Is(err, ErrRelayClosed) {
		return nil
	}
	return err
}

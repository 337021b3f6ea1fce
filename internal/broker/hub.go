// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

package broker

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/tomtom215/agora/internal/logging"
	"github.com/tomtom215/agora/internal/metrics"
	"github.com/tomtom215/agora/internal/stomp"
)

// ShutdownReason identifies why the hub stopped.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Hub tracks live sessions and their subscriptions, and fans relayed
// messages out to them.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client

	mu      sync.RWMutex
	clients map[*Client]bool
	// topics maps destination -> client -> subscription ids on that client.
	topics map[string]map[*Client][]string

	done     chan struct{}
	doneOnce sync.Once
}

// NewHub returns a hub; start it with RunWithContext.
func NewHub() *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		topics:     make(map[string]map[*Client][]string),
		done:       make(chan struct{}),
	}
}

// RunWithContext processes client lifecycle events until ctx ends, then
// closes every client.
//
// Lifecycle events are handled before anything else in each iteration so a
// client is fully registered before its first subscription.
func (h *Hub) RunWithContext(ctx context.Context) error {
	defer h.doneOnce.Do(func() { close(h.done) })

	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case c := <-h.Register:
			h.add(c)
		case c := <-h.Unregister:
			h.remove(c)
		}
	}
}

// Done is closed once the hub has stopped.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()

	metrics.TrackBrokerSession(true)
	logging.Info().Str("session", c.session).Int("total_clients", n).Msg("stomp session opened")
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	h.dropClientLocked(c)
	c.closeSend()
	n := len(h.clients)
	h.mu.Unlock()

	metrics.TrackBrokerSession(false)
	logging.Info().Str("session", c.session).Int("total_clients", n).Msg("stomp session closed")
}

func (h *Hub) dropClientLocked(c *Client) {
	for dest, subs := range h.topics {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.topics, dest)
		}
	}
}

// Subscribe adds subscription id on c for destination.
func (h *Hub) Subscribe(c *Client, id, destination string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.clients[c] {
		return
	}
	subs := h.topics[destination]
	if subs == nil {
		subs = make(map[*Client][]string)
		h.topics[destination] = subs
	}
	subs[c] = append(subs[c], id)
}

// Unsubscribe removes subscription id on c wherever it is registered.
func (h *Hub) Unsubscribe(c *Client, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for dest, subs := range h.topics {
		ids := subs[c]
		for i, sid := range ids {
			if sid != id {
				continue
			}
			ids = append(ids[:i:i], ids[i+1:]...)
			if len(ids) == 0 {
				delete(subs, c)
			} else {
				subs[c] = ids
			}
			if len(subs) == 0 {
				delete(h.topics, dest)
			}
			return
		}
	}
}

// Deliver sends a MESSAGE for destination to every matching subscription.
// Clients whose send buffer is full lose the frame. It returns the number of
// frames queued.
func (h *Hub) Deliver(destination, contentType string, body []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subs := h.topics[destination]
	if len(subs) == 0 {
		return 0
	}

	clients := make([]*Client, 0, len(subs))
	for c := range subs {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })

	messageID := uuid.NewString()
	queued := 0
	for _, c := range clients {
		for _, subID := range subs[c] {
			f := stomp.Message(destination, subID, messageID, contentType, body)
			if c.enqueue(f) {
				queued++
			} else {
				metrics.BrokerDroppedFrames.Inc()
				logging.Warn().Str("session", c.session).Str("destination", destination).
					Msg("send buffer full, dropping frame")
			}
		}
	}
	return queued
}

// Subscribers returns the number of subscriptions for destination.
func (h *Hub) Subscribers(destination string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, ids := range h.topics[destination] {
		n += len(ids)
	}
	return n
}

// ClientCount returns the number of live sessions.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// DisconnectAll drops every session without stopping the hub. Clients are
// expected to reconnect.
func (h *Hub) DisconnectAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Close()
	}
}

func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })
	for _, c := range clients {
		delete(h.clients, c)
		c.closeSend()
		metrics.TrackBrokerSession(false)
	}
	h.topics = make(map[string]map[*Client][]string)
	h.mu.Unlock()

	reason := ShutdownReasonContextCanceled
	if ctx.Err() == context.DeadlineExceeded {
		reason = ShutdownReasonContextDeadline
	}
	logging.Info().
		Str("component", "broker-hub").
		Str("reason", string(reason)).
		Int("clients_closed", len(clients)).
		Msg("broker hub stopped")
}

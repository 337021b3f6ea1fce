// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

package broker

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/agora/internal/logging"
	"github.com/tomtom215/agora/internal/stomp"
)

// Options configures broker sessions.
type Options struct {
	TopicPrefix string
	AppPrefix   string

	// HeartBeat is what the broker offers in CONNECTED.
	HeartBeat stomp.HeartBeat

	// SendBuffer is the per-session outbound frame queue length.
	SendBuffer int

	// CheckOrigin validates the upgrade request's Origin; nil allows all.
	CheckOrigin func(r *http.Request) bool
}

// DefaultOptions returns the options used by agora-broker.
func DefaultOptions() Options {
	return Options{
		TopicPrefix: "/topic/",
		AppPrefix:   "/app/",
		HeartBeat:   stomp.HeartBeat{Outgoing: 10 * time.Second, Incoming: 10 * time.Second},
		SendBuffer:  256,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.TopicPrefix == "" {
		o.TopicPrefix = def.TopicPrefix
	}
	if o.AppPrefix == "" {
		o.AppPrefix = def.AppPrefix
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = def.SendBuffer
	}
	return o
}

// Broker accepts STOMP sessions over WebSocket.
type Broker struct {
	hub      *Hub
	relay    Publisher
	opts     Options
	upgrader websocket.Upgrader
}

// New returns a broker whose sessions register with hub and publish through relay.
func New(hub *Hub, relay Publisher, opts Options) *Broker {
	opts = opts.withDefaults()
	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Broker{
		hub:   hub,
		relay: relay,
		opts:  opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			Subprotocols:    []string{"v12.stomp", "v11.stomp", "v10.stomp"},
			CheckOrigin:     checkOrigin,
		},
	}
}

// Hub returns the broker's hub.
func (b *Broker) Hub() *Hub { return b.hub }

// Options returns the effective options.
func (b *Broker) Options() Options { return b.opts }

// ServeWS upgrades the request and starts a STOMP session.
func (b *Broker) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logging.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}
	NewClient(b.hub, b.relay, conn, b.opts).Start()
}

// AllowOrigins returns a CheckOrigin func accepting the given origins; "*"
// accepts any.
func AllowOrigins(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
}

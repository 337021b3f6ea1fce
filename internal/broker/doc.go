// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

/*
Package broker implements a STOMP 1.2 over WebSocket broker for local
development, integration tests and small single-node deployments.

# Architecture

	browser / agora-chat            HTTP API
	       |                            |
	  /ws (STOMP)              POST /api/notifications/{userID}
	       |                            |
	    Client --- SEND /app/X ---> Relay <---- notification
	       ^                          |
	       |      MESSAGE /topic/X    v
	       +-------------------------Hub

Clients SEND to /app/<topic>. The broker stamps JSON object bodies with a
server id and createdAt (keeping the client's tempId), publishes them on
the Relay, and the Relay fans them out through the Hub to every session
subscribed to /topic/<topic>. The round trip through the relay is the
sender's delivery confirmation.

# Relay modes

  - memory: watermill gochannel, single process
  - nats: watermill-nats core NATS subject, optionally backed by an
    embedded nats-server, so several broker nodes share one topic space

Relay publishes run through a gobreaker circuit breaker; while it is open
SEND frames are answered with ERROR instead of queueing.

# Protocol subset

CONNECT/STOMP, SUBSCRIBE (ack:auto only), UNSUBSCRIBE, SEND, DISCONNECT,
receipts and heart-beats. Transactions and client acks are not supported
and are answered with ERROR.
*/
package broker

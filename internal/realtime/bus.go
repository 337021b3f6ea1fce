// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

package realtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/tomtom215/agora/internal/logging"
	"github.com/tomtom215/agora/internal/metrics"
)

// ListenBuffer is the number of undelivered events a listener may hold
// before further events for it are dropped.
const ListenBuffer = 64

// EventName names a host-wide UI event.
type EventName string

const (
	// NotificationEvent carries each notification received for the current user.
	NotificationEvent EventName = "agora.notification"

	// ConnectionStateEvent carries the new State on every connection transition.
	ConnectionStateEvent EventName = "agora.connection_state"
)

var knownEvents = map[EventName]bool{
	NotificationEvent:    true,
	ConnectionStateEvent: true,
}

// ErrUnknownEvent is returned for event names outside the fixed set.
var ErrUnknownEvent = errors.New("realtime: unknown ui event")

// UIEvent is one event delivered to a Bus listener.
type UIEvent struct {
	Name    EventName
	ID      string
	Payload any
}

// Bus is the in-process event channel between the transport and UI code.
// Every listener of a name receives every event emitted under it, in emit
// order. Emit never waits on a slow listener: once a listener holds
// ListenBuffer undelivered events, newer events for it are dropped.
type Bus struct {
	pubsub *gochannel.GoChannel
}

// NewBus returns an open bus. A nil logger logs through the global zerolog logger.
func NewBus(logger watermill.LoggerAdapter) *Bus {
	if logger == nil {
		logger = logging.NewWatermillAdapter("realtime.bus")
	}
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer:            ListenBuffer,
			BlockPublishUntilSubscriberAck: true,
		}, logger),
	}
}

// Emit publishes payload under name. Payloads are JSON encoded so listeners
// get their own copy.
func (b *Bus) Emit(name EventName, payload any) error {
	if !knownEvents[name] {
		return fmt.Errorf("%w: %s", ErrUnknownEvent, name)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", name, err)
	}
	msg := message.NewMessage(watermill.NewUUID(), body)
	return b.pubsub.Publish(string(name), msg)
}

// Listen returns a channel of events emitted under name after the call. The
// channel closes when ctx ends or the bus is closed.
func (b *Bus) Listen(ctx context.Context, name EventName) (<-chan UIEvent, error) {
	if !knownEvents[name] {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, name)
	}
	msgs, err := b.pubsub.Subscribe(ctx, string(name))
	if err != nil {
		return nil, err
	}

	// Emit waits for the ack, so acking only after the hand-off keeps
	// events in order; the hand-off itself never blocks.
	out := make(chan UIEvent, ListenBuffer)
	go func() {
		defer close(out)
		for msg := range msgs {
			ev := UIEvent{Name: name, ID: msg.UUID}
			if err := json.Unmarshal(msg.Payload, &ev.Payload); err != nil {
				ev.Payload = string(msg.Payload)
			}
			select {
			case out <- ev:
			default:
				metrics.RecordBusDrop(string(name))
			}
			msg.Ack()
		}
	}()
	return out, nil
}

// Close stops delivery and closes every listener channel.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}

// BridgeConnectionState emits ConnectionStateEvent on every transition of conn.
func (b *Bus) BridgeConnectionState(conn *Connection) {
	log := logging.WithComponent("realtime.bus")
	conn.OnStateChange(func(s State) {
		// Listener runs under the connection lock; gochannel publish does
		// not call back into the connection.
		if err := b.Emit(ConnectionStateEvent, s.String()); err != nil {
			log.Debug().Err(err).Msg("drop connection state event")
		}
	})
}

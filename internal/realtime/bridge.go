// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

package realtime

import (
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tomtom215/agora/internal/logging"
	"github.com/tomtom215/agora/internal/metrics"
)

// Bridge re-emits the current user's notifications on a Bus as
// NotificationEvent, so UI code never touches the transport.
type Bridge struct {
	registry *Registry
	bus      *Bus
	log      zerolog.Logger

	mu     sync.Mutex
	userID string
	sub    *Subscription
}

// NewBridge returns a bridge with no user; call SetUser once identity is known.
func NewBridge(registry *Registry, bus *Bus) *Bridge {
	return &Bridge{
		registry: registry,
		bus:      bus,
		log:      logging.WithComponent("realtime.bridge"),
	}
}

// SetUser points the bridge at userID's notification topic. An empty userID
// (logout) tears the subscription down; the same userID is a no-op.
func (b *Bridge) SetUser(userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if userID == b.userID {
		return
	}
	if b.sub != nil {
		b.sub.Unsubscribe()
		b.sub = nil
	}
	b.userID = userID
	if userID == "" {
		b.log.Debug().Msg("user cleared, notifications stopped")
		return
	}

	b.sub = b.registry.Subscribe(UserTopic(userID), func(ev Event) {
		b.forward(userID, ev)
	})
	b.log.Debug().Str("user_id", userID).Msg("notifications bridged")
}

// Subscription returns the live subscription, or nil when no user is set.
func (b *Bridge) Subscription() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sub
}

// forward emits ev unless it is addressed to another user. Events without a
// userId field, or with a null one, are forwarded as is.
func (b *Bridge) forward(userID string, ev Event) {
	if obj, ok := ev.Object(); ok {
		if owner, present := obj["userId"]; present && owner != nil {
			if !sameUser(owner, userID) {
				metrics.RecordBridgeEvent("foreign_user")
				b.log.Warn().Str("user_id", userID).Interface("event_user_id", owner).
					Msg("dropping notification addressed to another user")
				return
			}
		}
	}

	if err := b.bus.Emit(NotificationEvent, ev.Payload); err != nil {
		metrics.RecordBridgeEvent("error")
		b.log.Warn().Err(err).Msg("emit notification")
		return
	}
	metrics.RecordBridgeEvent("emitted")
}

// sameUser compares a decoded userId with the bridge's user. Numeric ids
// compare by their decimal form, so 7 matches "7".
func sameUser(owner any, userID string) bool {
	switch v := owner.(type) {
	case string:
		return v == userID
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64) == userID
	default:
		return false
	}
}

// Close tears down the current subscription.
func (b *Bridge) Close() {
	b.SetUser("")
}

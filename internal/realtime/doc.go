// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

/*
Package realtime is the forum front-end's real-time event delivery layer:
one shared STOMP-over-WebSocket connection to the broker, topic
subscriptions on top of it, a chat publisher and a bridge that re-emits the
current user's notifications on an in-process UI bus.

# Usage

	sub := realtime.Subscribe(realtime.ChatTopic("conv-42"), func(ev realtime.Event) {
		// ev.Payload is the decoded JSON body, or the raw string
	})
	defer sub.Unsubscribe()

	msg, err := realtime.Send(ctx, "conv-42", "userA", "userB", "hello", realtime.NewTempID())

Send returns once the frame is on the wire. The stored message comes back on
the conversation topic carrying the same tempId.

# Connection lifecycle

	inactive --EnsureConnected--> connecting --CONNECTED--> connected
	                                  ^                        |
	                                  +---- reconnecting <-----+ (session lost)

The connection retries with a fixed delay forever. EnsureConnected and Send
wait as long as the caller's context allows; there is no internal timeout.
Subscriptions are re-established on every new session.

# Subscriptions

Each Subscription moves PENDING_CONNECT -> ACTIVE -> UNSUBSCRIBED.
Unsubscribe may be called from either state, any number of times, and never
fails. Listeners of the same topic share one broker subscription.
*/
package realtime

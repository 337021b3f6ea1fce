// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

package realtime

import (
	"github.com/go-stomp/stomp/v3/frame"
	"github.com/goccy/go-json"

	"github.com/tomtom215/agora/internal/metrics"
)

// Event is one inbound MESSAGE delivered to a subscription handler.
type Event struct {
	// Topic is the topic the subscription was made for, e.g. "chat.conv-42".
	Topic string

	// Destination is the full STOMP destination, e.g. "/topic/chat.conv-42".
	Destination string

	MessageID   string
	ContentType string
	Body        []byte

	// Payload is the body decoded as JSON (map[string]any, []any, string,
	// float64, bool or nil). When the body is not valid JSON, Payload is the
	// body as a string and Raw is true.
	Payload any
	Raw     bool
}

func newEvent(topic string, f *frame.Frame) Event {
	ev := Event{
		Topic:       topic,
		Destination: f.Header.Get(frame.Destination),
		MessageID:   f.Header.Get(frame.MessageId),
		ContentType: f.Header.Get(frame.ContentType),
		Body:        f.Body,
	}
	if err := json.Unmarshal(f.Body, &ev.Payload); err != nil {
		metrics.ClientDecodeFallbacks.Inc()
		ev.Payload = string(f.Body)
		ev.Raw = true
	}
	return ev
}

// Decode unmarshals the body into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Body, v)
}

// Object returns the payload as a JSON object, if it is one.
func (e Event) Object() (map[string]any, bool) {
	m, ok := e.Payload.(map[string]any)
	return m, ok
}

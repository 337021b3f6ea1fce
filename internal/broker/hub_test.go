// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

package broker

import (
	"context"
	"testing"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
)

func newTestClient(buffer int) *Client {
	return &Client{
		id:      clientIDCounter.Add(1),
		session: "test",
		send:    make(chan *frame.Frame, buffer),
	}
}

func drain(c *Client) []*frame.Frame {
	var out []*frame.Frame
	for {
		select {
		case f := <-c.send:
			out = append(out, f)
		default:
			return out
		}
	}
}

func TestHub_DeliverPerSubscription(t *testing.T) {
	t.Parallel()

	h := NewHub()
	a, b := newTestClient(8), newTestClient(8)
	h.add(a)
	h.add(b)

	h.Subscribe(a, "a1", "/topic/chat.c1")
	h.Subscribe(a, "a2", "/topic/chat.c1")
	h.Subscribe(b, "b1", "/topic/chat.c1")
	h.Subscribe(b, "b2", "/topic/chat.other")

	if got := h.Deliver("/topic/chat.c1", "application/json", []byte(`{}`)); got != 3 {
		t.Fatalf("Deliver() = %d, want 3", got)
	}

	gotA := drain(a)
	if len(gotA) != 2 {
		t.Fatalf("client a got %d frames, want 2", len(gotA))
	}
	if gotA[0].Header.Get(frame.Subscription) != "a1" || gotA[1].Header.Get(frame.Subscription) != "a2" {
		t.Errorf("subscription headers = %q, %q", gotA[0].Header.Get(frame.Subscription), gotA[1].Header.Get(frame.Subscription))
	}
	if gotA[0].Header.Get(frame.MessageId) != gotA[1].Header.Get(frame.MessageId) {
		t.Error("one delivery should share one message-id")
	}
	if gotB := drain(b); len(gotB) != 1 || gotB[0].Header.Get(frame.Subscription) != "b1" {
		t.Errorf("client b frames = %v", gotB)
	}
}

func TestHub_UnsubscribeAndRemove(t *testing.T) {
	t.Parallel()

	h := NewHub()
	c := newTestClient(8)
	h.add(c)
	h.Subscribe(c, "s1", "/topic/x")
	h.Subscribe(c, "s2", "/topic/x")

	h.Unsubscribe(c, "s1")
	if got := h.Subscribers("/topic/x"); got != 1 {
		t.Errorf("Subscribers() = %d, want 1", got)
	}
	h.Unsubscribe(c, "unknown")
	if got := h.Subscribers("/topic/x"); got != 1 {
		t.Errorf("unknown id changed Subscribers() to %d", got)
	}

	h.remove(c)
	if got := h.Subscribers("/topic/x"); got != 0 {
		t.Errorf("Subscribers() = %d after remove, want 0", got)
	}
	if c.enqueue(&frame.Frame{Command: frame.MESSAGE}) {
		t.Error("enqueue succeeded after remove")
	}
	// Removing twice is harmless.
	h.remove(c)
}

func TestHub_SubscribeIgnoresUnknownClient(t *testing.T) {
	t.Parallel()

	h := NewHub()
	h.Subscribe(newTestClient(1), "s1", "/topic/x")
	if got := h.Subscribers("/topic/x"); got != 0 {
		t.Errorf("Subscribers() = %d, want 0", got)
	}
}

func TestHub_DropsWhenBufferFull(t *testing.T) {
	t.Parallel()

	h := NewHub()
	c := newTestClient(1)
	h.add(c)
	h.Subscribe(c, "s1", "/topic/x")

	if got := h.Deliver("/topic/x", "", []byte("1")); got != 1 {
		t.Fatalf("first Deliver() = %d, want 1", got)
	}
	if got := h.Deliver("/topic/x", "", []byte("2")); got != 0 {
		t.Errorf("Deliver() into full buffer = %d, want 0", got)
	}
}

func TestHub_RunWithContextShutdown(t *testing.T) {
	t.Parallel()

	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.RunWithContext(ctx) }()

	c := newTestClient(1)
	h.Register <- c
	cancel()

	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Errorf("RunWithContext() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}

	select {
	case <-h.Done():
	default:
		t.Error("Done() not closed after stop")
	}
	if _, ok := <-c.send; ok {
		t.Error("client send channel should be closed on shutdown")
	}
}

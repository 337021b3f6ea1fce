// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

package realtime

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/agora/internal/validation"
)

func TestSend_ChatRoundTrip(t *testing.T) {
	t.Parallel()

	_, url := startBroker(t)
	conn := newTestConnection(t, url, nil)
	reg := NewRegistry(conn)
	pub := NewPublisher(conn, PublisherConfig{})
	ctx := testContext(t)

	handler, events := collect(2)
	sub := reg.Subscribe(ChatTopic("conv-42"), handler)
	if err := sub.Wait(ctx); err != nil {
		t.Fatal(err)
	}

	sent, err := pub.Send(ctx, "conv-42", "userA", "userB", "hello", "tmp-1")
	if err != nil {
		t.Fatalf("Send() = %v", err)
	}
	if _, err := time.Parse(time.RFC3339Nano, sent.SentAt); err != nil {
		t.Errorf("SentAt %q is not ISO-8601: %v", sent.SentAt, err)
	}

	ev := receive(t, events)
	var echoed struct {
		OutboundMessage
		ID        string `json:"id"`
		CreatedAt string `json:"createdAt"`
	}
	if err := ev.Decode(&echoed); err != nil {
		t.Fatalf("Decode() = %v", err)
	}
	if echoed.Content != "hello" || echoed.TempID != "tmp-1" {
		t.Errorf("echo content=%q tempId=%q", echoed.Content, echoed.TempID)
	}
	if echoed.ConversationID != "conv-42" || echoed.FromUserID != "userA" || echoed.ToUserID != "userB" {
		t.Errorf("echo = %+v", echoed.OutboundMessage)
	}
	if echoed.SentAt != sent.SentAt {
		t.Errorf("sentAt = %q, want %q", echoed.SentAt, sent.SentAt)
	}
	if echoed.ID == "" {
		t.Error("the broker should stamp an authoritative id")
	}
}

func TestSend_OptionalFieldsOmitted(t *testing.T) {
	t.Parallel()

	_, url := startBroker(t)
	conn := newTestConnection(t, url, nil)
	reg := NewRegistry(conn)
	pub := NewPublisher(conn, PublisherConfig{})
	ctx := testContext(t)

	handler, events := collect(1)
	if err := reg.Subscribe(ChatTopic("conv-7"), handler).Wait(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := pub.Send(ctx, "conv-7", "userA", "", "group hello", ""); err != nil {
		t.Fatal(err)
	}

	obj, _ := receive(t, events).Object()
	if _, ok := obj["toUserId"]; ok {
		t.Errorf("toUserId present in %v", obj)
	}
	if _, ok := obj["tempId"]; ok {
		t.Errorf("tempId present in %v", obj)
	}
}

func TestSend_Validation(t *testing.T) {
	t.Parallel()

	conn := newTestConnection(t, "ws://127.0.0.1:1/ws", &flakyDialer{})
	pub := NewPublisher(conn, PublisherConfig{})

	tests := []struct {
		name                                 string
		conversation, from, to, content, tmp string
	}{
		{"missing conversation", "", "userA", "", "hi", ""},
		{"slash in conversation", "a/b", "userA", "", "hi", ""},
		{"nul in conversation", "a\x00b", "userA", "", "hi", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pub.Send(context.Background(), tt.conversation, tt.from, tt.to, tt.content, tt.tmp)
			var verr *validation.RequestValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Send() = %v, want a validation error", err)
			}
		})
	}
	if conn.State() != StateInactive {
		t.Error("invalid messages must not activate the connection")
	}
}

func TestSend_PassesFreeFormFields(t *testing.T) {
	t.Parallel()

	_, url := startBroker(t)
	conn := newTestConnection(t, url, nil)
	reg := NewRegistry(conn)
	pub := NewPublisher(conn, PublisherConfig{})
	ctx := testContext(t)

	tests := []struct {
		name                  string
		conversation, content string
		from, to              string
	}{
		{"spaces in conversation", "conv 42", "hi", "userA", "user B"},
		{"empty content", "conv-empty", "", "userA", ""},
		{"long content", "conv-long", strings.Repeat("x", 4001), "userA", ""},
		{"no sender", "conv-anon", "hi", "", ""},
	}

	for _, tt := range tests {
		handler, events := collect(1)
		sub := reg.Subscribe(ChatTopic(tt.conversation), handler)
		if err := sub.Wait(ctx); err != nil {
			t.Fatalf("%s: Wait() = %v", tt.name, err)
		}

		if _, err := pub.Send(ctx, tt.conversation, tt.from, tt.to, tt.content, "tmp-"+tt.conversation); err != nil {
			t.Fatalf("%s: Send() = %v", tt.name, err)
		}
		var got OutboundMessage
		if err := receive(t, events).Decode(&got); err != nil {
			t.Fatalf("%s: Decode() = %v", tt.name, err)
		}
		if got.ConversationID != tt.conversation || got.Content != tt.content || got.ToUserID != tt.to {
			t.Errorf("%s: echoed %+v", tt.name, got)
		}
		sub.Unsubscribe()
	}
}

func TestSend_WaitsForConnection(t *testing.T) {
	t.Parallel()

	dialer := &flakyDialer{}
	dialer.fail.Store(true)
	conn := newTestConnection(t, "ws://127.0.0.1:1/ws", dialer)
	pub := NewPublisher(conn, PublisherConfig{})

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	if _, err := pub.Send(ctx, "conv-1", "userA", "", "hi", ""); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Send() = %v, want the caller's deadline", err)
	}
}

func TestPublisher_RateLimit(t *testing.T) {
	t.Parallel()

	_, url := startBroker(t)
	conn := newTestConnection(t, url, nil)
	pub := NewPublisher(conn, PublisherConfig{Rate: 1, Burst: 1})
	ctx := testContext(t)

	if _, err := pub.Send(ctx, "conv-1", "userA", "", "first", ""); err != nil {
		t.Fatal(err)
	}

	short, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	if _, err := pub.Send(short, "conv-1", "userA", "", "second", ""); err == nil {
		t.Error("second Send() within the burst window should be paced past the deadline")
	}
}

func TestNewTempID(t *testing.T) {
	t.Parallel()

	a, b := NewTempID(), NewTempID()
	if a == b {
		t.Error("NewTempID() repeated a value")
	}
	if !strings.HasPrefix(a, "tmp-") {
		t.Errorf("NewTempID() = %q", a)
	}
	if !validation.IsIdentifier(a) {
		t.Errorf("NewTempID() = %q is not a valid identifier", a)
	}
}

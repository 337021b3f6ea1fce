// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

//go:build integration

package testinfra

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/agora/internal/realtime"
)

// RabbitMQ routes /topic/<key> through amq.topic and has no application
// destinations, so publishes go straight to the topic prefix.
func rabbitConfig(rmq *RabbitMQContainer) realtime.Config {
	return realtime.Config{
		URL:            rmq.WSURL,
		Host:           rmq.VirtualHost,
		Login:          rmq.Login,
		Passcode:       rmq.Passcode,
		ReconnectDelay: 500 * time.Millisecond,
		TopicPrefix:    "/topic/",
		AppPrefix:      "/topic/",
	}
}

func TestRabbitMQ_ChatRoundTrip(t *testing.T) {
	SkipIfNoDocker(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	rmq, err := NewRabbitMQContainer(ctx)
	if err != nil {
		t.Fatalf("start rabbitmq: %v", err)
	}
	CleanupContainer(t, rmq)

	conn, err := realtime.NewConnection(rabbitConfig(rmq))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	registry := realtime.NewRegistry(conn)
	received := make(chan realtime.Event, 4)
	sub := registry.Subscribe(realtime.ChatTopic("conv-1"), func(ev realtime.Event) {
		received <- ev
	})
	defer sub.Unsubscribe()

	if err := sub.Wait(ctx); err != nil {
		DumpLogs(t, ctx, rmq)
		t.Fatalf("subscription did not activate: %v", err)
	}
	if conn.State() != realtime.StateConnected {
		t.Fatalf("state = %s, want connected", conn.State())
	}

	pub := realtime.NewPublisher(conn, realtime.PublisherConfig{})
	tempID := realtime.NewTempID()
	if _, err := pub.Send(ctx, "conv-1", "userA", "userB", "hello over rabbit", tempID); err != nil {
		t.Fatalf("Send() = %v", err)
	}

	select {
	case ev := <-received:
		obj, ok := ev.Object()
		if !ok {
			t.Fatalf("payload is not an object: %q", ev.Body)
		}
		if obj["content"] != "hello over rabbit" || obj["tempId"] != tempID || obj["fromUserId"] != "userA" {
			t.Errorf("payload = %v", obj)
		}
		if ev.Destination != "/topic/chat.conv-1" {
			t.Errorf("Destination = %q", ev.Destination)
		}
	case <-ctx.Done():
		DumpLogs(t, context.Background(), rmq)
		t.Fatal("message was not delivered")
	}
}

func TestRabbitMQ_RejectsBadCredentials(t *testing.T) {
	SkipIfNoDocker(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	rmq, err := NewRabbitMQContainer(ctx)
	if err != nil {
		t.Fatalf("start rabbitmq: %v", err)
	}
	CleanupContainer(t, rmq)

	cfg := rabbitConfig(rmq)
	cfg.Passcode = "wrong"
	conn, err := realtime.NewConnection(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	waitCtx, waitCancel := context.WithTimeout(ctx, 5*time.Second)
	defer waitCancel()
	if err := conn.EnsureConnected(waitCtx); err == nil {
		t.Fatal("EnsureConnected() succeeded with a bad passcode")
	}
	if conn.State() == realtime.StateConnected {
		t.Errorf("state = %s after rejected login", conn.State())
	}
}

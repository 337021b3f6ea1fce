// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/agora/internal/broker"
)

const waitTimeout = 5 * time.Second

func startBroker(t *testing.T) (*broker.Node, string) {
	t.Helper()

	n := broker.NewMemoryNode(broker.Options{})
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	if err := n.Start(ctx); err != nil {
		t.Fatalf("start broker: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(n.Broker.ServeWS))
	t.Cleanup(func() {
		_ = n.Stop()
		srv.Close()
	})
	return n, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

// flakyDialer fails every dial while fail is set.
type flakyDialer struct {
	fail  atomic.Bool
	dials atomic.Int32
	inner websocket.Dialer
}

func (d *flakyDialer) DialContext(ctx context.Context, url string, h http.Header) (*websocket.Conn, *http.Response, error) {
	d.dials.Add(1)
	if d.fail.Load() {
		return nil, nil, errors.New("broker unreachable")
	}
	return d.inner.DialContext(ctx, url, h)
}

func newTestConnection(t *testing.T, url string, dialer Dialer) *Connection {
	t.Helper()

	conn, err := NewConnection(Config{
		URL:            url,
		ReconnectDelay: 50 * time.Millisecond,
		Dialer:         dialer,
	})
	if err != nil {
		t.Fatalf("NewConnection: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	t.Cleanup(cancel)
	return ctx
}

func collect(buffer int) (Handler, chan Event) {
	ch := make(chan Event, buffer)
	return func(ev Event) { ch <- ev }, ch
}

func receive[T any](t *testing.T, ch chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(waitTimeout):
		var zero T
		t.Fatal("timed out waiting for delivery")
		return zero
	}
}

func expectNothing[T any](t *testing.T, ch chan T, within time.Duration) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected delivery: %+v", v)
	case <-time.After(within):
	}
}

func waitForState(t *testing.T, conn *Connection, want State) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for conn.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("state = %s, want %s", conn.State(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func receiveUI(t *testing.T, ch <-chan UIEvent) UIEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("ui event channel closed")
		}
		return ev
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for ui event")
		return UIEvent{}
	}
}

func expectNoUI(t *testing.T, ch <-chan UIEvent, within time.Duration) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("unexpected ui event: %+v", ev)
	case <-time.After(within):
	}
}

// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/agora/internal/broker"
)

type fakeHub struct {
	runs    atomic.Int32
	stopped atomic.Bool
}

func (h *fakeHub) RunWithContext(ctx context.Context) error {
	h.runs.Add(1)
	<-ctx.Done()
	h.stopped.Store(true)
	return ctx.Err()
}

func TestHubService(t *testing.T) {
	hub := &fakeHub{}
	svc := NewHubService(hub)
	if svc.String() != "session-hub" {
		t.Errorf("String() = %q", svc.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve() = %v, want DeadlineExceeded", err)
	}
	if hub.runs.Load() != 1 || !hub.stopped.Load() {
		t.Errorf("runs = %d stopped = %v", hub.runs.Load(), hub.stopped.Load())
	}
}

func TestHubService_BrokerHub(t *testing.T) {
	hub := broker.NewHub()
	svc := NewHubService(hub)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	cancel()
	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}

	select {
	case <-hub.Done():
	default:
		t.Error("hub Done channel should be closed after shutdown")
	}
}

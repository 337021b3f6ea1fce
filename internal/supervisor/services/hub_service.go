// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

package services

import "context"

// ContextHub is satisfied by *broker.Hub.
type ContextHub interface {
	RunWithContext(ctx context.Context) error
}

// HubService runs the broker's session hub. On shutdown the hub closes
// every session.
type HubService struct {
	hub  ContextHub
	name string
}

// NewHubService wraps hub.
func NewHubService(hub ContextHub) *HubService {
	return &HubService{hub: hub, name: "session-hub"}
}

// Serve implements suture.Service.
func (h *HubService) Serve(ctx context.Context) error {
	return h.hub.RunWithContext(ctx)
}

func (h *HubService) String() string {
	return h.name
}

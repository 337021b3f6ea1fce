// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

/*
Package services adapts agora-broker components to suture.Service.

	HTTPServerService    *http.Server (ListenAndServe / Shutdown)
	HubService           *broker.Hub (RunWithContext)
	EmbeddedNATSService  *broker.EmbeddedServer (IsRunning / Shutdown)

The relay implements suture.Service itself and needs no wrapper.

Each wrapper depends on a small interface instead of the concrete type,
so the wrappers do not import internal/broker.
Every wrapper implements fmt.Stringer; suture uses the name in its
events.
*/
package services

// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

/*
Package supervisor runs agora-broker as a suture v4 supervision tree.

	agora (root)
	├── transport-layer
	│   └── session-hub
	├── messaging-layer
	│   ├── embedded-nats      (nats relay mode with NATS_EMBEDDED=true)
	│   └── relay-memory | relay-nats
	└── api-layer
	    └── http-server

Each layer restarts its own services with suture's backoff. Supervisor
events go to zerolog through sutureslog and the slog adapter in
internal/logging.

Usage:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return err
	}
	tree.AddTransportService(services.NewHubService(hub))
	tree.AddMessagingService(relay)
	tree.AddAPIService(services.NewHTTPServerService(srv, 10*time.Second))
	return tree.Serve(ctx)

The service wrappers live in the services subpackage.
*/
package supervisor

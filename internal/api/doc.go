// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

/*
Package api is the HTTP surface of agora-broker, routed with chi.

Routes:

	GET  /ws                          STOMP 1.2 over WebSocket (internal/broker)
	GET  /healthz                     {"status":"ok"|"degraded", sessions, relay_mode, breaker_state}
	GET  /metrics                     Prometheus exposition
	POST /api/notifications/{userID}  relay a JSON object to /topic/user.<userID>

The notification endpoint is how a backend, or a developer with curl,
produces the per-user events the client-side bridge consumes:

	curl -X POST localhost:3857/api/notifications/u-7 \
	    -d '{"type":"friendRequest","from":"u-3"}'

Middleware: request IDs copied into the logging correlation id, RealIP,
Recoverer, go-chi/cors, and on /api go-chi/httprate, request metrics and
gzip for JSON responses.

Errors use one envelope:

	{"status":"error","error":{"code":"INVALID_BODY","message":"..."}}
*/
package api

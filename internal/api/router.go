// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router wires the broker's HTTP surface.
type Router struct {
	handler    *Handler
	ws         http.Handler
	middleware *ChiMiddleware
	wsPath     string
}

// NewRouter creates a router. ws is the STOMP WebSocket endpoint mounted at
// wsPath (usually broker.ServeWS at "/ws").
func NewRouter(handler *Handler, ws http.Handler, wsPath string, mw *ChiMiddleware) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	if wsPath == "" {
		wsPath = "/ws"
	}
	return &Router{handler: handler, ws: ws, middleware: mw, wsPath: wsPath}
}

// Setup builds the chi handler.
//
//	GET  /ws                         STOMP over WebSocket
//	GET  /healthz                    liveness and relay state
//	GET  /metrics                    Prometheus
//	POST /api/notifications/{userID} push a notification to user.<userID>
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.middleware.CORS())

	// The upgrade handler checks Origin itself.
	r.Get(router.wsPath, router.ws.ServeHTTP)

	r.Get("/healthz", router.handler.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(router.middleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(PrometheusMetrics)
		r.Use(chimiddleware.Compress(5, "application/json"))

		r.Post("/notifications/{userID}", router.handler.PushNotification)
	})

	return r
}

// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"

	"github.com/tomtom215/agora/internal/broker"
	"github.com/tomtom215/agora/internal/logging"
	"github.com/tomtom215/agora/internal/stomp"
	"github.com/tomtom215/agora/internal/validation"
)

// maxNotificationBytes bounds POST /api/notifications bodies.
const maxNotificationBytes = 64 << 10

// Relay is the part of *broker.Relay the handlers use.
type Relay interface {
	Publish(ctx context.Context, env broker.Envelope) error
	Mode() string
	BreakerState() string
}

// SessionCounter reports open STOMP sessions; *broker.Hub satisfies it.
type SessionCounter interface {
	ClientCount() int
}

// Handler serves the broker's HTTP endpoints other than /ws.
type Handler struct {
	relay       Relay
	sessions    SessionCounter
	topicPrefix string
	startTime   time.Time
	now         func() time.Time
}

// NewHandler creates the handler. topicPrefix is the broker's STOMP topic
// prefix, normally "/topic/".
func NewHandler(relay Relay, sessions SessionCounter, topicPrefix string) *Handler {
	return &Handler{
		relay:       relay,
		sessions:    sessions,
		topicPrefix: topicPrefix,
		startTime:   time.Now(),
		now:         time.Now,
	}
}

// HealthStatus is the body of GET /healthz.
type HealthStatus struct {
	Status       string  `json:"status"`
	Sessions     int     `json:"sessions"`
	RelayMode    string  `json:"relay_mode"`
	BreakerState string  `json:"breaker_state"`
	Uptime       float64 `json:"uptime_seconds"`
}

// Health reports "ok", or "degraded" with 503 while the relay breaker is
// open.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:       "ok",
		Sessions:     h.sessions.ClientCount(),
		RelayMode:    h.relay.Mode(),
		BreakerState: h.relay.BreakerState(),
		Uptime:       time.Since(h.startTime).Seconds(),
	}
	code := http.StatusOK
	if status.BreakerState == gobreaker.StateOpen.String() {
		status.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	respondData(w, r, code, status)
}

// NotificationAccepted is returned by PushNotification.
type NotificationAccepted struct {
	ID          string `json:"id"`
	Destination string `json:"destination"`
}

// PushNotification handles POST /api/notifications/{userID}. The body must
// be a JSON object; it is relayed to /topic/user.<userID> with userId set
// and an id and createdAt added when missing.
func (h *Handler) PushNotification(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if !validation.IsIdentifier(userID) {
		respondError(w, r, http.StatusBadRequest, "INVALID_USER_ID",
			"userID must be non-empty, at most 128 bytes, without whitespace or '/'", nil)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxNotificationBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "notification body too large", nil)
			return
		}
		respondError(w, r, http.StatusBadRequest, "INVALID_BODY", "failed to read body", err)
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil || payload == nil {
		respondError(w, r, http.StatusBadRequest, "INVALID_BODY", "notification body must be a JSON object", nil)
		return
	}

	if existing, ok := payload["userId"]; ok && existing != userID {
		respondError(w, r, http.StatusBadRequest, "USER_MISMATCH", "body userId does not match the path", nil)
		return
	}
	payload["userId"] = userID
	if _, ok := payload["id"]; !ok {
		payload["id"] = uuid.NewString()
	}
	if _, ok := payload["createdAt"]; !ok {
		payload["createdAt"] = h.now().UTC().Format(time.RFC3339Nano)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "ENCODE_FAILED", "failed to encode notification", err)
		return
	}

	dest := h.topicPrefix + "user." + userID
	err = h.relay.Publish(r.Context(), broker.Envelope{
		Destination: dest,
		ContentType: stomp.ContentTypeJSON,
		Body:        data,
	})
	if err != nil {
		respondError(w, r, http.StatusServiceUnavailable, "RELAY_UNAVAILABLE", "notification could not be relayed", err)
		return
	}

	id, _ := payload["id"].(string)
	logging.Ctx(r.Context()).Debug().Str("destination", dest).Str("notification_id", id).Msg("notification pushed")
	respondData(w, r, http.StatusAccepted, NotificationAccepted{ID: id, Destination: dest})
}

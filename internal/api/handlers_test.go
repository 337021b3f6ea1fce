// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/agora/internal/broker"
	"github.com/tomtom215/agora/internal/metrics"
)

type fakeRelay struct {
	mu      sync.Mutex
	sent    []broker.Envelope
	err     error
	breaker string
}

func (f *fakeRelay) Publish(_ context.Context, env broker.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, env)
	return nil
}

func (f *fakeRelay) Mode() string { return broker.ModeMemory }

func (f *fakeRelay) BreakerState() string {
	if f.breaker == "" {
		return "closed"
	}
	return f.breaker
}

func (f *fakeRelay) envelopes() []broker.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]broker.Envelope(nil), f.sent...)
}

type fakeSessions int

func (f fakeSessions) ClientCount() int { return int(f) }

func newTestRouter(relay *fakeRelay) http.Handler {
	h := NewHandler(relay, fakeSessions(3), "/topic/")
	h.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return NewRouter(h, http.NotFoundHandler(), "/ws", nil).Setup()
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v (%s)", err, rec.Body.String())
	}
	return body
}

func TestPushNotification(t *testing.T) {
	relay := &fakeRelay{}
	router := newTestRouter(relay)

	req := httptest.NewRequest(http.MethodPost, "/api/notifications/u-7",
		strings.NewReader(`{"type":"friendRequest","from":"u-3"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	sent := relay.envelopes()
	if len(sent) != 1 {
		t.Fatalf("relayed %d envelopes, want 1", len(sent))
	}
	env := sent[0]
	if env.Destination != "/topic/user.u-7" {
		t.Errorf("Destination = %q", env.Destination)
	}
	if env.ContentType != "application/json" {
		t.Errorf("ContentType = %q", env.ContentType)
	}

	var payload map[string]any
	if err := json.Unmarshal(env.Body, &payload); err != nil {
		t.Fatal(err)
	}
	if payload["userId"] != "u-7" || payload["type"] != "friendRequest" || payload["from"] != "u-3" {
		t.Errorf("payload = %v", payload)
	}
	if payload["createdAt"] != "2026-03-01T12:00:00Z" {
		t.Errorf("createdAt = %v", payload["createdAt"])
	}
	id, _ := payload["id"].(string)
	if id == "" {
		t.Fatal("id was not stamped")
	}

	data := decodeResponse(t, rec)["data"].(map[string]any)
	if data["id"] != id || data["destination"] != "/topic/user.u-7" {
		t.Errorf("response data = %v", data)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}

func TestPushNotification_KeepsClientFields(t *testing.T) {
	relay := &fakeRelay{}
	router := newTestRouter(relay)

	req := httptest.NewRequest(http.MethodPost, "/api/notifications/u-7",
		strings.NewReader(`{"id":"n-1","userId":"u-7","createdAt":"yesterday"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(relay.envelopes()[0].Body, &payload); err != nil {
		t.Fatal(err)
	}
	if payload["id"] != "n-1" || payload["createdAt"] != "yesterday" {
		t.Errorf("client fields overwritten: %v", payload)
	}
}

func TestPushNotification_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   string
		status int
		code   string
	}{
		{"array body", "/api/notifications/u-7", `[1,2]`, http.StatusBadRequest, "INVALID_BODY"},
		{"not json", "/api/notifications/u-7", `hello`, http.StatusBadRequest, "INVALID_BODY"},
		{"null body", "/api/notifications/u-7", `null`, http.StatusBadRequest, "INVALID_BODY"},
		{"user mismatch", "/api/notifications/u-7", `{"userId":"u-8"}`, http.StatusBadRequest, "USER_MISMATCH"},
		{"user id too long", "/api/notifications/" + strings.Repeat("u", 129), `{}`, http.StatusBadRequest, "INVALID_USER_ID"},
		{"too large", "/api/notifications/u-7", `{"x":"` + strings.Repeat("a", maxNotificationBytes) + `"}`,
			http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			relay := &fakeRelay{}
			router := newTestRouter(relay)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body)))

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
			body := decodeResponse(t, rec)
			if body["status"] != "error" {
				t.Errorf("status field = %v", body["status"])
			}
			apiErr := body["error"].(map[string]any)
			if apiErr["code"] != tt.code {
				t.Errorf("code = %v, want %s", apiErr["code"], tt.code)
			}
			if n := len(relay.envelopes()); n != 0 {
				t.Errorf("relayed %d envelopes for a rejected request", n)
			}
		})
	}
}

func TestPushNotification_RelayUnavailable(t *testing.T) {
	relay := &fakeRelay{err: errors.New("relay unavailable: circuit breaker is open")}
	router := newTestRouter(relay)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/notifications/u-7", strings.NewReader(`{}`)))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	if code := decodeResponse(t, rec)["error"].(map[string]any)["code"]; code != "RELAY_UNAVAILABLE" {
		t.Errorf("code = %v", code)
	}
}

func TestPushNotification_RecordsRoutePattern(t *testing.T) {
	router := newTestRouter(&fakeRelay{})
	counter := metrics.APIRequestsTotal.WithLabelValues(http.MethodPost, "/api/notifications/{userID}", "202")
	before := testutil.ToFloat64(counter)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/notifications/u-9", strings.NewReader(`{}`)))

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("request counter delta = %v, want 1", got)
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		breaker string
		status  int
		want    string
	}{
		{"closed", http.StatusOK, "ok"},
		{"half-open", http.StatusOK, "ok"},
		{"open", http.StatusServiceUnavailable, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.breaker, func(t *testing.T) {
			router := newTestRouter(&fakeRelay{breaker: tt.breaker})
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			data := decodeResponse(t, rec)["data"].(map[string]any)
			if data["status"] != tt.want || data["sessions"] != float64(3) || data["breaker_state"] != tt.breaker {
				t.Errorf("data = %v", data)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(&fakeRelay{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("/metrics does not look like a Prometheus exposition")
	}
}

func TestRateLimit(t *testing.T) {
	h := NewHandler(&fakeRelay{}, fakeSessions(0), "/topic/")
	mw := NewChiMiddleware(&ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{"*"},
		RateLimitRequests:  2,
		RateLimitWindow:    time.Minute,
	})
	router := NewRouter(h, http.NotFoundHandler(), "", mw).Setup()

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/notifications/u-7", strings.NewReader(`{}`))
		req.RemoteAddr = "192.0.2.1:1234"
		router.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusAccepted || codes[1] != http.StatusAccepted || codes[2] != http.StatusTooManyRequests {
		t.Errorf("status codes = %v, want [202 202 429]", codes)
	}
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(&fakeRelay{})

	req := httptest.NewRequest(http.MethodOptions, "/api/notifications/u-7", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}

func TestSanitizeLogValue(t *testing.T) {
	if got := sanitizeLogValue("a\nb\tc"); got != `a\x0ab\x09c` {
		t.Errorf("sanitizeLogValue = %q", got)
	}
}

func TestAPIResponsesCompressed(t *testing.T) {
	router := newTestRouter(&fakeRelay{})

	req := httptest.NewRequest(http.MethodPost, "/api/notifications/u-7", strings.NewReader(`{}`))
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Encoding"); got != "gzip" {
		t.Errorf("Content-Encoding = %q, want gzip", got)
	}
}

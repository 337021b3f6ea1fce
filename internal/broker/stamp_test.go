// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

package broker

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestStampMessage(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("adds id and createdAt", func(t *testing.T) {
		t.Parallel()
		out := StampMessage([]byte(`{"content":"hi","tempId":"tmp-1"}`), now)
		var got map[string]any
		if err := json.Unmarshal(out, &got); err != nil {
			t.Fatal(err)
		}
		if id, _ := got["id"].(string); id == "" {
			t.Error("id not stamped")
		}
		if got["createdAt"] != "2024-01-01T12:00:00Z" {
			t.Errorf("createdAt = %v", got["createdAt"])
		}
		if got["tempId"] != "tmp-1" || got["content"] != "hi" {
			t.Errorf("client fields lost: %v", got)
		}
	})

	t.Run("keeps existing id", func(t *testing.T) {
		t.Parallel()
		out := StampMessage([]byte(`{"id":"m-1","createdAt":"earlier"}`), now)
		var got map[string]any
		if err := json.Unmarshal(out, &got); err != nil {
			t.Fatal(err)
		}
		if got["id"] != "m-1" || got["createdAt"] != "earlier" {
			t.Errorf("existing fields overwritten: %v", got)
		}
	})

	for _, body := range []string{"not json", `["a"]`, `"text"`, `null`, ``} {
		if got := string(StampMessage([]byte(body), now)); got != body {
			t.Errorf("StampMessage(%q) = %q, want unchanged", body, got)
		}
	}
}

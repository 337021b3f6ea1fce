// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

package stomp

import (
	"testing"
	"time"
)

func TestHeartBeatRoundTrip(t *testing.T) {
	t.Parallel()

	hb := HeartBeat{Outgoing: 10 * time.Second, Incoming: 2500 * time.Millisecond}
	if hb.String() != "10000,2500" {
		t.Errorf("String() = %q", hb.String())
	}

	parsed, err := ParseHeartBeat(hb.String())
	if err != nil {
		t.Fatalf("ParseHeartBeat() error = %v", err)
	}
	if parsed != hb {
		t.Errorf("ParseHeartBeat() = %+v, want %+v", parsed, hb)
	}

	empty, err := ParseHeartBeat("")
	if err != nil || empty != (HeartBeat{}) {
		t.Errorf("ParseHeartBeat(\"\") = %+v, %v", empty, err)
	}

	if _, err := ParseHeartBeat("ten,twenty"); err == nil {
		t.Error("expected error for malformed heart-beat")
	}
}

func TestNegotiate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		local      HeartBeat
		remote     HeartBeat
		wantSend   time.Duration
		wantExpect time.Duration
	}{
		{
			name:       "both directions, larger wins",
			local:      HeartBeat{Outgoing: 10 * time.Second, Incoming: 10 * time.Second},
			remote:     HeartBeat{Outgoing: 5 * time.Second, Incoming: 20 * time.Second},
			wantSend:   20 * time.Second,
			wantExpect: 10 * time.Second,
		},
		{
			name:       "remote disables",
			local:      HeartBeat{Outgoing: 10 * time.Second, Incoming: 10 * time.Second},
			remote:     HeartBeat{},
			wantSend:   0,
			wantExpect: 0,
		},
		{
			name:       "local send only",
			local:      HeartBeat{Outgoing: time.Second},
			remote:     HeartBeat{Outgoing: time.Second, Incoming: 3 * time.Second},
			wantSend:   3 * time.Second,
			wantExpect: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			send, expect := Negotiate(tt.local, tt.remote)
			if send != tt.wantSend || expect != tt.wantExpect {
				t.Errorf("Negotiate() = (%v, %v), want (%v, %v)", send, expect, tt.wantSend, tt.wantExpect)
			}
		})
	}
}

// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

package stomp

import (
	"fmt"
	"strconv"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
)

// HeartBeat is one side's heart-beat header: how often it can send
// (Outgoing) and how often it wants to receive (Incoming). Zero disables.
type HeartBeat struct {
	Outgoing time.Duration
	Incoming time.Duration
}

// String renders the header value in milliseconds, e.g. "10000,10000".
func (h HeartBeat) String() string {
	return strconv.FormatInt(h.Outgoing.Milliseconds(), 10) + "," +
		strconv.FormatInt(h.Incoming.Milliseconds(), 10)
}

// ParseHeartBeat parses a heart-beat header value. An empty value means "0,0".
func ParseHeartBeat(value string) (HeartBeat, error) {
	if value == "" {
		return HeartBeat{}, nil
	}
	out, in, err := frame.ParseHeartBeat(value)
	if err != nil {
		return HeartBeat{}, fmt.Errorf("parse heart-beat %q: %w", value, err)
	}
	return HeartBeat{Outgoing: out, Incoming: in}, nil
}

// Negotiate applies the STOMP 1.2 rules from the local side's point of view.
// send is how often local must emit a heart-beat; expect is how long local
// may go without hearing from remote before the peer is considered dead
// (callers usually add slack). Either is zero when that direction is off.
func Negotiate(local, remote HeartBeat) (send, expect time.Duration) {
	if local.Outgoing > 0 && remote.Incoming > 0 {
		send = max(local.Outgoing, remote.Incoming)
	}
	if local.Incoming > 0 && remote.Outgoing > 0 {
		expect = max(local.Incoming, remote.Outgoing)
	}
	return send, expect
}

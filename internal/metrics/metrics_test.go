// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

package metrics

import (
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSetClientConnectionState(t *testing.T) {
	SetClientConnectionState(ConnStateConnected)
	if got := testutil.ToFloat64(ClientConnectionState); got != ConnStateConnected {
		t.Errorf("ClientConnectionState = %v, want %v", got, ConnStateConnected)
	}
	SetClientConnectionState(ConnStateReconnecting)
	if got := testutil.ToFloat64(ClientConnectionState); got != ConnStateReconnecting {
		t.Errorf("ClientConnectionState = %v, want %v", got, ConnStateReconnecting)
	}
}

func TestRecordConnectAttempt(t *testing.T) {
	attempts := testutil.ToFloat64(ClientConnectAttempts)
	dialFailures := testutil.ToFloat64(ClientConnectFailures.WithLabelValues("dial"))

	RecordConnectAttempt("dial", errors.New("connection refused"))
	RecordConnectAttempt("dial", nil)

	if got := testutil.ToFloat64(ClientConnectAttempts) - attempts; got != 2 {
		t.Errorf("attempts delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(ClientConnectFailures.WithLabelValues("dial")) - dialFailures; got != 1 {
		t.Errorf("dial failures delta = %v, want 1", got)
	}
}

func TestRecordFrames(t *testing.T) {
	in := testutil.ToFloat64(ClientFramesReceived.WithLabelValues("MESSAGE"))
	out := testutil.ToFloat64(ClientFramesSent.WithLabelValues("SEND"))

	RecordClientFrame(true, "MESSAGE")
	RecordClientFrame(false, "SEND")

	if got := testutil.ToFloat64(ClientFramesReceived.WithLabelValues("MESSAGE")) - in; got != 1 {
		t.Errorf("received delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(ClientFramesSent.WithLabelValues("SEND")) - out; got != 1 {
		t.Errorf("sent delta = %v, want 1", got)
	}

	bIn := testutil.ToFloat64(BrokerFrames.WithLabelValues("in", "SUBSCRIBE"))
	RecordBrokerFrame(true, "SUBSCRIBE")
	if got := testutil.ToFloat64(BrokerFrames.WithLabelValues("in", "SUBSCRIBE")) - bIn; got != 1 {
		t.Errorf("broker in delta = %v, want 1", got)
	}
}

func TestTrackBrokerSession(t *testing.T) {
	before := testutil.ToFloat64(BrokerSessions)
	TrackBrokerSession(true)
	TrackBrokerSession(true)
	TrackBrokerSession(false)
	if got := testutil.ToFloat64(BrokerSessions) - before; got != 1 {
		t.Errorf("sessions delta = %v, want 1", got)
	}
	TrackBrokerSession(false)
}

func TestRecordCircuitBreakerTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     float64
	}{
		{"closed", "open", 2},
		{"open", "half-open", 1},
		{"half-open", "closed", 0},
	}
	for _, tt := range tests {
		RecordCircuitBreakerTransition("relay-test", tt.from, tt.to)
		if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("relay-test")); got != tt.want {
			t.Errorf("after %s->%s state = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestConcurrentMetricRecording(t *testing.T) {
	before := testutil.ToFloat64(ClientPublishes.WithLabelValues("sent"))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			RecordPublish("sent")
			RecordBridgeEvent("emitted")
			RecordRelayPublish("memory", "ok")
		}()
	}
	wg.Wait()

	if got := testutil.ToFloat64(ClientPublishes.WithLabelValues("sent")) - before; got != 50 {
		t.Errorf("publishes delta = %v, want 50", got)
	}
}

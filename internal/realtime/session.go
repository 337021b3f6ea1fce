// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

package realtime

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/agora/internal/metrics"
	"github.com/tomtom215/agora/internal/stomp"
)

var errSessionClosed = errors.New("realtime: session closed")

// session is one established STOMP session over one WebSocket. A
// Connection replaces its session on every reconnect.
type session struct {
	ws *websocket.Conn

	// sendEvery and expectWithin are the negotiated heart-beat intervals.
	sendEvery    time.Duration
	expectWithin time.Duration

	writeMu sync.Mutex
	closed  bool

	done      chan struct{}
	closeOnce sync.Once
}

func newSession(ws *websocket.Conn) *session {
	return &session{ws: ws, done: make(chan struct{})}
}

// write sends one frame. Writes are serialized so frames from concurrent
// publishers never interleave on the socket.
func (s *session) write(f *frame.Frame) error {
	data, err := stomp.Encode(f)
	if err != nil {
		return err
	}
	if err := s.writeMessage(data); err != nil {
		return fmt.Errorf("write %s frame: %w", f.Command, err)
	}
	metrics.RecordClientFrame(false, f.Command)
	return nil
}

func (s *session) writeHeartbeat() error {
	return s.writeMessage([]byte{'\n'})
}

func (s *session) writeMessage(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed {
		return errSessionClosed
	}
	if err := s.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.ws.WriteMessage(websocket.TextMessage, data)
}

// close tears the socket down; safe to call more than once.
func (s *session) close() {
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		s.closed = true
		s.writeMu.Unlock()
		close(s.done)
		_ = s.ws.Close() // best-effort
	})
}

// heartbeatLoop emits EOL heart-beats until the session ends.
func (s *session) heartbeatLoop() {
	if s.sendEvery <= 0 {
		return
	}
	ticker := time.NewTicker(s.sendEvery)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.writeHeartbeat(); err != nil {
				return
			}
		}
	}
}

// readDeadline returns the deadline for the next read, or the zero time
// when the broker does not send heart-beats.
func (s *session) readDeadline() time.Time {
	if s.expectWithin <= 0 {
		return time.Time{}
	}
	return time.Now().Add(s.expectWithin + s.expectWithin/2)
}

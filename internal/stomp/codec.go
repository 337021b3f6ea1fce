// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

// Package stomp adapts STOMP 1.2 framing to WebSocket transport.
//
// Each WebSocket text message carries exactly one STOMP frame, or a bare EOL
// heart-beat. Frames are encoded and decoded with go-stomp's frame package;
// this package adds the per-message codec, frame builders for the commands
// Agora uses, and heart-beat negotiation.
package stomp

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/go-stomp/stomp/v3/frame"
)

// Version is the protocol version Agora speaks.
const Version = "1.2"

// ErrNoFrame is returned by Decode for a message holding only heart-beats.
var ErrNoFrame = errors.New("stomp: no frame in message")

// Encode serializes f for a single WebSocket message. A nil frame encodes
// to a heart-beat EOL.
func Encode(f *frame.Frame) ([]byte, error) {
	if f == nil {
		return []byte{'\n'}, nil
	}
	if f.Header == nil {
		f.Header = frame.NewHeader()
	}
	if len(f.Body) > 0 {
		if _, ok := f.Header.Contains(frame.ContentLength); !ok {
			f.Header.Set(frame.ContentLength, strconv.Itoa(len(f.Body)))
		}
	}

	var buf bytes.Buffer
	if err := frame.NewWriter(&buf).Write(f); err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", f.Command, err)
	}
	return buf.Bytes(), nil
}

// Decode parses the first frame of a WebSocket message. Leading heart-beat
// EOLs are skipped; a message with nothing else returns ErrNoFrame.
func Decode(data []byte) (*frame.Frame, error) {
	r := frame.NewReader(bytes.NewReader(data))
	for {
		f, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, ErrNoFrame
			}
			return nil, fmt.Errorf("decode frame: %w", err)
		}
		if f != nil {
			return f, nil
		}
	}
}

// IsHeartbeat reports whether a WebSocket message is only EOLs.
func IsHeartbeat(data []byte) bool {
	return len(bytes.Trim(data, "\r\n")) == 0
}

// BrokerError is an ERROR frame received from the broker.
type BrokerError struct {
	Message string
	Detail  string
}

func (e *BrokerError) Error() string {
	if e.Detail == "" {
		return "stomp: broker error: " + e.Message
	}
	return "stomp: broker error: " + e.Message + ": " + e.Detail
}

// ErrorFromFrame converts an ERROR frame into a *BrokerError.
func ErrorFromFrame(f *frame.Frame) error {
	return &BrokerError{
		Message: f.Header.Get(frame.Message),
		Detail:  string(bytes.TrimSpace(f.Body)),
	}
}

// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/tomtom215/agora/internal/metrics"
	"github.com/tomtom215/agora/internal/stomp"
	"github.com/tomtom215/agora/internal/validation"
)

// OutboundMessage is one chat message as sent to the broker. Only
// ConversationID is checked, since it becomes part of the destination; the
// other fields are passed through for the backend to judge.
type OutboundMessage struct {
	ConversationID string `json:"conversationId" validate:"required,topicsegment"`
	FromUserID     string `json:"fromUserId"`
	ToUserID       string `json:"toUserId,omitempty"`
	Content        string `json:"content"`
	SentAt         string `json:"sentAt"`
	TempID         string `json:"tempId,omitempty"`
}

// PublisherConfig paces outbound sends. A zero Rate disables pacing.
type PublisherConfig struct {
	Rate  float64
	Burst int
}

// Publisher sends chat messages to their conversation's app destination.
type Publisher struct {
	conn    *Connection
	limiter *rate.Limiter
	now     func() time.Time
}

// NewPublisher returns a publisher over conn.
func NewPublisher(conn *Connection, cfg PublisherConfig) *Publisher {
	p := &Publisher{conn: conn, now: time.Now}
	if cfg.Rate > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), burst)
	}
	return p
}

// Send builds an OutboundMessage stamped with the current time and publishes
// it to AppPrefix + "chat.<conversationID>". recipientID and tempID may be
// empty.
//
// Send is fire-and-forget: a nil error means the frame was written to the
// socket, not that the broker stored it. Confirmation arrives as the echoed
// message on ChatTopic(conversationID), which the caller is expected to be
// subscribed to; match it by TempID.
//
// Send waits for the connection indefinitely; bound it with ctx.
func (p *Publisher) Send(ctx context.Context, conversationID, senderID, recipientID, content, tempID string) (*OutboundMessage, error) {
	msg := &OutboundMessage{
		ConversationID: conversationID,
		FromUserID:     senderID,
		ToUserID:       recipientID,
		Content:        content,
		SentAt:         p.now().UTC().Format(time.RFC3339Nano),
		TempID:         tempID,
	}
	if verr := validation.ValidateStruct(msg); verr != nil {
		metrics.RecordPublish("invalid")
		return nil, verr
	}

	body, err := json.Marshal(msg)
	if err != nil {
		metrics.RecordPublish("error")
		return nil, fmt.Errorf("encode message: %w", err)
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			metrics.RecordPublish("cancelled")
			return nil, err
		}
	}

	destination := p.conn.cfg.AppPrefix + ChatTopic(conversationID)
	if err := p.conn.Publish(ctx, destination, stomp.ContentTypeJSON, body); err != nil {
		if ctx.Err() != nil {
			metrics.RecordPublish("cancelled")
		} else {
			metrics.RecordPublish("error")
		}
		return nil, err
	}
	metrics.RecordPublish("sent")
	return msg, nil
}

// NewTempID returns a client-side identifier for optimistic UI reconciliation.
func NewTempID() string {
	return "tmp-" + uuid.NewString()
}

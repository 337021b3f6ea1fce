// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

package broker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tomtom215/agora/internal/logging"
	"github.com/tomtom215/agora/internal/metrics"
	"github.com/tomtom215/agora/internal/stomp"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024 * 1024 // 1 MB
	publishTimeout = 5 * time.Second
)

// errCloseSession ends the read pump after a DISCONNECT or an ERROR frame.
var errCloseSession = errors.New("close session")

var clientIDCounter atomic.Uint64

// Publisher is the part of the relay a session needs.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

// Client is one STOMP session on the broker.
type Client struct {
	id      uint64
	session string
	hub     *Hub
	relay   Publisher
	conn    *websocket.Conn
	opts    Options
	log     zerolog.Logger

	send       chan *frame.Frame
	sendMu     sync.Mutex
	sendClosed bool

	// heartbeat carries the negotiated send interval to the write pump.
	heartbeat chan time.Duration
	expect    time.Duration

	connected bool
	closeOnce sync.Once
}

// NewClient wraps an upgraded connection.
func NewClient(hub *Hub, relay Publisher, conn *websocket.Conn, opts Options) *Client {
	opts = opts.withDefaults()
	session := uuid.NewString()
	return &Client{
		id:        clientIDCounter.Add(1),
		session:   session,
		hub:       hub,
		relay:     relay,
		conn:      conn,
		opts:      opts,
		log:       logging.WithComponent("broker").With().Str("session", session).Logger(),
		send:      make(chan *frame.Frame, opts.SendBuffer),
		heartbeat: make(chan time.Duration, 1),
	}
}

// ID returns the client's ordering key.
func (c *Client) ID() uint64 { return c.id }

// Session returns the STOMP session id sent in CONNECTED.
func (c *Client) Session() string { return c.session }

// enqueue queues f for the write pump without blocking.
func (c *Client) enqueue(f *frame.Frame) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.sendClosed {
		return false
	}
	select {
	case c.send <- f:
		return true
	default:
		return false
	}
}

// closeSend ends the write pump once queued frames are flushed.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if !c.sendClosed {
		c.sendClosed = true
		close(c.send)
	}
}

// Close drops the underlying socket.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		_ = c.conn.Close() // best-effort
	})
}

// Start registers the client with the hub and runs its pumps.
func (c *Client) Start() {
	select {
	case c.hub.Register <- c:
	case <-c.hub.Done():
		c.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.Unregister <- c:
		case <-c.hub.Done():
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(c.nextReadDeadline())
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Msg("unexpected websocket close")
			}
			return
		}
		if err := c.conn.SetReadDeadline(c.nextReadDeadline()); err != nil {
			return
		}
		if stomp.IsHeartbeat(data) {
			continue
		}

		f, err := stomp.Decode(data)
		if err != nil {
			c.protocolError("malformed frame", err.Error(), nil)
			return
		}
		metrics.RecordBrokerFrame(true, f.Command)

		if err := c.handle(f); err != nil {
			return
		}
	}
}

func (c *Client) nextReadDeadline() time.Time {
	wait := pongWait
	if c.expect > 0 && c.expect*2 > wait {
		wait = c.expect * 2
	}
	return time.Now().Add(wait)
}

func (c *Client) writePump() {
	ping := time.NewTicker(pingPeriod)
	var beat <-chan time.Time
	var beatTicker *time.Ticker
	defer func() {
		ping.Stop()
		if beatTicker != nil {
			beatTicker.Stop()
		}
		c.Close()
	}()

	for {
		select {
		case f, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			data, err := stomp.Encode(f)
			if err != nil {
				c.log.Error().Err(err).Str("command", f.Command).Msg("failed to encode frame")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
			metrics.RecordBrokerFrame(false, f.Command)

		case every := <-c.heartbeat:
			if beatTicker != nil {
				beatTicker.Stop()
			}
			beatTicker = time.NewTicker(every)
			beat = beatTicker.C

		case <-beat:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, []byte{'\n'}); err != nil {
				return
			}

		case <-ping.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handle processes one inbound frame. A non-nil error closes the session.
func (c *Client) handle(f *frame.Frame) error {
	if !c.connected {
		if f.Command == frame.CONNECT || f.Command == frame.STOMP {
			return c.handleConnect(f)
		}
		return c.protocolError("expected CONNECT", "received "+f.Command+" before CONNECT", f)
	}

	var err error
	switch f.Command {
	case frame.SUBSCRIBE:
		err = c.handleSubscribe(f)
	case frame.UNSUBSCRIBE:
		err = c.handleUnsubscribe(f)
	case frame.SEND:
		err = c.handleSend(f)
	case frame.DISCONNECT:
		c.receipt(f)
		c.log.Debug().Msg("client disconnected")
		return errCloseSession
	case frame.CONNECT, frame.STOMP:
		return c.protocolError("already connected", "", f)
	default:
		return c.protocolError("unsupported command", f.Command+" is not supported by this broker", f)
	}
	if err != nil {
		return err
	}
	c.receipt(f)
	return nil
}

func (c *Client) handleConnect(f *frame.Frame) error {
	if versions := f.Header.Get(frame.AcceptVersion); versions != "" && !acceptsVersion(versions, stomp.Version) {
		return c.protocolError("unsupported protocol version", "supported versions: "+stomp.Version, f)
	}
	clientHB, err := stomp.ParseHeartBeat(f.Header.Get(frame.HeartBeat))
	if err != nil {
		return c.protocolError("invalid heart-beat header", err.Error(), f)
	}

	send, expect := stomp.Negotiate(c.opts.HeartBeat, clientHB)
	c.expect = expect
	if send > 0 {
		c.heartbeat <- send
	}
	c.connected = true

	c.enqueue(stomp.Connected(c.session, c.opts.HeartBeat))
	c.log.Debug().Dur("heartbeat_send", send).Dur("heartbeat_expect", expect).Msg("stomp connected")
	return nil
}

func acceptsVersion(header, version string) bool {
	for _, v := range strings.Split(header, ",") {
		if strings.TrimSpace(v) == version {
			return true
		}
	}
	return false
}

func (c *Client) handleSubscribe(f *frame.Frame) error {
	id := f.Header.Get(frame.Id)
	dest := f.Header.Get(frame.Destination)
	if id == "" || dest == "" {
		return c.protocolError("SUBSCRIBE requires id and destination", "", f)
	}
	if !strings.HasPrefix(dest, c.opts.TopicPrefix) {
		return c.protocolError("invalid destination", "subscriptions must target "+c.opts.TopicPrefix+"*", f)
	}
	if ack := f.Header.Get(frame.Ack); ack != "" && ack != "auto" {
		return c.protocolError("unsupported ack mode", "only ack:auto is supported", f)
	}
	c.hub.Subscribe(c, id, dest)
	c.log.Debug().Str("id", id).Str("destination", dest).Msg("subscribed")
	return nil
}

func (c *Client) handleUnsubscribe(f *frame.Frame) error {
	id := f.Header.Get(frame.Id)
	if id == "" {
		return c.protocolError("UNSUBSCRIBE requires id", "", f)
	}
	c.hub.Unsubscribe(c, id)
	return nil
}

// handleSend relays a SEND. /app/<topic> is echoed to /topic/<topic> with a
// server id stamped on JSON objects; /topic/<topic> is relayed as is.
func (c *Client) handleSend(f *frame.Frame) error {
	dest := f.Header.Get(frame.Destination)
	contentType := f.Header.Get(frame.ContentType)
	body := f.Body

	switch {
	case strings.HasPrefix(dest, c.opts.AppPrefix):
		dest = c.opts.TopicPrefix + strings.TrimPrefix(dest, c.opts.AppPrefix)
		body = StampMessage(body, time.Now())
	case strings.HasPrefix(dest, c.opts.TopicPrefix):
	default:
		return c.protocolError("invalid destination", "SEND must target "+c.opts.AppPrefix+"* or "+c.opts.TopicPrefix+"*", f)
	}

	ctx, cancel := context.WithTimeout(logging.ContextWithSessionID(context.Background(), c.session), publishTimeout)
	defer cancel()
	if err := c.relay.Publish(ctx, Envelope{Destination: dest, ContentType: contentType, Body: body}); err != nil {
		return c.protocolError("message not relayed", err.Error(), f)
	}
	return nil
}

func (c *Client) receipt(f *frame.Frame) {
	if id := f.Header.Get(frame.Receipt); id != "" {
		c.enqueue(stomp.Receipt(id))
	}
}

// protocolError queues an ERROR frame and returns errCloseSession; STOMP
// requires the server to close the connection after ERROR.
func (c *Client) protocolError(message, detail string, cause *frame.Frame) error {
	ef := stomp.Error(message, detail)
	if cause != nil {
		if id := cause.Header.Get(frame.Receipt); id != "" {
			ef.Header.Set(frame.ReceiptId, id)
		}
	}
	c.enqueue(ef)
	metrics.BrokerProtocolErrors.Inc()
	c.log.Warn().Str("error", message).Str("detail", detail).Msg("stomp protocol error")
	return errCloseSession
}

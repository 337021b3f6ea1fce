// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

package realtime

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tomtom215/agora/internal/logging"
	"github.com/tomtom215/agora/internal/metrics"
	"github.com/tomtom215/agora/internal/stomp"
)

var (
	// ErrConnectionClosed is returned by operations on a Connection after Close.
	ErrConnectionClosed = errors.New("realtime: connection closed")

	// ErrSharedConnectionStarted is returned by SetSharedConfig once the
	// shared connection exists.
	ErrSharedConnectionStarted = errors.New("realtime: shared connection already created")

	// ErrSharedConnection is returned by Close on the shared connection,
	// which lives as long as the process.
	ErrSharedConnection = errors.New("realtime: the shared connection cannot be closed")
)

// State is the lifecycle state of a Connection.
type State int32

const (
	StateInactive State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Connection is the single logical link to the broker. It is created
// inactive, activated by the first EnsureConnected, and from then on keeps
// a STOMP session alive, retrying after a fixed delay whenever the broker is
// unreachable or the session drops.
//
// Activation is never cancelled by callers: a caller's ctx only bounds its
// own wait. There is no internal timeout, so a caller that needs a bound
// must pass a ctx with one.
type Connection struct {
	cfg    Config
	log    zerolog.Logger
	shared bool

	mu        sync.Mutex
	state     State
	activated bool
	closed    bool
	sess      *session
	ready     chan struct{} // closed while state == StateConnected
	closedCh  chan struct{}
	cancel    context.CancelFunc
	done      chan struct{} // closed when the run loop exits

	sessionHooks   []func(*session)
	frameHandlers  []func(*frame.Frame)
	stateListeners []func(State)

	subSeq atomic.Uint64
}

// NewConnection returns an inactive, privately owned connection. Most code
// should use GetConnection; owned connections exist for tools and tests
// and must be released with Close.
func NewConnection(cfg Config) (*Connection, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Connection{
		cfg:      cfg,
		log:      logging.WithComponent("realtime").With().Str("broker", cfg.URL).Logger(),
		ready:    make(chan struct{}),
		closedCh: make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Config returns the effective configuration.
func (c *Connection) Config() Config {
	return c.cfg
}

// State returns the current lifecycle state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// EnsureConnected returns once the connection is connected. The first call
// activates the connection; concurrent callers share that activation and
// wait on the same readiness signal. If the session later drops and comes
// back, waiters are released by the reconnect without calling again.
//
// It returns ctx.Err() if ctx ends first, or ErrConnectionClosed after Close.
func (c *Connection) EnsureConnected(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrConnectionClosed
	}
	if c.state == StateConnected {
		c.mu.Unlock()
		return nil
	}
	if !c.activated {
		c.activateLocked()
	}
	ready := c.ready
	c.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-c.closedCh:
		return ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Connection) activateLocked() {
	c.activated = true
	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.setStateLocked(StateConnecting)
	go c.run(runCtx)
}

// Publish sends body to destination, waiting for readiness first. It does
// not wait for any broker acknowledgement.
func (c *Connection) Publish(ctx context.Context, destination, contentType string, body []byte) error {
	for {
		if err := c.EnsureConnected(ctx); err != nil {
			return err
		}
		sess := c.session()
		if sess == nil {
			// Lost between readiness and now; wait for the next session.
			continue
		}
		return sess.write(stomp.Send(destination, contentType, body))
	}
}

// Close disconnects and stops reconnecting. Calls after the first are no-ops.
// The shared connection returns ErrSharedConnection.
func (c *Connection) Close() error {
	if c.shared {
		return ErrSharedConnection
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.closedCh)
	sess := c.sess
	cancel := c.cancel
	activated := c.activated
	c.mu.Unlock()

	if sess != nil {
		_ = sess.write(stomp.Disconnect("")) // best-effort
	}
	if cancel != nil {
		cancel()
	}
	if activated {
		<-c.done
	}

	c.mu.Lock()
	c.setStateLocked(StateInactive)
	c.mu.Unlock()
	return nil
}

// OnStateChange registers fn to run after every state transition. fn runs
// on the connection's goroutine and must not block.
func (c *Connection) OnStateChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateListeners = append(c.stateListeners, fn)
}

func (c *Connection) onSession(fn func(*session)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionHooks = append(c.sessionHooks, fn)
}

func (c *Connection) onFrame(fn func(*frame.Frame)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frameHandlers = append(c.frameHandlers, fn)
}

// session returns the live session, or nil when not connected.
func (c *Connection) session() *session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

func (c *Connection) nextSubscriptionID() string {
	return "sub-" + strconv.FormatUint(c.subSeq.Add(1), 10)
}

// setStateLocked records a transition and notifies listeners. Listeners run
// with c.mu held, so they must not call back into the Connection.
func (c *Connection) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	metrics.SetClientConnectionState(int(s))
	c.log.Debug().Str("state", s.String()).Msg("connection state changed")
	for _, fn := range c.stateListeners {
		fn(s)
	}
}

// run dials, serves the session until it drops, waits ReconnectDelay, and
// repeats until Close.
func (c *Connection) run(ctx context.Context) {
	defer close(c.done)

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.cfg.ReconnectDelay):
			}
		}

		sess, err := c.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn().Err(err).Int("attempt", attempt+1).
				Dur("retry_in", c.cfg.ReconnectDelay).Msg("broker connection failed")
			c.mu.Lock()
			c.setStateLocked(StateReconnecting)
			c.mu.Unlock()
			continue
		}

		attempt = 0
		err = c.serve(ctx, sess)
		if ctx.Err() != nil {
			return
		}
		metrics.ClientDisconnects.Inc()
		c.log.Warn().Err(err).Dur("retry_in", c.cfg.ReconnectDelay).Msg("broker session lost")
	}
}

// connect dials the broker and completes the STOMP handshake.
func (c *Connection) connect(ctx context.Context) (*session, error) {
	dialCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	ws, resp, err := c.cfg.Dialer.DialContext(dialCtx, c.cfg.URL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	metrics.RecordConnectAttempt("dial", err)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}

	sess := newSession(ws)
	stop := context.AfterFunc(ctx, sess.close)
	defer stop()

	if err := c.handshake(sess); err != nil {
		metrics.ClientConnectFailures.WithLabelValues("handshake").Inc()
		sess.close()
		return nil, err
	}
	return sess, nil
}

func (c *Connection) handshake(sess *session) error {
	sess.ws.SetReadLimit(maxMessageSize)

	err := sess.write(stomp.Connect(stomp.ConnectOptions{
		Host:      c.cfg.Host,
		Login:     c.cfg.Login,
		Passcode:  c.cfg.Passcode,
		HeartBeat: c.cfg.HeartBeat,
	}))
	if err != nil {
		return err
	}

	if err := sess.ws.SetReadDeadline(time.Now().Add(handshakeTimeout)); err != nil {
		return err
	}
	for {
		_, data, err := sess.ws.ReadMessage()
		if err != nil {
			return fmt.Errorf("read CONNECTED: %w", err)
		}
		if stomp.IsHeartbeat(data) {
			continue
		}
		f, err := stomp.Decode(data)
		if err != nil {
			return err
		}
		metrics.RecordClientFrame(true, f.Command)

		switch f.Command {
		case frame.CONNECTED:
			serverHB, err := stomp.ParseHeartBeat(f.Header.Get(frame.HeartBeat))
			if err != nil {
				return err
			}
			sess.sendEvery, sess.expectWithin = stomp.Negotiate(c.cfg.HeartBeat, serverHB)
			return sess.ws.SetReadDeadline(time.Time{})
		case frame.ERROR:
			return stomp.ErrorFromFrame(f)
		default:
			return fmt.Errorf("unexpected %s frame during handshake", f.Command)
		}
	}
}

// serve publishes sess as the live session, runs the session hooks
// (resubscription), releases EnsureConnected waiters, and then reads until
// the session ends.
func (c *Connection) serve(ctx context.Context, sess *session) error {
	c.mu.Lock()
	hooks := append([]func(*session){}, c.sessionHooks...)
	c.mu.Unlock()

	for _, hook := range hooks {
		hook(sess)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		sess.close()
		return ErrConnectionClosed
	}
	c.sess = sess
	c.setStateLocked(StateConnected)
	close(c.ready)
	c.mu.Unlock()

	c.log.Info().Dur("heartbeat_send", sess.sendEvery).
		Dur("heartbeat_expect", sess.expectWithin).Msg("broker session established")

	go sess.heartbeatLoop()
	stop := context.AfterFunc(ctx, sess.close)
	defer stop()

	err := c.readLoop(sess)

	c.mu.Lock()
	c.sess = nil
	c.ready = make(chan struct{})
	if !c.closed {
		c.setStateLocked(StateReconnecting)
	}
	c.mu.Unlock()

	sess.close()
	return err
}

func (c *Connection) readLoop(sess *session) error {
	for {
		if err := sess.ws.SetReadDeadline(sess.readDeadline()); err != nil {
			return err
		}
		_, data, err := sess.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return fmt.Errorf("read: %w", err)
			}
			return err
		}
		if stomp.IsHeartbeat(data) {
			continue
		}

		f, err := stomp.Decode(data)
		if err != nil {
			c.log.Warn().Err(err).Int("bytes", len(data)).Msg("dropping undecodable frame")
			continue
		}
		metrics.RecordClientFrame(true, f.Command)

		switch f.Command {
		case frame.MESSAGE:
			c.dispatch(f)
		case frame.ERROR:
			return stomp.ErrorFromFrame(f)
		case frame.RECEIPT:
			c.log.Debug().Str("receipt_id", f.Header.Get(frame.ReceiptId)).Msg("receipt")
		default:
			c.log.Debug().Str("command", f.Command).Msg("ignoring frame")
		}
	}
}

// dispatch hands a MESSAGE frame to every registry in registration order,
// synchronously, so per-topic delivery order matches broker order.
func (c *Connection) dispatch(f *frame.Frame) {
	c.mu.Lock()
	handlers := c.frameHandlers
	c.mu.Unlock()

	for _, h := range handlers {
		h(f)
	}
}

// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

package realtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/rs/zerolog"

	"github.com/tomtom215/agora/internal/logging"
	"github.com/tomtom215/agora/internal/metrics"
	"github.com/tomtom215/agora/internal/stomp"
)

// ErrUnsubscribed is returned by Subscription.Wait after Unsubscribe.
var ErrUnsubscribed = errors.New("realtime: subscription torn down")

// Handler receives inbound events for a topic. Handlers run on the
// connection's read goroutine, one frame at a time in broker order, and
// should hand long work off elsewhere.
type Handler func(Event)

// SubscriptionState is the per-subscription lifecycle.
type SubscriptionState int32

const (
	SubscriptionPending SubscriptionState = iota
	SubscriptionActive
	SubscriptionUnsubscribed
)

func (s SubscriptionState) String() string {
	switch s {
	case SubscriptionPending:
		return "PENDING_CONNECT"
	case SubscriptionActive:
		return "ACTIVE"
	case SubscriptionUnsubscribed:
		return "UNSUBSCRIBED"
	default:
		return "UNKNOWN"
	}
}

// Registry maps topics to listeners over one Connection. Each topic has at
// most one broker subscription no matter how many listeners share it; the
// last listener to leave sends UNSUBSCRIBE. Broker subscriptions are
// re-established on every reconnect.
type Registry struct {
	conn *Connection
	log  zerolog.Logger

	mu     sync.Mutex
	topics map[string]*topicEntry
	byID   map[string]*topicEntry
}

type topicEntry struct {
	topic       string
	destination string
	id          string

	// sess is the session the SUBSCRIBE was sent on; nil or stale means
	// the next session must subscribe again.
	sess *session

	// listeners is replaced, never mutated, so dispatch can iterate a
	// snapshot without holding the lock.
	listeners []*Subscription
}

// NewRegistry returns a registry bound to conn.
func NewRegistry(conn *Connection) *Registry {
	r := &Registry{
		conn:   conn,
		log:    logging.WithComponent("realtime.registry"),
		topics: make(map[string]*topicEntry),
		byID:   make(map[string]*topicEntry),
	}
	conn.onSession(r.resubscribe)
	conn.onFrame(r.dispatch)
	return r
}

// Subscription is one listener's interest in a topic.
type Subscription struct {
	topic    string
	handler  Handler
	registry *Registry

	state  atomic.Int32
	ctx    context.Context
	cancel context.CancelFunc

	ready     chan struct{}
	readyOnce sync.Once
	err       error
}

// Topic returns the subscribed topic.
func (s *Subscription) Topic() string { return s.topic }

// State returns the current lifecycle state.
func (s *Subscription) State() SubscriptionState {
	return SubscriptionState(s.state.Load())
}

// Wait blocks until the subscription is active. It returns ErrUnsubscribed
// if the subscription was torn down first, ErrConnectionClosed if the
// connection was closed, or ctx.Err().
func (s *Subscription) Wait(ctx context.Context) error {
	select {
	case <-s.ready:
	case <-ctx.Done():
		return ctx.Err()
	}
	switch s.State() {
	case SubscriptionActive:
		return nil
	case SubscriptionUnsubscribed:
		return ErrUnsubscribed
	default:
		return s.err
	}
}

// Unsubscribe removes the listener. It is safe to call any number of times
// and never fails; transport errors during teardown are logged and dropped.
// Once it returns, the handler is not invoked again.
func (s *Subscription) Unsubscribe() {
	s.registry.unsubscribe(s)
}

func (s *Subscription) markReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

// Subscribe registers handler for topic and returns immediately in the
// PENDING_CONNECT state. A background activation waits for the connection
// and then registers the listener. Unsubscribing before that completes
// cancels the activation.
func (r *Registry) Subscribe(topic string, handler Handler) *Subscription {
	ctx, cancel := context.WithCancel(context.Background())
	sub := &Subscription{
		topic:    topic,
		handler:  handler,
		registry: r,
		ctx:      ctx,
		cancel:   cancel,
		ready:    make(chan struct{}),
	}
	go r.activate(sub)
	return sub
}

func (r *Registry) activate(sub *Subscription) {
	for {
		if err := r.conn.EnsureConnected(sub.ctx); err != nil {
			if errors.Is(err, ErrConnectionClosed) {
				r.mu.Lock()
				sub.err = err
				r.mu.Unlock()
				sub.markReady()
			}
			return
		}
		if r.register(sub) {
			return
		}
	}
}

// register attaches sub to its topic on the live session. It returns false
// when there is no live session so the caller waits again.
func (r *Registry) register(sub *Subscription) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sub.State() != SubscriptionPending {
		return true
	}
	sess := r.conn.session()
	if sess == nil {
		return false
	}

	entry := r.topics[sub.topic]
	if entry == nil {
		entry = &topicEntry{
			topic:       sub.topic,
			destination: r.conn.cfg.TopicPrefix + sub.topic,
			id:          r.conn.nextSubscriptionID(),
		}
		r.topics[sub.topic] = entry
		r.byID[entry.id] = entry
		metrics.ClientActiveSubscriptions.Inc()
	}
	if entry.sess != sess {
		r.subscribeLocked(entry, sess)
	}

	listeners := make([]*Subscription, 0, len(entry.listeners)+1)
	listeners = append(listeners, entry.listeners...)
	entry.listeners = append(listeners, sub)

	sub.state.Store(int32(SubscriptionActive))
	sub.markReady()
	r.log.Debug().Str("topic", sub.topic).Str("id", entry.id).
		Int("listeners", len(entry.listeners)).Msg("subscribed")
	return true
}

// subscribeLocked sends SUBSCRIBE for entry on sess. A failed write leaves
// entry.sess unchanged so the next session retries.
func (r *Registry) subscribeLocked(entry *topicEntry, sess *session) {
	if err := sess.write(stomp.Subscribe(entry.id, entry.destination)); err != nil {
		r.log.Warn().Err(err).Str("topic", entry.topic).Msg("subscribe failed, will retry on reconnect")
		return
	}
	entry.sess = sess
}

// resubscribe runs before a new session is published as connected.
func (r *Registry) resubscribe(sess *session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, entry := range r.topics {
		if entry.sess != sess {
			r.subscribeLocked(entry, sess)
		}
	}
	if len(r.topics) > 0 {
		r.log.Info().Int("topics", len(r.topics)).Msg("resubscribed after connect")
	}
}

func (r *Registry) unsubscribe(sub *Subscription) {
	sub.cancel()

	r.mu.Lock()
	defer r.mu.Unlock()

	prev := sub.State()
	if prev == SubscriptionUnsubscribed {
		return
	}
	sub.state.Store(int32(SubscriptionUnsubscribed))
	sub.markReady()

	if prev != SubscriptionActive {
		return
	}

	entry := r.topics[sub.topic]
	if entry == nil {
		return
	}
	listeners := make([]*Subscription, 0, len(entry.listeners))
	for _, l := range entry.listeners {
		if l != sub {
			listeners = append(listeners, l)
		}
	}
	entry.listeners = listeners
	if len(listeners) > 0 {
		return
	}

	delete(r.topics, entry.topic)
	delete(r.byID, entry.id)
	metrics.ClientActiveSubscriptions.Dec()

	if sess := r.conn.session(); sess != nil && sess == entry.sess {
		if err := sess.write(stomp.Unsubscribe(entry.id)); err != nil {
			r.log.Debug().Err(err).Str("topic", entry.topic).Msg("unsubscribe failed, ignoring")
		}
	}
	r.log.Debug().Str("topic", entry.topic).Msg("unsubscribed")
}

// dispatch routes a MESSAGE to the listeners of its subscription. Frames
// carrying another registry's subscription id are ignored.
func (r *Registry) dispatch(f *frame.Frame) {
	r.mu.Lock()
	var entry *topicEntry
	if id := f.Header.Get(frame.Subscription); id != "" {
		entry = r.byID[id]
	} else {
		entry = r.byDestinationLocked(f.Header.Get(frame.Destination))
	}
	if entry == nil {
		r.mu.Unlock()
		return
	}
	topic := entry.topic
	listeners := entry.listeners
	r.mu.Unlock()

	ev := newEvent(topic, f)
	for _, l := range listeners {
		if l.State() != SubscriptionActive {
			continue
		}
		r.deliver(l, ev)
	}
}

func (r *Registry) byDestinationLocked(destination string) *topicEntry {
	for _, e := range r.topics {
		if e.destination == destination {
			return e
		}
	}
	return nil
}

// deliver invokes one handler, containing panics so a faulty handler cannot
// take down the read loop.
func (r *Registry) deliver(sub *Subscription, ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Interface("panic", rec).Str("topic", ev.Topic).Msg("subscription handler panicked")
		}
	}()
	sub.handler(ev)
}

// Topics returns the topics that currently have listeners.
func (r *Registry) Topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.topics))
	for t := range r.topics {
		out = append(out, t)
	}
	return out
}

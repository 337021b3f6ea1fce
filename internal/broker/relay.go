// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/agora/internal/logging"
	"github.com/tomtom215/agora/internal/metrics"
)

// Relay metadata keys.
const (
	metaDestination = "destination"
	metaContentType = "content_type"
)

// Relay modes.
const (
	ModeMemory = "memory"
	ModeNATS   = "nats"
)

// ErrRelayClosed is returned by Publish after Close.
var ErrRelayClosed = errors.New("broker: relay closed")

// Envelope is one message on its way to a /topic destination.
type Envelope struct {
	Destination string
	ContentType string
	Body        []byte
}

// Deliverer fans an envelope out to local sessions. *Hub implements it.
type Deliverer interface {
	Deliver(destination, contentType string, body []byte) int
}

// Relay moves envelopes from publishers to every broker node's hub over a
// watermill publisher/subscriber pair.
type Relay struct {
	mode    string
	topic   string
	pub     message.Publisher
	sub     message.Subscriber
	target  Deliverer
	breaker *gobreaker.CircuitBreaker[interface{}]
	closers []func() error
	log     zerolog.Logger

	ready     chan struct{}
	readyOnce sync.Once
	closed    atomic.Bool
}

// RelayConfig is shared by every relay mode.
type RelayConfig struct {
	// Topic is the gochannel topic or NATS subject.
	Topic   string
	Breaker CircuitBreakerConfig
}

func (c RelayConfig) withDefaults(mode string) RelayConfig {
	if c.Topic == "" {
		c.Topic = "agora.relay"
	}
	if c.Breaker.Name == "" {
		c.Breaker = DefaultCircuitBreakerConfig("relay-" + mode)
	}
	return c
}

// NewMemoryRelay returns an in-process relay backed by a gochannel pub/sub.
func NewMemoryRelay(target Deliverer, cfg RelayConfig) *Relay {
	cfg = cfg.withDefaults(ModeMemory)
	logger := logging.NewWatermillAdapter("broker.relay")
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            256,
		BlockPublishUntilSubscriberAck: true,
	}, logger)
	return newRelay(ModeMemory, cfg, pubsub, pubsub, target, pubsub.Close)
}

func newRelay(mode string, cfg RelayConfig, pub message.Publisher, sub message.Subscriber, target Deliverer, closers ...func() error) *Relay {
	return &Relay{
		mode:    mode,
		topic:   cfg.Topic,
		pub:     pub,
		sub:     sub,
		target:  target,
		breaker: NewCircuitBreaker(cfg.Breaker),
		closers: closers,
		log:     logging.WithComponent("broker.relay").With().Str("mode", mode).Logger(),
		ready:   make(chan struct{}),
	}
}

// Mode returns "memory" or "nats".
func (r *Relay) Mode() string { return r.mode }

// BreakerState returns the publish breaker state name.
func (r *Relay) BreakerState() string { return r.breaker.State().String() }

// Ready is closed once Serve has subscribed; publishes made before that may
// be lost in memory mode.
func (r *Relay) Ready() <-chan struct{} { return r.ready }

// Publish hands env to the relay. It fails fast while the breaker is open.
func (r *Relay) Publish(ctx context.Context, env Envelope) error {
	if r.closed.Load() {
		return ErrRelayClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), env.Body)
	msg.Metadata.Set(metaDestination, env.Destination)
	if env.ContentType != "" {
		msg.Metadata.Set(metaContentType, env.ContentType)
	}
	msg.SetContext(ctx)

	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, r.pub.Publish(r.topic, msg)
	})
	switch {
	case err == nil:
		metrics.RecordRelayPublish(r.mode, "ok")
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordRelayPublish(r.mode, "rejected")
		err = fmt.Errorf("relay unavailable: %w", err)
	default:
		metrics.RecordRelayPublish(r.mode, "error")
		err = fmt.Errorf("relay publish: %w", err)
	}
	// ctx carries the broker session or the API request's correlation id.
	logging.Ctx(ctx).Warn().Err(err).Str("mode", r.mode).
		Str("destination", env.Destination).Msg("relay publish failed")
	return err
}

// Serve subscribes and delivers envelopes to the target until ctx ends. It
// implements suture.Service.
func (r *Relay) Serve(ctx context.Context) error {
	msgs, err := r.sub.Subscribe(ctx, r.topic)
	if err != nil {
		return fmt.Errorf("relay subscribe %s: %w", r.topic, err)
	}
	r.readyOnce.Do(func() { close(r.ready) })
	r.log.Info().Str("topic", r.topic).Msg("relay subscribed")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("relay subscription %s closed", r.topic)
			}
			r.deliver(msg)
		}
	}
}

func (r *Relay) deliver(msg *message.Message) {
	defer msg.Ack()

	dest := msg.Metadata.Get(metaDestination)
	if dest == "" {
		r.log.Warn().Str("uuid", msg.UUID).Msg("relayed message without destination")
		return
	}
	n := r.target.Deliver(dest, msg.Metadata.Get(metaContentType), msg.Payload)
	metrics.RecordRelayDelivery(r.mode)
	r.log.Debug().Str("destination", dest).Int("subscribers", n).Msg("relayed")
}

// Close stops the relay. Calls after the first are no-ops.
func (r *Relay) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	var errs []error
	for _, c := range r.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// String implements fmt.Stringer for suture logging.
func (r *Relay) String() string {
	return "relay-" + r.mode
}

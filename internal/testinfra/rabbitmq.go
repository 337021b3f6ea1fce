// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// DefaultRabbitMQImage is the RabbitMQ image used for STOMP tests.
	DefaultRabbitMQImage = "rabbitmq:3.13-management"

	// WebSTOMPPort is the Web-STOMP plugin's listener.
	WebSTOMPPort = "15674"

	// DefaultRabbitMQUser and DefaultRabbitMQPassword are the image's
	// built-in credentials.
	DefaultRabbitMQUser     = "guest"
	DefaultRabbitMQPassword = "guest"
)

// RabbitMQContainer is a RabbitMQ broker with the Web-STOMP plugin enabled.
type RabbitMQContainer struct {
	testcontainers.Container

	// WSURL is the STOMP-over-WebSocket endpoint, ws://host:port/ws.
	WSURL string

	Login    string
	Passcode string

	// VirtualHost is sent as the STOMP host header.
	VirtualHost string
}

// RabbitMQOption configures the container.
type RabbitMQOption func(*rabbitMQConfig)

type rabbitMQConfig struct {
	image        string
	startTimeout time.Duration
}

// WithRabbitMQImage overrides the image.
func WithRabbitMQImage(image string) RabbitMQOption {
	return func(c *rabbitMQConfig) {
		c.image = image
	}
}

// WithRabbitMQStartTimeout bounds how long startup may take.
func WithRabbitMQStartTimeout(d time.Duration) RabbitMQOption {
	return func(c *rabbitMQConfig) {
		c.startTimeout = d
	}
}

// NewRabbitMQContainer starts RabbitMQ with rabbitmq_web_stomp enabled.
//
//	rmq, err := testinfra.NewRabbitMQContainer(ctx)
//	if err != nil {
//	    t.Fatal(err)
//	}
//	testinfra.CleanupContainer(t, rmq)
//
//	conn, _ := realtime.NewConnection(realtime.Config{
//	    URL: rmq.WSURL, Host: rmq.VirtualHost,
//	    Login: rmq.Login, Passcode: rmq.Passcode,
//	})
func NewRabbitMQContainer(ctx context.Context, opts ...RabbitMQOption) (*RabbitMQContainer, error) {
	cfg := &rabbitMQConfig{
		image:        DefaultRabbitMQImage,
		startTimeout: 120 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	req := testcontainers.ContainerRequest{
		Image:        cfg.image,
		ExposedPorts: []string{WebSTOMPPort + "/tcp"},
		Env: map[string]string{
			"RABBITMQ_DEFAULT_USER": DefaultRabbitMQUser,
			"RABBITMQ_DEFAULT_PASS": DefaultRabbitMQPassword,
		},
		Files: []testcontainers.ContainerFile{{
			Reader:            strings.NewReader("[rabbitmq_management,rabbitmq_web_stomp].\n"),
			ContainerFilePath: "/etc/rabbitmq/enabled_plugins",
			FileMode:          0o644,
		}},
		WaitingFor: wait.ForAll(
			wait.ForLog("Server startup complete"),
			wait.ForListeningPort(WebSTOMPPort+"/tcp"),
		).WithStartupTimeout(cfg.startTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("create rabbitmq container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, WebSTOMPPort)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get mapped port: %w", err)
	}

	return &RabbitMQContainer{
		Container:   container,
		WSURL:       fmt.Sprintf("ws://%s:%s/ws", host, port.Port()),
		Login:       DefaultRabbitMQUser,
		Passcode:    DefaultRabbitMQPassword,
		VirtualHost: "/",
	}, nil
}

// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

// Package testinfra provides container-backed infrastructure for
// integration tests, using testcontainers-go.
//
// # RabbitMQ Container
//
// RabbitMQContainer runs RabbitMQ with the Web-STOMP plugin, a third-party
// STOMP 1.2 broker the realtime client is checked against:
//
//	func TestAgainstRabbit(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    rmq, err := testinfra.NewRabbitMQContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    testinfra.CleanupContainer(t, rmq)
//	    // dial rmq.WSURL with rmq.Login / rmq.Passcode, host rmq.VirtualHost
//	}
//
// RabbitMQ has no application destinations; configure the client with
// AppPrefix "/topic/" so publishes route through amq.topic.
//
// # Running
//
// The files carry the integration build tag:
//
//	go test -tags integration ./internal/testinfra/...
//
// Tests skip when Docker is unavailable. The first run pulls the image.
package testinfra

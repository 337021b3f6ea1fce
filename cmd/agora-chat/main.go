// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

// Command agora-chat is a terminal client for the Agora real-time layer.
//
//	agora-chat notifications --user u-7
//	agora-chat chat --user userA --to userB --conversation conv-42
//
// The broker URL is derived from API_BASE_URL (http -> ws, https -> wss,
// path BROKER_PATH) unless --broker-url or BROKER_URL is set.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/tomtom215/agora/internal/config"
	"github.com/tomtom215/agora/internal/logging"
	"github.com/tomtom215/agora/internal/realtime"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	version = "dev"
	commit  = "HEAD"
)

// Flags carries global flag values and the loaded configuration to the
// subcommands.
type Flags struct {
	LogLevel  string
	LogFormat string
	BrokerURL string

	Config *config.Config
	Out    io.Writer
}

// client opens a realtime client for the configured broker.
func (f *Flags) client() (*realtime.Client, error) {
	rc := f.Config.Realtime
	if f.BrokerURL != "" {
		rc.BrokerURL = f.BrokerURL
	}
	cfg, err := realtime.ConfigFromSettings(&rc)
	if err != nil {
		return nil, err
	}
	conn, err := realtime.NewConnection(cfg)
	if err != nil {
		return nil, err
	}
	return realtime.NewClient(conn, realtime.PublisherConfig{
		Rate:  rc.PublishRate,
		Burst: rc.PublishBurst,
	}), nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	flags := &Flags{Out: os.Stdout}

	app := &cli.Command{
		Name:    "agora-chat",
		Usage:   "Follow Agora notifications and chat from a terminal",
		Version: fmt.Sprintf("%s (%s)", version, commit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (trace, debug, info, warn, error)",
				Sources:     cli.EnvVars("LOG_LEVEL"),
				Value:       "warn",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-format",
				Usage:       "log format (console, json)",
				Value:       "console",
				Destination: &flags.LogFormat,
			},
			&cli.StringFlag{
				Name:        "broker-url",
				Usage:       "ws:// or wss:// broker endpoint, overrides API_BASE_URL derivation",
				Destination: &flags.BrokerURL,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			cfg, err := config.Load()
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			flags.Config = cfg

			logging.Init(logging.Config{
				Level:  flags.LogLevel,
				Format: flags.LogFormat,
			})
			return ctx, nil
		},
	}

	app = NewNotificationsCmd(flags).Register(app)
	app = NewChatCmd(flags).Register(app)

	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "agora-chat:", err)
		stop()
		os.Exit(1)
	}
}

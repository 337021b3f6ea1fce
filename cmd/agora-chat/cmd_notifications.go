// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

package main

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/tomtom215/agora/internal/realtime"
	"github.com/tomtom215/agora/internal/validation"
)

// NotificationsCmd prints the notifications bridged for one user.
type NotificationsCmd struct {
	flags  *Flags
	userID string
}

// NewNotificationsCmd creates the notifications command.
func NewNotificationsCmd(flags *Flags) *NotificationsCmd {
	return &NotificationsCmd{flags: flags}
}

// Register adds the command to app.
func (cmd *NotificationsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "notifications",
		Usage:     "Print notifications for a user as JSON lines",
		UsageText: "agora-chat notifications --user <userID>",
		Description: `Subscribes to the user's notification topic and prints every
notification addressed to that user, one JSON object per line.
Connection state changes are printed to stderr.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "user",
				Aliases:     []string{"u"},
				Usage:       "user id to follow",
				Required:    true,
				Destination: &cmd.userID,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *NotificationsCmd) run(ctx context.Context, c *cli.Command) error {
	if !validation.IsIdentifier(cmd.userID) {
		return fmt.Errorf("invalid --user %q", cmd.userID)
	}

	client, err := cmd.flags.client()
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	notifications, err := client.Bus.Listen(ctx, realtime.NotificationEvent)
	if err != nil {
		return err
	}
	states, err := client.Bus.Listen(ctx, realtime.ConnectionStateEvent)
	if err != nil {
		return err
	}

	client.Bridge.SetUser(cmd.userID)

	errOut := c.Root().ErrWriter
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-states:
			if !ok {
				return nil
			}
			if errOut != nil {
				fmt.Fprintf(errOut, "connection: %v\n", ev.Payload)
			}
		case ev, ok := <-notifications:
			if !ok {
				return nil
			}
			line, err := json.Marshal(ev.Payload)
			if err != nil {
				return fmt.Errorf("encode notification: %w", err)
			}
			fmt.Fprintln(cmd.flags.Out, string(line))
		}
	}
}

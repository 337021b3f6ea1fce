// Agora - Social Forum Real-Time Event Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agora

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/tomtom215/agora/internal/realtime"
)

// drainTimeout is how long chat waits for outstanding echoes after stdin
// closes.
const drainTimeout = 5 * time.Second

// ChatCmd sends stdin lines to a conversation and prints what arrives on it.
type ChatCmd struct {
	flags          *Flags
	userID         string
	toUserID       string
	conversationID string

	in io.Reader
}

// NewChatCmd creates the chat command.
func NewChatCmd(flags *Flags) *ChatCmd {
	return &ChatCmd{flags: flags, in: os.Stdin}
}

// Register adds the command to app.
func (cmd *ChatCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "chat",
		Usage:     "Chat in a conversation from stdin",
		UsageText: "agora-chat chat --user <userID> --conversation <id> [--to <userID>]",
		Description: `Subscribes to the conversation and sends every stdin line as a
message. Each sent line carries a tempId; when the broker echoes it back the
line is printed as delivered with its server id.

Examples:
  agora-chat chat --user userA --to userB --conversation conv-42
  echo hello | agora-chat chat -u userA -c conv-42`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "user",
				Aliases:     []string{"u"},
				Usage:       "sender user id",
				Required:    true,
				Destination: &cmd.userID,
			},
			&cli.StringFlag{
				Name:        "to",
				Usage:       "recipient user id (optional)",
				Destination: &cmd.toUserID,
			},
			&cli.StringFlag{
				Name:        "conversation",
				Aliases:     []string{"c"},
				Usage:       "conversation id",
				Required:    true,
				Destination: &cmd.conversationID,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *ChatCmd) run(ctx context.Context, _ *cli.Command) error {
	client, err := cmd.flags.client()
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	rec := newReconciler(cmd.userID)
	sub := client.Registry.Subscribe(realtime.ChatTopic(cmd.conversationID), func(ev realtime.Event) {
		line, echoed := rec.resolve(ev)
		fmt.Fprintln(cmd.flags.Out, line)
		if echoed != "" {
			rec.settle(echoed)
		}
	})
	defer sub.Unsubscribe()

	// Sending before the subscription is active would lose our own echoes.
	if err := sub.Wait(ctx); err != nil {
		return err
	}

	lines := readLines(ctx, cmd.in)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return rec.drain(ctx, drainTimeout)
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			tempID := realtime.NewTempID()
			rec.track(tempID, line)
			if _, err := client.Publisher.Send(ctx, cmd.conversationID, cmd.userID, cmd.toUserID, line, tempID); err != nil {
				rec.settle(tempID)
				if ctx.Err() != nil {
					return nil
				}
				fmt.Fprintf(cmd.flags.Out, "! not sent: %v\n", err)
			}
		}
	}
}

// readLines streams r line by line until EOF or ctx ends.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case out <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

var errUndelivered = errors.New("messages not echoed by the broker")

// reconciler matches echoed chat messages to lines this process sent.
type reconciler struct {
	userID string

	mu      sync.Mutex
	pending map[string]string // tempId -> content
	settled chan struct{}
}

func newReconciler(userID string) *reconciler {
	return &reconciler{
		userID:  userID,
		pending: make(map[string]string),
		settled: make(chan struct{}, 1),
	}
}

func (r *reconciler) track(tempID, content string) {
	r.mu.Lock()
	r.pending[tempID] = content
	r.mu.Unlock()
}

// settle stops waiting for tempID.
func (r *reconciler) settle(tempID string) {
	r.mu.Lock()
	delete(r.pending, tempID)
	r.notifyLocked()
	r.mu.Unlock()
}

func (r *reconciler) outstanding() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

func (r *reconciler) notifyLocked() {
	if len(r.pending) == 0 {
		select {
		case r.settled <- struct{}{}:
		default:
		}
	}
}

// resolve renders one inbound event. When the event echoes a pending line
// its tempId is returned; the caller settles it once the line is shown.
func (r *reconciler) resolve(ev realtime.Event) (line, echoed string) {
	obj, ok := ev.Object()
	if !ok {
		return fmt.Sprintf("? %v", ev.Payload), ""
	}

	from, _ := obj["fromUserId"].(string)
	content, _ := obj["content"].(string)
	id, _ := obj["id"].(string)

	if tempID, _ := obj["tempId"].(string); tempID != "" && from == r.userID {
		r.mu.Lock()
		_, mine := r.pending[tempID]
		r.mu.Unlock()
		if mine {
			return fmt.Sprintf("✓ %s (%s)", content, id), tempID
		}
	}
	if from == "" {
		from = "?"
	}
	return fmt.Sprintf("%s: %s", from, content), ""
}

// drain waits until every tracked line was echoed, ctx ends, or timeout
// passes.
func (r *reconciler) drain(ctx context.Context, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		if r.outstanding() == 0 {
			return nil
		}
		select {
		case <-r.settled:
		case <-ctx.Done():
			return nil
		case <-timer.C:
			return fmt.Errorf("%w: %d outstanding", errUndelivered, r.outstanding())
		}
	}
}

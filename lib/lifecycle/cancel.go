// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/buildclient/lib/wire"
)

type actionKind int

const (
	actionNothing actionKind = iota
	actionJoin
	actionCommandIDReceived
	actionCancel
)

// action is one message to the cancel listener.
type action struct {
	kind      actionKind
	commandID string
}

// actionBuffer is the cancel channel capacity. Cancel drops requests
// once it is full; a full buffer already holds a pending cancel.
const actionBuffer = 16

// Cancel asks the running command to stop. It never blocks and is safe
// to call from any goroutine, including before the command has started:
// the request is held until the server reports a command ID.
func (c *Coordinator) Cancel() {
	select {
	case c.actions <- action{kind: actionCancel}:
	default:
	}
}

// listenForCancel serves the action channel for one Communicate call.
// It exits on actionJoin.
func (c *Coordinator) listenForCancel(ctx context.Context, client *wire.Client, cookie string) {
	var commandID string
	pending := false
	for next := range c.actions {
		switch next.kind {
		case actionJoin:
			return
		case actionCommandIDReceived:
			commandID = next.commandID
			if pending {
				pending = false
				c.sendCancel(ctx, client, cookie, commandID)
			}
		case actionCancel:
			if commandID == "" {
				pending = true
				continue
			}
			c.sendCancel(ctx, client, cookie, commandID)
		case actionNothing:
		}
	}
}

// sendCancel issues one cancel call. Failures are reported and
// otherwise ignored: the command either finishes on its own or the user
// interrupts again.
func (c *Coordinator) sendCancel(ctx context.Context, client *wire.Client, cookie, commandID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), CancelTimeout)
	defer cancel()

	c.config.Logger.Debug("cancelling command", "command_id", commandID)
	if _, err := client.Cancel(ctx, &wire.CancelRequest{Cookie: cookie, CommandID: commandID}); err != nil {
		fmt.Fprintf(c.config.Stderr, "\nCould not interrupt server (%v)\n\n", err)
	}
}

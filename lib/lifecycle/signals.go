// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/buildclient/lib/exitcode"
)

// interruptsToKill is the number of SIGINTs after which the client
// stops asking and kills the server.
const interruptsToKill = 3

// HandleSignals routes SIGINT, SIGTERM, and SIGHUP to the coordinator
// as cancel requests. The third SIGINT kills the server outright and
// calls exit with exitcode.Interrupted. SIGPIPE is swallowed so that
// writes to a closed stdout fail with EPIPE instead of killing the
// client. The returned function stops signal delivery.
func HandleSignals(coordinator *Coordinator, stderr io.Writer, exit func(code int)) (stop func()) {
	signals := make(chan os.Signal, 8)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGPIPE)

	done := make(chan struct{})
	go func() {
		defer close(done)
		handleSignals(signals, coordinator, stderr, exit)
	}()

	return func() {
		signal.Stop(signals)
		close(signals)
		<-done
	}
}

func handleSignals(signals <-chan os.Signal, coordinator *Coordinator, stderr io.Writer, exit func(code int)) {
	product := coordinator.config.Product
	interrupts := 0
	for received := range signals {
		switch received {
		case syscall.SIGINT:
			interrupts++
			if interrupts >= interruptsToKill {
				fmt.Fprintf(stderr, "\n%s caught third interrupt signal; killed.\n\n", product)
				coordinator.KillServerNow()
				exit(int(exitcode.Interrupted))
				return
			}
			if interrupts == 1 {
				fmt.Fprintf(stderr, "\n%s received an interrupt, press Ctrl-C %d times to kill the server\n",
					product, interruptsToKill)
			}
			coordinator.Cancel()
		case syscall.SIGTERM:
			fmt.Fprintf(stderr, "\n%s caught terminate signal; cancelling.\n", product)
			coordinator.Cancel()
		case syscall.SIGHUP:
			fmt.Fprintf(stderr, "\n%s caught hangup signal; cancelling.\n", product)
			coordinator.Cancel()
		case syscall.SIGPIPE:
		}
	}
}

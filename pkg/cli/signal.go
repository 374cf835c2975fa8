package cli

import (
	"context"
	"os/signal"
	"syscall"
)

// withSignalCancel returns a context cancelled on SIGINT/SIGTERM, the way
// every long-running process role (§5 "own periodic timer", "cancellation
// signal that fires on service shutdown") needs to stop its consumer
// loops and timers cleanly.
func withSignalCancel(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	return ctx, stop
}

// Package reconciler runs the two periodic backstops of §6: a Verify-mode
// index sweep on its own ticker, and a DLQ recovery pass at process
// startup (§4.4 "at worker-role startup"). Shaped after job.Monitor's
// ticker-plus-tick-function loop, reused here for a different periodic
// concern rather than duplicated wholesale.
package reconciler

import (
	"context"
	"time"

	"github.com/imagevault/imagevault/pkg/apitypes"
	"github.com/imagevault/imagevault/pkg/dlq"
	"github.com/imagevault/imagevault/pkg/idx"
	"github.com/imagevault/imagevault/pkg/log"
)

// Reconciler owns the Verify-mode sweep ticker and the boot-time DLQ
// recovery trigger.
type Reconciler struct {
	rebuilder  *idx.Rebuilder
	recoverer  *dlq.Recoverer
	log        log.PluggableLoggerInterface
	interval   time.Duration
	skipInline bool
}

func New(rebuilder *idx.Rebuilder, recoverer *dlq.Recoverer, logger log.PluggableLoggerInterface, interval time.Duration, skipInline bool) *Reconciler {
	return &Reconciler{rebuilder: rebuilder, recoverer: recoverer, log: logger, interval: interval, skipInline: skipInline}
}

// RecoverAtBoot runs the DLQ drain once, logging the per-queue republish
// counts and the count of messages left in place for lacking a valid
// MessageType header (§4.4).
func (r *Reconciler) RecoverAtBoot(ctx context.Context) error {
	res, err := r.recoverer.Run(ctx)
	if err != nil {
		return err
	}
	for queue, n := range res.RepublishedByQueue {
		r.log.Info("dlq recovery: republished %d message(s) to %s", n, queue)
	}
	if res.Invalid > 0 {
		r.log.Warn("dlq recovery: left %d message(s) in place with no valid MessageType header", res.Invalid)
	}
	return nil
}

// Run ticks the Verify-mode index sweep until ctx is cancelled (§4.3
// "periodically re-checks index <-> document-store consistency").
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Reconciler) tick(ctx context.Context) {
	stats, err := r.rebuilder.Run(ctx, apitypes.RebuildVerify, false, r.skipInline)
	if err != nil {
		r.log.Error("reconciler: verify sweep failed: %s", err.Error())
		return
	}
	r.log.Info("reconciler: verify sweep rebuilt=%d skipped=%d orphaned=%d deleted=%d", stats.Rebuilt, stats.Skipped, stats.Orphaned, stats.Deleted)
}

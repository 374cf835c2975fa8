// Package job owns the BackgroundJob lifecycle: creation helpers and the
// Monitor reconciliation loop (§4.2) that periodically corrects stage and
// job status from observed counts. Error classification throughout uses
// common.Kind rather than teacher's mirror-specific SafeError/UnsafeError
// split (see DESIGN.md).
package job

import (
	"context"
	"time"

	"github.com/imagevault/imagevault/pkg/apitypes"
	"github.com/imagevault/imagevault/pkg/log"
	"github.com/imagevault/imagevault/pkg/store"
)

// CollectionCounts is the subset of a Collection's derivative counts the
// Monitor needs to reconcile the "with collection reference" branch of
// §4.2, without depending on the full store.CollectionRepository.
type CollectionCounts interface {
	DerivativeCounts(ctx context.Context, collectionID apitypes.ID) (images, thumbnails, cacheImages int64, err error)
}

// Monitor runs the ~5s reconciliation tick of §4.2.
type Monitor struct {
	jobs     store.JobRepository
	counts   CollectionCounts
	log      log.PluggableLoggerInterface
	interval time.Duration
}

func NewMonitor(jobs store.JobRepository, counts CollectionCounts, logger log.PluggableLoggerInterface, interval time.Duration) *Monitor {
	return &Monitor{jobs: jobs, counts: counts, log: logger, interval: interval}
}

// Run ticks until ctx is cancelled, reconciling every non-terminal job on
// each tick.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	jobs, err := m.jobs.ListNonTerminal(ctx)
	if err != nil {
		m.log.Error("monitor: list non-terminal jobs: %s", err.Error())
		return
	}
	for _, j := range jobs {
		if err := m.reconcile(ctx, j); err != nil {
			m.log.Error("monitor: reconcile job %s: %s", j.ID.Hex(), err.Error())
		}
	}
}

func (m *Monitor) reconcile(ctx context.Context, j *apitypes.BackgroundJob) error {
	if j.CollectionID != nil {
		if err := m.reconcileWithCollection(ctx, j); err != nil {
			return err
		}
	} else if err := m.reconcileWithoutCollection(ctx, j); err != nil {
		return err
	}
	return m.closeJobIfDone(ctx, j)
}

// reconcileWithCollection implements §4.2's "with a collection reference"
// branch: compares each stage's observed count (images for scan,
// thumbnails for thumbnail, cacheImages for cache) against that stage's own
// recorded totalItems, closing it when saturated and otherwise correcting
// completedItems drift with one increment per stage.
func (m *Monitor) reconcileWithCollection(ctx context.Context, j *apitypes.BackgroundJob) error {
	imageCount, thumbCount, cacheCount, err := m.counts.DerivativeCounts(ctx, *j.CollectionID)
	if err != nil {
		return err
	}

	if err := m.reconcileStage(ctx, j, apitypes.StageScan, imageCount); err != nil {
		return err
	}
	if err := m.reconcileStage(ctx, j, apitypes.StageThumbnail, thumbCount); err != nil {
		return err
	}
	return m.reconcileStage(ctx, j, apitypes.StageCache, cacheCount)
}

func (m *Monitor) reconcileStage(ctx context.Context, j *apitypes.BackgroundJob, name apitypes.StageName, observed int64) error {
	stage, ok := j.Stages[name]
	if !ok || stage.TotalItems == 0 {
		return nil
	}
	if observed >= stage.TotalItems {
		if stage.Status != apitypes.StatusCompleted {
			if err := m.jobs.SetStageStatus(ctx, j.ID, name, apitypes.StatusCompleted, ""); err != nil {
				return err
			}
			stage.Status = apitypes.StatusCompleted
		}
		return nil
	}
	if observed != stage.CompletedItems {
		delta := observed - stage.CompletedItems
		if err := m.jobs.IncrementStage(ctx, j.ID, name, delta); err != nil {
			return err
		}
		stage.CompletedItems = observed
	}
	return nil
}

// reconcileWithoutCollection implements §4.2's "without a collection
// reference" branch: each stage is judged purely on its own counters.
func (m *Monitor) reconcileWithoutCollection(ctx context.Context, j *apitypes.BackgroundJob) error {
	for name, stage := range j.Stages {
		if stage.EligibleForClosure() {
			if err := m.jobs.SetStageStatus(ctx, j.ID, name, apitypes.StatusCompleted, ""); err != nil {
				return err
			}
			stage.Status = apitypes.StatusCompleted
		}
	}
	return nil
}

func (m *Monitor) closeJobIfDone(ctx context.Context, j *apitypes.BackgroundJob) error {
	if j.AnyStageFailed() {
		return m.jobs.SetJobStatus(ctx, j.ID, apitypes.StatusFailed)
	}
	if j.AllStagesCompleted() {
		return m.jobs.SetJobStatus(ctx, j.ID, apitypes.StatusCompleted)
	}
	return nil
}

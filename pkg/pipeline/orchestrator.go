// Package pipeline's orchestrator half creates the BackgroundJob for a
// scan run and publishes its first message. Kept alongside the stage
// consumers rather than in pkg/service because it shares decideAndDispatch
// with LibraryScanStage — a single-collection rescan trigger runs the
// exact same mode-decision table as one candidate discovered mid-scan.
package pipeline

import (
	"context"

	"github.com/google/uuid"

	"github.com/imagevault/imagevault/pkg/apitypes"
)

// TriggerLibraryScan creates a library-wide BackgroundJob (no collection
// reference — §3) and publishes the LibraryScanMessage that starts Stage
// A. The job's stage totals start at zero and grow as each candidate
// collection is discovered and scanned (§4.2).
func TriggerLibraryScan(ctx context.Context, deps *Deps, libraryID apitypes.ID, libraryPath string, opts ScanOptions, includeSubfolders bool) (apitypes.ID, error) {
	job := apitypes.NewBackgroundJob(apitypes.MessageLibraryScan, nil, uuid.NewString(), map[apitypes.StageName]int64{
		apitypes.StageScan:      0,
		apitypes.StageThumbnail: 0,
		apitypes.StageCache:     0,
	})
	if err := deps.Jobs.Create(ctx, job); err != nil {
		return apitypes.ID{}, err
	}

	msg := apitypes.LibraryScanMessage{
		JobID: job.ID, LibraryID: libraryID, LibraryPath: libraryPath,
		IncludeSubfolders:   includeSubfolders,
		ResumeIncomplete:    opts.ResumeIncomplete,
		OverwriteExisting:   opts.OverwriteExisting,
		UseDirectFileAccess: opts.UseDirectFileAccess,
		AutoScan:            opts.AutoScan,
	}
	if err := deps.Publisher.Publish(ctx, apitypes.MessageLibraryScan, msg); err != nil {
		return apitypes.ID{}, err
	}
	return job.ID, nil
}

// TriggerCollectionRescan creates a per-collection BackgroundJob (§3's
// "collection rescan" jobs, which the monitor reconciles against the
// collection's own observed derivative counts) and applies the same
// mode-decision table library-scan applies per candidate, to this one
// already-known collection.
func TriggerCollectionRescan(ctx context.Context, deps *Deps, collectionID apitypes.ID, opts ScanOptions) (apitypes.ID, error) {
	c, err := deps.Collections.GetByID(ctx, collectionID)
	if err != nil {
		return apitypes.ID{}, err
	}

	job := apitypes.NewBackgroundJob(apitypes.MessageCollectionScan, &c.ID, uuid.NewString(), map[apitypes.StageName]int64{
		apitypes.StageScan:      0,
		apitypes.StageThumbnail: 0,
		apitypes.StageCache:     0,
	})
	if err := deps.Jobs.Create(ctx, job); err != nil {
		return apitypes.ID{}, err
	}

	if err := decideAndDispatch(ctx, deps, job.ID, c.LibraryID, c.Path, c.Type, opts); err != nil {
		return apitypes.ID{}, err
	}
	return job.ID, nil
}

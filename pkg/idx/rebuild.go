package idx

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/imagevault/imagevault/pkg/apitypes"
	"github.com/imagevault/imagevault/pkg/common"
	"github.com/imagevault/imagevault/pkg/store"
)

const rebuildBatchSize = 100

// Rebuilder runs the four rebuild strategies of §4.3 over the full
// document-store corpus.
type Rebuilder struct {
	rdb     *redis.Client
	writer  Writer
	decoder common.ImageDecoder
	repo    store.CollectionRepository
	jobs    store.JobRepository
}

func NewRebuilder(rdb *redis.Client, w Writer, decoder common.ImageDecoder, repo store.CollectionRepository, jobs store.JobRepository) *Rebuilder {
	return &Rebuilder{rdb: rdb, writer: w, decoder: decoder, repo: repo, jobs: jobs}
}

// Run executes mode, honoring dryRun and skipInline, and returns the
// counters named in RebuildStats. ctx cancellation is checked between
// batches so a long rebuild can be stopped cooperatively.
func (rb *Rebuilder) Run(ctx context.Context, mode apitypes.RebuildMode, dryRun, skipInline bool) (apitypes.RebuildStats, error) {
	stats := apitypes.RebuildStats{Mode: mode, DryRun: dryRun}

	if mode == apitypes.RebuildFull && !dryRun {
		if err := rb.deleteAllIndexKeys(ctx); err != nil {
			return stats, err
		}
	}

	switch mode {
	case apitypes.RebuildFull, apitypes.RebuildForceRebuildAll:
		if err := rb.rebuildAll(ctx, &stats, dryRun, skipInline, nil); err != nil {
			return stats, err
		}
	case apitypes.RebuildChangedOnly:
		if err := rb.rebuildAll(ctx, &stats, dryRun, skipInline, rb.needsRebuild); err != nil {
			return stats, err
		}
	case apitypes.RebuildVerify:
		if err := rb.verify(ctx, &stats, dryRun, skipInline); err != nil {
			return stats, err
		}
	}

	if !dryRun {
		_ = rb.rdb.Set(ctx, lastRebuildKey, time.Now().UTC().Unix(), 0).Err()
	}
	return stats, nil
}

func (rb *Rebuilder) rebuildAll(ctx context.Context, stats *apitypes.RebuildStats, dryRun, skipInline bool, filter func(context.Context, *apitypes.Collection) (bool, error)) error {
	return rb.repo.ListAll(ctx, rebuildBatchSize, func(batch []*apitypes.Collection) error {
		if ctx.Err() != nil {
			stats.Aborted = true
			return ctx.Err()
		}
		for _, c := range batch {
			if c.Deleted {
				stats.Skipped++
				continue
			}
			if filter != nil {
				ok, err := filter(ctx, c)
				if err != nil {
					return err
				}
				if !ok {
					stats.Skipped++
					continue
				}
			}
			if dryRun {
				stats.Rebuilt++
				continue
			}
			hasFailedStage, err := rb.hasFailedStage(ctx, c.ID)
			if err != nil {
				return err
			}
			summary, state, thumb := Summarize(c, rb.decoder, hasFailedStage, skipInline)
			if err := rb.writer.Upsert(ctx, summary, state, thumb); err != nil {
				return err
			}
			stats.Rebuilt++
		}
		return nil
	})
}

// hasFailedStage mirrors pipeline.collectionHasFailedStage for the rebuild
// path: a collection with no job on record (or whose job was pruned) is
// not reported incomplete.
func (rb *Rebuilder) hasFailedStage(ctx context.Context, collectionID apitypes.ID) (bool, error) {
	job, err := rb.jobs.FindByCollectionID(ctx, collectionID)
	if common.KindOf(err) == common.KindNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return job.AnyStageFailed(), nil
}

// needsRebuild implements ChangedOnly's per-collection decision (§4.3):
// rebuild iff the state key is missing, or the collection changed since
// it was last indexed.
func (rb *Rebuilder) needsRebuild(ctx context.Context, c *apitypes.Collection) (bool, error) {
	raw, err := rb.rdb.Get(ctx, stateKey(c.ID)).Result()
	if err == redis.Nil {
		return true, nil
	}
	if err != nil {
		return false, common.NewError(common.KindTransientIO, "idx.Rebuilder.needsRebuild", err)
	}
	var state apitypes.CollectionIndexState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return true, nil
	}
	return c.UpdatedAt.After(state.CollectionUpdatedAt), nil
}

// verify implements the three-phase reconciliation of §4.3: rebuild
// missing/stale entries, then delete index keys whose collection is gone
// or soft-deleted, reporting (not mutating) when dryRun is set.
func (rb *Rebuilder) verify(ctx context.Context, stats *apitypes.RebuildStats, dryRun, skipInline bool) error {
	if err := rb.rebuildAll(ctx, stats, dryRun, skipInline, rb.needsRebuild); err != nil {
		return err
	}

	live := map[apitypes.ID]bool{}
	if err := rb.repo.ListAll(ctx, rebuildBatchSize, func(batch []*apitypes.Collection) error {
		for _, c := range batch {
			if !c.Deleted {
				live[c.ID] = true
			}
		}
		return nil
	}); err != nil {
		return err
	}

	var cursor uint64
	const statePrefix = keyPrefix + "state:"
	for {
		keys, next, err := rb.rdb.Scan(ctx, cursor, statePrefix+"*", 500).Result()
		if err != nil {
			return common.NewError(common.KindTransientIO, "idx.Rebuilder.verify", err)
		}
		for _, k := range keys {
			hex := k[len(statePrefix):]
			id, parseErr := apitypes.ParseID(hex)
			if parseErr != nil {
				continue
			}
			if live[id] {
				continue
			}
			stats.Orphaned++
			if dryRun {
				continue
			}
			libID, t := apitypes.ID{}, apitypes.TypeFolder
			if summary, ok, err := rb.writer.ReadSummary(ctx, id); err != nil {
				return err
			} else if ok {
				libID, t = summary.LibraryID, summary.Type
			}
			if err := rb.writer.Delete(ctx, id, libID, t); err != nil {
				return err
			}
			stats.Deleted++
		}
		cursor = next
		if cursor == 0 {
			break
		}
		if ctx.Err() != nil {
			stats.Aborted = true
			return ctx.Err()
		}
	}
	return nil
}

// deleteAllIndexKeys implements Full mode's pattern-scan delete. It never
// removes idx:thumb:* keys (§4.3 "never delete the thumbnail-bytes cache
// keys") since those carry their own 30-day TTL independent of the index.
func (rb *Rebuilder) deleteAllIndexKeys(ctx context.Context) error {
	const thumbPrefix = keyPrefix + "thumb:"
	var cursor uint64
	for {
		keys, next, err := rb.rdb.Scan(ctx, cursor, keyPrefix+"*", 500).Result()
		if err != nil {
			return common.NewError(common.KindTransientIO, "idx.Rebuilder.deleteAllIndexKeys", err)
		}
		toDelete := make([]string, 0, len(keys))
		for _, k := range keys {
			if strings.HasPrefix(k, thumbPrefix) {
				continue
			}
			toDelete = append(toDelete, k)
		}
		if len(toDelete) > 0 {
			if err := rb.rdb.Del(ctx, toDelete...).Err(); err != nil {
				return common.NewError(common.KindTransientIO, "idx.Rebuilder.deleteAllIndexKeys", err)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return nil
}

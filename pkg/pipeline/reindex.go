package pipeline

import (
	"context"

	"github.com/imagevault/imagevault/pkg/apitypes"
	"github.com/imagevault/imagevault/pkg/common"
	"github.com/imagevault/imagevault/pkg/idx"
)

// reindexCollection re-summarizes a collection and writes it to the Redis
// index (§4.3). Called by collection-scan after it appends images and by
// the thumbnail/cache stages after each derivative is recorded;
// image-process, which only fills in an image's dimensions, does not call
// it.
func reindexCollection(ctx context.Context, deps *Deps, collectionID apitypes.ID) error {
	c, err := deps.Collections.GetByID(ctx, collectionID)
	if err != nil {
		return err
	}
	hasFailedStage, err := collectionHasFailedStage(ctx, deps, collectionID)
	if err != nil {
		return err
	}
	summary, state, thumb := idx.Summarize(c, deps.Decoder, hasFailedStage, false)
	return deps.Index.Upsert(ctx, summary, state, thumb)
}

// collectionHasFailedStage looks up the collection's own most recent job
// and reports whether any of its stages failed — the source of truth for
// CollectionSummary.ProcessingIncomplete (§3, §7 "summary carries a flag
// indicating incomplete processing"). A collection with no job yet (or
// whose job was since pruned) is not incomplete by default.
func collectionHasFailedStage(ctx context.Context, deps *Deps, collectionID apitypes.ID) (bool, error) {
	job, err := deps.Jobs.FindByCollectionID(ctx, collectionID)
	if common.KindOf(err) == common.KindNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return job.AnyStageFailed(), nil
}

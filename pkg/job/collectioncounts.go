package job

import (
	"context"

	"github.com/imagevault/imagevault/pkg/apitypes"
	"github.com/imagevault/imagevault/pkg/store"
)

type collectionCounts struct {
	repo store.CollectionRepository
}

// NewCollectionCounts adapts a store.CollectionRepository to the narrow
// CollectionCounts the Monitor depends on (interface segregation, matching
// the teacher's constructor-injection style throughout pkg/*).
func NewCollectionCounts(repo store.CollectionRepository) CollectionCounts {
	return &collectionCounts{repo: repo}
}

func (c *collectionCounts) DerivativeCounts(ctx context.Context, collectionID apitypes.ID) (images, thumbnails, cacheImages int64, err error) {
	coll, err := c.repo.GetByID(ctx, collectionID)
	if err != nil {
		return 0, 0, 0, err
	}
	return int64(len(coll.Images)), int64(len(coll.Thumbnails)), int64(len(coll.CacheImages)), nil
}

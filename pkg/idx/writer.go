package idx

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/imagevault/imagevault/pkg/apitypes"
	"github.com/imagevault/imagevault/pkg/common"
)

const thumbnailTTL = 30 * 24 * time.Hour

// Writer performs the incremental index maintenance of §4.3: 31 keys
// written per collection on insert/update, 31 removed on delete.
type Writer interface {
	Upsert(ctx context.Context, summary apitypes.CollectionSummary, state apitypes.CollectionIndexState, thumb []byte) error
	Delete(ctx context.Context, id apitypes.ID, libID apitypes.ID, t apitypes.CollectionType) error
	ReadSummary(ctx context.Context, id apitypes.ID) (apitypes.CollectionSummary, bool, error)
}

type writer struct {
	rdb *redis.Client
}

func NewWriter(rdb *redis.Client) Writer {
	return &writer{rdb: rdb}
}

// Upsert writes the summary/state blobs and all 30 sorted-set entries. If
// the collection already has a summary under a different library or type,
// it first reads that old summary to clear the stale secondary entries
// (§4.3 "writes to the new ones"); a concurrent library change racing this
// read is the single known gap the reconciler closes later.
func (w *writer) Upsert(ctx context.Context, s apitypes.CollectionSummary, state apitypes.CollectionIndexState, thumb []byte) error {
	if old, ok, err := w.readSummary(ctx, s.ID); err != nil {
		return err
	} else if ok && (old.LibraryID != s.LibraryID || old.Type != s.Type) {
		if err := w.removeSortedEntries(ctx, s.ID, old.LibraryID, old.Type); err != nil {
			return err
		}
	}

	pipe := w.rdb.Pipeline()
	for _, f := range sortFields {
		for _, d := range sortDirs {
			sc := score(s, f, d)
			pipe.ZAdd(ctx, sortedSetKey(f, d), redis.Z{Score: sc, Member: s.ID.Hex()})
			pipe.ZAdd(ctx, sortedSetKeyByLibrary(s.LibraryID, f, d), redis.Z{Score: sc, Member: s.ID.Hex()})
			pipe.ZAdd(ctx, sortedSetKeyByType(s.Type, f, d), redis.Z{Score: sc, Member: s.ID.Hex()})
		}
	}

	summaryJSON, err := json.Marshal(s)
	if err != nil {
		return common.NewError(common.KindValidation, "idx.Writer.Upsert", err)
	}
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return common.NewError(common.KindValidation, "idx.Writer.Upsert", err)
	}
	pipe.Set(ctx, dataKey(s.ID), summaryJSON, 0)
	pipe.Set(ctx, stateKey(s.ID), stateJSON, 0)
	if len(thumb) > 0 {
		pipe.Set(ctx, thumbKey(s.ID), thumb, thumbnailTTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return common.NewError(common.KindTransientIO, "idx.Writer.Upsert", err)
	}
	return nil
}

// Delete removes all 31 keys for a collection.
func (w *writer) Delete(ctx context.Context, id apitypes.ID, libID apitypes.ID, t apitypes.CollectionType) error {
	if err := w.removeSortedEntries(ctx, id, libID, t); err != nil {
		return err
	}
	pipe := w.rdb.Pipeline()
	pipe.Del(ctx, dataKey(id), stateKey(id), thumbKey(id))
	if _, err := pipe.Exec(ctx); err != nil {
		return common.NewError(common.KindTransientIO, "idx.Writer.Delete", err)
	}
	return nil
}

func (w *writer) removeSortedEntries(ctx context.Context, id apitypes.ID, libID apitypes.ID, t apitypes.CollectionType) error {
	pipe := w.rdb.Pipeline()
	for _, key := range allSortedSetKeysFor(libID, t) {
		pipe.ZRem(ctx, key, id.Hex())
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return common.NewError(common.KindTransientIO, "idx.Writer.removeSortedEntries", err)
	}
	return nil
}

func (w *writer) readSummary(ctx context.Context, id apitypes.ID) (apitypes.CollectionSummary, bool, error) {
	var s apitypes.CollectionSummary
	raw, err := w.rdb.Get(ctx, dataKey(id)).Bytes()
	if err == redis.Nil {
		return s, false, nil
	}
	if err != nil {
		return s, false, common.NewError(common.KindTransientIO, "idx.Writer.readSummary", err)
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return s, false, common.NewError(common.KindDataCorruption, "idx.Writer.readSummary", err)
	}
	return s, true, nil
}

// ReadSummary exposes readSummary to callers outside the package (the
// verify rebuild pass needs a deleted collection's real LibraryID/Type
// before it can clear that collection's by-library/by-type sorted-set
// entries).
func (w *writer) ReadSummary(ctx context.Context, id apitypes.ID) (apitypes.CollectionSummary, bool, error) {
	return w.readSummary(ctx, id)
}

package store

import (
	"context"
	"time"

	"github.com/imagevault/imagevault/pkg/apitypes"
	"github.com/imagevault/imagevault/pkg/common"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// CacheFolderRepository is the set of document-store operations the core
// consumes for the CacheFolder aggregate (§6).
type CacheFolderRepository interface {
	FindActiveByLowestPriority(ctx context.Context, estimatedBytes int64) (*apitypes.CacheFolder, error)
	AtomicIncStats(ctx context.Context, id apitypes.ID, sizeDelta, fileDelta int64, collectionID apitypes.ID) error
	EnsureSeeded(ctx context.Context, folders []common.CacheFolderConfig) error
}

type cacheFolderRepo struct {
	store *Store
}

func NewCacheFolderRepository(s *Store) CacheFolderRepository {
	return &cacheFolderRepo{store: s}
}

// FindActiveByLowestPriority scans configured folders in ascending priority
// order and returns the first with room for estimatedBytes more (§4.1
// Stage D/E "choose a destination cache folder").
func (r *cacheFolderRepo) FindActiveByLowestPriority(ctx context.Context, estimatedBytes int64) (*apitypes.CacheFolder, error) {
	opts := mongoFindSortByPriority()
	cur, err := r.store.cacheFolders().Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, common.NewError(common.KindTransientIO, "CacheFolderRepository.FindActiveByLowestPriority", err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var f apitypes.CacheFolder
		if err := cur.Decode(&f); err != nil {
			return nil, common.NewError(common.KindTransientIO, "CacheFolderRepository.FindActiveByLowestPriority", err)
		}
		if f.HasCapacity(estimatedBytes) {
			return &f, nil
		}
	}
	if err := cur.Err(); err != nil {
		return nil, common.NewError(common.KindTransientIO, "CacheFolderRepository.FindActiveByLowestPriority", err)
	}
	return nil, common.NewError(common.KindDataCorruption, "CacheFolderRepository.FindActiveByLowestPriority", mongo.ErrNoDocuments)
}

// AtomicIncStats performs the compound atomic update (i) inc bytes/files
// (ii) add-to-set the collection id (iii) inc totalCollections, but only
// when that collection id is new to this folder — a plain $inc can't
// express "only if this $addToSet actually added something", so this runs
// as an aggregation-pipeline update: the $cond reads cachedCollectionIds as
// it stood before the stage, independent of the sibling field that sets
// the new entry (§4.1 Stage D/E, §3 CacheFolder.totalCollections).
func (r *cacheFolderRepo) AtomicIncStats(ctx context.Context, id apitypes.ID, sizeDelta, fileDelta int64, collectionID apitypes.ID) error {
	hex := collectionID.Hex()
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"currentSizeBytes": bson.M{"$add": bson.A{"$currentSizeBytes", sizeDelta}},
			"totalFiles":       bson.M{"$add": bson.A{"$totalFiles", fileDelta}},
			"totalCollections": bson.M{
				"$cond": bson.A{
					bson.M{"$in": bson.A{hex, bson.M{"$map": bson.M{
						"input": bson.M{"$objectToArray": "$cachedCollectionIds"},
						"as":    "e",
						"in":    "$$e.k",
					}}}},
					"$totalCollections",
					bson.M{"$add": bson.A{"$totalCollections", 1}},
				},
			},
			"cachedCollectionIds." + hex: true,
		}}},
	}
	res, err := r.store.cacheFolders().UpdateOne(ctx, bson.M{"_id": id}, pipeline)
	if err != nil {
		return common.NewError(common.KindTransientIO, "CacheFolderRepository.AtomicIncStats", err)
	}
	if res.MatchedCount == 0 {
		return common.NewError(common.KindNotFound, "CacheFolderRepository.AtomicIncStats", mongo.ErrNoDocuments)
	}
	return nil
}

// EnsureSeeded upserts one CacheFolder document per configured folder, so
// the first run of a freshly configured service has rows to select from.
func (r *cacheFolderRepo) EnsureSeeded(ctx context.Context, folders []common.CacheFolderConfig) error {
	for _, f := range folders {
		filter := bson.M{"path": f.Path}
		update := bson.M{
			"$setOnInsert": bson.M{
				"_id":                 apitypes.NewID(),
				"path":                f.Path,
				"priority":            f.Priority,
				"maxSizeBytes":        f.MaxSizeBytes,
				"currentSizeBytes":    int64(0),
				"totalFiles":          int64(0),
				"totalCollections":    int64(0),
				"cachedCollectionIds": bson.M{},
				"createdAt":           time.Now().UTC(),
			},
		}
		_, err := r.store.cacheFolders().UpdateOne(ctx, filter, update, mongoUpsert())
		if err != nil {
			return common.NewError(common.KindTransientIO, "CacheFolderRepository.EnsureSeeded", err)
		}
	}
	return nil
}

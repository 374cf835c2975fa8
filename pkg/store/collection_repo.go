package store

import (
	"context"
	"fmt"
	"time"

	"github.com/imagevault/imagevault/pkg/apitypes"
	"github.com/imagevault/imagevault/pkg/common"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionRepository is the set of document-store operations the core
// consumes for the Collection aggregate (§6).
type CollectionRepository interface {
	Create(ctx context.Context, c *apitypes.Collection) error
	GetByID(ctx context.Context, id apitypes.ID) (*apitypes.Collection, error)
	FindByLibrary(ctx context.Context, libraryID apitypes.ID) ([]*apitypes.Collection, error)
	FindByPath(ctx context.Context, libraryID apitypes.ID, path string) (*apitypes.Collection, error)
	ListAll(ctx context.Context, batchSize int, fn func([]*apitypes.Collection) error) error

	AtomicAddImage(ctx context.Context, id apitypes.ID, img apitypes.ImageEmbedded) (added bool, err error)
	AtomicSetImageDimensions(ctx context.Context, id, imageID apitypes.ID, width, height int, format string) error
	AtomicAddThumbnails(ctx context.Context, id apitypes.ID, list []apitypes.ThumbnailEmbedded) error
	AtomicAddCacheImages(ctx context.Context, id apitypes.ID, list []apitypes.CacheImageEmbedded) error
	ClearImageArrays(ctx context.Context, id apitypes.ID) error
	UpdateSettings(ctx context.Context, id apitypes.ID, settings apitypes.CollectionSettings) error
	SoftDelete(ctx context.Context, id apitypes.ID) error
}

type collectionRepo struct {
	store *Store
}

func NewCollectionRepository(s *Store) CollectionRepository {
	return &collectionRepo{store: s}
}

func (r *collectionRepo) Create(ctx context.Context, c *apitypes.Collection) error {
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	c.Settings = c.Settings.Normalize(c.Type)
	c.Statistics.TotalItems = int64(len(c.Images))
	var total int64
	for _, img := range c.Images {
		total += img.ByteSize
	}
	c.Statistics.TotalSize = total

	_, err := r.store.collections().InsertOne(ctx, c)
	if mongo.IsDuplicateKeyError(err) {
		return common.NewError(common.KindConflict, "CollectionRepository.Create", err)
	}
	if err != nil {
		return common.NewError(common.KindTransientIO, "CollectionRepository.Create", err)
	}
	return nil
}

func (r *collectionRepo) GetByID(ctx context.Context, id apitypes.ID) (*apitypes.Collection, error) {
	var c apitypes.Collection
	err := r.store.collections().FindOne(ctx, bson.M{"_id": id, "deleted": bson.M{"$ne": true}}).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return nil, common.NewError(common.KindNotFound, "CollectionRepository.GetByID", err)
	}
	if err != nil {
		return nil, common.NewError(common.KindTransientIO, "CollectionRepository.GetByID", err)
	}
	return &c, nil
}

func (r *collectionRepo) FindByLibrary(ctx context.Context, libraryID apitypes.ID) ([]*apitypes.Collection, error) {
	cur, err := r.store.collections().Find(ctx, bson.M{"libraryId": libraryID, "deleted": bson.M{"$ne": true}})
	if err != nil {
		return nil, common.NewError(common.KindTransientIO, "CollectionRepository.FindByLibrary", err)
	}
	defer cur.Close(ctx)

	var out []*apitypes.Collection
	if err := cur.All(ctx, &out); err != nil {
		return nil, common.NewError(common.KindTransientIO, "CollectionRepository.FindByLibrary", err)
	}
	return out, nil
}

func (r *collectionRepo) FindByPath(ctx context.Context, libraryID apitypes.ID, path string) (*apitypes.Collection, error) {
	var c apitypes.Collection
	err := r.store.collections().FindOne(ctx, bson.M{"libraryId": libraryID, "path": path, "deleted": bson.M{"$ne": true}}).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return nil, common.NewError(common.KindNotFound, "CollectionRepository.FindByPath", err)
	}
	if err != nil {
		return nil, common.NewError(common.KindTransientIO, "CollectionRepository.FindByPath", err)
	}
	return &c, nil
}

// ListAll streams every non-deleted collection to fn in batches of
// batchSize, releasing each batch before fetching the next so the working
// set stays roughly constant (§4.3 rebuild-mode batching).
func (r *collectionRepo) ListAll(ctx context.Context, batchSize int, fn func([]*apitypes.Collection) error) error {
	opts := options.Find().SetBatchSize(int32(batchSize))
	cur, err := r.store.collections().Find(ctx, bson.M{"deleted": bson.M{"$ne": true}}, opts)
	if err != nil {
		return common.NewError(common.KindTransientIO, "CollectionRepository.ListAll", err)
	}
	defer cur.Close(ctx)

	batch := make([]*apitypes.Collection, 0, batchSize)
	for cur.Next(ctx) {
		var c apitypes.Collection
		if err := cur.Decode(&c); err != nil {
			return common.NewError(common.KindTransientIO, "CollectionRepository.ListAll", err)
		}
		batch = append(batch, &c)
		if len(batch) == batchSize {
			if err := fn(batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := fn(batch); err != nil {
			return err
		}
	}
	if err := cur.Err(); err != nil {
		return common.NewError(common.KindTransientIO, "CollectionRepository.ListAll", err)
	}
	return nil
}

// AtomicAddImage appends img iff no existing entry shares its
// (filename, relativePath) key, in one round trip: the filter excludes
// documents that already contain a matching array element, so a concurrent
// duplicate attempt simply matches zero documents instead of racing a
// read-modify-write (§4.1 "idempotent across reruns").
func (r *collectionRepo) AtomicAddImage(ctx context.Context, id apitypes.ID, img apitypes.ImageEmbedded) (bool, error) {
	filter := bson.M{
		"_id": id,
		"images": bson.M{
			"$not": bson.M{
				"$elemMatch": bson.M{"filename": img.Filename, "relativePath": img.RelativePath},
			},
		},
	}
	update := bson.M{
		"$push": bson.M{"images": img},
		"$inc": bson.M{
			"statistics.totalItems": 1,
			"statistics.totalSize":  img.ByteSize,
		},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}
	res, err := r.store.collections().UpdateOne(ctx, filter, update)
	if err != nil {
		return false, common.NewError(common.KindTransientIO, "CollectionRepository.AtomicAddImage", err)
	}
	return res.ModifiedCount == 1, nil
}

// AtomicSetImageDimensions writes (width, height, format) into the
// embedded image matched by imageID, in place, without touching any other
// field on the document (§4.1 Stage C).
func (r *collectionRepo) AtomicSetImageDimensions(ctx context.Context, id, imageID apitypes.ID, width, height int, format string) error {
	filter := bson.M{"_id": id, "images.id": imageID}
	update := bson.M{
		"$set": bson.M{
			"images.$.width":  width,
			"images.$.height": height,
			"images.$.format": format,
			"updatedAt":       time.Now().UTC(),
		},
	}
	res, err := r.store.collections().UpdateOne(ctx, filter, update)
	if err != nil {
		return common.NewError(common.KindTransientIO, "CollectionRepository.AtomicSetImageDimensions", err)
	}
	if res.MatchedCount == 0 {
		return common.NewError(common.KindNotFound, "CollectionRepository.AtomicSetImageDimensions", fmt.Errorf("image %s not found on collection %s", imageID.Hex(), id.Hex()))
	}
	return nil
}

func (r *collectionRepo) AtomicAddThumbnails(ctx context.Context, id apitypes.ID, list []apitypes.ThumbnailEmbedded) error {
	if len(list) == 0 {
		return nil
	}
	update := bson.M{
		"$push": bson.M{"thumbnails": bson.M{"$each": list}},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	_, err := r.store.collections().UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return common.NewError(common.KindTransientIO, "CollectionRepository.AtomicAddThumbnails", err)
	}
	return nil
}

func (r *collectionRepo) AtomicAddCacheImages(ctx context.Context, id apitypes.ID, list []apitypes.CacheImageEmbedded) error {
	if len(list) == 0 {
		return nil
	}
	update := bson.M{
		"$push": bson.M{"cacheImages": bson.M{"$each": list}},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	_, err := r.store.collections().UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return common.NewError(common.KindTransientIO, "CollectionRepository.AtomicAddCacheImages", err)
	}
	return nil
}

// ClearImageArrays performs the compound atomic reset forceRescan requires
// (§4.1 Stage B): images, thumbnails, and cacheImages all go empty in the
// same update.
func (r *collectionRepo) ClearImageArrays(ctx context.Context, id apitypes.ID) error {
	update := bson.M{
		"$set": bson.M{
			"images":                bson.A{},
			"thumbnails":            bson.A{},
			"cacheImages":           bson.A{},
			"statistics.totalItems": 0,
			"statistics.totalSize":  0,
			"updatedAt":             time.Now().UTC(),
		},
	}
	_, err := r.store.collections().UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return common.NewError(common.KindTransientIO, "CollectionRepository.ClearImageArrays", err)
	}
	return nil
}

func (r *collectionRepo) UpdateSettings(ctx context.Context, id apitypes.ID, settings apitypes.CollectionSettings) error {
	update := bson.M{"$set": bson.M{"settings": settings, "updatedAt": time.Now().UTC()}}
	res, err := r.store.collections().UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return common.NewError(common.KindTransientIO, "CollectionRepository.UpdateSettings", err)
	}
	if res.MatchedCount == 0 {
		return common.NewError(common.KindNotFound, "CollectionRepository.UpdateSettings", fmt.Errorf("collection %s not found", id.Hex()))
	}
	return nil
}

func (r *collectionRepo) SoftDelete(ctx context.Context, id apitypes.ID) error {
	update := bson.M{"$set": bson.M{"deleted": true, "updatedAt": time.Now().UTC()}}
	res, err := r.store.collections().UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return common.NewError(common.KindTransientIO, "CollectionRepository.SoftDelete", err)
	}
	if res.MatchedCount == 0 {
		return common.NewError(common.KindNotFound, "CollectionRepository.SoftDelete", fmt.Errorf("collection %s not found", id.Hex()))
	}
	return nil
}

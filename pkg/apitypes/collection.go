package apitypes

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ID is the 12-byte opaque identifier used for every aggregate (§3).
type ID = primitive.ObjectID

// NewID mints a fresh aggregate identifier.
func NewID() ID { return primitive.NewObjectID() }

// ParseID parses the hex form of an ID, as read back from a sorted-set
// member or a path parameter.
func ParseID(hex string) (ID, error) { return primitive.ObjectIDFromHex(hex) }

// ImageEmbedded is one discovered media file inside a Collection.
type ImageEmbedded struct {
	ID           ID     `bson:"id"           json:"id"`
	Filename     string `bson:"filename"     json:"filename"`
	RelativePath string `bson:"relativePath" json:"relativePath"`
	ByteSize     int64  `bson:"byteSize"     json:"byteSize"`
	Width        int    `bson:"width"        json:"width"`
	Height       int    `bson:"height"       json:"height"`
	Format       string `bson:"format"       json:"format"`
}

// ThumbnailEmbedded is a small rendition of one ImageEmbedded.
type ThumbnailEmbedded struct {
	ImageID  ID     `bson:"imageId"  json:"imageId"`
	Path     string `bson:"path"     json:"path"`
	Width    int    `bson:"width"    json:"width"`
	Height   int    `bson:"height"   json:"height"`
	ByteSize int64  `bson:"byteSize" json:"byteSize"`
	Format   string `bson:"format"   json:"format"`
	IsDirect bool   `bson:"isDirect" json:"isDirect"`
}

// CacheImageEmbedded is a larger "view" rendition of one ImageEmbedded.
type CacheImageEmbedded struct {
	ImageID  ID     `bson:"imageId"  json:"imageId"`
	Path     string `bson:"path"     json:"path"`
	Width    int    `bson:"width"    json:"width"`
	Height   int    `bson:"height"   json:"height"`
	ByteSize int64  `bson:"byteSize" json:"byteSize"`
	Format   string `bson:"format"   json:"format"`
	IsDirect bool   `bson:"isDirect" json:"isDirect"`
}

// CollectionSettings are the per-collection knobs recognized by the core.
type CollectionSettings struct {
	AutoScan            bool `bson:"autoScan"            json:"autoScan"`
	GenerateThumbnails  bool `bson:"generateThumbnails"  json:"generateThumbnails"`
	GenerateCache       bool `bson:"generateCache"       json:"generateCache"`
	UseDirectFileAccess bool `bson:"useDirectFileAccess" json:"useDirectFileAccess"`
}

// Normalize coerces UseDirectFileAccess false for archive collections, per
// the invariant in spec §3.
func (s CollectionSettings) Normalize(t CollectionType) CollectionSettings {
	if t != TypeFolder {
		s.UseDirectFileAccess = false
	}
	return s
}

// CollectionStatistics is maintained via atomic increments, never recomputed
// wholesale from the embedded arrays (§3 invariant).
type CollectionStatistics struct {
	TotalItems int64 `bson:"totalItems" json:"totalItems"`
	TotalSize  int64 `bson:"totalSize"  json:"totalSize"`
}

// Collection is the aggregate root described in spec §3.
type Collection struct {
	ID          ID                    `bson:"_id"         json:"id"`
	Name        string                `bson:"name"        json:"name"`
	Path        string                `bson:"path"        json:"path"`
	Type        CollectionType        `bson:"type"        json:"type"`
	LibraryID   ID                    `bson:"libraryId"   json:"libraryId"`
	CreatedAt   time.Time             `bson:"createdAt"   json:"createdAt"`
	UpdatedAt   time.Time             `bson:"updatedAt"   json:"updatedAt"`
	Deleted     bool                  `bson:"deleted"     json:"deleted"`
	Settings    CollectionSettings    `bson:"settings"    json:"settings"`
	Statistics  CollectionStatistics  `bson:"statistics"  json:"statistics"`
	Images      []ImageEmbedded       `bson:"images"      json:"images"`
	Thumbnails  []ThumbnailEmbedded   `bson:"thumbnails"  json:"thumbnails"`
	CacheImages []CacheImageEmbedded  `bson:"cacheImages" json:"cacheImages"`
}

// FindImage returns the embedded image with the given filename/relativePath
// pair, which is the (filename, relativePath) uniqueness key used by
// collection-scan's add-if-absent operation (§4.1).
func (c *Collection) FindImage(filename, relativePath string) (ImageEmbedded, bool) {
	for _, img := range c.Images {
		if img.Filename == filename && img.RelativePath == relativePath {
			return img, true
		}
	}
	return ImageEmbedded{}, false
}

// HasThumbnail reports whether any thumbnail references imageID.
func (c *Collection) HasThumbnail(imageID ID) bool {
	_, ok := c.FindThumbnail(imageID)
	return ok
}

// FindThumbnail returns the embedded thumbnail referencing imageID, if any.
func (c *Collection) FindThumbnail(imageID ID) (ThumbnailEmbedded, bool) {
	for _, t := range c.Thumbnails {
		if t.ImageID == imageID {
			return t, true
		}
	}
	return ThumbnailEmbedded{}, false
}

// HasCacheImage reports whether any cache entry references imageID.
func (c *Collection) HasCacheImage(imageID ID) bool {
	for _, ci := range c.CacheImages {
		if ci.ImageID == imageID {
			return true
		}
	}
	return false
}

// MissingDerivatives returns the images that have no thumbnail and the
// images that have no cache entry, in aggregate order. Used by the resume
// path of library-scan (§4.1 "Resume").
func (c *Collection) MissingDerivatives() (missingThumbnails, missingCache []ImageEmbedded) {
	for _, img := range c.Images {
		if !c.HasThumbnail(img.ID) {
			missingThumbnails = append(missingThumbnails, img)
		}
		if !c.HasCacheImage(img.ID) {
			missingCache = append(missingCache, img)
		}
	}
	return missingThumbnails, missingCache
}

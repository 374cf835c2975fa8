package apitypes

import "time"

// CollectionSummary is the denormalized per-collection record stored in the
// key-value cache for fast listing (§3, §4.3).
type CollectionSummary struct {
	ID                     ID        `json:"id"`
	Name                   string    `json:"name"`
	FirstImageID           *ID       `json:"firstImageId,omitempty"`
	ImageCount             int64     `json:"imageCount"`
	TotalSize              int64     `json:"totalSize"`
	CreatedAt              time.Time `json:"createdAt"`
	UpdatedAt              time.Time `json:"updatedAt"`
	LibraryID              ID        `json:"libraryId"`
	Type                   CollectionType `json:"type"`
	Path                   string    `json:"path"`
	ThumbnailDataURL       string    `json:"thumbnailDataUrl,omitempty"`
	ProcessingIncomplete   bool      `json:"processingIncomplete,omitempty"`
}

// CollectionIndexState is the per-collection reconciliation marker used to
// decide "skip", "rebuild", or "orphan" (§3, §4.3).
type CollectionIndexState struct {
	IndexedAt           time.Time `json:"indexedAt"`
	CollectionUpdatedAt time.Time `json:"collectionUpdatedAt"`
	ImageCount          int64     `json:"imageCount"`
	ThumbnailCount      int64     `json:"thumbnailCount"`
	CacheCount          int64     `json:"cacheCount"`
	HasFirstThumbnail   bool      `json:"hasFirstThumbnail"`
}

// Page is the result of a listing query (§6).
type Page struct {
	Items      []CollectionSummary `json:"items"`
	Page       int                 `json:"page"`
	Total      int64               `json:"total"`
	TotalPages int64               `json:"totalPages"`
	HasNext    bool                `json:"hasNext"`
	HasPrev    bool                `json:"hasPrev"`
}

// Position is the result of a "where am I" query (§6).
type Position struct {
	Rank1Based int64 `json:"rank1Based"`
	Total      int64 `json:"total"`
	PrevID     *ID   `json:"prevId,omitempty"`
	NextID     *ID   `json:"nextId,omitempty"`
}

// RebuildStats summarizes one index-rebuild run (§4.3).
type RebuildStats struct {
	Mode             RebuildMode `json:"mode"`
	DryRun           bool        `json:"dryRun"`
	Rebuilt          int64       `json:"rebuilt"`
	Deleted          int64       `json:"deleted"`
	Skipped          int64       `json:"skipped"`
	Orphaned         int64       `json:"orphaned"`
	Aborted          bool        `json:"aborted"`
}

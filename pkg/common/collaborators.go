package common

import (
	"context"
	"time"
)

// FileWalker is the filesystem-walking primitive this repository treats as
// an external collaborator (§1 Non-goals). The scanning stages call this
// rather than walking directories themselves.
type FileWalker interface {
	// Walk lists entries directly under root; includeSubfolders controls
	// whether it recurses. Entries are returned unsorted — callers sort.
	Walk(root string, includeSubfolders bool) ([]WalkEntry, error)
	// ListChildren lists the immediate children of root, directories and
	// files both, unsorted — used by library-scan to discover candidate
	// collections (§4.1 Stage A) before deciding folder vs. archive vs.
	// recurse-further for each.
	ListChildren(root string) ([]WalkEntry, error)
}

// WalkEntry is one filesystem entry discovered by a FileWalker.
type WalkEntry struct {
	Path    string
	IsDir   bool
	Size    int64
	ModTime time.Time
}

// ImageDecoder is the pure `bytes -> (w,h,format,thumbnailBytes)` boundary
// spec §1 declares external. pkg/imgproc provides a concrete implementation
// of this interface on top of h2non/filetype + disintegration/imaging; a
// caller is free to substitute another implementation without touching the
// pipeline stages.
type ImageDecoder interface {
	// Dimensions decodes just enough of data to learn width, height, and a
	// normalized format tag (one of jpeg|png|gif|webp).
	Dimensions(data []byte) (width, height int, format string, err error)
	// Render produces a resized derivative at targetW x targetH, encoded at
	// quality (where the target format supports a quality knob).
	Render(data []byte, targetW, targetH, quality int) (out []byte, format string, err error)
	// RenderJPEG is Render, but always re-encodes as JPEG regardless of the
	// source format — used where a caller's output is contractually a
	// JPEG data URL rather than a format-preserving derivative (§4.3 direct-
	// reference thumbnail inlining).
	RenderJPEG(data []byte, targetW, targetH, quality int) (out []byte, err error)
}

// SchedulerTrigger is the cron-expression driver spec §1/§9 names as an
// external collaborator. This core is only ever driven by messages; a
// SchedulerTrigger is whatever periodically calls TriggerLibraryScan on the
// facade in pkg/service.
type SchedulerTrigger interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

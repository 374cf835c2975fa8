package idx

import (
	"encoding/base64"
	"os"

	"github.com/imagevault/imagevault/pkg/apitypes"
	"github.com/imagevault/imagevault/pkg/common"
)

const (
	maxInlineThumbBytes = 500 * 1024
	maxInlineThumbBox   = 400
	directRefTargetBox  = 300
	directRefQuality    = 85
)

var contentTypePrefix = map[string]string{
	"jpeg": "data:image/jpeg;base64,",
	"jpg":  "data:image/jpeg;base64,",
	"png":  "data:image/png;base64,",
	"webp": "data:image/webp;base64,",
	"gif":  "data:image/gif;base64,",
}

// Summarize builds the denormalized CollectionSummary and
// CollectionIndexState for one collection (§4.3 "Summary contents").
// hasFailedStage is the caller's lookup of the collection's own job's
// AnyStageFailed (SPEC_FULL §3: processingIncomplete is "computed at
// summary-build time from hasFailedStage", not guessed from which
// derivatives are present — a scan can still be legitimately in flight
// with no failure at all). decoder is only consulted when the first
// image's thumbnail is a direct reference rather than a generated
// derivative; skipInline bypasses inlining of either kind (no data URL, no
// returned thumbnail bytes), trading first-request
// latency for ~10x rebuild throughput (§4.3 "optional flag skips
// base64-thumbnail inlining").
func Summarize(c *apitypes.Collection, decoder common.ImageDecoder, hasFailedStage, skipInline bool) (apitypes.CollectionSummary, apitypes.CollectionIndexState, []byte) {
	s := apitypes.CollectionSummary{
		ID:                   c.ID,
		Name:                 c.Name,
		ImageCount:           int64(len(c.Images)),
		TotalSize:            c.Statistics.TotalSize,
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            c.UpdatedAt,
		LibraryID:            c.LibraryID,
		Type:                 c.Type,
		Path:                 c.Path,
		ProcessingIncomplete: hasFailedStage,
	}

	state := apitypes.CollectionIndexState{
		IndexedAt:           c.UpdatedAt,
		CollectionUpdatedAt: c.UpdatedAt,
		ImageCount:          int64(len(c.Images)),
		ThumbnailCount:      int64(len(c.Thumbnails)),
		CacheCount:          int64(len(c.CacheImages)),
	}

	if len(c.Images) == 0 || skipInline {
		return s, state, nil
	}

	first := c.Images[0]
	dataURL, thumbBytes, ok := inlineThumbnail(c, first, decoder)
	if ok {
		s.ThumbnailDataURL = dataURL
		state.HasFirstThumbnail = true
	}
	return s, state, thumbBytes
}

func inlineThumbnail(c *apitypes.Collection, first apitypes.ImageEmbedded, decoder common.ImageDecoder) (string, []byte, bool) {
	th, ok := c.FindThumbnail(first.ID)
	if !ok {
		return "", nil, false
	}
	if th.IsDirect {
		return directReferenceInline(th, decoder)
	}
	return generatedThumbnailInline(th)
}

// generatedThumbnailInline reads a pre-generated thumbnail from disk and
// inlines it if it fits the 500KB/400x400 budget.
func generatedThumbnailInline(th apitypes.ThumbnailEmbedded) (string, []byte, bool) {
	if th.ByteSize > maxInlineThumbBytes || th.Width > maxInlineThumbBox || th.Height > maxInlineThumbBox {
		return "", nil, false
	}
	data, err := os.ReadFile(th.Path)
	if err != nil {
		return "", nil, false
	}
	prefix, ok := contentTypePrefix[th.Format]
	if !ok {
		return "", nil, false
	}
	return prefix + base64.StdEncoding.EncodeToString(data), data, true
}

// directReferenceInline opens the original file, resizes it in memory to
// 300x300 at quality 85, and inlines the result as a JPEG regardless of the
// source format — the index never stores full-resolution originals as
// data-URLs, and §4.3 is explicit that a direct-reference inline is always
// "the resulting JPEG", not a format-preserving derivative (§4.3).
func directReferenceInline(th apitypes.ThumbnailEmbedded, decoder common.ImageDecoder) (string, []byte, bool) {
	if decoder == nil {
		return "", nil, false
	}
	original, err := os.ReadFile(th.Path)
	if err != nil {
		return "", nil, false
	}
	resized, err := decoder.RenderJPEG(original, directRefTargetBox, directRefTargetBox, directRefQuality)
	if err != nil {
		return "", nil, false
	}
	return contentTypePrefix["jpeg"] + base64.StdEncoding.EncodeToString(resized), resized, true
}

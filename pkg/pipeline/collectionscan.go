package pipeline

import (
	"context"
	"os"
	"path/filepath"

	"github.com/imagevault/imagevault/pkg/apitypes"
	"github.com/imagevault/imagevault/pkg/archive"
	"github.com/imagevault/imagevault/pkg/broker"
	"github.com/imagevault/imagevault/pkg/common"
)

// CollectionScanStage is the Stage B consumer of §4.1: enumerates a single
// collection's media (folder walk or archive listing), appends new images
// idempotently, and either finishes the job itself (direct-access folders)
// or fans out one image-process message per newly discovered image.
type CollectionScanStage struct {
	deps *Deps
}

func NewCollectionScanStage(deps *Deps) *CollectionScanStage { return &CollectionScanStage{deps: deps} }

func (s *CollectionScanStage) Handle(ctx context.Context, body []byte) error {
	msg, err := broker.DecodeBody[apitypes.CollectionScanMessage](body)
	if err != nil {
		return err
	}

	if msg.ForceRescan {
		if err := s.deps.Collections.ClearImageArrays(ctx, msg.CollectionID); err != nil {
			return err
		}
	}

	entries, err := enumerate(s.deps, msg.CollectionType, msg.CollectionPath)
	if err != nil {
		_ = s.deps.Jobs.SetStageStatus(ctx, msg.JobID, apitypes.StageScan, apitypes.StatusFailed, err.Error())
		return common.NewError(common.KindDataCorruption, "pipeline.CollectionScanStage.Handle", err)
	}
	if len(entries) == 0 {
		return nil
	}

	added, err := s.appendImages(ctx, msg, entries)
	if err != nil {
		return err
	}
	if len(added) == 0 {
		return nil
	}

	if err := s.deps.Jobs.IncrementStageTotal(ctx, msg.JobID, apitypes.StageScan, int64(len(added))); err != nil {
		return err
	}

	if msg.UseDirectFileAccess && msg.CollectionType == apitypes.TypeFolder {
		return s.handleDirect(ctx, msg, added)
	}
	return s.publishImageProcess(ctx, msg, added)
}

func (s *CollectionScanStage) appendImages(ctx context.Context, msg apitypes.CollectionScanMessage, entries []archive.Entry) ([]apitypes.ImageEmbedded, error) {
	added := make([]apitypes.ImageEmbedded, 0, len(entries))
	for _, e := range entries {
		img := apitypes.ImageEmbedded{
			ID:           apitypes.NewID(),
			Filename:     filepath.Base(e.Name),
			RelativePath: e.Name,
			ByteSize:     e.Size,
		}
		if msg.CollectionType == apitypes.TypeFolder {
			if w, h, format, ok := s.tryDimensions(msg.CollectionPath, e.Name); ok {
				img.Width, img.Height, img.Format = w, h, format
			}
		}

		wasAdded, err := s.deps.Collections.AtomicAddImage(ctx, msg.CollectionID, img)
		if err != nil {
			return nil, err
		}
		if wasAdded {
			added = append(added, img)
		}
	}
	return added, nil
}

// tryDimensions eagerly decodes a folder image's dimensions during the
// scan pass itself, since the bytes are already cheap to reach (§4.1
// "for folders it is attempted eagerly"). Archive entries defer this to
// image-process, where the archive is opened anyway.
func (s *CollectionScanStage) tryDimensions(collectionPath, relativePath string) (w, h int, format string, ok bool) {
	data, err := os.ReadFile(filepath.Join(collectionPath, filepath.FromSlash(relativePath)))
	if err != nil {
		return 0, 0, "", false
	}
	w, h, format, err = s.deps.Decoder.Dimensions(data)
	if err != nil {
		return 0, 0, "", false
	}
	return w, h, format, true
}

// handleDirect is the useDirectFileAccess branch: no image-process message
// is ever published, since the original file on disk already serves as
// both the thumbnail and the cache rendition (§4.1 Stage B).
func (s *CollectionScanStage) handleDirect(ctx context.Context, msg apitypes.CollectionScanMessage, added []apitypes.ImageEmbedded) error {
	thumbs := make([]apitypes.ThumbnailEmbedded, 0, len(added))
	caches := make([]apitypes.CacheImageEmbedded, 0, len(added))
	for _, img := range added {
		path := filepath.Join(msg.CollectionPath, filepath.FromSlash(img.RelativePath))
		thumbs = append(thumbs, apitypes.ThumbnailEmbedded{ImageID: img.ID, Path: path, Width: img.Width, Height: img.Height, ByteSize: img.ByteSize, Format: img.Format, IsDirect: true})
		caches = append(caches, apitypes.CacheImageEmbedded{ImageID: img.ID, Path: path, Width: img.Width, Height: img.Height, ByteSize: img.ByteSize, Format: img.Format, IsDirect: true})
	}
	if err := s.deps.Collections.AtomicAddThumbnails(ctx, msg.CollectionID, thumbs); err != nil {
		return err
	}
	if err := s.deps.Collections.AtomicAddCacheImages(ctx, msg.CollectionID, caches); err != nil {
		return err
	}

	n := int64(len(added))
	if err := s.deps.Jobs.IncrementStage(ctx, msg.JobID, apitypes.StageScan, n); err != nil {
		return err
	}
	if err := s.deps.Jobs.SetStageStatus(ctx, msg.JobID, apitypes.StageScan, apitypes.StatusCompleted, ""); err != nil {
		return err
	}
	for _, stage := range []apitypes.StageName{apitypes.StageThumbnail, apitypes.StageCache} {
		if err := s.deps.Jobs.IncrementStageTotal(ctx, msg.JobID, stage, n); err != nil {
			return err
		}
		if err := s.deps.Jobs.IncrementStage(ctx, msg.JobID, stage, n); err != nil {
			return err
		}
		if err := s.deps.Jobs.SetStageStatus(ctx, msg.JobID, stage, apitypes.StatusCompleted, ""); err != nil {
			return err
		}
	}
	return reindexCollection(ctx, s.deps, msg.CollectionID)
}

func (s *CollectionScanStage) publishImageProcess(ctx context.Context, msg apitypes.CollectionScanMessage, added []apitypes.ImageEmbedded) error {
	if err := s.deps.Jobs.IncrementStageTotal(ctx, msg.JobID, apitypes.StageThumbnail, int64(len(added))); err != nil {
		return err
	}
	if err := s.deps.Jobs.IncrementStageTotal(ctx, msg.JobID, apitypes.StageCache, int64(len(added))); err != nil {
		return err
	}
	for _, img := range added {
		m := apitypes.ImageProcessMessage{
			JobID:        msg.JobID,
			CollectionID: msg.CollectionID,
			ImageID:      img.ID,
			Source:       buildSource(msg.CollectionType, msg.CollectionPath, img.RelativePath),
		}
		if err := s.deps.Publisher.Publish(ctx, apitypes.MessageImageProcess, m); err != nil {
			return err
		}
	}
	return reindexCollection(ctx, s.deps, msg.CollectionID)
}

func enumerate(deps *Deps, t apitypes.CollectionType, path string) ([]archive.Entry, error) {
	if t == apitypes.TypeFolder {
		return archive.EnumerateFolder(deps.Walker, path, true)
	}
	r, err := openReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.Entries()
}

package pipeline

import (
	"context"
	"os"
	"path/filepath"

	"github.com/imagevault/imagevault/pkg/apitypes"
	"github.com/imagevault/imagevault/pkg/broker"
	"github.com/imagevault/imagevault/pkg/common"
)

// DerivativeStage is the shared Stage D (thumbnail-gen) / Stage E
// (cache-gen) consumer of §4.1: they differ only in which stage name they
// report against and which array they append to, so one type
// parameterized over those two serves both queues — mirroring the
// teacher's practice of sharing one consumer type across near-identical
// message kinds rather than forking the logic twice.
type DerivativeStage struct {
	deps   *Deps
	stage  apitypes.StageName
	suffix string
}

// estimateBytes is a rough per-pixel budget (JPEG-class compression) used
// only to pick a cache folder with headroom; it does not need to be exact,
// since AtomicIncStats always records the derivative's true ByteSize
// afterward.
func estimateBytes(w, h int) int64 {
	return int64(w*h) / 8
}

func NewThumbnailStage(deps *Deps) *DerivativeStage {
	return &DerivativeStage{deps: deps, stage: apitypes.StageThumbnail, suffix: "thumb"}
}

func NewCacheStage(deps *Deps) *DerivativeStage {
	return &DerivativeStage{deps: deps, stage: apitypes.StageCache, suffix: "cache"}
}

func (s *DerivativeStage) Handle(ctx context.Context, body []byte) error {
	msg, err := broker.DecodeBody[apitypes.DerivativeGenMessage](body)
	if err != nil {
		return err
	}

	if s.alreadyDone(ctx, msg) {
		return nil // idempotent: a redelivered message after a successful write is a no-op
	}

	data, err := readSource(msg.Source)
	if err != nil {
		s.deps.Log.Warn("%s: unreadable source for image %s: %s", s.stage, msg.ImageID.Hex(), err.Error())
		return s.deps.Jobs.IncrementStage(ctx, msg.JobID, s.stage, 1)
	}

	out, format, err := s.deps.Decoder.Render(data, msg.Width, msg.Height, msg.Quality)
	if err != nil {
		s.deps.Log.Warn("%s: undecodable image %s: %s", s.stage, msg.ImageID.Hex(), err.Error())
		return s.deps.Jobs.IncrementStage(ctx, msg.JobID, s.stage, 1)
	}

	folder, err := s.deps.CacheFolders.FindActiveByLowestPriority(ctx, estimateBytes(msg.Width, msg.Height))
	if err != nil {
		return err
	}

	path := derivativePath(folder.Path, msg.CollectionID, msg.ImageID, s.suffix, format)
	if err := writeDerivativeAtomic(path, out); err != nil {
		return err
	}

	if err := s.append(ctx, msg, path, len(out), format); err != nil {
		return err
	}
	if err := s.deps.CacheFolders.AtomicIncStats(ctx, folder.ID, int64(len(out)), 1, msg.CollectionID); err != nil {
		return err
	}
	if err := s.deps.Jobs.IncrementStage(ctx, msg.JobID, s.stage, 1); err != nil {
		return err
	}
	return reindexCollection(ctx, s.deps, msg.CollectionID)
}

func (s *DerivativeStage) alreadyDone(ctx context.Context, msg apitypes.DerivativeGenMessage) bool {
	c, err := s.deps.Collections.GetByID(ctx, msg.CollectionID)
	if err != nil {
		return false
	}
	var path string
	switch s.stage {
	case apitypes.StageThumbnail:
		th, ok := c.FindThumbnail(msg.ImageID)
		if !ok {
			return false
		}
		path = th.Path
	case apitypes.StageCache:
		for _, ci := range c.CacheImages {
			if ci.ImageID == msg.ImageID {
				path = ci.Path
				break
			}
		}
		if path == "" {
			return false
		}
	default:
		return false
	}
	_, statErr := os.Stat(path)
	return statErr == nil
}

func (s *DerivativeStage) append(ctx context.Context, msg apitypes.DerivativeGenMessage, path string, byteSize int, format string) error {
	switch s.stage {
	case apitypes.StageThumbnail:
		return s.deps.Collections.AtomicAddThumbnails(ctx, msg.CollectionID, []apitypes.ThumbnailEmbedded{{
			ImageID: msg.ImageID, Path: path, Width: msg.Width, Height: msg.Height, ByteSize: int64(byteSize), Format: format,
		}})
	case apitypes.StageCache:
		return s.deps.Collections.AtomicAddCacheImages(ctx, msg.CollectionID, []apitypes.CacheImageEmbedded{{
			ImageID: msg.ImageID, Path: path, Width: msg.Width, Height: msg.Height, ByteSize: int64(byteSize), Format: format,
		}})
	default:
		return nil
	}
}

// derivativePath lays derivatives out as {cacheRoot}/{collectionId}/{imageId}.{suffix}.{ext}
// so thumbnail and cache renditions of the same image never collide even
// when the lowest-priority folder picked both (§6).
func derivativePath(root string, collectionID, imageID apitypes.ID, suffix, format string) string {
	return filepath.Join(root, collectionID.Hex(), imageID.Hex()+"."+suffix+"."+format)
}

// writeDerivativeAtomic writes to a temp file in the same directory and
// renames over the destination, so a concurrent reader never observes a
// partially written derivative (§5 "temp-file-then-rename").
func writeDerivativeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return common.NewError(common.KindTransientIO, "pipeline.writeDerivativeAtomic", err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return common.NewError(common.KindTransientIO, "pipeline.writeDerivativeAtomic", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return common.NewError(common.KindTransientIO, "pipeline.writeDerivativeAtomic", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return common.NewError(common.KindTransientIO, "pipeline.writeDerivativeAtomic", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return common.NewError(common.KindTransientIO, "pipeline.writeDerivativeAtomic", err)
	}
	return nil
}

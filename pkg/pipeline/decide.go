package pipeline

import (
	"context"
	"path/filepath"

	"github.com/imagevault/imagevault/pkg/apitypes"
	"github.com/imagevault/imagevault/pkg/archive"
	"github.com/imagevault/imagevault/pkg/common"
)

// ScanOptions are the per-run flags library-scan and a direct
// collection-rescan trigger both apply through the same decision table
// (§4.1 "mode decision").
type ScanOptions struct {
	ResumeIncomplete    bool
	OverwriteExisting   bool
	UseDirectFileAccess bool
	AutoScan            bool
}

// decideAndDispatch is the mode-decision table of §4.1 applied to one
// collection path: overwrite wins over resume, resume only rescans when
// the collection has nothing scanned yet, and an already-populated
// collection with neither flag set is left alone.
func decideAndDispatch(ctx context.Context, deps *Deps, jobID, libraryID apitypes.ID, path string, t apitypes.CollectionType, opts ScanOptions) error {
	existing, err := deps.Collections.FindByPath(ctx, libraryID, path)
	if err != nil && common.KindOf(err) != common.KindNotFound {
		return err
	}
	if err != nil {
		return createAndScan(ctx, deps, jobID, libraryID, path, t, opts)
	}

	switch {
	case opts.OverwriteExisting:
		if err := deps.Collections.ClearImageArrays(ctx, existing.ID); err != nil {
			return err
		}
		return publishCollectionScan(ctx, deps, jobID, existing.ID, existing.Path, existing.Type, true, opts.UseDirectFileAccess)
	case opts.ResumeIncomplete && len(existing.Images) > 0:
		return resumeCollection(ctx, deps, jobID, existing, opts)
	case opts.ResumeIncomplete && len(existing.Images) == 0:
		return publishCollectionScan(ctx, deps, jobID, existing.ID, existing.Path, existing.Type, false, opts.UseDirectFileAccess)
	case len(existing.Images) > 0:
		return nil // already scanned, neither flag requests rework: skip
	default:
		return publishCollectionScan(ctx, deps, jobID, existing.ID, existing.Path, existing.Type, false, opts.UseDirectFileAccess)
	}
}

func createAndScan(ctx context.Context, deps *Deps, jobID, libraryID apitypes.ID, path string, t apitypes.CollectionType, opts ScanOptions) error {
	settings := apitypes.CollectionSettings{
		AutoScan:            opts.AutoScan,
		GenerateThumbnails:  true,
		GenerateCache:       true,
		UseDirectFileAccess: opts.UseDirectFileAccess,
	}.Normalize(t)

	c := &apitypes.Collection{
		ID:        apitypes.NewID(),
		Name:      archive.DerivedCollectionName(path, t),
		Path:      path,
		Type:      t,
		LibraryID: libraryID,
		Settings:  settings,
	}
	if err := deps.Collections.Create(ctx, c); err != nil {
		return err
	}
	return publishCollectionScan(ctx, deps, jobID, c.ID, c.Path, c.Type, false, settings.UseDirectFileAccess)
}

func publishCollectionScan(ctx context.Context, deps *Deps, jobID, collectionID apitypes.ID, path string, t apitypes.CollectionType, forceRescan, useDirectFileAccess bool) error {
	msg := apitypes.CollectionScanMessage{
		JobID:               jobID,
		CollectionID:        collectionID,
		CollectionPath:      path,
		CollectionType:      t,
		ForceRescan:         forceRescan,
		UseDirectFileAccess: useDirectFileAccess,
	}
	return deps.Publisher.Publish(ctx, apitypes.MessageCollectionScan, msg)
}

// resumeCollection implements §4.1's "Resume" scenario: no rescan, only
// the derivatives still missing from a previously interrupted run are
// (re)published, seeding the thumbnail/cache stage totals to exactly the
// missing counts rather than the whole collection.
func resumeCollection(ctx context.Context, deps *Deps, jobID apitypes.ID, c *apitypes.Collection, opts ScanOptions) error {
	missingThumb, missingCache := c.MissingDerivatives()

	if opts.UseDirectFileAccess && c.Type == apitypes.TypeFolder {
		return resumeDirect(ctx, deps, jobID, c, missingThumb, missingCache)
	}

	if len(missingThumb) > 0 {
		if err := deps.Jobs.IncrementStageTotal(ctx, jobID, apitypes.StageThumbnail, int64(len(missingThumb))); err != nil {
			return err
		}
		for _, img := range missingThumb {
			if err := publishDerivative(ctx, deps, apitypes.MessageThumbnailGen, jobID, c, img, deps.ThumbnailTarget); err != nil {
				return err
			}
		}
	}
	if len(missingCache) > 0 {
		if err := deps.Jobs.IncrementStageTotal(ctx, jobID, apitypes.StageCache, int64(len(missingCache))); err != nil {
			return err
		}
		for _, img := range missingCache {
			if err := publishDerivative(ctx, deps, apitypes.MessageCacheGen, jobID, c, img, deps.CacheTarget); err != nil {
				return err
			}
		}
	}
	return nil
}

func resumeDirect(ctx context.Context, deps *Deps, jobID apitypes.ID, c *apitypes.Collection, missingThumb, missingCache []apitypes.ImageEmbedded) error {
	if thumbs := buildDirectThumbs(c, missingThumb); len(thumbs) > 0 {
		if err := deps.Collections.AtomicAddThumbnails(ctx, c.ID, thumbs); err != nil {
			return err
		}
		if err := deps.Jobs.IncrementStageTotal(ctx, jobID, apitypes.StageThumbnail, int64(len(thumbs))); err != nil {
			return err
		}
		if err := deps.Jobs.IncrementStage(ctx, jobID, apitypes.StageThumbnail, int64(len(thumbs))); err != nil {
			return err
		}
		if err := deps.Jobs.SetStageStatus(ctx, jobID, apitypes.StageThumbnail, apitypes.StatusCompleted, ""); err != nil {
			return err
		}
	}
	if caches := buildDirectCaches(c, missingCache); len(caches) > 0 {
		if err := deps.Collections.AtomicAddCacheImages(ctx, c.ID, caches); err != nil {
			return err
		}
		if err := deps.Jobs.IncrementStageTotal(ctx, jobID, apitypes.StageCache, int64(len(caches))); err != nil {
			return err
		}
		if err := deps.Jobs.IncrementStage(ctx, jobID, apitypes.StageCache, int64(len(caches))); err != nil {
			return err
		}
		if err := deps.Jobs.SetStageStatus(ctx, jobID, apitypes.StageCache, apitypes.StatusCompleted, ""); err != nil {
			return err
		}
	}
	return reindexCollection(ctx, deps, c.ID)
}

func buildDirectThumbs(c *apitypes.Collection, imgs []apitypes.ImageEmbedded) []apitypes.ThumbnailEmbedded {
	out := make([]apitypes.ThumbnailEmbedded, 0, len(imgs))
	for _, img := range imgs {
		out = append(out, apitypes.ThumbnailEmbedded{
			ImageID: img.ID, Path: filepath.Join(c.Path, filepath.FromSlash(img.RelativePath)),
			Width: img.Width, Height: img.Height, ByteSize: img.ByteSize, Format: img.Format, IsDirect: true,
		})
	}
	return out
}

func buildDirectCaches(c *apitypes.Collection, imgs []apitypes.ImageEmbedded) []apitypes.CacheImageEmbedded {
	out := make([]apitypes.CacheImageEmbedded, 0, len(imgs))
	for _, img := range imgs {
		out = append(out, apitypes.CacheImageEmbedded{
			ImageID: img.ID, Path: filepath.Join(c.Path, filepath.FromSlash(img.RelativePath)),
			Width: img.Width, Height: img.Height, ByteSize: img.ByteSize, Format: img.Format, IsDirect: true,
		})
	}
	return out
}

func publishDerivative(ctx context.Context, deps *Deps, msgType apitypes.MessageType, jobID apitypes.ID, c *apitypes.Collection, img apitypes.ImageEmbedded, target common.ImageTarget) error {
	msg := apitypes.DerivativeGenMessage{
		JobID:        jobID,
		CollectionID: c.ID,
		ImageID:      img.ID,
		Source:       buildSource(c.Type, c.Path, img.RelativePath),
		Width:        target.Width,
		Height:       target.Height,
		Format:       img.Format,
		Quality:      target.Quality,
	}
	return deps.Publisher.Publish(ctx, msgType, msg)
}

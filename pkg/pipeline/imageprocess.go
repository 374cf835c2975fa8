package pipeline

import (
	"context"

	"github.com/imagevault/imagevault/pkg/apitypes"
	"github.com/imagevault/imagevault/pkg/broker"
)

// ImageProcessStage is the Stage C consumer of §4.1: learns an image's
// (width, height, format), writes them onto the Collection, and — unless
// the decode fails — fans out the thumbnail-gen and cache-gen messages.
// This is where the scan stage's completedItems advances for queued
// images; collection-scan advances it itself only for direct-file-access
// folders, which publish no image-process message. A duplicate image-process delivery (idempotent AtomicSetImageDimensions)
// never pushes completedItems past totalItems.
type ImageProcessStage struct {
	deps *Deps
}

func NewImageProcessStage(deps *Deps) *ImageProcessStage { return &ImageProcessStage{deps: deps} }

func (s *ImageProcessStage) Handle(ctx context.Context, body []byte) error {
	msg, err := broker.DecodeBody[apitypes.ImageProcessMessage](body)
	if err != nil {
		return err
	}

	data, readErr := readSource(msg.Source)
	if readErr != nil {
		// A single corrupted image fails only its own processing — the
		// scan stage still advances so siblings aren't blocked forever.
		s.deps.Log.Warn("image-process: unreadable source for image %s: %s", msg.ImageID.Hex(), readErr.Error())
		return s.deps.Jobs.IncrementStage(ctx, msg.JobID, apitypes.StageScan, 1)
	}

	w, h, format, dimErr := s.deps.Decoder.Dimensions(data)
	if dimErr != nil {
		s.deps.Log.Warn("image-process: undecodable image %s: %s", msg.ImageID.Hex(), dimErr.Error())
		return s.deps.Jobs.IncrementStage(ctx, msg.JobID, apitypes.StageScan, 1)
	}

	if err := s.deps.Collections.AtomicSetImageDimensions(ctx, msg.CollectionID, msg.ImageID, w, h, format); err != nil {
		return err
	}
	if err := s.deps.Jobs.IncrementStage(ctx, msg.JobID, apitypes.StageScan, 1); err != nil {
		return err
	}

	thumbMsg := apitypes.DerivativeGenMessage{
		JobID: msg.JobID, CollectionID: msg.CollectionID, ImageID: msg.ImageID, Source: msg.Source,
		Width: s.deps.ThumbnailTarget.Width, Height: s.deps.ThumbnailTarget.Height, Format: format, Quality: s.deps.ThumbnailTarget.Quality,
	}
	if err := s.deps.Publisher.Publish(ctx, apitypes.MessageThumbnailGen, thumbMsg); err != nil {
		return err
	}

	cacheMsg := apitypes.DerivativeGenMessage{
		JobID: msg.JobID, CollectionID: msg.CollectionID, ImageID: msg.ImageID, Source: msg.Source,
		Width: s.deps.CacheTarget.Width, Height: s.deps.CacheTarget.Height, Format: format, Quality: s.deps.CacheTarget.Quality,
	}
	if err := s.deps.Publisher.Publish(ctx, apitypes.MessageCacheGen, cacheMsg); err != nil {
		return err
	}

	return nil
}

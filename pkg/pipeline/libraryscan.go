package pipeline

import (
	"context"

	"github.com/imagevault/imagevault/pkg/apitypes"
	"github.com/imagevault/imagevault/pkg/archive"
	"github.com/imagevault/imagevault/pkg/broker"
	"github.com/imagevault/imagevault/pkg/common"
)

// LibraryScanStage is the Stage A consumer of §4.1: it discovers candidate
// collections under a library root and applies the mode-decision table to
// each one.
type LibraryScanStage struct {
	deps *Deps
}

func NewLibraryScanStage(deps *Deps) *LibraryScanStage { return &LibraryScanStage{deps: deps} }

func (s *LibraryScanStage) Handle(ctx context.Context, body []byte) error {
	msg, err := broker.DecodeBody[apitypes.LibraryScanMessage](body)
	if err != nil {
		return err
	}

	candidates, err := archive.DiscoverCollections(s.deps.Walker, msg.LibraryPath, msg.IncludeSubfolders)
	if err != nil {
		_ = s.deps.Jobs.SetStageStatus(ctx, msg.JobID, apitypes.StageScan, apitypes.StatusFailed, err.Error())
		return common.NewError(common.KindDataCorruption, "pipeline.LibraryScanStage.Handle", err)
	}

	opts := ScanOptions{
		ResumeIncomplete:    msg.ResumeIncomplete,
		OverwriteExisting:   msg.OverwriteExisting,
		UseDirectFileAccess: msg.UseDirectFileAccess,
		AutoScan:            msg.AutoScan,
	}
	for _, cand := range candidates {
		if err := decideAndDispatch(ctx, s.deps, msg.JobID, msg.LibraryID, cand.Path, cand.Type, opts); err != nil {
			return err
		}
	}
	return nil
}

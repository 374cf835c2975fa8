// Package service is the facade the API role calls into (§6): trigger a
// scan, read back paginated/positional collection listings, check a job's
// status, rebuild the index under one of its four strategies, or force a
// DLQ recovery pass on demand. Shaped after the teacher's
// ExecuteFlowController (pkg/cli/execute-flow-controller.go) — one
// constructor-injected struct gathering every collaborator a process role
// needs, exposing each admin operation as a plain method rather than a
// deep call chain the transport layer would otherwise have to assemble
// itself.
package service

import (
	"context"

	"github.com/imagevault/imagevault/pkg/apitypes"
	"github.com/imagevault/imagevault/pkg/dlq"
	"github.com/imagevault/imagevault/pkg/idx"
	"github.com/imagevault/imagevault/pkg/log"
	"github.com/imagevault/imagevault/pkg/pipeline"
	"github.com/imagevault/imagevault/pkg/store"
)

// Service is the full §6 admin/API surface.
type Service struct {
	deps      *pipeline.Deps
	reader    idx.Reader
	rebuilder *idx.Rebuilder
	recoverer *dlq.Recoverer
	jobs      store.JobRepository
	log       log.PluggableLoggerInterface
}

func New(deps *pipeline.Deps, reader idx.Reader, rebuilder *idx.Rebuilder, recoverer *dlq.Recoverer, jobs store.JobRepository, logger log.PluggableLoggerInterface) *Service {
	return &Service{deps: deps, reader: reader, rebuilder: rebuilder, recoverer: recoverer, jobs: jobs, log: logger}
}

// TriggerLibraryScan starts a library-wide scan job (§4.1 Stage A trigger).
func (s *Service) TriggerLibraryScan(ctx context.Context, libraryID apitypes.ID, libraryPath string, includeSubfolders bool, opts pipeline.ScanOptions) (apitypes.ID, error) {
	return pipeline.TriggerLibraryScan(ctx, s.deps, libraryID, libraryPath, opts, includeSubfolders)
}

// TriggerCollectionRescan starts a per-collection rescan job, applying the
// same mode-decision table library-scan applies per candidate (§4.1).
func (s *Service) TriggerCollectionRescan(ctx context.Context, collectionID apitypes.ID, opts pipeline.ScanOptions) (apitypes.ID, error) {
	return pipeline.TriggerCollectionRescan(ctx, s.deps, collectionID, opts)
}

// JobStatus returns the current BackgroundJob document for status polling.
func (s *Service) JobStatus(ctx context.Context, jobID apitypes.ID) (*apitypes.BackgroundJob, error) {
	return s.jobs.GetByID(ctx, jobID)
}

// GetPage lists one page of collections sorted by field/dir, optionally
// filtered by library or type (§4.3, §6).
func (s *Service) GetPage(ctx context.Context, field apitypes.SortField, dir apitypes.SortDir, filter idx.Filter, page, pageSize int) (apitypes.Page, error) {
	return s.reader.GetPage(ctx, field, dir, filter, page, pageSize)
}

// GetSidebarPage lists a page centered on aroundID's position, for "jump to
// this collection in its sorted list" sidebar navigation (§4.3).
func (s *Service) GetSidebarPage(ctx context.Context, field apitypes.SortField, dir apitypes.SortDir, filter idx.Filter, aroundID apitypes.ID, page, pageSize int) (apitypes.Page, error) {
	return s.reader.GetSidebarPage(ctx, field, dir, filter, aroundID, page, pageSize)
}

// GetPosition reports a collection's rank and neighbors within one sorted
// view (§4.3).
func (s *Service) GetPosition(ctx context.Context, id apitypes.ID, field apitypes.SortField, dir apitypes.SortDir, filter idx.Filter) (apitypes.Position, error) {
	return s.reader.GetPosition(ctx, id, field, dir, filter)
}

// RebuildIndex runs one of the four rebuild strategies of §4.3 on demand.
func (s *Service) RebuildIndex(ctx context.Context, mode apitypes.RebuildMode, dryRun, skipInline bool) (apitypes.RebuildStats, error) {
	return s.rebuilder.Run(ctx, mode, dryRun, skipInline)
}

// RecoverDLQNow drains the dlq queue immediately instead of waiting for the
// next boot, returning republish counts per original queue (§6 "POST DLQ
// recover").
func (s *Service) RecoverDLQNow(ctx context.Context) (dlq.Result, error) {
	res, err := s.recoverer.Run(ctx)
	if err != nil {
		return res, err
	}
	s.log.Info("dlq recover-now: republished %d message(s) across %d queue(s), %d left in place", totalRepublished(res), len(res.RepublishedByQueue), res.Invalid)
	return res, nil
}

func totalRepublished(res dlq.Result) int {
	total := 0
	for _, n := range res.RepublishedByQueue {
		total += n
	}
	return total
}

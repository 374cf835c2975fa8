package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/imagevault/imagevault/pkg/apitypes"
	"github.com/imagevault/imagevault/pkg/broker"
	"github.com/imagevault/imagevault/pkg/pipeline"
	"github.com/imagevault/imagevault/pkg/progress"
	"github.com/imagevault/imagevault/pkg/service"
)

// newAdminService dials every collaborator service.Service needs for a
// single one-shot admin operation (§6 table), mirroring the teacher's
// pattern of building its collector/mirror/batch trio once per CLI
// invocation rather than keeping them alive as a daemon.
func newAdminService(ctx context.Context, configPath, label string) (*service.Service, *collaborators, error) {
	deps, err := bootstrap(ctx, configPath, label)
	if err != nil {
		return nil, nil, err
	}
	pubCh, err := deps.openChannel()
	if err != nil {
		deps.Close(ctx)
		return nil, nil, err
	}
	recoveryCh, err := deps.openChannel()
	if err != nil {
		deps.Close(ctx)
		return nil, nil, err
	}
	publisher := broker.NewPublisher(pubCh)
	svc := service.New(deps.pipelineDeps(publisher), deps.reader, deps.rebuilder(), dlqRecoverer(recoveryCh, deps.log), deps.jobs, deps.log)
	return svc, deps, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}

// runScanLibrary triggers a library-wide scan job (§6 "POST trigger
// library scan") and prints the resulting job id.
func runScanLibrary(args []string) error {
	fs := flag.NewFlagSet(scanLibraryCommand, flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to the service configuration file")
	libraryID := fs.String("library-id", "", "hex-encoded library collection id")
	libraryPath := fs.String("library-path", "", "filesystem path to the library root")
	includeSubfolders := fs.Bool("include-subfolders", true, "recurse into subfolders while walking the library path")
	resumeIncomplete := fs.Bool("resume-incomplete", false, "enqueue only missing derivative work for already-scanned collections")
	overwriteExisting := fs.Bool("overwrite-existing", false, "clear and rescan collections that already have images")
	useDirectFileAccess := fs.Bool("direct-file-access", false, "store direct-reference thumbnails/cache instead of rendering derivatives")
	autoScan := fs.Bool("auto-scan", false, "mark newly discovered collections for automatic future rescans")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse %s flags: %w", scanLibraryCommand, err)
	}
	if *libraryPath == "" {
		return fmt.Errorf("%s: -library-path is required", scanLibraryCommand)
	}

	id, err := parseOrNewID(*libraryID)
	if err != nil {
		return err
	}

	ctx := context.Background()
	svc, deps, err := newAdminService(ctx, *configPath, scanLibraryCommand)
	if err != nil {
		return err
	}
	defer deps.Close(ctx)

	jobID, err := svc.TriggerLibraryScan(ctx, id, *libraryPath, *includeSubfolders, pipeline.ScanOptions{
		ResumeIncomplete:    *resumeIncomplete,
		OverwriteExisting:   *overwriteExisting,
		UseDirectFileAccess: *useDirectFileAccess,
		AutoScan:            *autoScan,
	})
	if err != nil {
		return err
	}
	return printJSON(map[string]string{"jobId": jobID.Hex()})
}

// runScanCollection triggers a single-collection rescan (§6 "POST trigger
// collection rescan"), applying the same mode-decision table library-scan
// applies per candidate.
func runScanCollection(args []string) error {
	fs := flag.NewFlagSet(scanCollectionCmd, flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to the service configuration file")
	collectionID := fs.String("collection-id", "", "hex-encoded collection id")
	resumeIncomplete := fs.Bool("resume-incomplete", false, "enqueue only missing derivative work")
	overwriteExisting := fs.Bool("overwrite-existing", false, "clear and rescan regardless of existing images")
	useDirectFileAccess := fs.Bool("direct-file-access", false, "store direct-reference thumbnails/cache instead of rendering derivatives")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse %s flags: %w", scanCollectionCmd, err)
	}
	if *collectionID == "" {
		return fmt.Errorf("%s: -collection-id is required", scanCollectionCmd)
	}
	id, err := apitypes.ParseID(*collectionID)
	if err != nil {
		return fmt.Errorf("parse -collection-id: %w", err)
	}

	ctx := context.Background()
	svc, deps, err := newAdminService(ctx, *configPath, scanCollectionCmd)
	if err != nil {
		return err
	}
	defer deps.Close(ctx)

	jobID, err := svc.TriggerCollectionRescan(ctx, id, pipeline.ScanOptions{
		ResumeIncomplete:    *resumeIncomplete,
		OverwriteExisting:   *overwriteExisting,
		UseDirectFileAccess: *useDirectFileAccess,
	})
	if err != nil {
		return err
	}
	return printJSON(map[string]string{"jobId": jobID.Hex()})
}

// runJobStatus prints the full BackgroundJob aggregate (§6 "GET job
// status").
func runJobStatus(args []string) error {
	fs := flag.NewFlagSet(jobStatusCommand, flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to the service configuration file")
	jobID := fs.String("job-id", "", "hex-encoded job id")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse %s flags: %w", jobStatusCommand, err)
	}
	if *jobID == "" {
		return fmt.Errorf("%s: -job-id is required", jobStatusCommand)
	}
	id, err := apitypes.ParseID(*jobID)
	if err != nil {
		return fmt.Errorf("parse -job-id: %w", err)
	}

	ctx := context.Background()
	svc, deps, err := newAdminService(ctx, *configPath, jobStatusCommand)
	if err != nil {
		return err
	}
	defer deps.Close(ctx)

	job, err := svc.JobStatus(ctx, id)
	if err != nil {
		return err
	}
	return printJSON(job)
}

// runJobWatch polls job status and renders a live progress display until
// the job reaches a terminal state, using the same mpb bars the teacher
// drives for mirror-copy progress (pkg/progress).
func runJobWatch(args []string) error {
	fs := flag.NewFlagSet(jobWatchCommand, flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to the service configuration file")
	jobID := fs.String("job-id", "", "hex-encoded job id")
	pollInterval := fs.Duration("poll", time.Second, "polling interval")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse %s flags: %w", jobWatchCommand, err)
	}
	if *jobID == "" {
		return fmt.Errorf("%s: -job-id is required", jobWatchCommand)
	}
	id, err := apitypes.ParseID(*jobID)
	if err != nil {
		return fmt.Errorf("parse -job-id: %w", err)
	}

	ctx, stop := withSignalCancel(context.Background())
	defer stop()

	svc, deps, err := newAdminService(ctx, *configPath, jobWatchCommand)
	if err != nil {
		return err
	}
	defer deps.Close(ctx)

	watcher := progress.NewJobWatcher(os.Stderr)
	ticker := time.NewTicker(*pollInterval)
	defer ticker.Stop()

	for {
		job, err := svc.JobStatus(ctx, id)
		if err != nil {
			return err
		}
		watcher.Sync(job)
		if job.Status.IsTerminal() {
			watcher.Close()
			return printJSON(job)
		}
		select {
		case <-ctx.Done():
			watcher.Close()
			return nil
		case <-ticker.C:
		}
	}
}

// runIndexRebuild runs one of the four §4.3 rebuild strategies on demand
// (§6 "POST index rebuild").
func runIndexRebuild(args []string) error {
	fs := flag.NewFlagSet(indexRebuildCmd, flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to the service configuration file")
	mode := fs.String("mode", string(apitypes.RebuildChangedOnly), "one of Full|ForceRebuildAll|ChangedOnly|Verify")
	dryRun := fs.Bool("dry-run", false, "report without mutating the index")
	skipThumbnails := fs.Bool("skip-thumbnails", false, "skip base64 thumbnail inlining for a faster rebuild")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse %s flags: %w", indexRebuildCmd, err)
	}
	rebuildMode := apitypes.RebuildMode(*mode)
	if !rebuildMode.Valid() {
		return fmt.Errorf("%s: unknown -mode %q", indexRebuildCmd, *mode)
	}

	ctx, stop := withSignalCancel(context.Background())
	defer stop()

	svc, deps, err := newAdminService(ctx, *configPath, indexRebuildCmd)
	if err != nil {
		return err
	}
	defer deps.Close(ctx)

	stats, err := svc.RebuildIndex(ctx, rebuildMode, *dryRun, *skipThumbnails)
	if err != nil {
		return err
	}
	return printJSON(stats)
}

// runDLQRecover drains the dlq queue immediately (§6 "POST DLQ recover").
func runDLQRecover(args []string) error {
	fs := flag.NewFlagSet(dlqRecoverCommand, flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to the service configuration file")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse %s flags: %w", dlqRecoverCommand, err)
	}

	ctx := context.Background()
	svc, deps, err := newAdminService(ctx, *configPath, dlqRecoverCommand)
	if err != nil {
		return err
	}
	defer deps.Close(ctx)

	res, err := svc.RecoverDLQNow(ctx)
	if err != nil {
		return err
	}
	return printJSON(res)
}

func parseOrNewID(hex string) (apitypes.ID, error) {
	if hex == "" {
		return apitypes.NewID(), nil
	}
	id, err := apitypes.ParseID(hex)
	if err != nil {
		return apitypes.ID{}, fmt.Errorf("parse -library-id: %w", err)
	}
	return id, nil
}

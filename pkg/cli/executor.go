// Package cli dispatches the imagevault binary's subcommands: the four
// long-lived process roles of §2 (api, worker, monitor, reconciler) and a
// handful of one-shot admin commands that exercise the §6 admin/API
// surface directly, the way the teacher's pkg/cli dispatches "mirror" and
// "delete" off os.Args[1] in Execute (executor.go).
package cli

import (
	"fmt"
	"os"
)

// Execute reads os.Args[1] as the subcommand and runs it. Unlike the
// teacher's fixed mirror/delete pair, imagevault's subcommand set spans
// both daemon roles and one-shot admin operations, so there is no shared
// flag.FlagSet — each subcommand owns its own.
func Execute() error {
	if len(os.Args) < 2 {
		printUsage()
		return fmt.Errorf("missing subcommand")
	}

	switch os.Args[1] {
	case apiCommand:
		return runAPI(os.Args[2:])
	case workerCommand:
		return runWorker(os.Args[2:])
	case monitorCommand:
		return runMonitor(os.Args[2:])
	case reconcilerCommand:
		return runReconciler(os.Args[2:])
	case scanLibraryCommand:
		return runScanLibrary(os.Args[2:])
	case scanCollectionCmd:
		return runScanCollection(os.Args[2:])
	case jobStatusCommand:
		return runJobStatus(os.Args[2:])
	case jobWatchCommand:
		return runJobWatch(os.Args[2:])
	case indexRebuildCmd:
		return runIndexRebuild(os.Args[2:])
	case dlqRecoverCommand:
		return runDLQRecover(os.Args[2:])
	default:
		printUsage()
		return fmt.Errorf("unknown subcommand %q", os.Args[1])
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: imagevault <subcommand> [flags]")
	fmt.Fprintln(os.Stderr, "roles:   api | worker | monitor | reconciler")
	fmt.Fprintln(os.Stderr, "admin:   scan-library | scan-collection | job-status | job-watch | index-rebuild | dlq-recover")
}

package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/imagevault/imagevault/pkg/job"
)

// runMonitor runs the job-state reconciliation ticker of §4.2 until a
// shutdown signal arrives. It touches only the document store — no
// broker or cache connection is needed for this role.
func runMonitor(args []string) error {
	fs := flag.NewFlagSet(monitorCommand, flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to the service configuration file")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse monitor flags: %w", err)
	}

	ctx, stop := withSignalCancel(context.Background())
	defer stop()

	deps, err := bootstrap(ctx, *configPath, monitorCommand)
	if err != nil {
		return err
	}
	defer deps.Close(context.Background())

	counts := job.NewCollectionCounts(deps.collections)
	monitor := job.NewMonitor(deps.jobs, counts, deps.log, deps.opts.MonitorInterval())

	deps.log.Info("monitor: reconciling every %s", deps.opts.MonitorInterval())
	monitor.Run(ctx)
	deps.log.Info("monitor: shutdown signal received")
	return nil
}

package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/imagevault/imagevault/pkg/reconciler"
)

// runReconciler performs the boot-time DLQ recovery pass (§4.4) and then
// runs the Verify-mode index sweep ticker (§4.3) until a shutdown signal
// arrives.
func runReconciler(args []string) error {
	fs := flag.NewFlagSet(reconcilerCommand, flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to the service configuration file")
	skipInline := fs.Bool("skip-thumbnails", false, "skip base64 thumbnail inlining during verify sweeps for faster rebuilds")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse reconciler flags: %w", err)
	}

	ctx, stop := withSignalCancel(context.Background())
	defer stop()

	deps, err := bootstrap(ctx, *configPath, reconcilerCommand)
	if err != nil {
		return err
	}
	defer deps.Close(context.Background())

	recoveryCh, err := deps.openChannel()
	if err != nil {
		return err
	}
	recoverer := dlqRecoverer(recoveryCh, deps.log)

	rec := reconciler.New(deps.rebuilder(), recoverer, deps.log, deps.opts.MonitorInterval(), *skipInline)
	if err := rec.RecoverAtBoot(ctx); err != nil {
		return fmt.Errorf("dlq recovery at boot: %w", err)
	}

	deps.log.Info("reconciler: verify sweep every %s", deps.opts.MonitorInterval())
	rec.Run(ctx)
	deps.log.Info("reconciler: shutdown signal received")
	return nil
}

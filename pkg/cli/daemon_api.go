package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/imagevault/imagevault/pkg/broker"
	"github.com/imagevault/imagevault/pkg/service"
)

// runAPI constructs the §6 admin/API facade and blocks until a shutdown
// signal arrives. HTTP request parsing and routing are named external
// collaborators (§1 Non-goals); this role exists so the facade's
// collaborators (store, cache, broker publisher) are dialed once at
// process start the way every other role dials its own, ready for an
// external HTTP layer to embed via service.Service.
func runAPI(args []string) error {
	fs := flag.NewFlagSet(apiCommand, flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to the service configuration file")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse api flags: %w", err)
	}

	ctx, stop := withSignalCancel(context.Background())
	defer stop()

	deps, err := bootstrap(ctx, *configPath, apiCommand)
	if err != nil {
		return err
	}
	defer deps.Close(context.Background())

	pubCh, err := deps.openChannel()
	if err != nil {
		return err
	}
	publisher := broker.NewPublisher(pubCh)

	recoveryCh, err := deps.openChannel()
	if err != nil {
		return err
	}

	svc := service.New(deps.pipelineDeps(publisher), deps.reader, deps.rebuilder(), dlqRecoverer(recoveryCh, deps.log), deps.jobs, deps.log)

	deps.log.Info("api: facade ready (%T), awaiting an external HTTP layer", svc)
	<-ctx.Done()
	deps.log.Info("api: shutdown signal received")
	return nil
}

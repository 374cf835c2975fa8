package cli

import (
	"context"
	"flag"
	"fmt"
	"sync"

	"github.com/imagevault/imagevault/pkg/apitypes"
	"github.com/imagevault/imagevault/pkg/broker"
	"github.com/imagevault/imagevault/pkg/pipeline"
)

// stageSpec pairs one queue's MessageType with the Deps-built stage that
// handles it and the pool size config knob that sizes its consumer.
type stageSpec struct {
	msgType  apitypes.MessageType
	handle   broker.Handler
	poolSize int
}

// runWorker consumes all five pipeline queues (§4.1), each on its own
// channel and consumer pool, until a shutdown signal arrives. DLQ recovery
// runs once at startup (§4.4 "at worker-role startup") before any consumer
// is started.
func runWorker(args []string) error {
	fs := flag.NewFlagSet(workerCommand, flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to the service configuration file")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse worker flags: %w", err)
	}

	ctx, stop := withSignalCancel(context.Background())
	defer stop()

	deps, err := bootstrap(ctx, *configPath, workerCommand)
	if err != nil {
		return err
	}
	defer deps.Close(context.Background())

	topologyCh, err := deps.openChannel()
	if err != nil {
		return err
	}
	if err := broker.SetupTopology(topologyCh, deps.opts.MessageTTLMs); err != nil {
		return fmt.Errorf("setup broker topology: %w", err)
	}

	recoveryCh, err := deps.openChannel()
	if err != nil {
		return err
	}
	recoverer := dlqRecoverer(recoveryCh, deps.log)
	res, err := recoverer.Run(ctx)
	if err != nil {
		return fmt.Errorf("dlq recovery at boot: %w", err)
	}
	for queue, n := range res.RepublishedByQueue {
		deps.log.Info("worker boot: recovered %d message(s) to %s from dlq", n, queue)
	}

	pubCh, err := deps.openChannel()
	if err != nil {
		return err
	}
	publisher := broker.NewPublisher(pubCh)
	pdeps := deps.pipelineDeps(publisher)

	libraryScan := pipeline.NewLibraryScanStage(pdeps)
	collectionScan := pipeline.NewCollectionScanStage(pdeps)
	imageProcess := pipeline.NewImageProcessStage(pdeps)
	thumbnailGen := pipeline.NewThumbnailStage(pdeps)
	cacheGen := pipeline.NewCacheStage(pdeps)

	specs := []stageSpec{
		{apitypes.MessageLibraryScan, libraryScan.Handle, deps.opts.ScanWorkerPoolSize},
		{apitypes.MessageCollectionScan, collectionScan.Handle, deps.opts.ScanWorkerPoolSize},
		{apitypes.MessageImageProcess, imageProcess.Handle, deps.opts.ImageWorkerPoolSize},
		{apitypes.MessageThumbnailGen, thumbnailGen.Handle, deps.opts.ThumbnailWorkerPoolSize},
		{apitypes.MessageCacheGen, cacheGen.Handle, deps.opts.CacheWorkerPoolSize},
	}

	var wg sync.WaitGroup
	for _, spec := range specs {
		ch, err := deps.openChannel()
		if err != nil {
			return err
		}
		consumer := broker.NewConsumer(ch, publisher, deps.log, string(spec.msgType), spec.msgType, deps.opts.RetryMax)
		wg.Add(1)
		go func(spec stageSpec, consumer *broker.Consumer) {
			defer wg.Done()
			if err := consumer.Run(ctx, spec.poolSize, spec.handle); err != nil {
				deps.log.Error("consumer %s stopped: %s", spec.msgType, err.Error())
			}
		}(spec, consumer)
	}

	deps.log.Info("worker: consuming %d queue(s)", len(specs))
	<-ctx.Done()
	deps.log.Info("worker: shutdown signal received, draining in-flight deliveries")
	wg.Wait()
	return nil
}

package cli

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/imagevault/imagevault/pkg/archive"
	"github.com/imagevault/imagevault/pkg/broker"
	"github.com/imagevault/imagevault/pkg/common"
	"github.com/imagevault/imagevault/pkg/config"
	"github.com/imagevault/imagevault/pkg/dlq"
	"github.com/imagevault/imagevault/pkg/idx"
	"github.com/imagevault/imagevault/pkg/imgproc"
	clog "github.com/imagevault/imagevault/pkg/log"
	"github.com/imagevault/imagevault/pkg/pipeline"
	"github.com/imagevault/imagevault/pkg/store"
)

// collaborators bundles every live connection and repository a process
// role or admin command needs, built once at startup the way the
// teacher's ExecuteFlowController gathers its collectors, mirror, and
// batch worker before running a flow (execute-flow-controller.go).
type collaborators struct {
	cfg  config.ServiceConfig
	opts common.ServiceOptions
	log  clog.PluggableLoggerInterface

	mongo *store.Store
	rdb   *redis.Client
	conn  *amqp.Connection

	collections  store.CollectionRepository
	jobs         store.JobRepository
	cacheFolders store.CacheFolderRepository

	decoder common.ImageDecoder
	walker  common.FileWalker

	writer idx.Writer
	reader idx.Reader
}

// bootstrap reads path and dials every external collaborator named in
// §6's Configuration. role is only a label: it is recorded on the returned
// options and in the startup log line, while the logger's level comes from
// the config.
func bootstrap(ctx context.Context, path, role string) (*collaborators, error) {
	cfg, err := config.Read(path)
	if err != nil {
		return nil, err
	}
	logger := clog.New(cfg.LogLevel)
	opts := cfg.ToOptions(role)
	opts.Log = logger
	logger.Info("imagevault %s: starting with config %s", role, path)

	mongoStore, err := store.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return nil, fmt.Errorf("connect document store: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.CacheURI})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect key-value cache: %w", err)
	}

	conn, err := amqp.Dial(cfg.BrokerURI)
	if err != nil {
		return nil, fmt.Errorf("connect message broker: %w", err)
	}

	collections := store.NewCollectionRepository(mongoStore)
	jobs := store.NewJobRepository(mongoStore)
	cacheFolders := store.NewCacheFolderRepository(mongoStore)

	if err := cacheFolders.EnsureSeeded(ctx, cfg.CacheFolders); err != nil {
		return nil, fmt.Errorf("seed cache folders: %w", err)
	}

	return &collaborators{
		cfg: cfg, opts: opts, log: logger,
		mongo: mongoStore, rdb: rdb, conn: conn,
		collections: collections, jobs: jobs, cacheFolders: cacheFolders,
		decoder: imgproc.New(), walker: archive.OSWalker{},
		writer: idx.NewWriter(rdb), reader: idx.NewReader(rdb),
	}, nil
}

func (c *collaborators) Close(ctx context.Context) {
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.log.Warn("close broker connection: %s", err.Error())
		}
	}
	if c.rdb != nil {
		if err := c.rdb.Close(); err != nil {
			c.log.Warn("close cache connection: %s", err.Error())
		}
	}
	if c.mongo != nil {
		if err := c.mongo.Disconnect(ctx); err != nil {
			c.log.Warn("disconnect document store: %s", err.Error())
		}
	}
}

// openChannel opens one AMQP channel. Consumers each get their own channel
// since a single *amqp.Channel is not meant to be shared across concurrent
// consume loops that also Ack/Reject independently.
func (c *collaborators) openChannel() (*amqp.Channel, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open broker channel: %w", err)
	}
	return ch, nil
}

func (c *collaborators) rebuilder() *idx.Rebuilder {
	return idx.NewRebuilder(c.rdb, c.writer, c.decoder, c.collections, c.jobs)
}

func (c *collaborators) pipelineDeps(pub broker.Publisher) *pipeline.Deps {
	return &pipeline.Deps{
		Collections:  c.collections,
		Jobs:         c.jobs,
		CacheFolders: c.cacheFolders,
		Index:        c.writer,
		Publisher:    pub,
		Decoder:      c.decoder,
		Walker:       c.walker,
		Log:          c.log,

		ThumbnailTarget: c.cfg.ThumbnailTarget,
		CacheTarget:     c.cfg.CacheTarget,
	}
}

func dlqRecoverer(ch *amqp.Channel, logger clog.PluggableLoggerInterface) *dlq.Recoverer {
	return dlq.NewRecoverer(ch, logger)
}

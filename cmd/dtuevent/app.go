package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	gocmd "github.com/goliatone/go-command"
	jobredis "github.com/goliatone/go-job/queue/adapters/redis"
	queuecmd "github.com/goliatone/go-job/queue/command"
	glog "github.com/goliatone/go-logger/glog"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	goredis "github.com/redis/go-redis/v9"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/philippzhuravlev/DTUEvent/adapters/gocommand"
	"github.com/philippzhuravlev/DTUEvent/adapters/gojob"
	"github.com/philippzhuravlev/DTUEvent/adapters/gologger"
	"github.com/philippzhuravlev/DTUEvent/assets"
	"github.com/philippzhuravlev/DTUEvent/command"
	"github.com/philippzhuravlev/DTUEvent/core"
	storemigrations "github.com/philippzhuravlev/DTUEvent/migrations"
	"github.com/philippzhuravlev/DTUEvent/providers/facebook"
	"github.com/philippzhuravlev/DTUEvent/secrets"
	"github.com/philippzhuravlev/DTUEvent/security"
	sqlstore "github.com/philippzhuravlev/DTUEvent/store/sql"
)

const (
	secretBackendSQL     = "sql"
	secretBackendRedis   = "redis"
	secretBackendKeyring = "keyring"
)

// app owns the resources opened for one CLI invocation.
type app struct {
	env      envConfig
	provider *gologger.LogrusProvider
	logger   glog.Logger

	client  *persistence.Client
	factory *sqlstore.RepositoryFactory
	redis   goredis.UniversalClient
	closers []func() error
}

func newApp(env envConfig) (*app, error) {
	provider, err := gologger.NewLogrusProvider(gologger.Options{
		Level:  env.LogLevel,
		Format: env.LogFormat,
		Output: os.Stderr,
	})
	if err != nil {
		return nil, err
	}
	return &app{env: env, provider: provider, logger: provider.GetLogger("dtuevent.cli")}, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}

func (a *app) dialect() (string, error) {
	return storemigrations.DialectForDriver(a.env.DBDriver)
}

// openDatabase connects and registers the embedded migrations for the dialect in use.
func (a *app) openDatabase(ctx context.Context) (*persistence.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	dialectName, err := a.dialect()
	if err != nil {
		return nil, err
	}
	driver := "sqlite3"
	if dialectName == storemigrations.DialectPostgres {
		driver = "postgres"
	}
	sqlDB, err := sql.Open(driver, a.env.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dialectName == storemigrations.DialectSQLite {
		sqlDB.SetMaxOpenConns(1)
	}
	cfg := a.env.persistence()
	cfg.driver = driver
	var client *persistence.Client
	if dialectName == storemigrations.DialectSQLite {
		client, err = persistence.New(cfg, sqlDB, sqlitedialect.New())
	} else {
		client, err = persistence.New(cfg, sqlDB, pgdialect.New())
	}
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("persistence client: %w", err)
	}
	err = storemigrations.Register(dialectName, func(fsys fs.FS) {
		client.RegisterSQLMigrations(fsys)
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("register migrations: %w", err)
	}
	a.client = client
	a.closers = append(a.closers, client.Close)
	return client, nil
}

func (a *app) migrate(ctx context.Context) error {
	client, err := a.openDatabase(ctx)
	if err != nil {
		return err
	}
	if err := client.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	a.logger.Info("migrations applied", "driver", a.env.DBDriver)
	return nil
}

func (a *app) stores(ctx context.Context) (*sqlstore.RepositoryFactory, error) {
	if a.factory != nil {
		return a.factory, nil
	}
	client, err := a.openDatabase(ctx)
	if err != nil {
		return nil, err
	}
	if a.env.AutoMigrate {
		if err := a.migrate(ctx); err != nil {
			return nil, err
		}
	}
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		return nil, err
	}
	a.factory = factory
	return factory, nil
}

func (a *app) tokenStore(ctx context.Context, factory *sqlstore.RepositoryFactory) (*secrets.TokenStore, error) {
	var backend secrets.Backend
	switch strings.ToLower(strings.TrimSpace(a.env.SecretBackend)) {
	case "", secretBackendSQL:
		backend = factory.SecretBackend()
	case secretBackendRedis:
		client, err := a.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		backend = secrets.NewRedisBackendWithClient(client, "")
	case secretBackendKeyring:
		backend = secrets.NewKeyringBackend(a.env.KeyringService)
	default:
		return nil, fmt.Errorf("unsupported secret backend %q", a.env.SecretBackend)
	}

	opts := []secrets.Option{}
	if key := strings.TrimSpace(a.env.SecretKey); key != "" {
		provider, err := security.NewAppKeySecretProviderFromString(key)
		if err != nil {
			return nil, err
		}
		opts = append(opts, secrets.WithSecretProvider(provider))
	} else {
		a.logger.Warn("secret key not set, page tokens are stored unencrypted", "backend", a.env.SecretBackend)
	}
	return secrets.NewTokenStore(backend, opts...)
}

// redisClient is shared by the redis secret backend and the job queue.
func (a *app) redisClient(ctx context.Context) (goredis.UniversalClient, error) {
	if a.redis != nil {
		return a.redis, nil
	}
	if strings.TrimSpace(a.env.RedisAddr) == "" {
		return nil, fmt.Errorf("redis addr is required (DTUEVENT_REDIS_ADDR)")
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     a.env.RedisAddr,
		Password: a.env.RedisPassword,
		DB:       a.env.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	a.redis = client
	a.closers = append(a.closers, client.Close)
	return client, nil
}

func (a *app) jobQueue(ctx context.Context) (*jobredis.Adapter, error) {
	client, err := a.redisClient(ctx)
	if err != nil {
		return nil, err
	}
	return gojob.NewRedisQueue(client, gojob.RedisQueueConfig{
		Name:              a.env.QueueName,
		VisibilityTimeout: a.env.QueueVisibilityTimeout,
	})
}

// pipelineCommands registers the pipeline commands for Dispatch and mirrors
// them into a queue registry for the worker and the enqueuer.
func (a *app) pipelineCommands(ctx context.Context) (*queuecmd.Registry, gocommand.Subscriptions, error) {
	svc, err := a.service(ctx)
	if err != nil {
		return nil, nil, err
	}
	return registerPipeline(svc)
}

func registerPipeline(svc command.PipelineService) (*queuecmd.Registry, gocommand.Subscriptions, error) {
	registry := gocommand.NewRegistryAdapter(gocmd.NewRegistry())
	queueRegistry := queuecmd.NewRegistry()
	if err := registry.AddQueueResolver("queue", queueRegistry); err != nil {
		return nil, nil, err
	}
	subs, err := gocommand.RegisterPipelineCommands(registry, svc)
	if err != nil {
		return nil, nil, err
	}
	if err := registry.Initialize(); err != nil {
		subs.Unsubscribe()
		return nil, nil, err
	}
	return queueRegistry, subs, nil
}

func (a *app) enqueuer(q *jobredis.Adapter, registry *queuecmd.Registry) (*gojob.Enqueuer, error) {
	return gojob.NewEnqueuer(q, registry, gojob.WithEnqueueLogger(a.provider.GetLogger("dtuevent.queue")))
}

func (a *app) rehoster(ctx context.Context) (*assets.Rehoster, error) {
	opts := []assets.Option{assets.WithLogger(a.provider.GetLogger("dtuevent.assets"))}
	if strings.TrimSpace(a.env.S3Endpoint) != "" && strings.TrimSpace(a.env.StorageBucket) != "" {
		uploader, err := assets.NewS3Uploader(assets.S3Config{
			Endpoint:      a.env.S3Endpoint,
			AccessKey:     a.env.S3AccessKey,
			SecretKey:     a.env.S3SecretKey,
			Bucket:        a.env.StorageBucket,
			Region:        a.env.S3Region,
			UseSSL:        a.env.S3UseSSL,
			PublicBaseURL: a.env.PublicBaseURL,
		})
		if err != nil {
			return nil, err
		}
		if err := uploader.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("ensure bucket: %w", err)
		}
		opts = append(opts, assets.WithUploader(uploader))
	}
	return assets.NewRehoster(opts...), nil
}

func (a *app) loadConfig(ctx context.Context) (core.Config, error) {
	loader := core.NewCfgxConfigProvider(core.NewStaticRawConfigLoader(a.env.rawConfig()))
	return loader.Load(ctx, core.DefaultConfig())
}

// service wires every component. Graph credentials are required.
func (a *app) service(ctx context.Context) (*core.Service, error) {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateFacebook(); err != nil {
		return nil, err
	}
	graph, err := facebook.NewClient(facebook.ConfigFromCore(cfg))
	if err != nil {
		return nil, err
	}
	factory, err := a.stores(ctx)
	if err != nil {
		return nil, err
	}
	tokens, err := a.tokenStore(ctx, factory)
	if err != nil {
		return nil, err
	}
	cache, err := sqlstore.NewPageCacheService(a.env.PageCacheTTL)
	if err != nil {
		return nil, err
	}
	pages, err := sqlstore.NewCachedPageDirectory(factory.PageDirectory(), cache)
	if err != nil {
		return nil, err
	}
	rehoster, err := a.rehoster(ctx)
	if err != nil {
		return nil, err
	}
	return core.NewService(cfg,
		core.WithLoggerProvider(a.provider),
		core.WithGraphClient(graph),
		core.WithTokenStore(tokens),
		core.WithPageDirectory(pages),
		core.WithEventStore(factory.EventStore()),
		core.WithAssetRehoster(rehoster),
	)
}

// authURLService builds a service that can only produce login URLs.
func (a *app) authURLService(ctx context.Context) (*core.Service, error) {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateFacebook(); err != nil {
		return nil, err
	}
	graph, err := facebook.NewClient(facebook.ConfigFromCore(cfg))
	if err != nil {
		return nil, err
	}
	return core.NewService(cfg, core.WithLoggerProvider(a.provider), core.WithGraphClient(graph))
}

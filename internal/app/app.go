// Package app initializes and holds long-lived application services, acting
// as the dependency injection container for the commands.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitedigger/internal/cache"
	"github.com/JakeFAU/sitedigger/internal/clock/system"
	"github.com/JakeFAU/sitedigger/internal/config"
	collyfetcher "github.com/JakeFAU/sitedigger/internal/fetcher/colly"
	"github.com/JakeFAU/sitedigger/internal/inspect"
	"github.com/JakeFAU/sitedigger/internal/inspector"
	"github.com/JakeFAU/sitedigger/internal/probe/certificate"
	"github.com/JakeFAU/sitedigger/internal/probe/dns"
	"github.com/JakeFAU/sitedigger/internal/storage"
	"github.com/JakeFAU/sitedigger/internal/storage/leveldb"
	"github.com/JakeFAU/sitedigger/internal/storage/local"
	"github.com/JakeFAU/sitedigger/internal/storage/memory"
	"github.com/JakeFAU/sitedigger/internal/storage/postgres"
	"github.com/JakeFAU/sitedigger/internal/storage/redis"
)

// App holds the shared services built from one Config.
type App struct {
	Config    config.Config
	Logger    *zap.Logger
	Cache     *cache.Store
	Inspector *inspector.Service
}

// New builds every service the commands need. It fails fast when the cache
// backend cannot be opened.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := system.New()

	kv, err := openStore(ctx, cfg.Cache, logger)
	if err != nil {
		return nil, err
	}
	store := cache.New(kv, clock, logger.Named("cache"))

	prober := collyfetcher.New(collyfetcher.Config{
		UserAgent:    cfg.Probe.UserAgent,
		MaxBodySize:  cfg.Probe.MaxBodyBytes,
		MaxRedirects: cfg.Probe.MaxRedirects,
	})

	var opts []inspector.Option
	if cfg.Probes.DNS {
		opts = append(opts, inspector.WithDNSResolver(dns.New()))
	}
	if cfg.Probes.TLS {
		opts = append(opts, inspector.WithCertificateInspector(
			certificate.New(certificate.Config{Timeout: cfg.Probe.Timeout}, clock),
		))
	}
	svc := inspector.New(inspector.Config{
		ProbeTimeout: cfg.Probe.Timeout,
		Auxiliary:    cfg.Probes.Auxiliary,
		MaxAge:       cfg.Cache.MaxAge,
	}, prober, store, clock, logger, opts...)

	logger.Debug("application services initialized",
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.Int("auxiliary_probes", len(cfg.Probes.Auxiliary)),
	)
	return &App{
		Config:    cfg,
		Logger:    logger,
		Cache:     store,
		Inspector: svc,
	}, nil
}

func openStore(ctx context.Context, cfg config.CacheConfig, logger *zap.Logger) (inspect.KVStore, error) {
	switch cfg.Backend {
	case config.BackendNone:
		logger.Info("cache disabled; results will not be persisted")
		return storage.NoOpStore{}, nil
	case config.BackendMemory:
		return memory.New(), nil
	case config.BackendFile:
		s, err := local.New(local.Config{BaseDir: cfg.File.Dir})
		if err != nil {
			return nil, fmt.Errorf("open file cache: %w", err)
		}
		return s, nil
	case config.BackendLevelDB:
		s, err := leveldb.Open(cfg.LevelDB.Path)
		if err != nil {
			return nil, fmt.Errorf("open leveldb cache: %w", err)
		}
		return s, nil
	case config.BackendRedis:
		s, err := redis.New(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("open redis cache: %w", err)
		}
		return s, nil
	case config.BackendPostgres:
		s, err := postgres.New(ctx, postgres.Config{
			DSN:      cfg.Postgres.DSN,
			Table:    cfg.Postgres.Table,
			MaxConns: cfg.Postgres.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("open postgres cache: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", cfg.Backend)
	}
}

// Close releases the cache backend and flushes the logger.
func (a *App) Close() {
	if err := a.Cache.Close(); err != nil {
		a.Logger.Warn("error closing cache backend", zap.Error(err))
	}
	_ = a.Logger.Sync() //nolint:errcheck // stdout/stderr sync fails on some platforms
}

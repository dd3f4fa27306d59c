// Package app assembles the extraction stack from configuration: the remote
// client, the optional Redis caches and the pipeline runner.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/FAIRiCUBE/querycube-web/internal/cache"
	"github.com/FAIRiCUBE/querycube-web/internal/cache/redisstore"
	"github.com/FAIRiCUBE/querycube-web/internal/catalog"
	"github.com/FAIRiCUBE/querycube-web/internal/core/config"
	"github.com/FAIRiCUBE/querycube-web/internal/core/executor"
	"github.com/FAIRiCUBE/querycube-web/internal/core/httpclient"
	"github.com/FAIRiCUBE/querycube-web/internal/pipeline"
	"github.com/FAIRiCUBE/querycube-web/internal/valuecache"
)

type App struct {
	Runner   *pipeline.Runner
	Executor *executor.Client
	// Catalog and Values are nil when caching is disabled.
	Catalog *catalog.Cached
	Values  *valuecache.Store

	redis *redisstore.Client
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	a := &App{}
	var opts []executor.Option

	if cfg.Cache.Enabled {
		rc, err := redisstore.New(ctx, cfg.Cache.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.redis = rc
		kv := cache.NewRedis(rc, cfg.Cache.OpTimeout)

		vs, err := valuecache.New(kv, cfg.Cache.H3Res, cfg.Cache.ValueTTL)
		if err != nil {
			_ = rc.Close()
			return nil, fmt.Errorf("value cache: %w", err)
		}
		a.Values = vs
		opts = append(opts, executor.WithValueCache(vs))
		logger.Info("redis cache enabled", "addr", cfg.Cache.RedisAddr, "h3_res", cfg.Cache.H3Res)
	}

	ex, err := executor.New(logger, httpclient.NewOutbound(cfg.Remote.Timeout), cfg.Remote.URL, opts...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("executor: %w", err)
	}
	a.Executor = ex

	var source catalog.Source = ex
	if a.redis != nil {
		a.Catalog = catalog.NewCached(ex, cache.NewRedis(a.redis, cfg.Cache.OpTimeout), ex.Endpoint(), cfg.Cache.CatalogTTL, logger)
		source = a.Catalog
	}

	a.Runner = pipeline.New(pipeline.Config{
		MaxWorkers:     cfg.Extract.MaxWorkers,
		LayerTimeout:   cfg.Extract.LayerTimeout,
		LayerTimeouts:  cfg.Extract.LayerTimeoutOvr,
		CatalogTimeout: cfg.Extract.CatalogTimeout,
	}, source, ex, logger)
	return a, nil
}

func (a *App) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

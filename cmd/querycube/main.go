package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/FAIRiCUBE/querycube-web/internal/app"
	"github.com/FAIRiCUBE/querycube-web/internal/core/config"
	"github.com/FAIRiCUBE/querycube-web/internal/core/server"
	"github.com/FAIRiCUBE/querycube-web/internal/invalidation/kafkaconsumer"
	"github.com/FAIRiCUBE/querycube-web/internal/logger"
	"github.com/FAIRiCUBE/querycube-web/internal/metrics"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	addr := flag.String("addr", "", "listen address (overrides ADDR)")
	flag.Parse()

	cfg := config.FromEnv()
	if *addr != "" {
		cfg.Addr = *addr
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Component: "querycube",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	if err := cfg.Validate(); err != nil {
		appLog.Error("invalid configuration", "err", err)
		return 2
	}

	// credentials are never logged
	appLog.Info("starting querycube",
		"addr", cfg.Addr,
		"version", Version,
		"rasdaman", cfg.Remote.URL,
		"anonymous", cfg.Remote.Username == "",
		"cache", cfg.Cache.Enabled,
		"invalidation", cfg.Invalidation.Enabled)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	prov := metrics.Init(metrics.Config{
		Enabled: cfg.Metrics.Enabled,
		Addr:    cfg.Metrics.Addr,
		Path:    cfg.Metrics.Path,
		Build: metrics.BuildInfo{
			Version:   Version,
			Revision:  os.Getenv("BUILD_REVISION"),
			BuildDate: os.Getenv("BUILD_DATE"),
		},
	})
	go func() {
		if err := prov.Serve(ctx, appLog); err != nil {
			appLog.Error("metrics server exited", "err", err)
		}
	}()

	a, err := app.New(ctx, cfg, appLog)
	if err != nil {
		appLog.Error("failed to initialize extraction stack", "err", err)
		return 1
	}
	defer a.Close()

	deps := server.Deps{Runner: a.Runner}
	if prov.Mounted() {
		deps.Metrics = prov.Handler()
	}

	// Validate guarantees both caches exist when invalidation is on
	if cfg.Invalidation.Enabled {
		cons := kafkaconsumer.New(kafkaconsumer.FromConfig(cfg.Invalidation), appLog, a.Values, a.Catalog, cfg.Remote.Username)
		if err := cons.Start(ctx); err != nil {
			appLog.Error("invalidation consumer setup failed", "err", err)
			return 1
		}
		defer cons.Stop()
		deps.Ready = cons
	}

	if err := server.Run(ctx, cfg, appLog, deps); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

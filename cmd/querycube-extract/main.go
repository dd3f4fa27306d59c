// Command querycube-extract runs one extraction against the configured
// coverage service and prints the JSON response to stdout.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/FAIRiCUBE/querycube-web/internal/app"
	"github.com/FAIRiCUBE/querycube-web/internal/core/config"
	"github.com/FAIRiCUBE/querycube-web/internal/core/model"
	"github.com/FAIRiCUBE/querycube-web/internal/core/observability"
	"github.com/FAIRiCUBE/querycube-web/internal/core/router"
	"github.com/FAIRiCUBE/querycube-web/internal/coverage"
	"github.com/FAIRiCUBE/querycube-web/internal/execlog"
	"github.com/FAIRiCUBE/querycube-web/internal/extract"
	"github.com/FAIRiCUBE/querycube-web/internal/logger"
	"github.com/FAIRiCUBE/querycube-web/internal/pipeline"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg := config.FromEnv()

	fs := flag.NewFlagSet("querycube-extract", flag.ContinueOnError)
	fs.SetOutput(stderr)
	samplesPath := fs.String("samples", "", "sample CSV file (- for stdin)")
	modeFlag := fs.String("mode", "automatic", "layer selection: automatic|manual")
	layersFlag := fs.String("layers", "", "comma-separated layer names (manual mode)")
	approximate := fs.Bool("approximate", cfg.Extract.Approximate, "nearest-neighbour sampling")
	offset := fs.Int("offset", cfg.Extract.Offset, "offset passed to the coverage service")
	endpoint := fs.String("endpoint", cfg.Remote.URL, "coverage service URL (overrides RASDAMAN_URL)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cfg.Remote.URL = *endpoint

	if *samplesPath == "" {
		fmt.Fprintln(stderr, "querycube-extract: -samples is required")
		fs.Usage()
		return 2
	}
	mode, err := coverage.ParseMode(*modeFlag)
	if err != nil {
		fmt.Fprintf(stderr, "querycube-extract: %v\n", err)
		return 2
	}

	zl := logger.Build(logger.Config{Level: cfg.LogLevel, Console: true, Component: "extract"}, stderr)
	appLog := logger.NewSlog(&zl)
	observability.Init(nil, false)

	if err := cfg.Validate(); err != nil {
		appLog.Error("invalid configuration", "err", err)
		return 2
	}

	in := os.Stdin
	if *samplesPath != "-" {
		f, err := os.Open(*samplesPath)
		if err != nil {
			appLog.Error("open samples", "err", err)
			return 1
		}
		defer f.Close()
		in = f
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, appLog)
	if err != nil {
		appLog.Error("failed to initialize extraction stack", "err", err)
		return 1
	}
	defer a.Close()

	res, runErr := a.Runner.Run(ctx, pipeline.Input{
		Samples:     in,
		Mode:        mode,
		Layers:      splitList(*layersFlag),
		Options:     extract.Options{Approximate: *approximate, Offset: *offset},
		Credentials: model.Credentials{Username: cfg.Remote.Username, Password: cfg.Remote.Password},
	})

	records := []execlog.Record{}
	if res.Log != nil {
		records = res.Log.Records()
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if runErr != nil {
		_ = enc.Encode(router.ErrorResponse{Message: runErr.Error(), Log: records})
		return 1
	}
	if err := enc.Encode(router.Response{Log: records, Result: res.Table.Records()}); err != nil {
		appLog.Error("write result", "err", err)
		return 1
	}
	return 0
}

func splitList(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

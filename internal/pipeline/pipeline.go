// Package pipeline runs one sample extraction request end to end.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/FAIRiCUBE/querycube-web/internal/assemble"
	"github.com/FAIRiCUBE/querycube-web/internal/catalog"
	"github.com/FAIRiCUBE/querycube-web/internal/core/model"
	"github.com/FAIRiCUBE/querycube-web/internal/core/observability"
	"github.com/FAIRiCUBE/querycube-web/internal/coverage"
	"github.com/FAIRiCUBE/querycube-web/internal/execlog"
	"github.com/FAIRiCUBE/querycube-web/internal/extract"
	"github.com/FAIRiCUBE/querycube-web/internal/logger"
	"github.com/FAIRiCUBE/querycube-web/internal/samples"
)

// Extractor is the per-layer remote query.
type Extractor interface {
	Extract(ctx context.Context, req model.ExtractionRequest, creds model.Credentials) ([]string, [][]any, error)
}

type Config struct {
	MaxWorkers   int
	LayerTimeout time.Duration
	// LayerTimeouts overrides LayerTimeout for individual layer names.
	LayerTimeouts  map[string]time.Duration
	CatalogTimeout time.Duration
}

type Input struct {
	Samples     io.Reader
	Mode        coverage.Mode
	Layers      []string
	Options     extract.Options
	Credentials model.Credentials
}

// Result always carries the log, also when Run fails.
type Result struct {
	Table model.ResultTable
	Log   *execlog.Log
}

type Runner struct {
	cfg       Config
	source    catalog.Source
	extractor Extractor
	logger    *slog.Logger
}

func New(cfg Config, source catalog.Source, ex Extractor, logger *slog.Logger) *Runner {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 4
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{cfg: cfg, source: source, extractor: ex, logger: logger}
}

type layerResult struct {
	headers []string
	rows    [][]any
	err     error
	settled bool
}

// Run executes parse, catalog, selection, extraction and assembly. Errors
// scoped to a sample or layer are logged and omitted; fatal errors end the
// run without a table.
func (r *Runner) Run(ctx context.Context, in Input) (Result, error) {
	start := time.Now()
	log := execlog.New(ctx, r.logger)
	res := Result{Log: log}

	table, err := r.run(ctx, in, log)
	if err != nil {
		log.Errorf("extraction failed: %v", err)
		observability.ObservePipeline("failed", time.Since(start).Seconds())
		return res, err
	}
	res.Table = table
	log.Infof("extraction finished in %s: %d rows", time.Since(start).Round(time.Millisecond), table.Len())
	observability.ObservePipeline("ok", time.Since(start).Seconds())
	return res, nil
}

func (r *Runner) run(ctx context.Context, in Input, log *execlog.Log) (model.ResultTable, error) {
	set, err := samples.Parse(in.Samples)
	if err != nil {
		var pe *samples.ParseError
		if errors.As(err, &pe) {
			for _, row := range pe.Rows {
				log.Errorf("sample %s", row)
			}
		}
		return model.ResultTable{}, err
	}
	log.Infof("%d samples parsed", set.Len())
	observability.AddSamples("parsed", set.Len())

	cat, err := r.fetchCatalog(ctx, in.Credentials)
	if err != nil {
		return model.ResultTable{}, err
	}
	log.Infof("catalog holds %d layers", cat.Len())

	cov := coverage.New(cat, set, log)
	for _, rej := range cov.Rejected {
		log.Warnf("%v", fmt.Errorf("%w: sample %s: %w", model.ErrConversionFailure, rej.SampleID, rej.Err))
	}
	observability.AddSamples("rejected", len(cov.Rejected))
	if !cov.Boundary.Empty {
		b := cov.Boundary
		log.Debugf("sample boundary [%.6f, %.6f, %.6f, %.6f]", b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y())
		if b.Degenerate() {
			log.Debugf("sample boundary has no area")
		}
	}

	layers, err := coverage.Select(in.Mode, cov, in.Layers)
	if err != nil {
		return model.ResultTable{}, err
	}
	if len(layers) == 0 {
		return model.ResultTable{}, fmt.Errorf("%w: no layer covers the samples", model.ErrNoResult)
	}
	log.Infof("%s selection: %d layers", in.Mode, len(layers))

	reqs := extract.BuildRequests(layers, cov, in.Options, log)
	if len(reqs) == 0 {
		return model.ResultTable{}, fmt.Errorf("%w: no layer left to query", model.ErrNoResult)
	}

	results := r.extractAll(ctx, reqs, in.Credentials, log)

	queried := make([]model.LayerDescriptor, len(reqs))
	for i, req := range reqs {
		queried[i] = req.Layer
	}
	asm := assemble.New(set, queried)
	for i, req := range reqs {
		name := req.Layer.Name
		lr := results[i]
		if lr.err != nil {
			log.Errorf("layer %s: %v", name, lr.err)
			observability.IncLayerOutcome(outcome(lr.err))
			continue
		}
		if err := asm.Add(name, lr.headers, lr.rows); err != nil {
			log.Errorf("layer %s: %v", name, err)
			observability.IncLayerOutcome("schema_mismatch")
			continue
		}
		log.Infof("layer %s: %d rows", name, len(lr.rows))
		observability.IncLayerOutcome("ok")
	}

	if len(asm.Accepted()) == 0 {
		return model.ResultTable{}, fmt.Errorf("%w: all %d layers failed", model.ErrNoResult, len(reqs))
	}
	return asm.Table(), nil
}

func (r *Runner) fetchCatalog(ctx context.Context, creds model.Credentials) (*catalog.Catalog, error) {
	if r.cfg.CatalogTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.CatalogTimeout)
		defer cancel()
	}
	return catalog.Fetch(ctx, r.source, creds)
}

// extractAll queries layers on a bounded pool. Results are indexed by
// request position; a layer that never ran is reported as canceled.
func (r *Runner) extractAll(ctx context.Context, reqs []model.ExtractionRequest, creds model.Credentials, log *execlog.Log) []layerResult {
	results := make([]layerResult, len(reqs))
	jobs := make(chan int)

	workerN := min(r.cfg.MaxWorkers, len(reqs))
	var wg sync.WaitGroup
	wg.Add(workerN)
	for range workerN {
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = r.extractOne(ctx, reqs[i], creds, log)
			}
		}()
	}

feed:
	for i := range reqs {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	for i := range results {
		if !results[i].settled {
			results[i].err = &model.ServiceError{Detail: "request canceled before query", Err: context.Cause(ctx)}
		}
	}
	return results
}

func (r *Runner) extractOne(ctx context.Context, req model.ExtractionRequest, creds model.Credentials, log *execlog.Log) layerResult {
	if err := ctx.Err(); err != nil {
		return layerResult{settled: true, err: &model.ServiceError{Detail: "request canceled", Err: err}}
	}
	lctx := logger.WithLayer(ctx, req.Layer.Name)
	timeout := r.timeoutFor(req.Layer.Name)
	if timeout > 0 {
		var cancel context.CancelFunc
		lctx, cancel = context.WithTimeout(lctx, timeout)
		defer cancel()
	}

	start := time.Now()
	log.Debugf("querying layer %s with %d points", req.Layer.Name, len(req.Points))
	headers, rows, err := r.extractor.Extract(lctx, req, creds)
	if err != nil {
		if errors.Is(lctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = &model.ServiceError{Detail: fmt.Sprintf("timed out after %s", timeout), Err: context.DeadlineExceeded}
		} else if !errors.Is(err, model.ErrServiceError) {
			err = &model.ServiceError{Detail: "extraction", Err: err}
		}
		return layerResult{settled: true, err: err}
	}
	log.Debugf("layer %s answered in %s", req.Layer.Name, time.Since(start).Round(time.Millisecond))
	return layerResult{settled: true, headers: headers, rows: rows}
}

func (r *Runner) timeoutFor(layer string) time.Duration {
	if d, ok := r.cfg.LayerTimeouts[layer]; ok {
		return d
	}
	return r.cfg.LayerTimeout
}

func outcome(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "service_error"
	}
}

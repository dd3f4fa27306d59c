// Package router holds the HTTP handlers of the extraction API.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/FAIRiCUBE/querycube-web/internal/core/model"
	"github.com/FAIRiCUBE/querycube-web/internal/coverage"
	"github.com/FAIRiCUBE/querycube-web/internal/execlog"
	"github.com/FAIRiCUBE/querycube-web/internal/extract"
	"github.com/FAIRiCUBE/querycube-web/internal/pipeline"
)

// Runner executes one extraction request.
type Runner interface {
	Run(ctx context.Context, in pipeline.Input) (pipeline.Result, error)
}

// Defaults are applied to every request that does not override them.
type Defaults struct {
	Credentials    model.Credentials
	Approximate    bool
	Offset         int
	MaxUploadBytes int64
}

const (
	defaultMaxUpload = 32 << 20
	fileField        = "file"
)

type Response struct {
	Log    []execlog.Record `json:"log"`
	Result []model.Record   `json:"result"`
}

type ErrorResponse struct {
	Message string           `json:"message"`
	Log     []execlog.Record `json:"log"`
}

func Test() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"test": "success"})
	}
}

// Wormpicker accepts a multipart sample file and returns the extracted
// values together with the execution log.
func Wormpicker(logger *slog.Logger, d Defaults, run Runner) http.HandlerFunc {
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = defaultMaxUpload
	}
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, d.MaxUploadBytes)
		in, closeFn, status, err := parseRequest(r, d)
		if err != nil {
			logger.WarnContext(r.Context(), "rejected extraction request", "err", err)
			writeJSON(w, status, ErrorResponse{Message: err.Error(), Log: []execlog.Record{}})
			return
		}
		defer closeFn()

		res, err := run.Run(r.Context(), in)
		records := []execlog.Record{}
		if res.Log != nil {
			records = res.Log.Records()
		}
		if err != nil {
			if model.Fatal(err) {
				logger.WarnContext(r.Context(), "extraction rejected", "err", err)
			} else {
				logger.ErrorContext(r.Context(), "extraction aborted", "err", err)
			}
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Message: err.Error(), Log: records})
			return
		}
		writeJSON(w, http.StatusOK, Response{Log: records, Result: res.Table.Records()})
	}
}

// parseRequest reads the upload and the optional mode, layers, approximate
// and offset fields from the form or the query string.
func parseRequest(r *http.Request, d Defaults) (pipeline.Input, func(), int, error) {
	noop := func() {}
	if err := r.ParseMultipartForm(d.MaxUploadBytes); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return pipeline.Input{}, noop, http.StatusRequestEntityTooLarge,
				fmt.Errorf("upload exceeds %d bytes", mbe.Limit)
		}
		return pipeline.Input{}, noop, http.StatusBadRequest, fmt.Errorf("multipart form: %w", err)
	}
	cleanup := func() { _ = r.MultipartForm.RemoveAll() }

	f, _, err := r.FormFile(fileField)
	if err != nil {
		cleanup()
		return pipeline.Input{}, noop, http.StatusBadRequest, fmt.Errorf("missing %q upload: %w", fileField, err)
	}
	closeFn := func() {
		_ = f.Close()
		cleanup()
	}

	in := pipeline.Input{
		Samples:     f,
		Layers:      splitList(r.FormValue("layers")),
		Credentials: d.Credentials,
		Options:     extract.Options{Approximate: d.Approximate, Offset: d.Offset},
	}
	if in.Mode, err = coverage.ParseMode(r.FormValue("mode")); err != nil {
		closeFn()
		return pipeline.Input{}, noop, http.StatusBadRequest, err
	}
	if v := strings.TrimSpace(r.FormValue("approximate")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			closeFn()
			return pipeline.Input{}, noop, http.StatusBadRequest, fmt.Errorf("%w: approximate=%q", model.ErrMalformedInput, v)
		}
		in.Options.Approximate = b
	}
	if v := strings.TrimSpace(r.FormValue("offset")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			closeFn()
			return pipeline.Input{}, noop, http.StatusBadRequest, fmt.Errorf("%w: offset=%q", model.ErrMalformedInput, v)
		}
		in.Options.Offset = n
	}
	return in, closeFn, http.StatusOK, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Package executor performs the outbound calls to the remote coverage service.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/FAIRiCUBE/querycube-web/internal/core/model"
	"github.com/FAIRiCUBE/querycube-web/internal/core/observability"
	"github.com/FAIRiCUBE/querycube-web/internal/core/wcs"
)

const maxBody = 4 << 20

// ValueCache memoizes extracted values per request point. Lookup results and
// stored values are keyed by point index; a present nil value means the
// service had no data there. Store receives the generation Lookup returned.
type ValueCache interface {
	Lookup(req model.ExtractionRequest) (map[int]*float64, int64, error)
	Store(req model.ExtractionRequest, gen int64, vals map[int]*float64) error
}

type Client struct {
	logger   *slog.Logger
	client   *http.Client
	owsURL   *url.URL
	values   ValueCache
	startNow func() time.Time // for tests
}

type Option func(*Client)

func WithValueCache(vc ValueCache) Option {
	return func(c *Client) { c.values = vc }
}

func New(logger *slog.Logger, client *http.Client, endpoint string, opts ...Option) (*Client, error) {
	u, err := url.Parse(wcs.OWSEndpoint(endpoint))
	if err != nil {
		return nil, fmt.Errorf("parse ows url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("ows url %q: scheme and host required", endpoint)
	}
	if client == nil {
		client = http.DefaultClient
	}
	c := &Client{
		logger:   logger,
		client:   client,
		owsURL:   u,
		startNow: time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Client) Endpoint() string { return c.owsURL.String() }

// FetchLayers lists the coverages of the service and describes them in a
// single DescribeCoverage call.
func (c *Client) FetchLayers(ctx context.Context, creds model.Credentials) ([]model.LayerDescriptor, error) {
	body, err := c.get(ctx, "capabilities", wcs.GetCapabilitiesParams(), creds)
	if err != nil {
		return nil, err
	}
	ids, err := wcs.ParseCapabilities(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	body, err = c.get(ctx, "describe", wcs.DescribeCoverageParams(ids), creds)
	if err != nil {
		return nil, err
	}
	layers, skipped, err := wcs.ParseDescriptions(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for _, s := range skipped {
		c.logger.Warn("coverage skipped", "coverage", s.ID, "reason", s.Reason)
	}
	c.logger.Debug("catalog fetched",
		"advertised", len(ids),
		"usable", len(layers))
	return layers, nil
}

// Extract queries every point of req and returns rows in model.RowHeaders
// layout, in point order. Any remote failure fails the whole layer.
func (c *Client) Extract(ctx context.Context, req model.ExtractionRequest, creds model.Credentials) ([]string, [][]any, error) {
	xi, yi, ok := wcs.SpatialAxes(req.Layer.Axes)
	if !ok {
		return nil, nil, &model.ServiceError{Detail: fmt.Sprintf("layer %s has no spatial axes", req.Layer.Name)}
	}

	var (
		cached   map[int]*float64
		gen      int64
		storable bool
	)
	if c.values != nil {
		var err error
		if cached, gen, err = c.values.Lookup(req); err != nil {
			c.logger.Warn("value cache lookup failed", "layer", req.Layer.Name, "err", err)
			cached = nil
		} else {
			storable = true
		}
	}

	fresh := make(map[int]*float64, len(req.Points))
	rows := make([][]any, 0, len(req.Points))
	for i, p := range req.Points {
		if err := ctx.Err(); err != nil {
			return nil, nil, &model.ServiceError{Detail: "extraction canceled", Err: err}
		}
		v, hit := cached[i]
		if !hit {
			var err error
			v, err = c.value(ctx, req, p, req.Layer.Axes[xi], req.Layer.Axes[yi], creds)
			if err != nil {
				return nil, nil, err
			}
			fresh[i] = v
		}
		row := model.ExtractionRow{
			SampleID:     p.SampleID,
			Layer:        req.Layer.Name,
			Lon:          p.Lon,
			Lat:          p.Lat,
			Value:        v,
			Approximated: req.Approximate,
		}
		rows = append(rows, row.Cells())
	}

	if storable && len(fresh) > 0 {
		if err := c.values.Store(req, gen, fresh); err != nil {
			c.logger.Warn("value cache store failed", "layer", req.Layer.Name, "err", err)
		}
	}
	headers := make([]string, len(model.RowHeaders))
	copy(headers, model.RowHeaders)
	return headers, rows, nil
}

func (c *Client) value(
	ctx context.Context,
	req model.ExtractionRequest,
	p model.SamplePoint,
	xAxis, yAxis string,
	creds model.Credentials,
) (*float64, error) {
	params := wcs.GetCoverageParams(wcs.PointQuery{
		CoverageID:  req.Layer.Name,
		XAxis:       xAxis,
		YAxis:       yAxis,
		Lon:         p.Lon,
		Lat:         p.Lat,
		Approximate: req.Approximate,
		Offset:      req.Offset,
		Slices:      req.Layer.Slices,
	})
	body, err := c.get(ctx, "coverage", params, creds)
	if err != nil {
		var ex *wcs.Exception
		if errors.As(err, &ex) && ex.Code == wcs.ExceptionInvalidSubsetting {
			// point outside the coverage's actual grid
			return nil, nil
		}
		return nil, err
	}
	v, err := wcs.ParseValue(body)
	if err != nil {
		return nil, &model.ServiceError{Status: http.StatusOK, Detail: "unreadable value", Err: err}
	}
	if v != nil && wcs.IsNil(*v, req.Layer.NilValues) {
		return nil, nil
	}
	return v, nil
}

// get performs one KVP request. Non-2xx responses and OWS exception reports
// are returned as *model.ServiceError; the exception, if any, is wrapped.
func (c *Client) get(ctx context.Context, op string, params url.Values, creds model.Credentials) ([]byte, error) {
	u := *c.owsURL
	u.RawQuery = params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if !creds.Anonymous() {
		req.SetBasicAuth(creds.Username, creds.Password)
	}

	start := c.startNow()
	resp, err := c.client.Do(req)
	observability.ObserveUpstreamLatency(op, time.Since(start).Seconds())
	if err != nil {
		observability.IncUpstreamError(op, 0)
		return nil, &model.ServiceError{Detail: op + " request", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		observability.IncUpstreamError(op, resp.StatusCode)
		return nil, &model.ServiceError{Status: resp.StatusCode, Detail: op + " read body", Err: err}
	}

	ex, isEx := wcs.ParseException(body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || isEx {
		observability.IncUpstreamError(op, resp.StatusCode)
		se := &model.ServiceError{Status: resp.StatusCode, Detail: snippet(body)}
		if isEx {
			se.Detail = ex.Error()
			se.Err = ex
		}
		return nil, se
	}
	return body, nil
}

func snippet(b []byte) string {
	const n = 512
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		s = s[:n] + "..."
	}
	return s
}

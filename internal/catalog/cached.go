package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/paulmach/orb"

	"github.com/FAIRiCUBE/querycube-web/internal/cache"
	"github.com/FAIRiCUBE/querycube-web/internal/cache/keys"
	"github.com/FAIRiCUBE/querycube-web/internal/core/model"
)

// snapshot is the cached form of one layer descriptor.
type snapshot struct {
	Name      string     `json:"name"`
	Extent    [4]float64 `json:"extent"`
	CRS       string     `json:"crs"`
	ValueType string     `json:"value_type"`
	Axes      []string   `json:"axes,omitempty"`
	NilValues []float64  `json:"nil_values,omitempty"`
	Slices    []slice    `json:"slices,omitempty"`
}

type slice struct {
	Axis     string `json:"axis"`
	Position string `json:"position"`
}

// Cached serves layer listings from a shared snapshot and falls through to
// the wrapped Source on a miss or any cache failure.
type Cached struct {
	src      Source
	kv       cache.Interface
	endpoint string
	ttl      time.Duration
	logger   *slog.Logger
}

func NewCached(src Source, kv cache.Interface, endpoint string, ttl time.Duration, logger *slog.Logger) *Cached {
	return &Cached{src: src, kv: kv, endpoint: endpoint, ttl: ttl, logger: logger}
}

func (c *Cached) FetchLayers(ctx context.Context, creds model.Credentials) ([]model.LayerDescriptor, error) {
	k := keys.CatalogKey(c.endpoint, creds.Username)
	raw, err := c.kv.MGet([]string{k})
	if err != nil {
		c.logger.Warn("catalog snapshot read failed", "err", err)
	} else if b, ok := raw[k]; ok {
		layers, derr := decodeSnapshot(b)
		if derr == nil {
			c.logger.Debug("catalog snapshot hit", "layers", len(layers))
			return layers, nil
		}
		c.logger.Warn("catalog snapshot unreadable", "err", derr)
	}

	layers, err := c.src.FetchLayers(ctx, creds)
	if err != nil {
		return nil, err
	}
	if len(layers) == 0 {
		return layers, nil
	}
	b, err := encodeSnapshot(layers)
	if err != nil {
		c.logger.Warn("catalog snapshot encode failed", "err", err)
		return layers, nil
	}
	if err := c.kv.Set(k, b, c.ttl); err != nil {
		c.logger.Warn("catalog snapshot write failed", "err", err)
	}
	return layers, nil
}

// Forget drops the snapshot for endpoint and user.
func (c *Cached) Forget(username string) error {
	return c.kv.Del(keys.CatalogKey(c.endpoint, username))
}

func encodeSnapshot(layers []model.LayerDescriptor) ([]byte, error) {
	out := make([]snapshot, len(layers))
	for i, l := range layers {
		out[i] = snapshot{
			Name:      l.Name,
			Extent:    [4]float64{l.Extent.Min.X(), l.Extent.Min.Y(), l.Extent.Max.X(), l.Extent.Max.Y()},
			CRS:       l.CRS,
			ValueType: l.ValueType.String(),
			Axes:      l.Axes,
			NilValues: l.NilValues,
		}
		for _, s := range l.Slices {
			out[i].Slices = append(out[i].Slices, slice{Axis: s.Axis, Position: s.Position})
		}
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal catalog snapshot: %w", err)
	}
	return b, nil
}

func decodeSnapshot(b []byte) ([]model.LayerDescriptor, error) {
	var in []snapshot
	if err := json.Unmarshal(b, &in); err != nil {
		return nil, fmt.Errorf("unmarshal catalog snapshot: %w", err)
	}
	out := make([]model.LayerDescriptor, len(in))
	for i, s := range in {
		vt := model.ValueNumeric
		if s.ValueType == model.ValueCategorical.String() {
			vt = model.ValueCategorical
		}
		out[i] = model.LayerDescriptor{
			Name:      s.Name,
			Extent:    orb.Bound{Min: orb.Point{s.Extent[0], s.Extent[1]}, Max: orb.Point{s.Extent[2], s.Extent[3]}},
			CRS:       s.CRS,
			ValueType: vt,
			Axes:      s.Axes,
			NilValues: s.NilValues,
		}
		for _, sl := range s.Slices {
			out[i].Slices = append(out[i].Slices, model.AxisSlice{Axis: sl.Axis, Position: sl.Position})
		}
	}
	return out, nil
}

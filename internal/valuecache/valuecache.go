// Package valuecache memoizes extracted point values in the shared cache.
//
// Exact requests are keyed by the point's coordinates. Approximate requests
// are keyed by the H3 cell containing the point, so nearby samples share a
// value. Every key carries the layer's generation; bumping the generation
// orphans all values of that layer.
package valuecache

import (
	"fmt"
	"strconv"
	"time"

	"github.com/FAIRiCUBE/querycube-web/internal/cache"
	"github.com/FAIRiCUBE/querycube-web/internal/cache/keys"
	"github.com/FAIRiCUBE/querycube-web/internal/core/model"
	"github.com/FAIRiCUBE/querycube-web/internal/core/observability"
	"github.com/FAIRiCUBE/querycube-web/internal/mapper"
	h3mapper "github.com/FAIRiCUBE/querycube-web/internal/mapper/h3"
)

const nilMarker = "nil"

type Store struct {
	kv    cache.Interface
	cells mapper.Interface
	ttl   time.Duration
}

func New(kv cache.Interface, h3Res int, ttl time.Duration) (*Store, error) {
	m, err := h3mapper.New(h3Res)
	if err != nil {
		return nil, err
	}
	return &Store{kv: kv, cells: m, ttl: ttl}, nil
}

// Lookup returns the cached values of req by point index together with the
// layer generation they were read under. Values fetched after a miss must be
// stored under that generation.
func (s *Store) Lookup(req model.ExtractionRequest) (map[int]*float64, int64, error) {
	gen, err := s.Generation(req.Layer.Name)
	if err != nil {
		return nil, 0, err
	}
	ks, err := s.keysFor(req, gen)
	if err != nil {
		return nil, 0, err
	}
	raw, err := s.kv.MGet(uniq(ks))
	if err != nil {
		return nil, 0, err
	}

	out := make(map[int]*float64, len(raw))
	for i, k := range ks {
		b, ok := raw[k]
		if !ok {
			continue
		}
		v, ok := decode(b)
		if !ok {
			continue
		}
		out[i] = v
	}
	observability.AddCacheHits(len(out))
	observability.AddCacheMisses(len(ks) - len(out))
	return out, gen, nil
}

// Store writes vals under generation gen. A generation bumped since the
// lookup leaves the written values orphaned.
func (s *Store) Store(req model.ExtractionRequest, gen int64, vals map[int]*float64) error {
	if len(vals) == 0 {
		return nil
	}
	ks, err := s.keysFor(req, gen)
	if err != nil {
		return err
	}
	kv := make(map[string][]byte, len(vals))
	for i, v := range vals {
		if i < 0 || i >= len(ks) {
			continue
		}
		kv[ks[i]] = encode(v)
	}
	return s.kv.MSet(kv, s.ttl)
}

// Generation returns the current generation of layer; 0 when never bumped.
func (s *Store) Generation(layer string) (int64, error) {
	k := keys.GenerationKey(layer)
	raw, err := s.kv.MGet([]string{k})
	if err != nil {
		return 0, err
	}
	b, ok := raw[k]
	if !ok {
		return 0, nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("generation of %s: %w", layer, err)
	}
	return n, nil
}

// Invalidate bumps the generation of layer and returns the new value.
func (s *Store) Invalidate(layer string) (int64, error) {
	return s.kv.Incr(keys.GenerationKey(layer))
}

func (s *Store) keysFor(req model.ExtractionRequest, gen int64) ([]string, error) {
	out := make([]string, len(req.Points))
	for i, p := range req.Points {
		loc := keys.PointLocator(p.Lon, p.Lat)
		if req.Approximate {
			cell, err := s.cells.CellForPoint(p.Lon, p.Lat)
			if err != nil {
				return nil, fmt.Errorf("cell of %s: %w", p.SampleID, err)
			}
			loc = keys.CellLocator(cell)
		}
		out[i] = keys.ValueKey(req.Layer.Name, gen, loc, req.Offset)
	}
	return out, nil
}

func encode(v *float64) []byte {
	if v == nil {
		return []byte(nilMarker)
	}
	return strconv.AppendFloat(nil, *v, 'g', -1, 64)
}

func decode(b []byte) (*float64, bool) {
	if string(b) == nilMarker {
		return nil, true
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return nil, false
	}
	return &v, true
}

func uniq(ks []string) []string {
	seen := make(map[string]struct{}, len(ks))
	out := make([]string, 0, len(ks))
	for _, k := range ks {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

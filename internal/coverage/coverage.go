// Package coverage relates uploaded samples to the layers whose extent
// contains them.
package coverage

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/FAIRiCUBE/querycube-web/internal/catalog"
	"github.com/FAIRiCUBE/querycube-web/internal/core/crs"
	"github.com/FAIRiCUBE/querycube-web/internal/core/model"
	"github.com/FAIRiCUBE/querycube-web/internal/execlog"
	"github.com/FAIRiCUBE/querycube-web/internal/samples"
)

// edge points sampled per side when projecting a layer extent
const densify = 16

// Rejected is a sample that could not be placed in WGS84.
type Rejected struct {
	Index    int
	SampleID string
	Err      error
}

// Match is one layer with the samples (by set index) inside its extent.
type Match struct {
	Layer   model.LayerDescriptor
	Samples []int
}

// Association lists matching layers in catalog order. Layers without any
// sample are never part of it.
type Association struct {
	matches []Match
	byName  map[string]int
}

// NewAssociation builds an association from precomputed matches.
func NewAssociation(matches ...Match) Association {
	a := Association{byName: make(map[string]int, len(matches))}
	for _, m := range matches {
		if _, dup := a.byName[m.Layer.Name]; dup || len(m.Samples) == 0 {
			continue
		}
		a.byName[m.Layer.Name] = len(a.matches)
		a.matches = append(a.matches, m)
	}
	return a
}

func (a Association) Len() int { return len(a.matches) }

// Samples returns the set indices associated with layer, or nil.
func (a Association) Samples(layer string) []int {
	i, ok := a.byName[layer]
	if !ok {
		return nil
	}
	return a.matches[i].Samples
}

// Context is the request-scoped join of catalog and samples.
type Context struct {
	Catalog  *catalog.Catalog
	Samples  *samples.Set
	Boundary model.Boundary
	Rejected []Rejected
	Assoc    Association

	log *execlog.Log
}

// New computes the boundary and the association. log may be nil.
func New(cat *catalog.Catalog, set *samples.Set, log *execlog.Log) *Context {
	b, rejected := ComputeBoundary(set)
	return &Context{
		Catalog:  cat,
		Samples:  set,
		Boundary: b,
		Rejected: rejected,
		Assoc:    Associate(cat, b, set),
		log:      log,
	}
}

// ComputeBoundary projects every sample to WGS84 and returns the envelope of
// those that could be projected.
func ComputeBoundary(set *samples.Set) (model.Boundary, []Rejected) {
	pts, rejected := project(set)
	b := model.Boundary{Empty: true}
	for _, p := range pts {
		if p == nil {
			continue
		}
		if b.Empty {
			b = model.Boundary{Bound: orb.Bound{Min: *p, Max: *p}}
			continue
		}
		b.Bound = b.Bound.Extend(*p)
	}
	return b, rejected
}

// Associate keeps the layers whose WGS84 extent meets the boundary and lists
// the samples lying inside each one, edges inclusive.
func Associate(cat *catalog.Catalog, b model.Boundary, set *samples.Set) Association {
	a := Association{byName: map[string]int{}}
	if b.Empty || cat == nil {
		return a
	}
	pts, _ := project(set)

	for _, l := range cat.Layers() {
		ext, ok := extentWGS84(l)
		if !ok || !meets(ext, b) {
			continue
		}
		var in []int
		for i, p := range pts {
			if p != nil && inside(l, *p) {
				in = append(in, i)
			}
		}
		if len(in) == 0 {
			continue
		}
		a.byName[l.Name] = len(a.matches)
		a.matches = append(a.matches, Match{Layer: l, Samples: in})
	}
	return a
}

func project(set *samples.Set) ([]*orb.Point, []Rejected) {
	if set == nil {
		return nil, nil
	}
	out := make([]*orb.Point, set.Len())
	var rejected []Rejected
	for i, s := range set.All() {
		p, err := crs.ToWGS84(s.Point, s.CRS)
		if err != nil {
			rejected = append(rejected, Rejected{Index: i, SampleID: s.ID, Err: err})
			continue
		}
		out[i] = &p
	}
	return out, rejected
}

func meets(ext orb.Bound, b model.Boundary) bool {
	if b.Min == b.Max {
		return ext.Contains(b.Min)
	}
	return ext.Intersects(b.Bound)
}

// inside tests p in the layer's own reference system, so projected extents
// are not widened by the WGS84 envelope.
func inside(l model.LayerDescriptor, p orb.Point) bool {
	if crs.Geographic(l.CRS) {
		return l.Extent.Contains(p)
	}
	native, err := crs.Convert(p, model.WGS84, l.CRS)
	if err != nil {
		return false
	}
	return l.Extent.Contains(native)
}

// extentWGS84 projects corners and densified edges of the layer extent.
// Edge points outside the projection's domain are ignored.
func extentWGS84(l model.LayerDescriptor) (orb.Bound, bool) {
	if crs.Geographic(l.CRS) {
		return l.Extent, true
	}
	lo, hi := l.Extent.Min, l.Extent.Max
	var out orb.Bound
	found := false
	add := func(x, y float64) {
		p, err := crs.ToWGS84(orb.Point{x, y}, l.CRS)
		if err != nil || math.IsNaN(p[0]) || math.IsNaN(p[1]) {
			return
		}
		if !found {
			out = orb.Bound{Min: p, Max: p}
			found = true
			return
		}
		out = out.Extend(p)
	}
	for k := 0; k <= densify; k++ {
		f := float64(k) / densify
		x := lo[0] + f*(hi[0]-lo[0])
		y := lo[1] + f*(hi[1]-lo[1])
		add(x, lo[1])
		add(x, hi[1])
		add(lo[0], y)
		add(hi[0], y)
	}
	return out, found
}

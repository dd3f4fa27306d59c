// Package extract turns selected layers into per-layer remote requests.
package extract

import (
	"fmt"

	"github.com/FAIRiCUBE/querycube-web/internal/core/crs"
	"github.com/FAIRiCUBE/querycube-web/internal/core/model"
	"github.com/FAIRiCUBE/querycube-web/internal/coverage"
	"github.com/FAIRiCUBE/querycube-web/internal/execlog"
)

// Options are forwarded to the remote service unchanged.
type Options struct {
	Approximate bool
	Offset      int
}

// BuildRequests emits one request per selected layer, in the given order,
// carrying the layer's associated samples in WGS84. Samples that fail
// conversion are logged and skipped; a layer left without points is dropped.
func BuildRequests(layers []model.LayerDescriptor, c *coverage.Context, opts Options, log *execlog.Log) []model.ExtractionRequest {
	out := make([]model.ExtractionRequest, 0, len(layers))
	for _, l := range layers {
		idx := c.Assoc.Samples(l.Name)
		pts := make([]model.SamplePoint, 0, len(idx))
		for _, i := range idx {
			s := c.Samples.At(i)
			p, err := crs.ToWGS84(s.Point, s.CRS)
			if err != nil {
				err = fmt.Errorf("%w: sample %s in layer %s: %w", model.ErrConversionFailure, s.ID, l.Name, err)
				log.Warnf("%v", err)
				continue
			}
			pts = append(pts, model.SamplePoint{SampleID: s.ID, Lon: p.Lon(), Lat: p.Lat()})
		}
		if len(pts) == 0 {
			log.Warnf("layer %s has no convertible sample, not queried", l.Name)
			continue
		}
		out = append(out, model.ExtractionRequest{
			Layer:       l,
			Points:      pts,
			Approximate: opts.Approximate,
			Offset:      opts.Offset,
		})
	}
	return out
}

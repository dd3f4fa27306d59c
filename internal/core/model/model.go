// Package model defines core domain types shared across the extraction pipeline.
package model

import (
	"fmt"

	"github.com/paulmach/orb"
)

// WGS84 is the common reference system every stage normalizes to.
const WGS84 = "EPSG:4326"

type ValueType int

const (
	ValueNumeric ValueType = iota
	ValueCategorical
)

func (v ValueType) String() string {
	if v == ValueCategorical {
		return "categorical"
	}
	return "numeric"
}

// Sample is one uploaded point. Point is expressed in CRS.
type Sample struct {
	ID    string
	Point orb.Point
	CRS   string
}

// LayerDescriptor describes one raster coverage served by the remote service.
// Extent is expressed in CRS.
type LayerDescriptor struct {
	Name      string
	Extent    orb.Bound
	CRS       string
	ValueType ValueType
	// axis labels as advertised by the service, in service order
	Axes      []string
	NilValues []float64
	// positions of the non-spatial axes every point query is sliced at
	Slices []AxisSlice
}

// AxisSlice pins a non-spatial axis (time, elevation) to one position.
// Position is the service's own token, quotes included for dates.
type AxisSlice struct {
	Axis     string
	Position string
}

func (l LayerDescriptor) String() string {
	return fmt.Sprintf("%s[%s %.6f,%.6f,%.6f,%.6f]",
		l.Name, l.CRS, l.Extent.Min.X(), l.Extent.Min.Y(), l.Extent.Max.X(), l.Extent.Max.Y())
}

// Boundary is the minimal WGS84 envelope around a set of samples.
type Boundary struct {
	orb.Bound
	Empty bool
}

// Degenerate reports whether the boundary has zero area (single point or collinear samples).
func (b Boundary) Degenerate() bool {
	return !b.Empty && (b.Min.X() == b.Max.X() || b.Min.Y() == b.Max.Y())
}

type Credentials struct {
	Username string
	Password string
}

func (c Credentials) Anonymous() bool {
	return c.Username == "" && c.Password == ""
}

// String never exposes the password.
func (c Credentials) String() string {
	if c.Anonymous() {
		return "anonymous"
	}
	return c.Username + ":***"
}

// SamplePoint is a sample reference with its coordinate converted to WGS84.
type SamplePoint struct {
	SampleID string
	Lon      float64
	Lat      float64
}

// ExtractionRequest is the remote-query descriptor for one layer.
type ExtractionRequest struct {
	Layer       LayerDescriptor
	Points      []SamplePoint
	Approximate bool
	Offset      int
}

// RowHeaders is the column layout of the rows returned per layer.
var RowHeaders = []string{"sample_id", "layer", "lon", "lat", "value", "approximated"}

// ExtractionRow is one extracted value. A nil Value means the service had no
// data at the point; it is never coerced to zero.
type ExtractionRow struct {
	SampleID     string
	Layer        string
	Lon          float64
	Lat          float64
	Value        *float64
	Approximated bool
}

// Cells renders the row in RowHeaders order.
func (r ExtractionRow) Cells() []any {
	var v any
	if r.Value != nil {
		v = *r.Value
	}
	return []any{r.SampleID, r.Layer, r.Lon, r.Lat, v, r.Approximated}
}

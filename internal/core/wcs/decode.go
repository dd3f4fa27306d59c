package wcs

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/FAIRiCUBE/querycube-web/internal/core/crs"
	"github.com/FAIRiCUBE/querycube-web/internal/core/model"
)

// ExceptionInvalidSubsetting is reported when a point lies outside the
// coverage's domain.
const ExceptionInvalidSubsetting = "InvalidSubsetting"

// Exception is the first entry of an OWS exception report.
type Exception struct {
	Code    string
	Locator string
	Text    string
}

func (e *Exception) Error() string {
	if e.Locator != "" {
		return fmt.Sprintf("%s (%s): %s", e.Code, e.Locator, e.Text)
	}
	return e.Code + ": " + e.Text
}

type exceptionReport struct {
	XMLName    xml.Name `xml:"ExceptionReport"`
	Exceptions []struct {
		Code    string   `xml:"exceptionCode,attr"`
		Locator string   `xml:"locator,attr"`
		Texts   []string `xml:"ExceptionText"`
	} `xml:"Exception"`
}

// ParseException decodes body as an OWS exception report. ok is false when
// body is not one.
func ParseException(body []byte) (*Exception, bool) {
	if !bytes.Contains(body, []byte("ExceptionReport")) {
		return nil, false
	}
	var rep exceptionReport
	if err := xml.Unmarshal(body, &rep); err != nil || len(rep.Exceptions) == 0 {
		return nil, false
	}
	ex := rep.Exceptions[0]
	return &Exception{
		Code:    ex.Code,
		Locator: ex.Locator,
		Text:    strings.TrimSpace(strings.Join(ex.Texts, " ")),
	}, true
}

type capabilities struct {
	XMLName   xml.Name `xml:"Capabilities"`
	Summaries []struct {
		ID string `xml:"CoverageId"`
	} `xml:"Contents>CoverageSummary"`
}

// ParseCapabilities returns the advertised coverage ids in document order.
func ParseCapabilities(r io.Reader) ([]string, error) {
	var caps capabilities
	if err := xml.NewDecoder(r).Decode(&caps); err != nil {
		return nil, fmt.Errorf("decode capabilities: %w", err)
	}
	ids := make([]string, 0, len(caps.Summaries))
	for _, s := range caps.Summaries {
		if id := strings.TrimSpace(s.ID); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type envelope struct {
	SRSName    string `xml:"srsName,attr"`
	AxisLabels string `xml:"axisLabels,attr"`
	Lower      string `xml:"lowerCorner"`
	Upper      string `xml:"upperCorner"`
}

type rangeComponent struct {
	NilValues []string `xml:"nilValues>NilValues>nilValue"`
}

type rangeField struct {
	Name     string          `xml:"name,attr"`
	Quantity *rangeComponent `xml:"Quantity"`
	Category *rangeComponent `xml:"Category"`
}

type coverageDescription struct {
	GMLID      string       `xml:"id,attr"`
	CoverageID string       `xml:"CoverageId"`
	Envelope   *envelope    `xml:"boundedBy>Envelope"`
	EnvelopeTP *envelope    `xml:"boundedBy>EnvelopeWithTimePeriod"`
	Fields     []rangeField `xml:"rangeType>DataRecord>field"`
}

type coverageDescriptions struct {
	XMLName      xml.Name              `xml:"CoverageDescriptions"`
	Descriptions []coverageDescription `xml:"CoverageDescription"`
}

// Skipped names a coverage that could not be turned into a layer descriptor.
type Skipped struct {
	ID     string
	Reason error
}

// ParseDescriptions decodes a DescribeCoverage response. Coverages without a
// usable two-dimensional spatial description are returned in skipped.
func ParseDescriptions(r io.Reader) (layers []model.LayerDescriptor, skipped []Skipped, err error) {
	var doc coverageDescriptions
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, nil, fmt.Errorf("decode coverage descriptions: %w", err)
	}
	for _, d := range doc.Descriptions {
		id := strings.TrimSpace(d.CoverageID)
		if id == "" {
			id = strings.TrimSpace(d.GMLID)
		}
		l, err := d.layer(id)
		if err != nil {
			skipped = append(skipped, Skipped{ID: id, Reason: err})
			continue
		}
		layers = append(layers, l)
	}
	return layers, skipped, nil
}

func (d coverageDescription) layer(id string) (model.LayerDescriptor, error) {
	if id == "" {
		return model.LayerDescriptor{}, errors.New("coverage without id")
	}
	env := d.Envelope
	if env == nil {
		env = d.EnvelopeTP
	}
	if env == nil {
		return model.LayerDescriptor{}, errors.New("no envelope")
	}

	native, err := crs.Normalize(env.SRSName)
	if err != nil {
		return model.LayerDescriptor{}, fmt.Errorf("envelope crs %q: %w", env.SRSName, err)
	}
	labels := strings.Fields(env.AxisLabels)
	xi, yi, ok := SpatialAxes(labels)
	if !ok {
		return model.LayerDescriptor{}, fmt.Errorf("no easting/northing in axes %q", env.AxisLabels)
	}
	lower, err := parseCorner(env.Lower, len(labels))
	if err != nil {
		return model.LayerDescriptor{}, fmt.Errorf("lowerCorner: %w", err)
	}
	upper, err := parseCorner(env.Upper, len(labels))
	if err != nil {
		return model.LayerDescriptor{}, fmt.Errorf("upperCorner: %w", err)
	}

	for _, v := range []float64{lower[xi], lower[yi], upper[xi], upper[yi]} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return model.LayerDescriptor{}, errors.New("non-numeric spatial corner")
		}
	}

	// non-spatial axes are sliced at their upper bound, the latest step
	var slices []model.AxisSlice
	rawUpper := strings.Fields(env.Upper)
	for i, label := range labels {
		if i == xi || i == yi {
			continue
		}
		slices = append(slices, model.AxisSlice{Axis: label, Position: rawUpper[i]})
	}

	l := model.LayerDescriptor{
		Name: id,
		CRS:  native,
		Extent: orb.Bound{
			Min: orb.Point{math.Min(lower[xi], upper[xi]), math.Min(lower[yi], upper[yi])},
			Max: orb.Point{math.Max(lower[xi], upper[xi]), math.Max(lower[yi], upper[yi])},
		},
		Axes:   labels,
		Slices: slices,
	}
	// multi-band coverages are described by their first band
	if len(d.Fields) > 0 {
		f := d.Fields[0]
		comp := f.Quantity
		if f.Category != nil {
			l.ValueType = model.ValueCategorical
			comp = f.Category
		}
		if comp != nil {
			for _, raw := range comp.NilValues {
				if v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
					l.NilValues = append(l.NilValues, v)
				}
			}
		}
	}
	return l, nil
}

// corners of temporal axes carry ISO dates, only numeric positions are needed
func parseCorner(s string, n int) ([]float64, error) {
	parts := strings.Fields(s)
	if len(parts) != n {
		return nil, fmt.Errorf("%d positions for %d axes", len(parts), n)
	}
	out := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.Trim(p, `"`), 64)
		if err != nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = v
	}
	return out, nil
}

// ParseValue reads the value of a single-cell text/csv GetCoverage response.
// Bands of the cell are space separated and the first one is returned. A
// missing or non-numeric value yields nil. An answer holding several cells
// is a model.ErrSchemaMismatch.
func ParseValue(body []byte) (*float64, error) {
	s := strings.Map(func(r rune) rune {
		switch r {
		case '{', '}', '"', '[', ']', '(', ')':
			return ' '
		}
		return r
	}, string(body))
	var cells []string
	for _, c := range strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n' || r == '\r'
	}) {
		if c = strings.TrimSpace(c); c != "" {
			cells = append(cells, c)
		}
	}
	if len(cells) == 0 {
		return nil, nil
	}
	if len(cells) > 1 {
		return nil, fmt.Errorf("%d values for one point: %w", len(cells), model.ErrSchemaMismatch)
	}
	fields := strings.Fields(cells[0])
	tok := strings.ToLower(fields[0])
	if tok == "null" || tok == "nan" || tok == "none" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return nil, fmt.Errorf("parse value %q: %w", fields[0], err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, nil
	}
	return &v, nil
}

// IsNil reports whether v matches one of the coverage's nil values.
func IsNil(v float64, nils []float64) bool {
	for _, n := range nils {
		if v == n {
			return true
		}
	}
	return false
}

// Package samples parses uploaded point samples from delimited text.
package samples

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/FAIRiCUBE/querycube-web/internal/core/model"
)

var (
	idColumns  = []string{"id", "sample_id", "sample", "name", "site", "station"}
	xColumns   = []string{"x", "lon", "lng", "long", "longitude", "easting"}
	yColumns   = []string{"y", "lat", "latitude", "northing"}
	crsColumns = []string{"crs", "epsg", "srs", "srid"}
)

var delimiters = []rune{',', ';', '\t', '|'}

// Set is an ordered, immutable collection of samples.
type Set struct {
	samples []model.Sample
}

func NewSet(s ...model.Sample) *Set {
	cp := make([]model.Sample, len(s))
	copy(cp, s)
	return &Set{samples: cp}
}

func (s *Set) Len() int { return len(s.samples) }

// All returns a copy of the samples in upload order.
func (s *Set) All() []model.Sample {
	out := make([]model.Sample, len(s.samples))
	copy(out, s.samples)
	return out
}

func (s *Set) At(i int) model.Sample { return s.samples[i] }

// RowError describes one rejected input line.
type RowError struct {
	Line   int
	Reason string
}

func (e RowError) String() string { return fmt.Sprintf("line %d: %s", e.Line, e.Reason) }

// ParseError lists every rejected row of an upload.
type ParseError struct {
	Rows []RowError
}

func (e *ParseError) Error() string {
	parts := make([]string, 0, len(e.Rows))
	for _, r := range e.Rows {
		parts = append(parts, r.String())
	}
	return fmt.Sprintf("%s: %d invalid row(s): %s", model.ErrMalformedInput, len(e.Rows), strings.Join(parts, "; "))
}

func (e *ParseError) Unwrap() error { return model.ErrMalformedInput }

type columns struct {
	id, x, y, crs int
}

// Parse reads a header line followed by one sample per line. The delimiter is
// sniffed from the header. A missing crs column defaults every sample to WGS84.
func Parse(r io.Reader) (*Set, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read samples: %v", model.ErrMalformedInput, err)
	}
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: empty sample file", model.ErrMalformedInput)
	}

	cr := csv.NewReader(bytes.NewReader(raw))
	cr.Comma = sniffDelimiter(raw)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", model.ErrMalformedInput, err)
	}
	cols, err := resolveColumns(header)
	if err != nil {
		return nil, err
	}

	var (
		out []model.Sample
		bad []RowError
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				bad = append(bad, RowError{Line: pe.Line, Reason: pe.Err.Error()})
				continue
			}
			return nil, fmt.Errorf("%w: read row: %v", model.ErrMalformedInput, err)
		}
		if blank(rec) {
			continue
		}
		line, _ := cr.FieldPos(0)
		s, reason := parseRow(rec, cols)
		if reason != "" {
			bad = append(bad, RowError{Line: line, Reason: reason})
			continue
		}
		out = append(out, s)
	}

	if len(bad) > 0 {
		return nil, &ParseError{Rows: bad}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no samples found", model.ErrMalformedInput)
	}
	return &Set{samples: out}, nil
}

func parseRow(rec []string, c columns) (model.Sample, string) {
	get := func(i int) string {
		if i < 0 || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	id := get(c.id)
	if id == "" {
		return model.Sample{}, "missing sample id"
	}
	x, err := parseCoord(get(c.x))
	if err != nil {
		return model.Sample{}, fmt.Sprintf("sample %q: x: %v", id, err)
	}
	y, err := parseCoord(get(c.y))
	if err != nil {
		return model.Sample{}, fmt.Sprintf("sample %q: y: %v", id, err)
	}
	crsID := model.WGS84
	if v := get(c.crs); v != "" {
		crsID = v
	}
	return model.Sample{ID: id, Point: orb.Point{x, y}, CRS: crsID}, ""
}

func parseCoord(s string) (float64, error) {
	if s == "" {
		return 0, errors.New("empty coordinate")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// decimal comma, as exported by some spreadsheets with ';' delimiters
		if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
			f, err = strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
		}
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", s)
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a finite number: %q", s)
	}
	return f, nil
}

func resolveColumns(header []string) (columns, error) {
	norm := make([]string, len(header))
	for i, h := range header {
		norm[i] = strings.ToLower(strings.Trim(strings.TrimSpace(h), `"'`))
	}
	c := columns{
		id:  findColumn(norm, idColumns),
		x:   findColumn(norm, xColumns),
		y:   findColumn(norm, yColumns),
		crs: findColumn(norm, crsColumns),
	}
	var missing []string
	if c.id < 0 {
		missing = append(missing, "id")
	}
	if c.x < 0 {
		missing = append(missing, "x")
	}
	if c.y < 0 {
		missing = append(missing, "y")
	}
	if len(missing) > 0 {
		return columns{}, fmt.Errorf("%w: missing required column(s) %s in header %q",
			model.ErrMalformedInput, strings.Join(missing, ","), strings.Join(header, ","))
	}
	return c, nil
}

// first alias in preference order wins
func findColumn(header, aliases []string) int {
	for _, a := range aliases {
		for i, h := range header {
			if h == a {
				return i
			}
		}
	}
	return -1
}

func sniffDelimiter(raw []byte) rune {
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 64<<10), 1<<20)
	if !sc.Scan() {
		return ','
	}
	first := sc.Text()
	best, bestN := ',', 0
	for _, d := range delimiters {
		if n := strings.Count(first, string(d)); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

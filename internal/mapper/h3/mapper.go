package h3mapper

import (
	"fmt"
	"math"

	h3 "github.com/uber/h3-go/v4"
)

// Mapper locates points at a fixed resolution.
type Mapper struct {
	res int
}

func New(res int) (*Mapper, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	return &Mapper{res: res}, nil
}

func (m *Mapper) Resolution() int { return m.res }

func (m *Mapper) CellForPoint(lon, lat float64) (string, error) {
	if math.IsNaN(lon) || math.IsNaN(lat) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return "", fmt.Errorf("point (%g, %g) is not a WGS84 lon/lat", lon, lat)
	}
	c, err := h3.LatLngToCell(h3.NewLatLng(lat, lon), m.res)
	if err != nil {
		return "", fmt.Errorf("h3 cell: %w", err)
	}
	return c.String(), nil
}

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}

// Package crs converts point coordinates between supported reference systems.
package crs

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/FAIRiCUBE/querycube-web/internal/core/model"
)

// projection maps between one reference system and WGS84 lon/lat degrees.
type projection interface {
	toWGS84(p orb.Point) (orb.Point, error)
	fromWGS84(p orb.Point) (orb.Point, error)
	geographic() bool
}

var (
	epsgURIPattern = regexp.MustCompile(`(?i)EPSG(?:/0/|::|:|/)(\d+)`)
	digitsPattern  = regexp.MustCompile(`^\d+$`)
	crs84Pattern   = regexp.MustCompile(`(?i)(^|[/:])CRS:?84$`)
)

// Code extracts the EPSG code from an identifier such as "EPSG:4326",
// "4326", "urn:ogc:def:crs:EPSG::3035" or ".../def/crs/EPSG/0/32633".
// For compound CRS URIs the first EPSG component wins.
func Code(id string) (int, error) {
	s := strings.TrimSpace(id)
	if s == "" {
		return 0, fmt.Errorf("%w: empty identifier", model.ErrInvalidCRS)
	}
	if crs84Pattern.MatchString(s) {
		return 4326, nil
	}
	if digitsPattern.MatchString(s) {
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", model.ErrInvalidCRS, id)
		}
		return n, nil
	}
	m := epsgURIPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", model.ErrInvalidCRS, id)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", model.ErrInvalidCRS, id)
	}
	return n, nil
}

// Normalize returns the canonical "EPSG:<code>" form of a supported identifier.
func Normalize(id string) (string, error) {
	code, err := Code(id)
	if err != nil {
		return "", err
	}
	if _, err := forCode(code); err != nil {
		return "", err
	}
	return "EPSG:" + strconv.Itoa(code), nil
}

// Geographic reports whether id is a supported lon/lat reference system.
func Geographic(id string) bool {
	code, err := Code(id)
	if err != nil {
		return false
	}
	p, err := forCode(code)
	return err == nil && p.geographic()
}

// Convert transforms p from one reference system to another. x is always the
// easting (or longitude) and y the northing (or latitude).
func Convert(p orb.Point, from, to string) (orb.Point, error) {
	src, err := lookup(from)
	if err != nil {
		return orb.Point{}, err
	}
	dst, err := lookup(to)
	if err != nil {
		return orb.Point{}, err
	}
	if !finite(p) {
		return orb.Point{}, fmt.Errorf("%w: non-finite coordinate %v", model.ErrOutOfDomain, p)
	}
	ll, err := src.toWGS84(p)
	if err != nil {
		return orb.Point{}, err
	}
	out, err := dst.fromWGS84(ll)
	if err != nil {
		return orb.Point{}, err
	}
	return out, nil
}

// ToWGS84 is Convert with the WGS84 target.
func ToWGS84(p orb.Point, from string) (orb.Point, error) {
	return Convert(p, from, model.WGS84)
}

func lookup(id string) (projection, error) {
	code, err := Code(id)
	if err != nil {
		return nil, err
	}
	return forCode(code)
}

func forCode(code int) (projection, error) {
	switch {
	case code == 4326 || code == 4258 || code == 4979:
		return geographicProj{}, nil
	case code == 3857 || code == 900913 || code == 3785 || code == 102100:
		return webMercator{}, nil
	case code == 3035:
		return etrsLAEA, nil
	case code >= 32601 && code <= 32660:
		return newUTM(wgs84Ellipsoid, code-32600, false), nil
	case code >= 32701 && code <= 32760:
		return newUTM(wgs84Ellipsoid, code-32700, true), nil
	case code >= 25828 && code <= 25838:
		return newUTM(grs80Ellipsoid, code-25800, false), nil
	default:
		return nil, fmt.Errorf("%w: unsupported EPSG:%d", model.ErrInvalidCRS, code)
	}
}

func finite(p orb.Point) bool {
	return !math.IsNaN(p[0]) && !math.IsNaN(p[1]) && !math.IsInf(p[0], 0) && !math.IsInf(p[1], 0)
}

func checkLonLat(p orb.Point) error {
	if p.Lon() < -180 || p.Lon() > 180 {
		return fmt.Errorf("%w: longitude %v not in [-180,180]", model.ErrOutOfDomain, p.Lon())
	}
	if p.Lat() < -90 || p.Lat() > 90 {
		return fmt.Errorf("%w: latitude %v not in [-90,90]", model.ErrOutOfDomain, p.Lat())
	}
	return nil
}

type geographicProj struct{}

func (geographicProj) toWGS84(p orb.Point) (orb.Point, error) {
	if err := checkLonLat(p); err != nil {
		return orb.Point{}, err
	}
	return p, nil
}

func (geographicProj) fromWGS84(p orb.Point) (orb.Point, error) {
	if err := checkLonLat(p); err != nil {
		return orb.Point{}, err
	}
	return p, nil
}

func (geographicProj) geographic() bool { return true }

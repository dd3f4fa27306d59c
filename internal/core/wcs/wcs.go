// Package wcs builds OGC WCS 2.0.1 key-value-pair requests and decodes the
// responses of a rasdaman-style coverage service.
package wcs

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/FAIRiCUBE/querycube-web/internal/core/model"
)

const (
	Version = "2.0.1"

	// SubsettingCRS is the CRS every point subset is expressed in.
	SubsettingCRS = "http://www.opengis.net/def/crs/EPSG/0/4326"
	// NearestNeighbour is the interpolation used for approximate extraction.
	NearestNeighbour = "http://www.opengis.net/def/interpolation/OGC/1/nearest-neighbour"

	FormatCSV = "text/csv"
)

// OWSEndpoint returns the KVP endpoint of a service base URL. A base that
// already points at /ows is returned unchanged.
func OWSEndpoint(base string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if strings.HasSuffix(base, "/ows") {
		return base
	}
	return base + "/ows"
}

func base(request string) url.Values {
	params := url.Values{}
	params.Set("service", "WCS")
	params.Set("version", Version)
	params.Set("request", request)
	return params
}

func GetCapabilitiesParams() url.Values {
	params := base("GetCapabilities")
	params.Set("sections", "Contents")
	return params
}

// DescribeCoverageParams requests all ids in one call.
func DescribeCoverageParams(ids []string) url.Values {
	params := base("DescribeCoverage")
	params.Set("coverageId", strings.Join(ids, ","))
	return params
}

// PointQuery addresses one sample in one coverage. XAxis and YAxis are the
// coverage's own easting and northing labels; Lon and Lat are WGS84.
type PointQuery struct {
	CoverageID  string
	XAxis       string
	YAxis       string
	Lon         float64
	Lat         float64
	Approximate bool
	Offset      int
	// non-spatial axes, each pinned to one position
	Slices []model.AxisSlice
}

func GetCoverageParams(q PointQuery) url.Values {
	params := base("GetCoverage")
	params.Set("coverageId", q.CoverageID)
	params.Add("subset", q.XAxis+"("+formatCoord(q.Lon)+")")
	params.Add("subset", q.YAxis+"("+formatCoord(q.Lat)+")")
	for _, s := range q.Slices {
		params.Add("subset", s.Axis+"("+s.Position+")")
	}
	params.Set("subsettingCrs", SubsettingCRS)
	params.Set("format", FormatCSV)
	if q.Approximate {
		params.Set("interpolation", NearestNeighbour)
	}
	// opaque to us, the service interprets it
	if q.Offset != 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}
	return params
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var (
	eastingLabels  = []string{"lon", "long", "longitude", "x", "e", "easting"}
	northingLabels = []string{"lat", "latitude", "y", "n", "northing"}
)

// SpatialAxes picks the easting and northing labels out of a coverage's axis
// labels and returns their positions.
func SpatialAxes(labels []string) (xi, yi int, ok bool) {
	xi, yi = -1, -1
	for i, l := range labels {
		switch {
		case xi < 0 && matchLabel(l, eastingLabels):
			xi = i
		case yi < 0 && matchLabel(l, northingLabels):
			yi = i
		}
	}
	return xi, yi, xi >= 0 && yi >= 0
}

func matchLabel(label string, set []string) bool {
	label = strings.ToLower(strings.TrimSpace(label))
	for _, s := range set {
		if label == s {
			return true
		}
	}
	return false
}

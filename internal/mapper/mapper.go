// Package mapper converts sample coordinates into H3 cells.
package mapper

type Interface interface {
	// CellForPoint returns the cell containing a WGS84 lon/lat point.
	CellForPoint(lon, lat float64) (string, error)
	Resolution() int
}

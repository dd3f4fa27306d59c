// Package keys builds the Redis keys used for catalog snapshots, layer
// generations and memoized extraction values.
package keys

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// CatalogKey identifies the catalog snapshot fetched from endpoint on behalf
// of username. Credentials never appear in the key in clear text.
func CatalogKey(endpoint, username string) string {
	sum := xxhash.Sum64String(strings.TrimRight(strings.TrimSpace(endpoint), "/") + "\x00" + username)
	return fmt.Sprintf("catalog:%016x", sum)
}

// GenerationKey holds the counter bumped whenever layer is invalidated.
func GenerationKey(layer string) string {
	return "gen:" + layerToken(layer)
}

// CellLocator addresses a value by the H3 cell a sample falls in.
func CellLocator(cell string) string {
	return "c:" + strings.ToLower(cell)
}

// PointLocator addresses a value by its exact WGS84 coordinates.
func PointLocator(lon, lat float64) string {
	s := strconv.FormatFloat(lon, 'g', -1, 64) + "," + strconv.FormatFloat(lat, 'g', -1, 64)
	return fmt.Sprintf("p:%016x", xxhash.Sum64String(s))
}

// ValueKey is the memoization key of one extracted value.
func ValueKey(layer string, generation int64, locator string, offset int) string {
	return fmt.Sprintf("val:%s:g%d:%s:o%d", layerToken(layer), generation, locator, offset)
}

// layerToken is the readable layer name followed by a hash of the exact
// name. Sanitizing is lossy, so the hash keeps distinct layers apart.
func layerToken(layer string) string {
	layer = strings.TrimSpace(layer)
	return fmt.Sprintf("%s.%016x", sanitizeLayer(layer), xxhash.Sum64String(layer))
}

func sanitizeLayer(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case unicode.IsSpace(r):
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-' || r == '.':
			out = r
		default:
			// ':' is the key separator
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}

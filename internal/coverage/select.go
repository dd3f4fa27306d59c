package coverage

import (
	"fmt"
	"strings"

	"github.com/FAIRiCUBE/querycube-web/internal/core/model"
)

type Mode int

const (
	ModeAutomatic Mode = iota
	ModeManual
)

func (m Mode) String() string {
	switch m {
	case ModeAutomatic:
		return "automatic"
	case ModeManual:
		return "manual"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts "automatic" (also the empty string) and "manual".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "automatic", "auto":
		return ModeAutomatic, nil
	case "manual":
		return ModeManual, nil
	default:
		return 0, fmt.Errorf("%w: unknown selection mode %q", model.ErrMalformedInput, s)
	}
}

// Select returns the layers to query in catalog order. Automatic mode takes
// every associated layer. Manual mode validates names against the catalog
// and drops named layers that contain no sample.
func Select(mode Mode, c *Context, names []string) ([]model.LayerDescriptor, error) {
	switch mode {
	case ModeAutomatic:
		out := make([]model.LayerDescriptor, 0, c.Assoc.Len())
		for _, m := range c.Assoc.matches {
			out = append(out, m.Layer)
		}
		return out, nil
	case ModeManual:
		return selectManual(c, names)
	default:
		return nil, fmt.Errorf("%w: unknown selection mode %s", model.ErrMalformedInput, mode)
	}
}

func selectManual(c *Context, names []string) ([]model.LayerDescriptor, error) {
	want := make(map[string]struct{}, len(names))
	seen := make(map[string]struct{}, len(names))
	var unknown []string
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		if c.Catalog == nil || c.Catalog.Index(n) < 0 {
			unknown = append(unknown, n)
			continue
		}
		want[n] = struct{}{}
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: %s", model.ErrUnknownLayer, strings.Join(unknown, ", "))
	}
	if len(want) == 0 {
		return nil, fmt.Errorf("%w: manual selection names no layer", model.ErrMalformedInput)
	}

	var out []model.LayerDescriptor
	for _, l := range c.Catalog.Layers() {
		if _, ok := want[l.Name]; !ok {
			continue
		}
		if len(c.Assoc.Samples(l.Name)) == 0 {
			if c.log != nil {
				c.log.Warnf("layer %s contains none of the samples, skipped", l.Name)
			}
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

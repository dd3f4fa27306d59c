// Package catalog holds the layer metadata advertised by the coverage service.
package catalog

import (
	"context"
	"fmt"

	"github.com/FAIRiCUBE/querycube-web/internal/core/model"
)

// Source is the outbound layer-listing contract of the coverage service.
type Source interface {
	FetchLayers(ctx context.Context, creds model.Credentials) ([]model.LayerDescriptor, error)
}

// Catalog is an ordered, read-only set of layer descriptors with a name index.
type Catalog struct {
	layers []model.LayerDescriptor
	byName map[string]int
}

// New indexes layers by name. Later duplicates of a name are dropped.
func New(layers []model.LayerDescriptor) *Catalog {
	c := &Catalog{
		layers: make([]model.LayerDescriptor, 0, len(layers)),
		byName: make(map[string]int, len(layers)),
	}
	for _, l := range layers {
		if l.Name == "" {
			continue
		}
		if _, dup := c.byName[l.Name]; dup {
			continue
		}
		c.byName[l.Name] = len(c.layers)
		c.layers = append(c.layers, l)
	}
	return c
}

// Fetch loads the catalog from src. Any failure, or an empty result, is
// reported as ErrCatalogUnavailable.
func Fetch(ctx context.Context, src Source, creds model.Credentials) (*Catalog, error) {
	layers, err := src.FetchLayers(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrCatalogUnavailable, err)
	}
	c := New(layers)
	if c.Len() == 0 {
		return nil, fmt.Errorf("%w: service advertised no layers", model.ErrCatalogUnavailable)
	}
	return c, nil
}

func (c *Catalog) Len() int { return len(c.layers) }

// Layers returns the descriptors in catalog order.
func (c *Catalog) Layers() []model.LayerDescriptor {
	out := make([]model.LayerDescriptor, len(c.layers))
	copy(out, c.layers)
	return out
}

func (c *Catalog) Lookup(name string) (model.LayerDescriptor, bool) {
	i, ok := c.byName[name]
	if !ok {
		return model.LayerDescriptor{}, false
	}
	return c.layers[i], true
}

// Index returns the catalog position of name, or -1.
func (c *Catalog) Index(name string) int {
	if i, ok := c.byName[name]; ok {
		return i
	}
	return -1
}

func (c *Catalog) Names() []string {
	out := make([]string, len(c.layers))
	for i, l := range c.layers {
		out[i] = l.Name
	}
	return out
}

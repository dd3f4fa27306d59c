// Package assemble merges per-layer extraction rows into one result table.
package assemble

import (
	"fmt"
	"slices"

	"github.com/FAIRiCUBE/querycube-web/internal/core/model"
	"github.com/FAIRiCUBE/querycube-web/internal/samples"
)

const (
	colSampleID = "sample_id"
	colLayer    = "layer"
)

// Assembler is fed layers in selected order. The first accepted layer fixes
// the column schema. A layer is accepted whole or not at all.
type Assembler struct {
	samples  map[string]struct{}
	selected map[string]struct{}
	added    map[string]struct{}

	columns  []string
	sidCol   int
	layerCol int
	rows     [][]any
	accepted []string
}

func New(set *samples.Set, selected []model.LayerDescriptor) *Assembler {
	a := &Assembler{
		samples:  map[string]struct{}{},
		selected: make(map[string]struct{}, len(selected)),
		added:    make(map[string]struct{}, len(selected)),
	}
	if set != nil {
		for _, s := range set.All() {
			a.samples[s.ID] = struct{}{}
		}
	}
	for _, l := range selected {
		a.selected[l.Name] = struct{}{}
	}
	return a
}

// Add appends the rows of one layer. Any schema violation or orphan row
// rejects the layer with model.ErrSchemaMismatch and leaves the table as is.
func (a *Assembler) Add(layer string, headers []string, rows [][]any) error {
	if _, ok := a.selected[layer]; !ok {
		return fmt.Errorf("%w: layer %s was not selected", model.ErrSchemaMismatch, layer)
	}
	if _, dup := a.added[layer]; dup {
		return fmt.Errorf("%w: layer %s added twice", model.ErrSchemaMismatch, layer)
	}
	if len(headers) == 0 {
		return fmt.Errorf("%w: layer %s returned no headers", model.ErrSchemaMismatch, layer)
	}

	sidCol, layerCol := a.sidCol, a.layerCol
	if a.columns == nil {
		sidCol = slices.Index(headers, colSampleID)
		layerCol = slices.Index(headers, colLayer)
		if sidCol < 0 || layerCol < 0 {
			return fmt.Errorf("%w: layer %s headers %v lack %s/%s", model.ErrSchemaMismatch, layer, headers, colSampleID, colLayer)
		}
	} else if !slices.Equal(a.columns, headers) {
		return fmt.Errorf("%w: layer %s headers %v differ from %v", model.ErrSchemaMismatch, layer, headers, a.columns)
	}

	for i, r := range rows {
		if len(r) != len(headers) {
			return fmt.Errorf("%w: layer %s row %d has %d cells for %d columns", model.ErrSchemaMismatch, layer, i, len(r), len(headers))
		}
		sid, ok := r[sidCol].(string)
		if !ok {
			return fmt.Errorf("%w: layer %s row %d sample id %v", model.ErrSchemaMismatch, layer, i, r[sidCol])
		}
		if _, ok := a.samples[sid]; !ok {
			return fmt.Errorf("%w: layer %s row %d names unknown sample %q", model.ErrSchemaMismatch, layer, i, sid)
		}
		if l, _ := r[layerCol].(string); l != layer {
			return fmt.Errorf("%w: layer %s row %d belongs to layer %v", model.ErrSchemaMismatch, layer, i, r[layerCol])
		}
	}

	if a.columns == nil {
		a.columns = slices.Clone(headers)
		a.sidCol, a.layerCol = sidCol, layerCol
	}
	for _, r := range rows {
		a.rows = append(a.rows, slices.Clone(r))
	}
	a.added[layer] = struct{}{}
	a.accepted = append(a.accepted, layer)
	return nil
}

// Accepted lists the layers whose rows are in the table, in add order.
func (a *Assembler) Accepted() []string { return slices.Clone(a.accepted) }

func (a *Assembler) Table() model.ResultTable {
	rows := make([][]any, len(a.rows))
	for i, r := range a.rows {
		rows[i] = slices.Clone(r)
	}
	return model.ResultTable{Columns: slices.Clone(a.columns), Rows: rows}
}

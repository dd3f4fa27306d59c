package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ResultTable is the assembled extraction output. Rows are grouped by
// selected layer, then in sample order within a layer.
type ResultTable struct {
	Columns []string
	Rows    [][]any
}

func (t ResultTable) Len() int { return len(t.Rows) }

// Records returns one record per row, sharing the table's columns.
func (t ResultTable) Records() []Record {
	out := make([]Record, 0, len(t.Rows))
	for _, row := range t.Rows {
		out = append(out, Record{Columns: t.Columns, Values: row})
	}
	return out
}

// Record is one result row. It marshals to a JSON object whose keys follow
// the column order.
type Record struct {
	Columns []string
	Values  []any
}

// Get returns the value of column col; nil when the column is absent.
func (r Record) Get(col string) any {
	for i, c := range r.Columns {
		if c == col {
			if i < len(r.Values) {
				return r.Values[i]
			}
			return nil
		}
	}
	return nil
}

func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		var v any
		if i < len(r.Values) {
			v = r.Values[i]
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c, err)
		}
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Package invalidation defines the coverage update events that expire
// cached catalog snapshots and extracted values.
package invalidation

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Event announces a change to one coverage layer. Generation is the
// producer's monotonically increasing revision of the layer; zero means
// unversioned and is never deduplicated.
type Event struct {
	Version    int       `json:"version"`
	Op         string    `json:"op"`
	Layer      string    `json:"layer"`
	TS         time.Time `json:"ts"`
	Generation uint64    `json:"generation,omitempty"`
	Source     string    `json:"source,omitempty"`
}

func Decode(b []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(b, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	ev.Layer = strings.TrimSpace(ev.Layer)
	ev.Op = strings.ToLower(strings.TrimSpace(ev.Op))
	if err := ev.Validate(); err != nil {
		return Event{}, err
	}
	return ev, nil
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("version must be 1")
	}
	switch e.Op {
	case OpCreate, OpUpdate, OpDelete:
	default:
		return fmt.Errorf("op must be create|update|delete")
	}
	if strings.TrimSpace(e.Layer) == "" {
		return fmt.Errorf("layer is required")
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	return nil
}

// TouchesValues reports whether cached values of the layer become stale.
// A newly created layer has none.
func (e Event) TouchesValues() bool {
	return e.Op == OpUpdate || e.Op == OpDelete
}

package kafkaconsumer

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

type generationDedupe struct {
	mu  sync.Mutex
	lru *lru.Cache[string, uint64]
}

func newGenerationDedupe(size int) *generationDedupe {
	if size <= 0 {
		size = 4096
	}
	c, _ := lru.New[string, uint64](size)
	return &generationDedupe{lru: c}
}

// seen reports whether gen is not newer than the last applied generation
// of layer. Generation zero is never considered seen.
func (d *generationDedupe) seen(layer string, gen uint64) bool {
	if gen == 0 {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	last, ok := d.lru.Get(layer)
	return ok && gen <= last
}

// record is called only after the event was applied, so a failed apply is
// retried on redelivery.
func (d *generationDedupe) record(layer string, gen uint64) {
	if gen == 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lru.Get(layer); ok && gen <= last {
		return
	}
	d.lru.Add(layer, gen)
}

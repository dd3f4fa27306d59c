package valuecache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/FAIRiCUBE/querycube-web/internal/cache"
	"github.com/FAIRiCUBE/querycube-web/internal/cache/keys"
	"github.com/FAIRiCUBE/querycube-web/internal/cache/redisstore"
	"github.com/FAIRiCUBE/querycube-web/internal/core/model"
)

func newStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rc, err := redisstore.New(context.Background(), mr.Addr())
	if err != nil {
		t.Fatalf("redisstore.New: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })

	s, err := New(cache.NewRedis(rc, time.Second), 13, time.Hour)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, mr
}

func request(approx bool, pts ...model.SamplePoint) model.ExtractionRequest {
	return model.ExtractionRequest{
		Layer:       model.LayerDescriptor{Name: "temp"},
		Points:      pts,
		Approximate: approx,
	}
}

func TestNew_RejectsResolution(t *testing.T) {
	if _, err := New(nil, 16, time.Minute); err == nil {
		t.Fatal("expected error for resolution 16")
	}
}

func TestStoreThenLookup_ExactMode(t *testing.T) {
	s, _ := newStore(t)
	req := request(false,
		model.SamplePoint{SampleID: "a", Lon: 10, Lat: 50},
		model.SamplePoint{SampleID: "b", Lon: 11, Lat: 51},
		model.SamplePoint{SampleID: "c", Lon: 12, Lat: 52},
	)
	v := 4.5
	if err := s.Store(req, 0, map[int]*float64{0: &v, 1: nil}); err != nil {
		t.Fatalf("Store: %v", err)
	}

	got, _, err := s.Lookup(req)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("hits=%d want 2 (%v)", len(got), got)
	}
	if got[0] == nil || *got[0] != 4.5 {
		t.Fatalf("hit 0=%v", got[0])
	}
	if v, ok := got[1]; !ok || v != nil {
		t.Fatalf("nil value must be cached as nil, got %v ok=%v", v, ok)
	}
	if _, ok := got[2]; ok {
		t.Fatal("point 2 was never stored")
	}
}

func TestApproximateMode_SharesCell(t *testing.T) {
	s, _ := newStore(t)
	v := 1.25
	if err := s.Store(request(true, model.SamplePoint{SampleID: "a", Lon: 10, Lat: 50}), 0, map[int]*float64{0: &v}); err != nil {
		t.Fatalf("Store: %v", err)
	}

	// a few centimetres away, same resolution-13 cell
	near := request(true, model.SamplePoint{SampleID: "b", Lon: 10.0000001, Lat: 50.0000001})
	got, _, err := s.Lookup(near)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got[0] == nil || *got[0] != 1.25 {
		t.Fatalf("approximate lookup=%v", got)
	}

	// exact mode does not share
	exact := request(false, model.SamplePoint{SampleID: "b", Lon: 10.0000001, Lat: 50.0000001})
	got, _, err = s.Lookup(exact)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("exact lookup hit a cell value: %v", got)
	}
}

func TestInvalidate_OrphansValues(t *testing.T) {
	s, mr := newStore(t)
	req := request(false, model.SamplePoint{SampleID: "a", Lon: 10, Lat: 50})
	v := 2.0
	if err := s.Store(req, 0, map[int]*float64{0: &v}); err != nil {
		t.Fatalf("Store: %v", err)
	}

	gen, err := s.Invalidate("temp")
	if err != nil || gen != 1 {
		t.Fatalf("Invalidate=%d err=%v", gen, err)
	}
	if g, _ := s.Generation("temp"); g != 1 {
		t.Fatalf("Generation=%d want 1", g)
	}
	got, _, err := s.Lookup(req)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("stale value visible after invalidation: %v", got)
	}
	if !mr.Exists(keys.GenerationKey("temp")) {
		t.Fatal("generation key missing")
	}
}

func TestLookup_ExpiredValues(t *testing.T) {
	s, mr := newStore(t)
	req := request(false, model.SamplePoint{SampleID: "a", Lon: 10, Lat: 50})
	v := 3.0
	if err := s.Store(req, 0, map[int]*float64{0: &v}); err != nil {
		t.Fatalf("Store: %v", err)
	}
	mr.FastForward(2 * time.Hour)
	got, _, err := s.Lookup(req)
	if err != nil || len(got) != 0 {
		t.Fatalf("got=%v err=%v want expired", got, err)
	}
}

func TestStore_AfterInvalidateIsOrphaned(t *testing.T) {
	s, _ := newStore(t)
	req := request(false, model.SamplePoint{SampleID: "a", Lon: 10, Lat: 50})

	_, gen, err := s.Lookup(req)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	// layer updated while the remote fetch is in flight
	if _, err := s.Invalidate("temp"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	v := 1.0
	if err := s.Store(req, gen, map[int]*float64{0: &v}); err != nil {
		t.Fatalf("Store: %v", err)
	}

	got, now, err := s.Lookup(req)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if now != gen+1 {
		t.Fatalf("generation=%d want %d", now, gen+1)
	}
	if len(got) != 0 {
		t.Fatalf("value fetched before the update served after it: %v", got)
	}
}

func TestLookalikeLayers_DoNotShareValues(t *testing.T) {
	s, _ := newStore(t)
	pt := model.SamplePoint{SampleID: "a", Lon: 10, Lat: 50}
	one := model.ExtractionRequest{Layer: model.LayerDescriptor{Name: "ndvi_2020"}, Points: []model.SamplePoint{pt}}
	two := model.ExtractionRequest{Layer: model.LayerDescriptor{Name: "ndvi__2020"}, Points: []model.SamplePoint{pt}}

	v := 0.42
	if err := s.Store(one, 0, map[int]*float64{0: &v}); err != nil {
		t.Fatalf("Store: %v", err)
	}
	got, _, err := s.Lookup(two)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("ndvi__2020 served a value cached for ndvi_2020: %v", got)
	}

	if _, err := s.Invalidate("ndvi__2020"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if g, _ := s.Generation("ndvi_2020"); g != 0 {
		t.Fatalf("invalidating ndvi__2020 bumped ndvi_2020 to %d", g)
	}
}

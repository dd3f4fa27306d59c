package coverage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"github.com/FAIRiCUBE/querycube-web/internal/catalog"
	"github.com/FAIRiCUBE/querycube-web/internal/core/crs"
	"github.com/FAIRiCUBE/querycube-web/internal/core/model"
	"github.com/FAIRiCUBE/querycube-web/internal/execlog"
	"github.com/FAIRiCUBE/querycube-web/internal/samples"
)

func wgs(id string, x, y float64) model.Sample {
	return model.Sample{ID: id, Point: orb.Point{x, y}, CRS: model.WGS84}
}

func geoLayer(name string, minX, minY, maxX, maxY float64) model.LayerDescriptor {
	return model.LayerDescriptor{
		Name:   name,
		CRS:    model.WGS84,
		Extent: orb.Bound{Min: orb.Point{minX, minY}, Max: orb.Point{maxX, maxY}},
		Axes:   []string{"Lat", "Long"},
	}
}

func TestComputeBoundary_ContainsEverySample(t *testing.T) {
	set := samples.NewSet(
		wgs("a", 5, 50),
		model.Sample{ID: "b", Point: orb.Point{3962799.45, 2999718.85}, CRS: "EPSG:3035"},
		model.Sample{ID: "c", Point: orb.Point{448251.9, 5411943.8}, CRS: "EPSG:32631"},
		wgs("d", -3.5, 40.25),
		model.Sample{ID: "bad", Point: orb.Point{1, 2}, CRS: "EPSG:99999"},
	)
	b, rejected := ComputeBoundary(set)
	if b.Empty {
		t.Fatal("boundary is empty")
	}
	if len(rejected) != 1 || rejected[0].SampleID != "bad" || !errors.Is(rejected[0].Err, model.ErrInvalidCRS) {
		t.Fatalf("rejected=%+v", rejected)
	}
	for _, s := range set.All()[:4] {
		p, err := crs.ToWGS84(s.Point, s.CRS)
		if err != nil {
			t.Fatalf("ToWGS84(%s): %v", s.ID, err)
		}
		if !b.Contains(p) {
			t.Fatalf("sample %s at %v outside boundary %v", s.ID, p, b.Bound)
		}
	}
	if b.Min != (orb.Point{-3.5, 40.25}) {
		t.Fatalf("min=%v", b.Min)
	}
}

func TestComputeBoundary_AllRejected(t *testing.T) {
	b, rejected := ComputeBoundary(samples.NewSet(wgs("x", 200, 0)))
	if !b.Empty || len(rejected) != 1 {
		t.Fatalf("boundary=%+v rejected=%v", b, rejected)
	}
	if a := Associate(catalog.New([]model.LayerDescriptor{geoLayer("all", -180, -90, 180, 90)}), b, nil); a.Len() != 0 {
		t.Fatalf("empty boundary associated %d layers", a.Len())
	}
}

func TestDegenerateBoundary_PointInRectangle(t *testing.T) {
	set := samples.NewSet(wgs("A", 10, 20))
	b, _ := ComputeBoundary(set)
	if !b.Degenerate() {
		t.Fatal("single sample boundary must be degenerate")
	}
	cat := catalog.New([]model.LayerDescriptor{
		geoLayer("inside", 0, 0, 30, 30),
		geoLayer("edge", 10, 20, 15, 25),
		geoLayer("outside", 11, 0, 30, 30),
	})
	a := Associate(cat, b, set)
	if a.Len() != 2 || a.Samples("inside") == nil || a.Samples("edge") == nil {
		t.Fatalf("association=%+v", a)
	}
	if a.Samples("outside") != nil {
		t.Fatal("layer not containing the point must not match")
	}
}

func TestAutomatic_Scenario(t *testing.T) {
	cat := catalog.New([]model.LayerDescriptor{geoLayer("temp", 0, 0, 30, 30)})
	c := New(cat, samples.NewSet(wgs("A", 10, 20)), nil)

	layers, err := Select(ModeAutomatic, c, nil)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(layers) != 1 || layers[0].Name != "temp" {
		t.Fatalf("layers=%v", layers)
	}
	if got := c.Assoc.Samples("temp"); len(got) != 1 || got[0] != 0 {
		t.Fatalf("samples=%v", got)
	}
}

func TestAutomatic_NeverReturnsEmptyLayers(t *testing.T) {
	// "middle" overlaps the boundary but holds no sample
	cat := catalog.New([]model.LayerDescriptor{
		geoLayer("middle", 4, 4, 6, 6),
		geoLayer("west", -1, -1, 1, 1),
		geoLayer("east", 9, 9, 11, 11),
	})
	c := New(cat, samples.NewSet(wgs("a", 0, 0), wgs("b", 10, 10)), nil)
	layers, err := Select(ModeAutomatic, c, nil)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(layers) != 2 || layers[0].Name != "west" || layers[1].Name != "east" {
		t.Fatalf("layers=%v", layers)
	}
	for _, l := range layers {
		if len(c.Assoc.Samples(l.Name)) == 0 {
			t.Fatalf("layer %s selected without samples", l.Name)
		}
	}
}

func TestAssociate_ProjectedLayer(t *testing.T) {
	laea := model.LayerDescriptor{
		Name:   "dem_europe",
		CRS:    "EPSG:3035",
		Extent: orb.Bound{Min: orb.Point{2000000, 1000000}, Max: orb.Point{7000000, 5500000}},
		Axes:   []string{"Y", "X"},
	}
	set := samples.NewSet(wgs("paris", 2.35, 48.85), wgs("nyc", -74, 40.7))
	c := New(catalog.New([]model.LayerDescriptor{laea}), set, nil)

	got := c.Assoc.Samples("dem_europe")
	if len(got) != 1 || got[0] != 0 {
		t.Fatalf("samples=%v want [0]", got)
	}
}

func TestManual_CatalogOrderAndDropsEmpty(t *testing.T) {
	cat := catalog.New([]model.LayerDescriptor{
		geoLayer("a", 0, 0, 30, 30),
		geoLayer("far", 100, 0, 110, 10),
		geoLayer("b", 0, 0, 30, 30),
	})
	log := execlog.New(context.Background(), nil)
	c := New(cat, samples.NewSet(wgs("A", 10, 20)), log)

	layers, err := Select(ModeManual, c, []string{"b", "far", "a", "b"})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(layers) != 2 || layers[0].Name != "a" || layers[1].Name != "b" {
		t.Fatalf("layers=%v want [a b]", layers)
	}
	if log.Count(execlog.LevelWarning) != 1 {
		t.Fatalf("warnings=%d want 1", log.Count(execlog.LevelWarning))
	}
}

func TestManual_UnknownLayerIsFatal(t *testing.T) {
	cat := catalog.New([]model.LayerDescriptor{geoLayer("temp", 0, 0, 30, 30)})
	c := New(cat, samples.NewSet(wgs("A", 10, 20)), nil)

	_, err := Select(ModeManual, c, []string{"temp", "nope"})
	if !errors.Is(err, model.ErrUnknownLayer) || !model.Fatal(err) {
		t.Fatalf("err=%v want fatal ErrUnknownLayer", err)
	}
	if _, err := Select(ModeManual, c, nil); !errors.Is(err, model.ErrMalformedInput) {
		t.Fatalf("empty manual selection err=%v", err)
	}
}

func TestManual_RepeatedUnknownReportedOnce(t *testing.T) {
	cat := catalog.New([]model.LayerDescriptor{geoLayer("temp", 0, 0, 30, 30)})
	c := New(cat, samples.NewSet(wgs("A", 10, 20)), nil)

	_, err := Select(ModeManual, c, []string{"nope", "temp", " nope", "other", "nope"})
	if !errors.Is(err, model.ErrUnknownLayer) {
		t.Fatalf("err=%v want ErrUnknownLayer", err)
	}
	if got := strings.Count(err.Error(), "nope"); got != 1 {
		t.Fatalf("nope reported %d times: %v", got, err)
	}
	if !strings.HasSuffix(err.Error(), "nope, other") {
		t.Fatalf("err=%v", err)
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeAutomatic, "Automatic": ModeAutomatic, "manual": ModeManual} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseMode(%q)=%v,%v", in, got, err)
		}
	}
	if _, err := ParseMode("random"); !errors.Is(err, model.ErrMalformedInput) {
		t.Fatalf("err=%v", err)
	}
	if _, err := Select(Mode(7), &Context{}, nil); err == nil {
		t.Fatal("unknown mode must fail")
	}
}

package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/paulmach/orb"

	"github.com/FAIRiCUBE/querycube-web/internal/core/model"
)

type stubSource struct {
	layers []model.LayerDescriptor
	err    error
	calls  int
}

func (s *stubSource) FetchLayers(context.Context, model.Credentials) ([]model.LayerDescriptor, error) {
	s.calls++
	return s.layers, s.err
}

func layer(name string) model.LayerDescriptor {
	return model.LayerDescriptor{
		Name:   name,
		CRS:    model.WGS84,
		Extent: orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 10}},
		Axes:   []string{"Lat", "Long"},
	}
}

func TestNew_KeepsOrderAndDropsDuplicates(t *testing.T) {
	c := New([]model.LayerDescriptor{layer("b"), layer("a"), layer("b"), layer("")})
	if c.Len() != 2 {
		t.Fatalf("len=%d want 2", c.Len())
	}
	names := c.Names()
	if names[0] != "b" || names[1] != "a" {
		t.Fatalf("names=%v", names)
	}
	if c.Index("a") != 1 || c.Index("zzz") != -1 {
		t.Fatalf("index a=%d zzz=%d", c.Index("a"), c.Index("zzz"))
	}
	if _, ok := c.Lookup("a"); !ok {
		t.Fatal("lookup a failed")
	}
}

func TestFetch_Errors(t *testing.T) {
	boom := errors.New("dial tcp: refused")
	_, err := Fetch(context.Background(), &stubSource{err: boom}, model.Credentials{})
	if !errors.Is(err, model.ErrCatalogUnavailable) || !errors.Is(err, boom) {
		t.Fatalf("err=%v want ErrCatalogUnavailable wrapping cause", err)
	}

	_, err = Fetch(context.Background(), &stubSource{}, model.Credentials{})
	if !errors.Is(err, model.ErrCatalogUnavailable) {
		t.Fatalf("empty catalog err=%v", err)
	}
	if !model.Fatal(err) {
		t.Fatal("catalog unavailability must be fatal")
	}
}

func TestLayers_ReturnsCopy(t *testing.T) {
	c := New([]model.LayerDescriptor{layer("a")})
	ls := c.Layers()
	ls[0].Name = "changed"
	if c.Names()[0] != "a" {
		t.Fatal("Layers exposed internal slice")
	}
}

package synth

import (
	"context"
	"testing"

	"github.com/tilemesh/terrabuild/internal/tile"
)

func TestHeightfield_DeterministicAndBounded(t *testing.T) {
	s := New("demo", tile.ProfileGlobalMercator, 16, 10)
	ctx := context.Background()
	key := tile.NewKey(6, 33, 21, tile.ProfileGlobalMercator)

	a, ok, err := s.Heightfield(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Heightfield = (ok=%v, err=%v)", ok, err)
	}
	if a.W != 16 || a.H != 16 {
		t.Fatalf("dims = %dx%d, want 16x16", a.W, a.H)
	}
	b, _, _ := s.Heightfield(ctx, key)
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			t.Fatalf("sample %d differs between identical requests", i)
		}
	}

	// Amplitude stays within the sum of the terrain harmonics.
	for i, v := range a.Data {
		if v < -1700 || v > 1700 {
			t.Fatalf("sample %d = %v out of range", i, v)
		}
	}
}

func TestHeightfield_RefusesOutOfScope(t *testing.T) {
	s := New("demo", tile.ProfileGlobalMercator, 8, 10)
	ctx := context.Background()

	if _, ok, err := s.Heightfield(ctx, tile.NewKey(11, 0, 0, tile.ProfileGlobalMercator)); ok || err != nil {
		t.Fatalf("beyond maxLevel = (ok=%v, err=%v), want absence", ok, err)
	}
	if _, ok, _ := s.Heightfield(ctx, tile.NewKey(5, 0, 0, tile.ProfileGlobalGeodetic)); ok {
		t.Fatalf("foreign profile produced data")
	}
	if _, ok, _ := s.Heightfield(ctx, tile.NewKey(2, 9, 0, tile.ProfileGlobalMercator)); ok {
		t.Fatalf("off-grid key produced data")
	}
}

func TestHeightfield_VariesAcrossTheGlobe(t *testing.T) {
	s := New("demo", tile.ProfileGlobalMercator, 8, 10)
	ctx := context.Background()

	west, _, _ := s.Heightfield(ctx, tile.NewKey(4, 2, 5, tile.ProfileGlobalMercator))
	east, _, _ := s.Heightfield(ctx, tile.NewKey(4, 12, 5, tile.ProfileGlobalMercator))

	same := true
	for i := range west.Data {
		if west.Data[i] != east.Data[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatalf("opposite sides of the globe produced identical terrain")
	}
}

package tile

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParentChain_TerminatesAtRoot(t *testing.T) {
	k := NewKey(12, 3000, 1234, ProfileGlobalMercator)
	steps := 0
	cur := k
	for {
		p, ok := cur.Parent()
		if !ok {
			break
		}
		if p.Level != cur.Level-1 {
			t.Fatalf("parent level = %d, want %d", p.Level, cur.Level-1)
		}
		cur = p
		steps++
	}
	if steps != int(k.Level) {
		t.Fatalf("walked %d steps to root, want %d", steps, k.Level)
	}
	if cur.Level != 0 {
		t.Fatalf("walk ended at level %d, want 0", cur.Level)
	}
	if _, ok := cur.Parent(); ok {
		t.Fatalf("root key must have no parent")
	}
}

func TestParentChild_RoundTrip(t *testing.T) {
	parent := NewKey(5, 17, 9, ProfileGlobalGeodetic)
	for _, dy := range []uint32{0, 1} {
		for _, dx := range []uint32{0, 1} {
			c := parent.Child(dx, dy)
			p, ok := c.Parent()
			if !ok || p != parent {
				t.Fatalf("Child(%d,%d).Parent() = %v, want %v", dx, dy, p, parent)
			}
			if !parent.IsAncestorOf(c) {
				t.Fatalf("parent must be ancestor of child %v", c)
			}
		}
	}
}

func TestWindowWithin_DirectChildIsQuadrant(t *testing.T) {
	parent := NewKey(3, 2, 5, ProfileGlobalMercator)
	cases := []struct {
		dx, dy uint32
		want   Window
	}{
		{0, 0, Window{0, 0, 0.5, 0.5}},
		{1, 0, Window{0.5, 0, 1, 0.5}},
		{0, 1, Window{0, 0.5, 0.5, 1}},
		{1, 1, Window{0.5, 0.5, 1, 1}},
	}
	for _, tc := range cases {
		got, err := parent.Child(tc.dx, tc.dy).WindowWithin(parent)
		if err != nil {
			t.Fatalf("WindowWithin: %v", err)
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Fatalf("quadrant (%d,%d) window mismatch (-want +got):\n%s", tc.dx, tc.dy, diff)
		}
	}
}

func TestWindowWithin_IdentityAndErrors(t *testing.T) {
	k := NewKey(7, 31, 40, ProfileGlobalGeodetic)
	w, err := k.WindowWithin(k)
	if err != nil {
		t.Fatalf("identity window: %v", err)
	}
	if w != Identity() {
		t.Fatalf("identity window = %+v", w)
	}

	other := NewKey(8, 99, 99, ProfileGlobalGeodetic)
	if _, err := other.WindowWithin(NewKey(7, 30, 40, ProfileGlobalGeodetic)); err == nil {
		t.Fatalf("expected error for non-ancestor window")
	}
	// A descendant is never a valid ancestor argument.
	if _, err := k.WindowWithin(k.Child(0, 0)); err == nil {
		t.Fatalf("expected error when ancestor is deeper than target")
	}
}

func TestWindowWithin_TwoLevelsDown(t *testing.T) {
	a := NewKey(10, 100, 200, ProfileGlobalMercator)
	d := a.Child(1, 0).Child(0, 1) // col 402, row 801 at level 12
	got, err := d.WindowWithin(a)
	if err != nil {
		t.Fatalf("WindowWithin: %v", err)
	}
	want := Window{MinX: 0.5, MinY: 0.25, MaxX: 0.75, MaxY: 0.5}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("window mismatch (-want +got):\n%s", diff)
	}
}

func TestGeodeticGrid_TwoRootTiles(t *testing.T) {
	if n := NumCols(ProfileGlobalGeodetic, 0); n != 2 {
		t.Fatalf("geodetic level-0 cols = %d, want 2", n)
	}
	if n := NumCols(ProfileGlobalMercator, 0); n != 1 {
		t.Fatalf("mercator level-0 cols = %d, want 1", n)
	}
	if !NewKey(0, 1, 0, ProfileGlobalGeodetic).Valid() {
		t.Fatalf("geodetic 0/1/0 must be valid")
	}
	if NewKey(0, 1, 0, ProfileGlobalMercator).Valid() {
		t.Fatalf("mercator 0/1/0 must be invalid")
	}
}

func TestCompatible_GeodeticMercatorException(t *testing.T) {
	if !Compatible(ProfileGlobalGeodetic, ProfileGlobalMercator) {
		t.Fatalf("geodetic and mercator must be compatible")
	}
	if !Compatible(ProfileGlobalMercator, ProfileGlobalGeodetic) {
		t.Fatalf("compatibility must be symmetric")
	}
	if Compatible(ProfileGlobalGeodetic, ProfileProjected) {
		t.Fatalf("geodetic and projected must not be compatible")
	}
	if !Compatible(ProfileProjected, ProfileProjected) {
		t.Fatalf("identical profiles must be compatible")
	}
}

func TestKeyExtent_GeodeticRoots(t *testing.T) {
	west, _ := KeyExtent(NewKey(0, 0, 0, ProfileGlobalGeodetic))
	east, _ := KeyExtent(NewKey(0, 1, 0, ProfileGlobalGeodetic))
	if west.MinLon != -180 || west.MaxLon != 0 {
		t.Fatalf("west root lon = [%v,%v], want [-180,0]", west.MinLon, west.MaxLon)
	}
	if east.MinLon != 0 || east.MaxLon != 180 {
		t.Fatalf("east root lon = [%v,%v], want [0,180]", east.MinLon, east.MaxLon)
	}
}

func TestMercatorY_RoundTrip(t *testing.T) {
	for _, lat := range []float64{-80, -45, 0, 30, 60, 85} {
		back := mercYToLat(latToMercY(lat))
		if math.Abs(back-lat) > 1e-9 {
			t.Fatalf("mercator round trip for %v gave %v", lat, back)
		}
	}
}

func TestKeysForExtent_CoversRequestedArea(t *testing.T) {
	// A box around Scandinavia at level 5 (geodetic).
	e := Extent{MinLon: 4, MinLat: 54, MaxLon: 32, MaxLat: 71}
	keys := KeysForExtent(e, ProfileGlobalGeodetic, 5)
	if len(keys) == 0 {
		t.Fatalf("no keys for extent")
	}
	for _, k := range keys {
		ke, ok := KeyExtent(k)
		if !ok {
			t.Fatalf("no extent for key %v", k)
		}
		if !ke.Intersects(e) {
			t.Fatalf("key %v extent %+v does not intersect request", k, ke)
		}
	}
	// The corner tiles must be present.
	for _, probe := range []struct{ lon, lat float64 }{{4.5, 54.5}, {31.5, 70.5}} {
		found := false
		for _, k := range keys {
			ke, _ := KeyExtent(k)
			if probe.lon >= ke.MinLon && probe.lon <= ke.MaxLon &&
				probe.lat >= ke.MinLat && probe.lat <= ke.MaxLat {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("no key covering probe point %+v", probe)
		}
	}
}

func TestKeysForExtent_ProjectedHasNone(t *testing.T) {
	if keys := KeysForExtent(Extent{MinLon: 0, MinLat: 0, MaxLon: 1, MaxLat: 1}, ProfileProjected, 3); keys != nil {
		t.Fatalf("projected profile should yield no geographic keys, got %d", len(keys))
	}
}

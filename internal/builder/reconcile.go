// Package builder turns a configured layer set into a tile builder: it
// reconciles the layers' tiling profiles into one scheme, resolves tile data
// through ancestor fallback, and answers the cache-reachability fast path.
package builder

import (
	"fmt"

	"github.com/tilemesh/terrabuild/internal/layer"
	"github.com/tilemesh/terrabuild/internal/tile"
)

// Diagnostic records one layer excluded during profile reconciliation.
type Diagnostic struct {
	Layer   string
	Profile tile.ProfileKind
	Reason  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("layer %q (%s): %s", d.Layer, d.Profile, d.Reason)
}

// Reconciliation is the outcome of profile reconciliation over an immutable
// layer snapshot: the common profile, the layers kept, and a diagnostic per
// layer dropped. Computed once per builder, before any tile is resolved.
type Reconciliation struct {
	Profile  tile.ProfileKind
	Retained []*layer.Layer
	Dropped  []Diagnostic
}

// Reconcile determines the common tiling profile for a layer set. The first
// layer with a known profile seeds the result; later layers whose profile is
// incompatible are dropped with a diagnostic instead of failing the builder.
// Layers without a live source have no profile of their own and are always
// retained, they serve whatever scheme the builder settles on. A non-unknown
// override wins unconditionally and compatibility is judged against it.
func Reconcile(layers []*layer.Layer, override tile.ProfileKind) Reconciliation {
	rec := Reconciliation{Profile: override}

	for _, l := range layers {
		p := l.Profile()
		if p == tile.ProfileUnknown {
			rec.Retained = append(rec.Retained, l)
			continue
		}
		if rec.Profile == tile.ProfileUnknown {
			rec.Profile = p
			rec.Retained = append(rec.Retained, l)
			continue
		}
		if !tile.Compatible(rec.Profile, p) {
			rec.Dropped = append(rec.Dropped, Diagnostic{
				Layer:   l.Name,
				Profile: p,
				Reason:  fmt.Sprintf("profile incompatible with reconciled %s", rec.Profile),
			})
			continue
		}
		rec.Retained = append(rec.Retained, l)
	}
	return rec
}

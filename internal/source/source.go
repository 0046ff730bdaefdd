// Package source defines the data-source capability interfaces consumed by
// the tile resolver. Sources are constructed once at map-build time and must
// be safe for concurrent reads.
package source

import (
	"context"
	"image"

	"github.com/tilemesh/terrabuild/internal/raster"
	"github.com/tilemesh/terrabuild/internal/tile"
)

// Kind tags the data a layer or source serves. Resolution dispatches on this
// tag instead of inspecting concrete types.
type Kind int

const (
	KindImage Kind = iota
	KindElevation
)

func (k Kind) String() string {
	if k == KindElevation {
		return "elevation"
	}
	return "image"
}

// Source is the surface every data source exposes regardless of capability.
type Source interface {
	Name() string
	Profile() tile.ProfileKind
}

// ImageSource produces imagery for tile keys. ok=false means the source has
// no data at this key. Errors cover transport and decode failures; callers
// above the resolver treat them the same as absence.
type ImageSource interface {
	Source
	Image(ctx context.Context, key tile.Key) (*image.NRGBA, bool, error)
}

// ElevationSource produces heightfields for tile keys, with the same
// absence/error contract as ImageSource.
type ElevationSource interface {
	Source
	Heightfield(ctx context.Context, key tile.Key) (*raster.Heightfield, bool, error)
}

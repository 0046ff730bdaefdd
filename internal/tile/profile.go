// Package tile defines quad-tree tile addressing and the tiling profiles
// shared by every data source feeding the terrain builder.
package tile

// ProfileKind identifies the tiling scheme a data source advertises.
type ProfileKind int

const (
	ProfileUnknown ProfileKind = iota
	// ProfileGlobalGeodetic is the plate-carree scheme: two root tiles side
	// by side at level 0, each covering 180x180 degrees.
	ProfileGlobalGeodetic
	// ProfileGlobalMercator is the spherical web-mercator scheme with a
	// single square root tile.
	ProfileGlobalMercator
	// ProfileProjected is a custom projected scheme with a single root tile
	// in local coordinates.
	ProfileProjected
)

func (k ProfileKind) String() string {
	switch k {
	case ProfileGlobalGeodetic:
		return "global-geodetic"
	case ProfileGlobalMercator:
		return "global-mercator"
	case ProfileProjected:
		return "projected"
	default:
		return "unknown"
	}
}

// ParseProfileKind maps a configuration string to a profile kind.
func ParseProfileKind(s string) ProfileKind {
	switch s {
	case "global-geodetic", "geodetic":
		return ProfileGlobalGeodetic
	case "global-mercator", "mercator":
		return ProfileGlobalMercator
	case "projected":
		return ProfileProjected
	default:
		return ProfileUnknown
	}
}

// Compatible reports whether two profiles can feed the same builder.
// Identical profiles are always compatible; geodetic and mercator mix in
// either order because their tile grids nest cleanly enough for reuse.
func Compatible(a, b ProfileKind) bool {
	if a == b {
		return true
	}
	return (a == ProfileGlobalGeodetic && b == ProfileGlobalMercator) ||
		(a == ProfileGlobalMercator && b == ProfileGlobalGeodetic)
}

// NumCols returns the number of tile columns at a level. The geodetic grid
// starts with two root tiles, so it carries twice the columns per level.
func NumCols(p ProfileKind, level uint32) uint32 {
	if p == ProfileGlobalGeodetic {
		return 2 << level
	}
	return 1 << level
}

// NumRows returns the number of tile rows at a level.
func NumRows(level uint32) uint32 {
	return 1 << level
}

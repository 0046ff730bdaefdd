package tile

import "math"

// maxMercatorLat is the latitude where the square web-mercator world ends.
const maxMercatorLat = 85.05112878

// Extent is a geographic bounding box in EPSG:4326 degrees.
type Extent struct {
	MinLon, MinLat float64
	MaxLon, MaxLat float64
}

// World returns the full extent covered by a profile. Projected profiles
// have no geographic extent and report ok=false.
func World(p ProfileKind) (Extent, bool) {
	switch p {
	case ProfileGlobalGeodetic:
		return Extent{MinLon: -180, MinLat: -90, MaxLon: 180, MaxLat: 90}, true
	case ProfileGlobalMercator:
		return Extent{MinLon: -180, MinLat: -maxMercatorLat, MaxLon: 180, MaxLat: maxMercatorLat}, true
	default:
		return Extent{}, false
	}
}

func (e Extent) Intersects(o Extent) bool {
	return e.MinLon < o.MaxLon && e.MaxLon > o.MinLon &&
		e.MinLat < o.MaxLat && e.MaxLat > o.MinLat
}

// KeyExtent returns the geographic footprint of a key. ok is false for
// projected profiles, whose coordinates are scheme-local.
func KeyExtent(k Key) (Extent, bool) {
	cols := float64(NumCols(k.Profile, k.Level))
	rows := float64(NumRows(k.Level))
	switch k.Profile {
	case ProfileGlobalGeodetic:
		w := 360.0 / cols
		h := 180.0 / rows
		return Extent{
			MinLon: -180 + float64(k.Col)*w,
			MaxLon: -180 + float64(k.Col+1)*w,
			MaxLat: 90 - float64(k.Row)*h,
			MinLat: 90 - float64(k.Row+1)*h,
		}, true
	case ProfileGlobalMercator:
		w := 360.0 / cols
		return Extent{
			MinLon: -180 + float64(k.Col)*w,
			MaxLon: -180 + float64(k.Col+1)*w,
			MaxLat: mercYToLat(float64(k.Row) / rows),
			MinLat: mercYToLat(float64(k.Row+1) / rows),
		}, true
	default:
		return Extent{}, false
	}
}

// keyRange computes the inclusive col/row index range at a level whose
// footprints intersect the extent. ok is false for projected profiles and
// for extents outside the world.
func keyRange(e Extent, p ProfileKind, level uint32) (minCol, maxCol, minRow, maxRow uint32, ok bool) {
	world, valid := World(p)
	if !valid || !e.Intersects(world) {
		return 0, 0, 0, 0, false
	}
	e = clampExtent(e, world)

	cols := NumCols(p, level)
	rows := NumRows(level)
	colW := 360.0 / float64(cols)

	minCol = clampIndex(math.Floor((e.MinLon+180)/colW), cols)
	maxCol = clampIndex(math.Ceil((e.MaxLon+180)/colW)-1, cols)

	switch p {
	case ProfileGlobalGeodetic:
		rowH := 180.0 / float64(rows)
		minRow = clampIndex(math.Floor((90-e.MaxLat)/rowH), rows)
		maxRow = clampIndex(math.Ceil((90-e.MinLat)/rowH)-1, rows)
	case ProfileGlobalMercator:
		minRow = clampIndex(math.Floor(latToMercY(e.MaxLat)*float64(rows)), rows)
		maxRow = clampIndex(math.Ceil(latToMercY(e.MinLat)*float64(rows))-1, rows)
	}
	return minCol, maxCol, minRow, maxRow, true
}

// CountForExtent reports how many keys KeysForExtent would return, without
// allocating them. Callers bounding fan-out check this first.
func CountForExtent(e Extent, p ProfileKind, level uint32) uint64 {
	minCol, maxCol, minRow, maxRow, ok := keyRange(e, p, level)
	if !ok {
		return 0
	}
	return uint64(maxCol-minCol+1) * uint64(maxRow-minRow+1)
}

// KeysForExtent enumerates the keys at a level whose footprints intersect
// the extent. Used by invalidation fan-out; the result is clamped to the
// profile grid and empty for projected profiles.
func KeysForExtent(e Extent, p ProfileKind, level uint32) []Key {
	minCol, maxCol, minRow, maxRow, ok := keyRange(e, p, level)
	if !ok {
		return nil
	}
	out := make([]Key, 0, (maxCol-minCol+1)*(maxRow-minRow+1))
	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			out = append(out, NewKey(level, col, row, p))
		}
	}
	return out
}

func clampExtent(e, world Extent) Extent {
	return Extent{
		MinLon: math.Max(e.MinLon, world.MinLon),
		MaxLon: math.Min(e.MaxLon, world.MaxLon),
		MinLat: math.Max(e.MinLat, world.MinLat),
		MaxLat: math.Min(e.MaxLat, world.MaxLat),
	}
}

func clampIndex(v float64, n uint32) uint32 {
	if v < 0 {
		return 0
	}
	if v > float64(n-1) {
		return n - 1
	}
	return uint32(v)
}

// latToMercY maps latitude to normalized mercator y in [0,1], 0 at the
// northern edge.
func latToMercY(lat float64) float64 {
	lat = math.Max(-maxMercatorLat, math.Min(maxMercatorLat, lat))
	rad := lat * math.Pi / 180
	y := math.Log(math.Tan(rad) + 1/math.Cos(rad))
	return 0.5 - y/(2*math.Pi)
}

func mercYToLat(y float64) float64 {
	n := math.Pi * (1 - 2*y)
	return 180 / math.Pi * math.Atan(math.Sinh(n))
}

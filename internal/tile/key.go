package tile

import (
	"errors"
	"fmt"
)

// Key addresses a quad-tree cell within a tiling profile. Row 0 is the
// northernmost row, matching raster row order.
type Key struct {
	Level   uint32
	Col     uint32
	Row     uint32
	Profile ProfileKind
}

func NewKey(level, col, row uint32, p ProfileKind) Key {
	return Key{Level: level, Col: col, Row: row, Profile: p}
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%d/%d", k.Level, k.Col, k.Row)
}

// Valid reports whether the column and row fit the profile grid at this level.
func (k Key) Valid() bool {
	return k.Col < NumCols(k.Profile, k.Level) && k.Row < NumRows(k.Level)
}

// Parent returns the unique ancestor one level up. The second return is
// false at level 0; that is the termination condition for ancestor walks.
func (k Key) Parent() (Key, bool) {
	if k.Level == 0 {
		return Key{}, false
	}
	return Key{
		Level:   k.Level - 1,
		Col:     k.Col / 2,
		Row:     k.Row / 2,
		Profile: k.Profile,
	}, true
}

// Child returns the quadrant child one level down. dx and dy select the
// column/row half and must be 0 or 1.
func (k Key) Child(dx, dy uint32) Key {
	return Key{
		Level:   k.Level + 1,
		Col:     k.Col*2 + dx,
		Row:     k.Row*2 + dy,
		Profile: k.Profile,
	}
}

// IsAncestorOf reports whether k is a strict ancestor of other.
func (k Key) IsAncestorOf(other Key) bool {
	if other.Level <= k.Level || other.Profile != k.Profile {
		return false
	}
	d := other.Level - k.Level
	return other.Col>>d == k.Col && other.Row>>d == k.Row
}

// Window is a sub-rectangle in normalized [0,1]x[0,1] raster coordinates,
// with y increasing toward the south to match raster row order.
type Window struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// Identity is the full-coverage window.
func Identity() Window {
	return Window{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}
}

var ErrNotAncestor = errors.New("tile: key is not an ancestor of the target")

// WindowWithin computes k's footprint inside ancestor's footprint. Both keys
// share a tiling scheme, so this is pure level/col/row arithmetic: a direct
// child occupies exactly one quadrant of its parent. ancestor == k yields the
// identity window.
func (k Key) WindowWithin(ancestor Key) (Window, error) {
	if ancestor == k {
		return Identity(), nil
	}
	if !ancestor.IsAncestorOf(k) {
		return Window{}, fmt.Errorf("%w: %s within %s", ErrNotAncestor, k, ancestor)
	}
	d := k.Level - ancestor.Level
	scale := float64(uint64(1) << d)
	relCol := float64(k.Col - ancestor.Col<<d)
	relRow := float64(k.Row - ancestor.Row<<d)
	return Window{
		MinX: relCol / scale,
		MinY: relRow / scale,
		MaxX: (relCol + 1) / scale,
		MaxY: (relRow + 1) / scale,
	}, nil
}

package raster

import (
	"image"

	"github.com/tilemesh/terrabuild/internal/tile"
)

// ExtractHeightfield crops and resamples the sub-region of an ancestor grid
// that corresponds to target, producing exactly w x h samples. ancestor ==
// target is a full-coverage extraction, not an error.
func ExtractHeightfield(src *Heightfield, ancestor, target tile.Key, w, h int, interp Interpolation) (*Heightfield, error) {
	win, err := target.WindowWithin(ancestor)
	if err != nil {
		return nil, err
	}
	return ResampleHeightfield(src, win, w, h, interp), nil
}

// ExtractImage is the imagery counterpart of ExtractHeightfield.
func ExtractImage(src *image.NRGBA, ancestor, target tile.Key, w, h int, interp Interpolation) (*image.NRGBA, error) {
	win, err := target.WindowWithin(ancestor)
	if err != nil {
		return nil, err
	}
	return ResampleImage(src, win, w, h, interp), nil
}

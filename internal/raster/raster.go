// Package raster holds the sample grids produced by data sources and the
// crop/resample machinery used when a tile is served from a coarser ancestor.
package raster

import "fmt"

// Heightfield is a row-major grid of elevation samples in meters. Row 0 is
// the northernmost row, matching tile key row order.
type Heightfield struct {
	W, H int
	Data []float32
}

func NewHeightfield(w, h int) *Heightfield {
	return &Heightfield{W: w, H: h, Data: make([]float32, w*h)}
}

func (hf *Heightfield) At(x, y int) float32 {
	return hf.Data[y*hf.W+x]
}

func (hf *Heightfield) Set(x, y int, v float32) {
	hf.Data[y*hf.W+x] = v
}

func (hf *Heightfield) String() string {
	return fmt.Sprintf("heightfield %dx%d", hf.W, hf.H)
}

// Interpolation selects the resampling kernel. Imagery supports nearest and
// bilinear; elevation additionally supports average and triangulate.
type Interpolation int

const (
	Bilinear Interpolation = iota
	Nearest
	Average
	Triangulate
)

func (i Interpolation) String() string {
	switch i {
	case Nearest:
		return "nearest"
	case Average:
		return "average"
	case Triangulate:
		return "triangulate"
	default:
		return "bilinear"
	}
}

// ParseInterpolation maps a configuration string to a kernel, defaulting to
// bilinear for anything unrecognized.
func ParseInterpolation(s string) Interpolation {
	switch s {
	case "nearest":
		return Nearest
	case "average":
		return Average
	case "triangulate", "triangulated":
		return Triangulate
	default:
		return Bilinear
	}
}

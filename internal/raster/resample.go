package raster

import (
	"image"
	"image/draw"
	"math"

	"github.com/tilemesh/terrabuild/internal/tile"
)

// ResampleHeightfield samples the window win of src into a new w x h grid.
// The window is normalized [0,1]x[0,1] over src and may cover a fractional
// number of source samples; output dimensions are always exact.
func ResampleHeightfield(src *Heightfield, win tile.Window, w, h int, interp Interpolation) *Heightfield {
	out := NewHeightfield(w, h)
	winW := win.MaxX - win.MinX
	winH := win.MaxY - win.MinY

	// Source pixels covered by one output pixel, used by the average kernel.
	spanX := winW * float64(src.W) / float64(w)
	spanY := winH * float64(src.H) / float64(h)

	for y := 0; y < h; y++ {
		v := win.MinY + (float64(y)+0.5)/float64(h)*winH
		fy := v*float64(src.H) - 0.5
		for x := 0; x < w; x++ {
			u := win.MinX + (float64(x)+0.5)/float64(w)*winW
			fx := u*float64(src.W) - 0.5

			var s float32
			switch interp {
			case Nearest:
				s = src.sampleNearest(fx, fy)
			case Average:
				s = src.sampleAverage(fx, fy, spanX, spanY)
			case Triangulate:
				s = src.sampleTriangulated(fx, fy)
			default:
				s = src.sampleBilinear(fx, fy)
			}
			out.Set(x, y, s)
		}
	}
	return out
}

func (hf *Heightfield) clampX(x int) int {
	if x < 0 {
		return 0
	}
	if x >= hf.W {
		return hf.W - 1
	}
	return x
}

func (hf *Heightfield) clampY(y int) int {
	if y < 0 {
		return 0
	}
	if y >= hf.H {
		return hf.H - 1
	}
	return y
}

func (hf *Heightfield) sampleNearest(fx, fy float64) float32 {
	return hf.At(hf.clampX(int(math.Round(fx))), hf.clampY(int(math.Round(fy))))
}

func (hf *Heightfield) sampleBilinear(fx, fy float64) float32 {
	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	dx := fx - float64(x0)
	dy := fy - float64(y0)

	x1 := hf.clampX(x0 + 1)
	y1 := hf.clampY(y0 + 1)
	x0 = hf.clampX(x0)
	y0 = hf.clampY(y0)

	top := float64(hf.At(x0, y0))*(1-dx) + float64(hf.At(x1, y0))*dx
	bot := float64(hf.At(x0, y1))*(1-dx) + float64(hf.At(x1, y1))*dx
	return float32(top*(1-dy) + bot*dy)
}

// sampleTriangulated splits the sample cell along its diagonal and
// interpolates within the triangle containing the point, matching how
// terrain meshes triangulate quads.
func (hf *Heightfield) sampleTriangulated(fx, fy float64) float32 {
	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	dx := fx - float64(x0)
	dy := fy - float64(y0)

	x1 := hf.clampX(x0 + 1)
	y1 := hf.clampY(y0 + 1)
	x0 = hf.clampX(x0)
	y0 = hf.clampY(y0)

	h00 := float64(hf.At(x0, y0))
	h10 := float64(hf.At(x1, y0))
	h01 := float64(hf.At(x0, y1))
	h11 := float64(hf.At(x1, y1))

	if dx > dy {
		return float32(h00 + dx*(h10-h00) + dy*(h11-h10))
	}
	return float32(h00 + dy*(h01-h00) + dx*(h11-h01))
}

// sampleAverage box-filters the source samples covered by one output pixel.
// When the footprint is smaller than a source sample it degenerates to
// bilinear.
func (hf *Heightfield) sampleAverage(fx, fy, spanX, spanY float64) float32 {
	if spanX <= 1 && spanY <= 1 {
		return hf.sampleBilinear(fx, fy)
	}
	x0 := hf.clampX(int(math.Ceil(fx - spanX/2)))
	x1 := hf.clampX(int(math.Floor(fx + spanX/2)))
	y0 := hf.clampY(int(math.Ceil(fy - spanY/2)))
	y1 := hf.clampY(int(math.Floor(fy + spanY/2)))

	var sum float64
	var n int
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			sum += float64(hf.At(x, y))
			n++
		}
	}
	if n == 0 {
		return hf.sampleBilinear(fx, fy)
	}
	return float32(sum / float64(n))
}

// ResampleImage samples the window win of src into a new w x h image using
// nearest or bilinear filtering (anything else falls back to bilinear).
func ResampleImage(src *image.NRGBA, win tile.Window, w, h int, interp Interpolation) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	b := src.Bounds()
	srcW := b.Dx()
	srcH := b.Dy()
	winW := win.MaxX - win.MinX
	winH := win.MaxY - win.MinY

	for y := 0; y < h; y++ {
		v := win.MinY + (float64(y)+0.5)/float64(h)*winH
		fy := v*float64(srcH) - 0.5
		for x := 0; x < w; x++ {
			u := win.MinX + (float64(x)+0.5)/float64(w)*winW
			fx := u*float64(srcW) - 0.5

			o := out.PixOffset(x, y)
			if interp == Nearest {
				sx := clampInt(int(math.Round(fx)), srcW-1)
				sy := clampInt(int(math.Round(fy)), srcH-1)
				s := src.PixOffset(b.Min.X+sx, b.Min.Y+sy)
				copy(out.Pix[o:o+4], src.Pix[s:s+4])
				continue
			}
			bilinearPixel(src, b, fx, fy, out.Pix[o:o+4])
		}
	}
	return out
}

func bilinearPixel(src *image.NRGBA, b image.Rectangle, fx, fy float64, dst []uint8) {
	srcW := b.Dx()
	srcH := b.Dy()
	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	dx := fx - float64(x0)
	dy := fy - float64(y0)

	x1 := clampInt(x0+1, srcW-1)
	y1 := clampInt(y0+1, srcH-1)
	x0 = clampInt(x0, srcW-1)
	y0 = clampInt(y0, srcH-1)

	p00 := src.PixOffset(b.Min.X+x0, b.Min.Y+y0)
	p10 := src.PixOffset(b.Min.X+x1, b.Min.Y+y0)
	p01 := src.PixOffset(b.Min.X+x0, b.Min.Y+y1)
	p11 := src.PixOffset(b.Min.X+x1, b.Min.Y+y1)

	for c := 0; c < 4; c++ {
		top := float64(src.Pix[p00+c])*(1-dx) + float64(src.Pix[p10+c])*dx
		bot := float64(src.Pix[p01+c])*(1-dx) + float64(src.Pix[p11+c])*dx
		dst[c] = uint8(math.Round(top*(1-dy) + bot*dy))
	}
}

func clampInt(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

// ToNRGBA normalizes any decoded image to NRGBA with a zero origin.
func ToNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Bounds().Min == image.Pt(0, 0) {
		return n
	}
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

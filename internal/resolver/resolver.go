// Package resolver walks the tile quad-tree upward until a source yields
// data, then extracts the requested tile's region from the ancestor raster.
package resolver

import (
	"context"
	"image"
	"time"

	"github.com/rs/zerolog"

	"github.com/tilemesh/terrabuild/internal/core/observability"
	"github.com/tilemesh/terrabuild/internal/layer"
	"github.com/tilemesh/terrabuild/internal/logger"
	"github.com/tilemesh/terrabuild/internal/raster"
	"github.com/tilemesh/terrabuild/internal/source"
	"github.com/tilemesh/terrabuild/internal/tile"
)

// ImageResult is a resolved imagery tile. Key is the tile that actually
// produced the pixels; it equals the requested key on a direct hit and an
// ancestor after fallback.
type ImageResult struct {
	Image *image.NRGBA
	Key   tile.Key
}

// HeightfieldResult is a resolved elevation tile. Unlike imagery, the grid
// keeps the dimensions of the heightfield found at Key; terrain meshing
// downstream re-grids anyway, so upsampling here would only invent samples.
type HeightfieldResult struct {
	Heightfield *raster.Heightfield
	Key         tile.Key
}

type Resolver struct {
	Log *zerolog.Logger
}

// Image resolves imagery for key from the layer's image source, falling back
// through ancestors until data is found. The output is always w x h pixels.
// Source errors are treated as absence: the tile is blacklisted and the walk
// continues upward.
func (r *Resolver) Image(ctx context.Context, l *layer.Layer, key tile.Key, w, h int, interp raster.Interpolation) (ImageResult, bool, error) {
	start := time.Now()
	src := l.Image
	if src == nil {
		return ImageResult{}, false, nil
	}
	ctx = logger.WithLayer(ctx, l.Name)
	ctx = logger.WithTile(ctx, key.String())

	candidate := key
	depth := 0
	for {
		if err := ctx.Err(); err != nil {
			return ImageResult{}, false, err
		}
		if !l.IsBlacklisted(source.KindImage, candidate) {
			img, ok, err := src.Image(ctx, candidate)
			if err != nil {
				logger.FromContext(ctx, r.Log).Warn().
					Err(err).
					Stringer("source_tile", candidate).
					Msg("image source failed, treating as absent")
				l.MarkBlacklisted(source.KindImage, candidate)
			} else if ok {
				out, err := raster.ExtractImage(img, candidate, key, w, h, interp)
				if err != nil {
					return ImageResult{}, false, err
				}
				observability.ObserveResolve("image", outcome(depth), time.Since(start).Seconds())
				observability.ObserveWalkDepth("image", depth)
				return ImageResult{Image: out, Key: candidate}, true, nil
			}
		}
		parent, ok := candidate.Parent()
		if !ok {
			observability.ObserveResolve("image", "absent", time.Since(start).Seconds())
			observability.ObserveWalkDepth("image", depth)
			return ImageResult{}, false, nil
		}
		candidate = parent
		depth++
	}
}

// Heightfield resolves elevation for key with the same walk as Image. The
// returned grid preserves the found heightfield's dimensions.
func (r *Resolver) Heightfield(ctx context.Context, l *layer.Layer, key tile.Key, interp raster.Interpolation) (HeightfieldResult, bool, error) {
	start := time.Now()
	src := l.Elevation
	if src == nil {
		return HeightfieldResult{}, false, nil
	}
	ctx = logger.WithLayer(ctx, l.Name)
	ctx = logger.WithTile(ctx, key.String())

	candidate := key
	depth := 0
	for {
		if err := ctx.Err(); err != nil {
			return HeightfieldResult{}, false, err
		}
		if !l.IsBlacklisted(source.KindElevation, candidate) {
			hf, ok, err := src.Heightfield(ctx, candidate)
			if err != nil {
				logger.FromContext(ctx, r.Log).Warn().
					Err(err).
					Stringer("source_tile", candidate).
					Msg("elevation source failed, treating as absent")
				l.MarkBlacklisted(source.KindElevation, candidate)
			} else if ok {
				out, err := raster.ExtractHeightfield(hf, candidate, key, hf.W, hf.H, interp)
				if err != nil {
					return HeightfieldResult{}, false, err
				}
				observability.ObserveResolve("elevation", outcome(depth), time.Since(start).Seconds())
				observability.ObserveWalkDepth("elevation", depth)
				return HeightfieldResult{Heightfield: out, Key: candidate}, true, nil
			}
		}
		parent, ok := candidate.Parent()
		if !ok {
			observability.ObserveResolve("elevation", "absent", time.Since(start).Seconds())
			observability.ObserveWalkDepth("elevation", depth)
			return HeightfieldResult{}, false, nil
		}
		candidate = parent
		depth++
	}
}

func outcome(depth int) string {
	if depth == 0 {
		return "direct"
	}
	return "fallback"
}

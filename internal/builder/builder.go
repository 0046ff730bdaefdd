package builder

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tilemesh/terrabuild/internal/layer"
	"github.com/tilemesh/terrabuild/internal/raster"
	"github.com/tilemesh/terrabuild/internal/resolver"
	"github.com/tilemesh/terrabuild/internal/source"
	"github.com/tilemesh/terrabuild/internal/tile"
)

// Config carries everything a builder needs at construction. Layers keep
// their configured order; earlier layers win when several can serve a tile.
type Config struct {
	Name string

	Layers []*layer.Layer

	// ProfileOverride, when not ProfileUnknown, forces the tiling scheme
	// regardless of what the layer sources advertise.
	ProfileOverride tile.ProfileKind

	// Geocentric marks a round-globe consumer; projected profiles cannot
	// serve one.
	Geocentric bool

	// TileSize is the output edge length for imagery tiles.
	TileSize int

	// ElevationInterp is the resample kernel for heightfield extraction.
	ElevationInterp raster.Interpolation

	Log *zerolog.Logger
}

const defaultTileSize = 256

// Builder resolves tile data over one reconciled layer set. Safe for
// concurrent use once constructed; reconciliation runs exactly once, before
// the first resolve or validation, never concurrently with them.
type Builder struct {
	cfg Config
	res resolver.Resolver

	once sync.Once
	rec  Reconciliation
}

func New(cfg Config) *Builder {
	if cfg.TileSize <= 0 {
		cfg.TileSize = defaultTileSize
	}
	return &Builder{cfg: cfg, res: resolver.Resolver{Log: cfg.Log}}
}

func (b *Builder) Name() string { return b.cfg.Name }

// Reconciled returns the memoized profile reconciliation for the builder's
// layer set, computing it on first use.
func (b *Builder) Reconciled() Reconciliation {
	b.once.Do(func() {
		b.rec = Reconcile(b.cfg.Layers, b.cfg.ProfileOverride)
		if b.cfg.Log != nil {
			for _, d := range b.rec.Dropped {
				b.cfg.Log.Warn().
					Str("builder", b.cfg.Name).
					Str("layer", d.Layer).
					Stringer("profile", d.Profile).
					Msg("layer dropped during profile reconciliation")
			}
		}
	})
	return b.rec
}

var (
	ErrUnknownProfile = errors.New("reconciled profile is unknown")
	ErrProjectedGlobe = errors.New("projected profile cannot serve a geocentric consumer")
	ErrNoUsableLayers = errors.New("no usable layers after reconciliation")
)

// Valid reports whether the builder may serve tiles. An invalid builder
// refuses every tile with the same construction-time error instead of
// failing per request.
func (b *Builder) Valid() error {
	rec := b.Reconciled()
	if rec.Profile == tile.ProfileUnknown {
		return fmt.Errorf("builder %q: %w", b.cfg.Name, ErrUnknownProfile)
	}
	if rec.Profile == tile.ProfileProjected && b.cfg.Geocentric {
		return fmt.Errorf("builder %q: %w", b.cfg.Name, ErrProjectedGlobe)
	}
	if len(rec.Retained) == 0 {
		return fmt.Errorf("builder %q: %w", b.cfg.Name, ErrNoUsableLayers)
	}
	for _, l := range rec.Retained {
		if err := l.Validate(); err != nil {
			return fmt.Errorf("builder %q: %w", b.cfg.Name, err)
		}
	}
	return nil
}

// Profile returns the reconciled tiling profile.
func (b *Builder) Profile() tile.ProfileKind {
	return b.Reconciled().Profile
}

// ResolvedImage is an imagery tile with the layer and tile that produced it.
type ResolvedImage struct {
	Image *image.NRGBA
	Key   tile.Key
	Layer string
}

// ResolvedHeightfield is the elevation counterpart of ResolvedImage.
type ResolvedHeightfield struct {
	Heightfield *raster.Heightfield
	Key         tile.Key
	Layer       string
}

// ResolveImage produces imagery for key from the first retained layer that
// has data, consulting each layer's cache before its source. Absence across
// all layers is reported with ok=false, not an error.
func (b *Builder) ResolveImage(ctx context.Context, key tile.Key) (ResolvedImage, bool, error) {
	if err := b.Valid(); err != nil {
		return ResolvedImage{}, false, err
	}
	size := b.cfg.TileSize
	for _, l := range b.Reconciled().Retained {
		if !l.Enabled || !l.MayHaveData(key) {
			continue
		}
		if payload, ok, err := l.CacheGet(ctx, source.KindImage, key); err == nil && ok {
			img, derr := raster.DecodePNG(payload)
			if derr == nil {
				return ResolvedImage{Image: img, Key: key, Layer: l.Name}, true, nil
			}
			// A corrupt entry falls through to a live resolve.
		} else if err != nil {
			b.warn(err, l.Name, key, "cache read failed, resolving live")
		}
		if l.Policy == layer.PolicyCacheOnly || l.Image == nil {
			continue
		}
		res, ok, err := b.res.Image(ctx, l, key, size, size, raster.Bilinear)
		if err != nil {
			return ResolvedImage{}, false, err
		}
		if !ok {
			continue
		}
		if payload, eerr := raster.EncodePNG(res.Image); eerr == nil {
			if cerr := l.CachePut(ctx, source.KindImage, key, payload); cerr != nil {
				b.warn(cerr, l.Name, key, "cache write failed")
			}
		}
		return ResolvedImage{Image: res.Image, Key: res.Key, Layer: l.Name}, true, nil
	}
	return ResolvedImage{}, false, nil
}

// ResolveHeightfield produces elevation for key with the same layer walk as
// ResolveImage. The grid keeps the dimensions of the data actually found.
func (b *Builder) ResolveHeightfield(ctx context.Context, key tile.Key) (ResolvedHeightfield, bool, error) {
	if err := b.Valid(); err != nil {
		return ResolvedHeightfield{}, false, err
	}
	for _, l := range b.Reconciled().Retained {
		if !l.Enabled || !l.MayHaveData(key) {
			continue
		}
		if payload, ok, err := l.CacheGet(ctx, source.KindElevation, key); err == nil && ok {
			hf, derr := raster.DecodeHeightfield(payload)
			if derr == nil {
				return ResolvedHeightfield{Heightfield: hf, Key: key, Layer: l.Name}, true, nil
			}
		} else if err != nil {
			b.warn(err, l.Name, key, "cache read failed, resolving live")
		}
		if l.Policy == layer.PolicyCacheOnly || l.Elevation == nil {
			continue
		}
		res, ok, err := b.res.Heightfield(ctx, l, key, b.cfg.ElevationInterp)
		if err != nil {
			return ResolvedHeightfield{}, false, err
		}
		if !ok {
			continue
		}
		if cerr := l.CachePut(ctx, source.KindElevation, key, raster.EncodeHeightfield(res.Heightfield)); cerr != nil {
			b.warn(cerr, l.Name, key, "cache write failed")
		}
		return ResolvedHeightfield{Heightfield: res.Heightfield, Key: res.Key, Layer: l.Name}, true, nil
	}
	return ResolvedHeightfield{}, false, nil
}

func (b *Builder) warn(err error, layerName string, key tile.Key, msg string) {
	if b.cfg.Log == nil {
		return
	}
	b.cfg.Log.Warn().
		Err(err).
		Str("builder", b.cfg.Name).
		Str("layer", layerName).
		Stringer("tile", key).
		Msg(msg)
}

// Package cached wraps data sources with an in-memory raster cache. Decoded
// rasters are expensive to refetch during ancestor walks, so positive results
// are memoized and concurrent requests for the same tile are collapsed into a
// single upstream call.
package cached

import (
	"context"
	"image"
	"time"

	"github.com/karlseguin/ccache/v3"
	"golang.org/x/sync/singleflight"

	"github.com/tilemesh/terrabuild/internal/raster"
	"github.com/tilemesh/terrabuild/internal/source"
	"github.com/tilemesh/terrabuild/internal/tile"
)

const defaultTTL = 10 * time.Minute

type result[T any] struct {
	val T
	ok  bool
}

type memo[T any] struct {
	cache    *ccache.Cache[result[T]]
	inflight singleflight.Group
	ttl      time.Duration
}

func newMemo[T any](maxSize int64, ttl time.Duration) *memo[T] {
	if maxSize <= 0 {
		maxSize = 256
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &memo[T]{
		cache: ccache.New(ccache.Configure[result[T]]().MaxSize(maxSize)),
		ttl:   ttl,
	}
}

// get returns the cached value for key, or runs fn once across concurrent
// callers. Absence and errors are never cached; a source may gain data later
// and failures should retry.
func (m *memo[T]) get(key string, fn func() (T, bool, error)) (T, bool, error) {
	if item := m.cache.Get(key); item != nil && !item.Expired() {
		r := item.Value()
		return r.val, r.ok, nil
	}

	v, err, _ := m.inflight.Do(key, func() (any, error) {
		val, ok, err := fn()
		if err != nil {
			return nil, err
		}
		if ok {
			m.cache.Set(key, result[T]{val: val, ok: true}, m.ttl)
		}
		return result[T]{val: val, ok: ok}, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	r := v.(result[T])
	return r.val, r.ok, nil
}

type Image struct {
	src  source.ImageSource
	memo *memo[*image.NRGBA]
}

// WrapImage memoizes an imagery source. maxSize is the cache entry budget.
func WrapImage(src source.ImageSource, maxSize int64, ttl time.Duration) *Image {
	return &Image{src: src, memo: newMemo[*image.NRGBA](maxSize, ttl)}
}

func (c *Image) Name() string              { return c.src.Name() }
func (c *Image) Profile() tile.ProfileKind { return c.src.Profile() }

func (c *Image) Image(ctx context.Context, key tile.Key) (*image.NRGBA, bool, error) {
	return c.memo.get(key.String(), func() (*image.NRGBA, bool, error) {
		return c.src.Image(ctx, key)
	})
}

type Elevation struct {
	src  source.ElevationSource
	memo *memo[*raster.Heightfield]
}

// WrapElevation memoizes an elevation source.
func WrapElevation(src source.ElevationSource, maxSize int64, ttl time.Duration) *Elevation {
	return &Elevation{src: src, memo: newMemo[*raster.Heightfield](maxSize, ttl)}
}

func (c *Elevation) Name() string              { return c.src.Name() }
func (c *Elevation) Profile() tile.ProfileKind { return c.src.Profile() }

func (c *Elevation) Heightfield(ctx context.Context, key tile.Key) (*raster.Heightfield, bool, error) {
	return c.memo.get(key.String(), func() (*raster.Heightfield, bool, error) {
		return c.src.Heightfield(ctx, key)
	})
}

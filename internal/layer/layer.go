// Package layer models one configured map layer: its sources, cache
// policy, coverage bounds and blacklist. Builders never talk to sources
// or caches directly, they go through the layer.
package layer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tilemesh/terrabuild/internal/blacklist"
	"github.com/tilemesh/terrabuild/internal/cache"
	"github.com/tilemesh/terrabuild/internal/cache/keys"
	"github.com/tilemesh/terrabuild/internal/source"
	"github.com/tilemesh/terrabuild/internal/tile"
)

// CachePolicy controls how a layer participates in the tile cache.
type CachePolicy int

const (
	// PolicyNormal reads through the cache and writes resolved tiles back.
	PolicyNormal CachePolicy = iota
	// PolicyCacheOnly serves exclusively from the cache; the live source,
	// if any, is never consulted.
	PolicyCacheOnly
	// PolicyCacheDisabled bypasses the cache entirely.
	PolicyCacheDisabled
)

func (p CachePolicy) String() string {
	switch p {
	case PolicyNormal:
		return "normal"
	case PolicyCacheOnly:
		return "cache-only"
	case PolicyCacheDisabled:
		return "cache-disabled"
	default:
		return fmt.Sprintf("cache-policy(%d)", int(p))
	}
}

func ParseCachePolicy(s string) (CachePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "normal":
		return PolicyNormal, nil
	case "cache-only", "cache_only":
		return PolicyCacheOnly, nil
	case "cache-disabled", "cache_disabled", "none":
		return PolicyCacheDisabled, nil
	default:
		return PolicyNormal, fmt.Errorf("unknown cache policy %q", s)
	}
}

// UnboundedLevel marks an open upper bound for MaxLevel.
const UnboundedLevel = -1

type Layer struct {
	Name    string
	Enabled bool
	Policy  CachePolicy

	// MinLevel and MaxLevel bound the levels at which the layer can have
	// data. MaxLevel == UnboundedLevel means no upper bound.
	MinLevel int
	MaxLevel int

	// Extent bounds the layer's coverage; nil means global.
	Extent *tile.Extent

	Cache cache.Interface
	TTL   time.Duration

	Blacklist *blacklist.List

	Image     source.ImageSource
	Elevation source.ElevationSource
}

func (l *Layer) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return errors.New("layer name is required")
	}
	if l.MinLevel < 0 {
		return fmt.Errorf("layer %q: min level %d is negative", l.Name, l.MinLevel)
	}
	if l.MaxLevel != UnboundedLevel && l.MaxLevel < l.MinLevel {
		return fmt.Errorf("layer %q: max level %d below min level %d", l.Name, l.MaxLevel, l.MinLevel)
	}
	if l.Policy != PolicyCacheDisabled && l.Cache == nil {
		return fmt.Errorf("layer %q: policy %s requires a cache", l.Name, l.Policy)
	}
	if l.Image == nil && l.Elevation == nil && l.Policy != PolicyCacheOnly {
		return fmt.Errorf("layer %q: no source and not cache-only", l.Name)
	}
	return nil
}

// Kinds reports which data kinds the layer can serve, from either a live
// source or a cache-only policy that may hold both.
func (l *Layer) Kinds() []source.Kind {
	var kinds []source.Kind
	if l.Image != nil || l.Policy == PolicyCacheOnly {
		kinds = append(kinds, source.KindImage)
	}
	if l.Elevation != nil || l.Policy == PolicyCacheOnly {
		kinds = append(kinds, source.KindElevation)
	}
	return kinds
}

// Profile reports the native profile of the layer's sources, preferring
// imagery when both are present. ProfileUnknown means no live source.
func (l *Layer) Profile() tile.ProfileKind {
	if l.Image != nil {
		return l.Image.Profile()
	}
	if l.Elevation != nil {
		return l.Elevation.Profile()
	}
	return tile.ProfileUnknown
}

// MayHaveData reports whether the layer can possibly contribute data at
// the given tile, from level bounds and coverage extent alone. It never
// touches a source or the cache.
func (l *Layer) MayHaveData(k tile.Key) bool {
	if int(k.Level) < l.MinLevel {
		return false
	}
	if l.MaxLevel != UnboundedLevel && int(k.Level) > l.MaxLevel {
		return false
	}
	if l.Extent != nil {
		if ext, ok := tile.KeyExtent(k); ok && !l.Extent.Intersects(ext) {
			return false
		}
	}
	return true
}

// IsBlacklisted reports whether the tile was previously recorded as a
// confirmed miss for the layer.
func (l *Layer) IsBlacklisted(kind source.Kind, k tile.Key) bool {
	if l.Blacklist == nil {
		return false
	}
	return l.Blacklist.Contains(keys.Key(l.Name, kind, k))
}

// MarkBlacklisted records a confirmed miss so later walks skip the tile.
func (l *Layer) MarkBlacklisted(kind source.Kind, k tile.Key) {
	if l.Blacklist == nil {
		return
	}
	l.Blacklist.Add(keys.Key(l.Name, kind, k))
}

// IsCached probes the cache for the tile without fetching the payload.
func (l *Layer) IsCached(ctx context.Context, kind source.Kind, k tile.Key) (bool, error) {
	if l.Cache == nil || l.Policy == PolicyCacheDisabled {
		return false, nil
	}
	return l.Cache.Has(ctx, keys.Key(l.Name, kind, k))
}

// CacheGet fetches the cached payload for the tile, if present.
func (l *Layer) CacheGet(ctx context.Context, kind source.Kind, k tile.Key) ([]byte, bool, error) {
	if l.Cache == nil || l.Policy == PolicyCacheDisabled {
		return nil, false, nil
	}
	return l.Cache.Get(ctx, keys.Key(l.Name, kind, k))
}

// CachePut stores a resolved payload under the layer's TTL. Cache-disabled
// layers drop the write silently.
func (l *Layer) CachePut(ctx context.Context, kind source.Kind, k tile.Key, payload []byte) error {
	if l.Cache == nil || l.Policy == PolicyCacheDisabled {
		return nil
	}
	return l.Cache.Set(ctx, keys.Key(l.Name, kind, k), payload, l.TTL)
}

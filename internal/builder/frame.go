package builder

import (
	"context"

	"github.com/tilemesh/terrabuild/internal/core/observability"
	"github.com/tilemesh/terrabuild/internal/layer"
	"github.com/tilemesh/terrabuild/internal/tile"
)

// FullyCached reports whether every layer that would need a live fetch for
// key can instead be satisfied from cache. Callers use it as a fast-path
// probe before committing to a full resolve, so the rules run strictly
// cheapest-first and the single cache probe per layer kind comes last:
//
//  1. disabled layer: skip
//  2. cache-only policy: skip, it never fetches live
//  3. cache-disabled policy: the whole tile is unreachable, stop
//  4. layer cannot have data at this key (level/extent): skip
//  5. no live source behind the layer: skip (a normal-policy layer's served
//     kinds are exactly the kinds with a source, so Kinds drives the probes)
//  6. tile blacklisted for the layer: skip, it fails fast instead of fetching
//  7. probe the cache; absent means unreachable, stop
//
// Cache probe errors count as unreachable: when the cache is unhealthy
// nothing is instant.
func FullyCached(ctx context.Context, layers []*layer.Layer, key tile.Key) bool {
	probed := false
	for _, l := range layers {
		if !l.Enabled {
			continue
		}
		if l.Policy == layer.PolicyCacheOnly {
			continue
		}
		if l.Policy == layer.PolicyCacheDisabled {
			observability.IncReachability("unreachable")
			return false
		}
		if !l.MayHaveData(key) {
			continue
		}
		for _, kind := range l.Kinds() {
			if l.IsBlacklisted(kind, key) {
				continue
			}
			probed = true
			ok, err := l.IsCached(ctx, kind, key)
			if err != nil || !ok {
				observability.IncReachability("unreachable")
				return false
			}
		}
	}
	if probed {
		observability.IncReachability("reachable")
	} else {
		observability.IncReachability("vacuous")
	}
	return true
}

// FullyCached on the builder evaluates the retained layer set.
func (b *Builder) FullyCached(ctx context.Context, key tile.Key) bool {
	return FullyCached(ctx, b.Reconciled().Retained, key)
}

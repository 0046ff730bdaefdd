// Package cache defines the tile cache consumed by layers. Has is the cheap
// presence probe used by the cache-reachability fast path; Get/Set move the
// actual tile payloads.
package cache

import (
	"context"
	"time"
)

type Interface interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Has(ctx context.Context, key string) (bool, error)
	Del(ctx context.Context, keys ...string) error
}

// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/tilemesh/terrabuild/internal/raster"
	"github.com/tilemesh/terrabuild/internal/tile"
)

type InvalidationCfg struct {
	Enabled bool   `env:"INVALIDATION_ENABLED" envDefault:"false"`
	Brokers string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	Topic   string `env:"KAFKA_TOPIC" envDefault:"terrain-invalidation"`
	GroupID string `env:"KAFKA_GROUP_ID" envDefault:"tile-invalidator"`
}

type Config struct {
	Addr       string `env:"ADDR" envDefault:":8090"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	LogConsole bool   `env:"LOG_CONSOLE" envDefault:"false"`

	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"true"`

	// RedisAddr empty selects the in-process cache instead of redis.
	RedisAddr       string                   `env:"REDIS_ADDR" envDefault:""`
	CacheTTLDefault time.Duration            `env:"CACHE_TTL_DEFAULT" envDefault:"10m"`
	CacheTTLOvr     map[string]time.Duration `env:"CACHE_TTL_OVERRIDES" envSeparator:"," envKeyValSeparator:"="`
	MemCacheSize    int                      `env:"MEM_CACHE_SIZE" envDefault:"4096"`

	// MapProfile forces the tiling scheme: "" (reconcile from sources),
	// "global-geodetic" or "global-mercator".
	MapProfile      string `env:"MAP_PROFILE" envDefault:""`
	Geocentric      bool   `env:"GEOCENTRIC" envDefault:"true"`
	TileSize        int    `env:"TILE_SIZE" envDefault:"256"`
	ElevationInterp string `env:"ELEVATION_INTERP" envDefault:"bilinear"`
	MaxTileLevel    int    `env:"MAX_TILE_LEVEL" envDefault:"22"`

	// ImageryURL is an XYZ template ({z}/{x}/{y}); empty disables the
	// imagery layer.
	ImageryURL      string `env:"IMAGERY_URL" envDefault:""`
	ImageryMaxLevel int    `env:"IMAGERY_MAX_LEVEL" envDefault:"19"`

	ElevationMaxLevel int `env:"ELEVATION_MAX_LEVEL" envDefault:"12"`
	ElevationGridSize int `env:"ELEVATION_GRID_SIZE" envDefault:"33"`

	BlacklistSize  int           `env:"BLACKLIST_SIZE" envDefault:"4096"`
	SourceCacheTTL time.Duration `env:"SOURCE_CACHE_TTL" envDefault:"10m"`

	Invalidation InvalidationCfg
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if _, err := c.ProfileOverride(); err != nil {
		return err
	}
	if c.TileSize < 16 || c.TileSize > 2048 {
		return fmt.Errorf("TILE_SIZE %d out of range [16,2048]", c.TileSize)
	}
	if c.ElevationGridSize < 2 {
		return fmt.Errorf("ELEVATION_GRID_SIZE %d must be at least 2", c.ElevationGridSize)
	}
	if c.MaxTileLevel < 0 || c.MaxTileLevel > 30 {
		return fmt.Errorf("MAX_TILE_LEVEL %d out of range [0,30]", c.MaxTileLevel)
	}
	return nil
}

// ProfileOverride maps MapProfile to a profile kind; empty means no override.
func (c Config) ProfileOverride() (tile.ProfileKind, error) {
	if c.MapProfile == "" {
		return tile.ProfileUnknown, nil
	}
	p := tile.ParseProfileKind(c.MapProfile)
	if p == tile.ProfileUnknown {
		return tile.ProfileUnknown, fmt.Errorf("MAP_PROFILE: unrecognized profile %q", c.MapProfile)
	}
	return p, nil
}

// Interpolation returns the elevation resample kernel; unrecognized values
// fall back to bilinear.
func (c Config) Interpolation() raster.Interpolation {
	return raster.ParseInterpolation(c.ElevationInterp)
}

// TTLFor returns the cache TTL for a layer, honoring per-layer overrides.
func (c Config) TTLFor(layer string) time.Duration {
	if d, ok := c.CacheTTLOvr[layer]; ok {
		return d
	}
	return c.CacheTTLDefault
}

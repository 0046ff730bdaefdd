package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/tilemesh/terrabuild/internal/blacklist"
	"github.com/tilemesh/terrabuild/internal/builder"
	"github.com/tilemesh/terrabuild/internal/cache"
	"github.com/tilemesh/terrabuild/internal/cache/memstore"
	"github.com/tilemesh/terrabuild/internal/cache/redisstore"
	"github.com/tilemesh/terrabuild/internal/core/config"
	"github.com/tilemesh/terrabuild/internal/core/httpclient"
	"github.com/tilemesh/terrabuild/internal/core/observability"
	"github.com/tilemesh/terrabuild/internal/core/router"
	"github.com/tilemesh/terrabuild/internal/core/server"
	"github.com/tilemesh/terrabuild/internal/invalidation/kafkaconsumer"
	"github.com/tilemesh/terrabuild/internal/layer"
	"github.com/tilemesh/terrabuild/internal/logger"
	"github.com/tilemesh/terrabuild/internal/metrics"
	"github.com/tilemesh/terrabuild/internal/source/cached"
	"github.com/tilemesh/terrabuild/internal/source/synth"
	"github.com/tilemesh/terrabuild/internal/source/xyz"
	"github.com/tilemesh/terrabuild/internal/tile"
)

var Version = "dev"

const defaultMap = "default"

func main() {
	os.Exit(run())
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// buildVersion prefers the version stamped by CI over the linker default.
func buildVersion() string {
	if v := os.Getenv("BUILD_VERSION"); v != "" {
		return v
	}
	return Version
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		zl := logger.Build(logger.Config{Level: "info", Component: "terrabuild"}, os.Stdout)
		zl.Error().Err(err).Msg("bad configuration")
		return 1
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   envInt("LOG_SAMPLE_N", 0),
		Component: "terrabuild",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	p := metrics.NewProvider(metrics.BuildInfo{
		Version:  buildVersion(),
		Revision: os.Getenv("BUILD_REVISION"),
		Built:    os.Getenv("BUILD_DATE"),
	})
	observability.Init(p.Registerer(), cfg.MetricsEnabled)

	appLog.Info("starting terrabuild",
		"addr", cfg.Addr,
		"version", Version,
		"redis", cfg.RedisAddr,
		"invalidation", cfg.Invalidation.Enabled)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store cache.Interface
	var prefixDel kafkaconsumer.PrefixDeleter
	if cfg.RedisAddr != "" {
		rc, err := redisstore.New(ctx, cfg.RedisAddr)
		if err != nil {
			appLog.Error("redis connect failed", "addr", cfg.RedisAddr, "err", err)
			return 1
		}
		defer func() { _ = rc.Close() }()
		store = rc
		prefixDel = rc
	} else {
		appLog.Warn("REDIS_ADDR empty, tiles cached in process memory only")
		store = memstore.New(cfg.MemCacheSize)
	}

	layers := buildLayers(cfg, store)

	override, _ := cfg.ProfileOverride()
	b := builder.New(builder.Config{
		Name:            defaultMap,
		Layers:          layers,
		ProfileOverride: override,
		Geocentric:      cfg.Geocentric,
		TileSize:        cfg.TileSize,
		ElevationInterp: cfg.Interpolation(),
		Log:             &zl,
	})
	if err := b.Valid(); err != nil {
		appLog.Error("map configuration unusable", "err", err)
		return 1
	}
	reg := builder.NewRegistry()
	if err := reg.Register(b); err != nil {
		appLog.Error("register map", "err", err)
		return 1
	}

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Invalidation.Enabled {
		if prefixDel == nil {
			appLog.Error("invalidation needs redis; purge events require prefix deletes")
			return 1
		}
		kcfg := kafkaconsumer.FromEnv()
		kcfg.Brokers = splitBrokers(cfg.Invalidation.Brokers)
		kcfg.Topic = cfg.Invalidation.Topic
		kcfg.GroupID = cfg.Invalidation.GroupID
		cons := kafkaconsumer.New(kcfg, appLog, store, b.Profile(), layers)
		g.Go(func() error { return cons.Start(ctx) })
	}

	g.Go(func() error {
		opts := router.Options{Registry: reg, DefaultMap: defaultMap, MaxLevel: cfg.MaxTileLevel}
		return server.Run(ctx, cfg, appLog, p, opts, reg)
	})

	if err := g.Wait(); err != nil {
		appLog.Error("service exited with error", "err", err)
		return 1
	}
	appLog.Info("service stopped")
	return 0
}

// buildLayers assembles the configured layer stack: procedural elevation
// always, imagery only when an XYZ endpoint is configured.
func buildLayers(cfg config.Config, store cache.Interface) []*layer.Layer {
	var layers []*layer.Layer

	if cfg.ImageryURL != "" {
		name := "imagery"
		src := xyz.New(name, cfg.ImageryURL, uint32(cfg.ImageryMaxLevel), httpclient.New())
		layers = append(layers, &layer.Layer{
			Name:      name,
			Enabled:   true,
			Policy:    layer.PolicyNormal,
			MaxLevel:  layer.UnboundedLevel,
			Cache:     store,
			TTL:       cfg.TTLFor(name),
			Blacklist: blacklist.New(cfg.BlacklistSize),
			Image:     cached.WrapImage(src, 512, cfg.SourceCacheTTL),
		})
	}

	name := "world-elevation"
	elev := synth.New(name, tile.ProfileGlobalMercator, cfg.ElevationGridSize, uint32(cfg.ElevationMaxLevel))
	layers = append(layers, &layer.Layer{
		Name:      name,
		Enabled:   true,
		Policy:    layer.PolicyNormal,
		MaxLevel:  layer.UnboundedLevel,
		Cache:     store,
		TTL:       cfg.TTLFor(name),
		Blacklist: blacklist.New(cfg.BlacklistSize),
		Elevation: cached.WrapElevation(elev, 512, cfg.SourceCacheTTL),
	})
	return layers
}

func splitBrokers(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

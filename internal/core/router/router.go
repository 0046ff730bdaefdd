// Package router validates tile requests and serves them from a builder
// registry.
package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tilemesh/terrabuild/internal/builder"
	"github.com/tilemesh/terrabuild/internal/core/observability"
	"github.com/tilemesh/terrabuild/internal/raster"
	"github.com/tilemesh/terrabuild/internal/tile"
)

type Options struct {
	Registry   *builder.Registry
	DefaultMap string
	// MaxLevel rejects absurdly deep requests before any resolution work.
	MaxLevel int
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// pickBuilder selects the builder for a request; ?map= overrides the default.
func (o Options) pickBuilder(r *http.Request) (*builder.Builder, error) {
	name := strings.TrimSpace(r.URL.Query().Get("map"))
	if name == "" {
		name = o.DefaultMap
	}
	b, ok := o.Registry.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown map %q", name)
	}
	return b, nil
}

// ParseTileKey reads {z}/{x}/{y} path params into a key on the given
// profile, rejecting coordinates outside the profile grid.
func ParseTileKey(r *http.Request, p tile.ProfileKind, maxLevel int) (tile.Key, error) {
	z, err := parseUint32(chi.URLParam(r, "z"))
	if err != nil {
		return tile.Key{}, fmt.Errorf("z: %w", err)
	}
	x, err := parseUint32(strings.TrimSuffix(chi.URLParam(r, "x"), ".png"))
	if err != nil {
		return tile.Key{}, fmt.Errorf("x: %w", err)
	}
	y, err := parseUint32(strings.TrimSuffix(chi.URLParam(r, "y"), ".png"))
	if err != nil {
		return tile.Key{}, fmt.Errorf("y: %w", err)
	}
	if maxLevel >= 0 && int(z) > maxLevel {
		return tile.Key{}, fmt.Errorf("level %d above maximum %d", z, maxLevel)
	}
	k := tile.NewKey(z, x, y, p)
	if !k.Valid() {
		return tile.Key{}, fmt.Errorf("tile %s outside the %s grid", k, p)
	}
	return k, nil
}

func parseUint32(s string) (uint32, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, errors.New("must be a non-negative integer")
	}
	return uint32(n), nil
}

// HandleImage serves GET /tiles/image/{z}/{x}/{y}.png.
func HandleImage(logger *slog.Logger, opts Options) http.HandlerFunc {
	const route = "/tiles/image/{z}/{x}/{y}.png"
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		defer func() {
			observability.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
		}()

		b, err := opts.pickBuilder(r)
		if err != nil {
			http.Error(sw, err.Error(), http.StatusNotFound)
			return
		}
		if err := b.Valid(); err != nil {
			http.Error(sw, err.Error(), http.StatusServiceUnavailable)
			return
		}
		key, err := ParseTileKey(r, b.Profile(), opts.MaxLevel)
		if err != nil {
			http.Error(sw, err.Error(), http.StatusBadRequest)
			return
		}

		res, ok, err := b.ResolveImage(r.Context(), key)
		if err != nil {
			logger.Error("image resolve failed", "tile", key.String(), "err", err)
			http.Error(sw, "resolve failed", http.StatusInternalServerError)
			return
		}
		if !ok {
			http.Error(sw, "no imagery for tile", http.StatusNotFound)
			return
		}

		payload, err := raster.EncodePNG(res.Image)
		if err != nil {
			logger.Error("png encode failed", "tile", key.String(), "err", err)
			http.Error(sw, "encode failed", http.StatusInternalServerError)
			return
		}
		sw.Header().Set("Content-Type", "image/png")
		sw.Header().Set("X-Producing-Tile", res.Key.String())
		sw.Header().Set("X-Layer", res.Layer)
		_, _ = sw.Write(payload)
	}
}

// HandleHeight serves GET /tiles/height/{z}/{x}/{y} as a binary grid:
// uint32 width, uint32 height, then width*height float32 samples, all
// little-endian.
func HandleHeight(logger *slog.Logger, opts Options) http.HandlerFunc {
	const route = "/tiles/height/{z}/{x}/{y}"
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		defer func() {
			observability.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
		}()

		b, err := opts.pickBuilder(r)
		if err != nil {
			http.Error(sw, err.Error(), http.StatusNotFound)
			return
		}
		if err := b.Valid(); err != nil {
			http.Error(sw, err.Error(), http.StatusServiceUnavailable)
			return
		}
		key, err := ParseTileKey(r, b.Profile(), opts.MaxLevel)
		if err != nil {
			http.Error(sw, err.Error(), http.StatusBadRequest)
			return
		}

		res, ok, err := b.ResolveHeightfield(r.Context(), key)
		if err != nil {
			logger.Error("height resolve failed", "tile", key.String(), "err", err)
			http.Error(sw, "resolve failed", http.StatusInternalServerError)
			return
		}
		if !ok {
			http.Error(sw, "no elevation for tile", http.StatusNotFound)
			return
		}

		sw.Header().Set("Content-Type", "application/octet-stream")
		sw.Header().Set("X-Producing-Tile", res.Key.String())
		sw.Header().Set("X-Layer", res.Layer)
		sw.Header().Set("X-Grid-Width", strconv.Itoa(res.Heightfield.W))
		sw.Header().Set("X-Grid-Height", strconv.Itoa(res.Heightfield.H))
		_, _ = sw.Write(raster.EncodeHeightfield(res.Heightfield))
	}
}

// StatusResponse is the JSON body of the tile status probe.
type StatusResponse struct {
	Tile        string `json:"tile"`
	Profile     string `json:"profile"`
	FullyCached bool   `json:"fully_cached"`
}

// HandleStatus serves GET /tiles/status/{z}/{x}/{y}: the cache-reachability
// fast path, exposed so callers can ask "is this tile instant" without
// resolving it.
func HandleStatus(_ *slog.Logger, opts Options) http.HandlerFunc {
	const route = "/tiles/status/{z}/{x}/{y}"
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		defer func() {
			observability.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
		}()

		b, err := opts.pickBuilder(r)
		if err != nil {
			http.Error(sw, err.Error(), http.StatusNotFound)
			return
		}
		if err := b.Valid(); err != nil {
			http.Error(sw, err.Error(), http.StatusServiceUnavailable)
			return
		}
		key, err := ParseTileKey(r, b.Profile(), opts.MaxLevel)
		if err != nil {
			http.Error(sw, err.Error(), http.StatusBadRequest)
			return
		}

		out := StatusResponse{
			Tile:        key.String(),
			Profile:     b.Profile().String(),
			FullyCached: b.FullyCached(r.Context(), key),
		}
		sw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(sw).Encode(out)
	}
}

// Package xyz implements an imagery source over HTTP XYZ tile endpoints.
package xyz

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tilemesh/terrabuild/internal/core/observability"
	"github.com/tilemesh/terrabuild/internal/raster"
	"github.com/tilemesh/terrabuild/internal/tile"
)

type Source struct {
	name     string
	template string
	profile  tile.ProfileKind
	maxLevel uint32
	http     *http.Client
}

// New builds an XYZ imagery source. The template uses {z}/{x}/{y}
// placeholders; XYZ endpoints are mercator-gridded, so the profile is fixed.
func New(name, template string, maxLevel uint32, client *http.Client) *Source {
	if client == nil {
		client = http.DefaultClient
	}
	return &Source{
		name:     name,
		template: template,
		profile:  tile.ProfileGlobalMercator,
		maxLevel: maxLevel,
		http:     client,
	}
}

func (s *Source) Name() string              { return s.name }
func (s *Source) Profile() tile.ProfileKind { return s.profile }

func (s *Source) URL(key tile.Key) string {
	r := strings.NewReplacer(
		"{z}", strconv.FormatUint(uint64(key.Level), 10),
		"{x}", strconv.FormatUint(uint64(key.Col), 10),
		"{y}", strconv.FormatUint(uint64(key.Row), 10),
	)
	return r.Replace(s.template)
}

func (s *Source) Image(ctx context.Context, key tile.Key) (*image.NRGBA, bool, error) {
	if key.Level > s.maxLevel || !key.Valid() {
		return nil, false, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL(key), nil)
	if err != nil {
		return nil, false, fmt.Errorf("xyz %s: build request: %w", s.name, err)
	}

	start := time.Now()
	resp, err := s.http.Do(req)
	observability.ObserveUpstreamLatency("xyz_"+s.name, time.Since(start).Seconds())
	if err != nil {
		return nil, false, fmt.Errorf("xyz %s: fetch %s: %w", s.name, key, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent:
		return nil, false, nil
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("xyz %s: fetch %s: status %d", s.name, key, resp.StatusCode)
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("xyz %s: decode %s: %w", s.name, key, err)
	}
	return raster.ToNRGBA(img), true, nil
}

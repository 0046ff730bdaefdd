// Package synth provides a procedural elevation source. It backs the demo
// map and keeps tests independent of external tile servers; the terrain is a
// deterministic function of geographic position.
package synth

import (
	"context"
	"math"

	"github.com/tilemesh/terrabuild/internal/raster"
	"github.com/tilemesh/terrabuild/internal/tile"
)

type Source struct {
	name     string
	profile  tile.ProfileKind
	tileSize int
	maxLevel uint32
}

// New builds a procedural source serving tiles of tileSize x tileSize
// samples up to maxLevel. Requests beyond maxLevel report no data, which
// exercises the ancestor fallback path in the resolver.
func New(name string, profile tile.ProfileKind, tileSize int, maxLevel uint32) *Source {
	if tileSize <= 0 {
		tileSize = 32
	}
	return &Source{name: name, profile: profile, tileSize: tileSize, maxLevel: maxLevel}
}

func (s *Source) Name() string              { return s.name }
func (s *Source) Profile() tile.ProfileKind { return s.profile }
func (s *Source) MaxLevel() uint32          { return s.maxLevel }

func (s *Source) Heightfield(_ context.Context, key tile.Key) (*raster.Heightfield, bool, error) {
	if key.Level > s.maxLevel || key.Profile != s.profile || !key.Valid() {
		return nil, false, nil
	}
	ext, ok := tile.KeyExtent(key)
	if !ok {
		return nil, false, nil
	}

	hf := raster.NewHeightfield(s.tileSize, s.tileSize)
	for y := 0; y < s.tileSize; y++ {
		lat := ext.MaxLat + (ext.MinLat-ext.MaxLat)*(float64(y)+0.5)/float64(s.tileSize)
		for x := 0; x < s.tileSize; x++ {
			lon := ext.MinLon + (ext.MaxLon-ext.MinLon)*(float64(x)+0.5)/float64(s.tileSize)
			hf.Set(x, y, elevationAt(lon, lat))
		}
	}
	return hf, true, nil
}

// elevationAt is a smooth synthetic terrain: broad continental swells with
// finer ridges layered on top. Units are meters.
func elevationAt(lon, lat float64) float32 {
	lr := lon * math.Pi / 180
	tr := lat * math.Pi / 180
	h := 1200*math.Sin(3*lr)*math.Cos(2*tr) +
		400*math.Sin(11*lr+1.3)*math.Sin(7*tr) +
		90*math.Cos(29*lr)*math.Sin(23*tr+0.7)
	return float32(h)
}

// Package invalidation defines the cache invalidation event consumed from
// the message bus when upstream terrain data changes.
package invalidation

import (
	"fmt"
	"strings"
	"time"

	"github.com/tilemesh/terrabuild/internal/tile"
)

const (
	// OpUpdate and OpDelete invalidate the tiles covering the event bbox.
	OpUpdate = "update"
	OpDelete = "delete"
	// OpPurge drops every cached tile of the layer; no bbox is involved.
	OpPurge = "purge"
)

// MaxFanoutLevel caps the deepest level an event may address. Fan-out grows
// by 4x per level, so deeper invalidation goes through a layer purge instead.
const MaxFanoutLevel = 15

type Event struct {
	Version  int       `json:"version"`
	Op       string    `json:"op"`
	Layer    string    `json:"layer"`
	TS       time.Time `json:"ts"`
	BBox     *BBox     `json:"bbox,omitempty"`
	MinLevel int       `json:"min_level"`
	MaxLevel int       `json:"max_level"`
}

type BBox struct {
	X1   float64 `json:"x1"`
	Y1   float64 `json:"y1"`
	X2   float64 `json:"x2"`
	Y2   float64 `json:"y2"`
	SRID string  `json:"srid"`
}

func (b BBox) Extent() tile.Extent {
	return tile.Extent{MinLon: b.X1, MinLat: b.Y1, MaxLon: b.X2, MaxLat: b.Y2}
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("version must be 1")
	}
	if strings.TrimSpace(e.Layer) == "" {
		return fmt.Errorf("layer is required")
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	switch e.Op {
	case OpPurge:
		if e.BBox != nil {
			return fmt.Errorf("purge must not carry a bbox")
		}
		return nil
	case OpUpdate, OpDelete:
	default:
		return fmt.Errorf("op must be update|delete|purge")
	}
	if e.BBox == nil {
		return fmt.Errorf("bbox is required for op %s", e.Op)
	}
	bb := *e.BBox
	if bb.SRID != "EPSG:4326" {
		return fmt.Errorf("bbox.srid must be EPSG:4326")
	}
	if !(bb.X1 >= -180 && bb.X1 <= 180 && bb.X2 >= -180 && bb.X2 <= 180) {
		return fmt.Errorf("bbox longitude out of range")
	}
	if !(bb.Y1 >= -90 && bb.Y1 <= 90 && bb.Y2 >= -90 && bb.Y2 <= 90) {
		return fmt.Errorf("bbox latitude out of range")
	}
	if !(bb.X2 > bb.X1 && bb.Y2 > bb.Y1) {
		return fmt.Errorf("bbox must satisfy x2>x1 and y2>y1")
	}
	if e.MinLevel < 0 || e.MaxLevel < e.MinLevel {
		return fmt.Errorf("levels must satisfy 0 <= min_level <= max_level")
	}
	if e.MaxLevel > MaxFanoutLevel {
		return fmt.Errorf("max_level %d exceeds fan-out cap %d, use purge", e.MaxLevel, MaxFanoutLevel)
	}
	return nil
}

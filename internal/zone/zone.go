// Package zone maps detections into user-defined spatial zones and advances
// per-zone state machines one tick at a time.
package zone

import (
	"errors"
	"fmt"

	"github.com/sotocloud/sotovision/internal/detect"
)

// ErrMalformedZone is returned for zones whose coordinates violate the
// 0<=x1<x2<=1, 0<=y1<y2<=1 invariant. Such zones are skipped, never fatal.
var ErrMalformedZone = errors.New("malformed zone coordinates")

// Type is the kind of region a zone tracks.
type Type string

const (
	TypeTable Type = "table"
	TypeKasir Type = "kasir"
	TypeQueue Type = "queue" // alias of kasir, kept for older zone rows
	TypeStock Type = "gorengan"
	TypeDapur Type = "dapur"
)

// Zone is a named rectangular region of a camera frame in fractional
// coordinates. Zones are created externally and read-only here.
type Zone struct {
	ID       string     `json:"id"`
	CameraID string     `json:"camera_id"`
	Name     string     `json:"name"`
	Type     Type       `json:"type"`
	Coords   [4]float64 `json:"coords"` // x1, y1, x2, y2 in [0,1]
}

// Validate checks the coordinate invariant.
func (z *Zone) Validate() error {
	x1, y1, x2, y2 := z.Coords[0], z.Coords[1], z.Coords[2], z.Coords[3]
	if x1 < 0 || y1 < 0 || x2 > 1 || y2 > 1 || x1 >= x2 || y1 >= y2 {
		return fmt.Errorf("%w: zone %q coords %v", ErrMalformedZone, z.Name, z.Coords)
	}
	return nil
}

// Contains reports whether a fractional point falls inside the zone.
func (z *Zone) Contains(p detect.Point) bool {
	return p.X > z.Coords[0] && p.X < z.Coords[2] &&
		p.Y > z.Coords[1] && p.Y < z.Coords[3]
}

// isQueue folds the kasir/queue alias.
func (t Type) isQueue() bool { return t == TypeKasir || t == TypeQueue }

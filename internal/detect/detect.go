// Package detect wraps the object-detection backends behind a single
// adapter. A generic COCO detector covers people and dining objects; a
// specialized stock model covers fried-food classes. When the stock model
// is not configured the adapter substitutes a container-proxy fallback, so
// callers never know which backend served a request.
package detect

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sort"

	"gocv.io/x/gocv"
)

// ErrFrameDecode is returned for frames that cannot be decoded. The worker
// counts it as a missed tick rather than failing.
var ErrFrameDecode = errors.New("frame failed to decode")

// ErrModelUnavailable indicates a model file could not be loaded.
var ErrModelUnavailable = errors.New("detection model unavailable")

// Class names emitted by the generic detector, matching the COCO ids the
// dashboards were built around.
const (
	ClassPerson = "orang"
	ClassHand   = "tangan"
)

// cocoDiningClasses maps COCO class ids to the dining item names tracked on
// tables. Person (id 0) is handled separately.
var cocoDiningClasses = map[int]string{
	39: "botol",
	41: "gelas",
	42: "garpu",
	43: "pisau",
	44: "sendok",
	45: "mangkok",
}

// containerProxyClasses are the generic classes the fallback detector
// reports as stock proxies when no specialized model is configured.
var containerProxyClasses = map[string]string{
	"mangkok": "wadah_mangkok",
	"gelas":   "wadah_gelas",
}

// Point is a 2D coordinate, in pixels or fractions depending on context.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// BBox is an axis-aligned bounding box.
type BBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// IdentityTag classifies a detected person. Kind is one of "staff",
// "regular", "new" or "unknown".
type IdentityTag struct {
	Kind       string `json:"kind"`
	Name       string `json:"name,omitempty"`
	VisitCount int    `json:"visit_count,omitempty"`
}

// Detection is one detected object for a single tick. Coordinates are
// carried in both pixel and fractional form so zone assignment and frontend
// overlays read the same struct.
type Detection struct {
	Class        string       `json:"class"`
	Confidence   float32      `json:"confidence"`
	BBox         BBox         `json:"bbox"`
	NormBBox     BBox         `json:"norm_bbox"`
	Centroid     Point        `json:"centroid"`
	NormCentroid Point        `json:"norm_centroid"`
	Identity     *IdentityTag `json:"identity,omitempty"`
	Zone         string       `json:"zone,omitempty"`
}

// IsPerson reports whether the detection is a person.
func (d *Detection) IsPerson() bool { return d.Class == ClassPerson }

// IsHand reports whether the detection is a hand/wrist keypoint class.
func (d *Detection) IsHand() bool { return d.Class == ClassHand }

// IsDiningItem reports whether the detection is a table item (bowl,
// cutlery, glass, bottle).
func (d *Detection) IsDiningItem() bool {
	for _, name := range cocoDiningClasses {
		if d.Class == name {
			return true
		}
	}
	return false
}

// Detector is a single detection backend.
type Detector interface {
	// Detect runs inference on a decoded frame and returns detections
	// already filtered by the backend's confidence threshold.
	Detect(frame *gocv.Mat) ([]Detection, error)

	// Close releases backend resources.
	Close() error
}

// Config selects and tunes the adapter's backends.
type Config struct {
	GenericModel      string
	StockModel        string
	GenericConfidence float32
	StockConfidence   float32
	// StockClasses maps the stock model's class ids to item names.
	StockClasses map[int]string
}

// Adapter fans one frame out to the configured backends and merges the
// results. Backend selection happens here, once, at construction time.
type Adapter struct {
	generic  Detector
	stock    Detector
	fallback bool
}

// NewAdapter builds the adapter from config. A missing stock model is not
// an error: the container-proxy fallback is substituted and the
// substitution logged once.
func NewAdapter(cfg Config) (*Adapter, error) {
	generic, err := newYOLODetector(cfg.GenericModel, cfg.GenericConfidence, cocoClassMapper())
	if err != nil {
		return nil, fmt.Errorf("generic detector: %w", err)
	}

	a := &Adapter{generic: generic}

	if _, err := os.Stat(cfg.StockModel); err == nil {
		stock, err := newYOLODetector(cfg.StockModel, cfg.StockConfidence, stockClassMapper(cfg.StockClasses))
		if err != nil {
			generic.Close()
			return nil, fmt.Errorf("stock detector: %w", err)
		}
		a.stock = stock
	} else {
		log.Printf("stock model %q unavailable, using container fallback: %v",
			cfg.StockModel, ErrModelUnavailable)
		a.stock = newContainerFallback(generic)
		a.fallback = true
	}

	return a, nil
}

// NewAdapterWithBackends wires pre-built backends, for tests and for the
// single-pass analysis path.
func NewAdapterWithBackends(generic, stock Detector, fallback bool) *Adapter {
	return &Adapter{generic: generic, stock: stock, fallback: fallback}
}

// UsesFallback reports whether the stock backend is the container proxy.
func (a *Adapter) UsesFallback() bool { return a.fallback }

// Detect runs all backends on one frame and returns the merged, ordered
// detection list. A frame that fails to decode yields an empty list and
// ErrFrameDecode; backends are never invoked on it.
func (a *Adapter) Detect(frame *gocv.Mat) ([]Detection, error) {
	if frame == nil || frame.Empty() {
		return nil, ErrFrameDecode
	}

	generic, err := a.generic.Detect(frame)
	if err != nil {
		return nil, fmt.Errorf("generic inference: %w", err)
	}

	stock, err := a.stock.Detect(frame)
	if err != nil {
		return nil, fmt.Errorf("stock inference: %w", err)
	}

	merged := make([]Detection, 0, len(generic)+len(stock))
	merged = append(merged, generic...)
	merged = append(merged, stock...)

	// Deterministic order: by class, then position. Re-running a tick on
	// identical input yields an identical list.
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Class != merged[j].Class {
			return merged[i].Class < merged[j].Class
		}
		if merged[i].Centroid.X != merged[j].Centroid.X {
			return merged[i].Centroid.X < merged[j].Centroid.X
		}
		return merged[i].Centroid.Y < merged[j].Centroid.Y
	})

	return merged, nil
}

// Close releases both backends.
func (a *Adapter) Close() error {
	err := a.generic.Close()
	if a.stock != nil {
		if serr := a.stock.Close(); err == nil {
			err = serr
		}
	}
	return err
}

// filterConfidence drops detections below min. Used by backends after
// decoding raw model output.
func filterConfidence(dets []Detection, min float32) []Detection {
	out := dets[:0]
	for _, d := range dets {
		if d.Confidence >= min {
			out = append(out, d)
		}
	}
	return out
}

// containerFallback adapts the generic detector into a stock backend by
// reporting containers (bowls, cups) as proxy stock items. It shares the
// generic backend's network, so Close is a no-op.
type containerFallback struct {
	generic Detector
}

func newContainerFallback(generic Detector) *containerFallback {
	return &containerFallback{generic: generic}
}

func (f *containerFallback) Detect(frame *gocv.Mat) ([]Detection, error) {
	dets, err := f.generic.Detect(frame)
	if err != nil {
		return nil, err
	}

	var out []Detection
	for _, d := range dets {
		proxy, ok := containerProxyClasses[d.Class]
		if !ok {
			continue
		}
		d.Class = proxy
		out = append(out, d)
	}
	return out, nil
}

func (f *containerFallback) Close() error { return nil }

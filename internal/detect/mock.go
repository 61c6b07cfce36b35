package detect

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu   sync.Mutex
	dets []Detection
	err  error
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetDetections sets the detections that will be returned by Detect.
func (m *MockDetector) SetDetections(dets []Detection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dets = dets
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Detect returns the pre-configured detections or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]Detection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]Detection, len(m.dets))
	copy(out, m.dets)
	return out, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error { return nil }

// At builds a detection of the given class centered at fractional
// coordinates (x, y) in a nominal 640x480 frame. Test helper.
func At(class string, x, y float64) Detection {
	const w, h = 640, 480
	px := x * w
	py := y * h
	return Detection{
		Class:        class,
		Confidence:   0.9,
		BBox:         BBox{X1: px - 10, Y1: py - 10, X2: px + 10, Y2: py + 10},
		NormBBox:     BBox{X1: (px - 10) / w, Y1: (py - 10) / h, X2: (px + 10) / w, Y2: (py + 10) / h},
		Centroid:     Point{X: px, Y: py},
		NormCentroid: Point{X: x, Y: y},
	}
}

// Package capture provides camera frame acquisition using GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"gocv.io/x/gocv"
)

// Default capture resolution for local devices. RTSP sources keep their
// native size.
const (
	DefaultWidth  = 640
	DefaultHeight = 480
)

// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
var ErrCameraNotOpen = errors.New("camera is not open")

// ErrEmptyFrame is returned when the source delivers no usable frame.
var ErrEmptyFrame = errors.New("captured frame is empty")

// Camera defines the interface for camera capture implementations.
type Camera interface {
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
	IsOpen() bool
}

// cameraImpl manages video capture from an RTSP URL or a local device index.
type cameraImpl struct {
	source  string
	capture *gocv.VideoCapture
	mu      sync.Mutex
	running bool
}

// NewCamera creates a Camera for the given source. A source consisting of
// digits is treated as a local device index, anything else as a stream URL
// (typically rtsp://).
func NewCamera(source string) Camera {
	return &cameraImpl{source: source}
}

// Open opens the camera source for capturing frames.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	var (
		cap *gocv.VideoCapture
		err error
	)
	if id, convErr := strconv.Atoi(c.source); convErr == nil {
		cap, err = gocv.OpenVideoCapture(id)
		if err == nil {
			// Clamp local devices for performance.
			cap.Set(gocv.VideoCaptureFrameWidth, DefaultWidth)
			cap.Set(gocv.VideoCaptureFrameHeight, DefaultHeight)
		}
	} else {
		cap, err = gocv.OpenVideoCapture(c.source)
	}
	if err != nil {
		return fmt.Errorf("open camera %q: %w", c.source, err)
	}

	// Small buffer keeps reads close to real time.
	cap.Set(gocv.VideoCaptureBufferSize, 1)

	c.capture = cap
	c.running = true

	return nil
}

// Close closes the camera and releases the capture handle.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// ReadFrame reads a single frame from the camera.
// The caller is responsible for closing the returned Mat.
func (c *cameraImpl) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok {
		mat.Close()
		return nil, fmt.Errorf("read from %q: %w", c.source, ErrEmptyFrame)
	}

	if mat.Empty() {
		mat.Close()
		return nil, ErrEmptyFrame
	}

	return &mat, nil
}

// IsOpen returns true if the camera is currently open.
func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}

package capture

import (
	"errors"
	"testing"

	"gocv.io/x/gocv"
)

func testFrames(t *testing.T, n int) []*gocv.Mat {
	t.Helper()
	frames := make([]*gocv.Mat, n)
	for i := range frames {
		mat := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
		frames[i] = &mat
	}
	t.Cleanup(func() {
		for _, f := range frames {
			f.Close()
		}
	})
	return frames
}

func TestMockCamera_ReadBeforeOpen(t *testing.T) {
	cam := NewMockCamera(testFrames(t, 1), false)

	if _, err := cam.ReadFrame(); !errors.Is(err, ErrCameraNotOpen) {
		t.Fatalf("expected ErrCameraNotOpen, got %v", err)
	}
}

func TestMockCamera_Playback(t *testing.T) {
	cam := NewMockCamera(testFrames(t, 2), false)

	if err := cam.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	if !cam.IsOpen() {
		t.Fatal("expected camera to be open")
	}

	for i := 0; i < 2; i++ {
		frame, err := cam.ReadFrame()
		if err != nil {
			t.Fatalf("read frame %d: %v", i, err)
		}
		frame.Close()
	}

	// Non-looping camera runs out of frames.
	if _, err := cam.ReadFrame(); err == nil {
		t.Fatal("expected error after last frame")
	}
}

func TestMockCamera_Loop(t *testing.T) {
	cam := NewMockCamera(testFrames(t, 1), true)

	if err := cam.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}

	for i := 0; i < 5; i++ {
		frame, err := cam.ReadFrame()
		if err != nil {
			t.Fatalf("read frame %d: %v", i, err)
		}
		frame.Close()
	}
}

func TestMockCamera_OpenError(t *testing.T) {
	cam := NewMockCamera(nil, false)
	wantErr := errors.New("device busy")
	cam.SetOpenError(wantErr)

	if err := cam.Open(); !errors.Is(err, wantErr) {
		t.Fatalf("expected open error, got %v", err)
	}
	if cam.IsOpen() {
		t.Fatal("camera should not be open after failed Open")
	}
}

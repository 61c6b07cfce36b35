package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/sotocloud/sotovision/internal/service"
)

// StreamHandler serves MJPEG from a camera's snapshot publisher. The
// stream advances at the analysis tick rate.
type StreamHandler struct {
	controller *service.Controller
}

// NewStreamHandler creates a new StreamHandler over the controller.
func NewStreamHandler(controller *service.Controller) *StreamHandler {
	return &StreamHandler{controller: controller}
}

// ServeHTTP streams MJPEG frames to connected clients.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	pub, ok := h.controller.Publisher(camID(r.URL.Path, "/api/stream"))
	if !ok {
		http.Error(w, "Camera not running", http.StatusNotFound)
		return
	}

	snaps, cancel := pub.Subscribe(1)
	defer cancel()

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for {
		select {
		case <-r.Context().Done():
			return
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			if len(snap.JPEG) == 0 {
				continue
			}

			fmt.Fprintf(w, "--frame\r\n")
			fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
			fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(snap.JPEG))
			w.Write(snap.JPEG)
			fmt.Fprintf(w, "\r\n")

			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		case <-time.After(30 * time.Second):
			// Worker stalled or stopped; drop the client.
			return
		}
	}
}

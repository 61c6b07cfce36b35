package server

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/sotocloud/sotovision/internal/service"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// SnapshotSocket pushes each analysis snapshot to websocket clients as
// JSON. Slow clients skip snapshots rather than backing up the worker.
type SnapshotSocket struct {
	controller *service.Controller
}

// NewSnapshotSocket creates a new SnapshotSocket over the controller.
func NewSnapshotSocket(controller *service.Controller) *SnapshotSocket {
	return &SnapshotSocket{controller: controller}
}

// ServeHTTP handles WebSocket upgrade requests on /api/ws/{camera_id}.
func (h *SnapshotSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	pub, ok := h.controller.Publisher(camID(r.URL.Path, "/api/ws"))
	if !ok {
		http.Error(w, "Camera not running", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	snaps, cancel := pub.Subscribe(1)
	defer cancel()

	// Drain client messages so pings and close frames are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			if err := conn.WriteJSON(snap); err != nil {
				return
			}
		}
	}
}

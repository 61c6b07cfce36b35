package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/sotocloud/sotovision/internal/server/api"
	"github.com/sotocloud/sotovision/internal/service"
	"github.com/sotocloud/sotovision/internal/worker"
)

// camID extracts the trailing camera id from paths like
// /api/snapshot/{camera_id}.
func camID(path, prefix string) string {
	return strings.Trim(strings.TrimPrefix(path, prefix), "/")
}

// handleServiceStatus handles GET /api/service/status.
func (s *Server) handleServiceStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	api.WriteJSON(w, http.StatusOK, s.config.Controller.Status())
}

// handleServiceEnable handles POST /api/service/enable.
func (s *Server) handleServiceEnable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.config.Controller.Enable(); err != nil {
		api.WriteError(w, http.StatusInternalServerError, "Failed to enable service")
		return
	}
	api.WriteJSON(w, http.StatusOK, s.config.Controller.Status())
}

// handleServiceDisable handles POST /api/service/disable.
func (s *Server) handleServiceDisable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.config.Controller.Disable()
	api.WriteJSON(w, http.StatusOK, s.config.Controller.Status())
}

// handleAnalyze handles POST /api/analyze/{camera_id} and
// POST /api/analyze/all.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := camID(r.URL.Path, "/api/analyze")
	if id == "" {
		api.WriteError(w, http.StatusBadRequest, "Camera id required")
		return
	}

	if id == "all" {
		snaps, errs := s.config.Controller.AnalyzeAll()
		failed := make(map[string]string, len(errs))
		for camID, err := range errs {
			failed[camID] = err.Error()
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{
			"snapshots": snaps,
			"failed":    failed,
		})
		return
	}

	snap, err := s.config.Controller.AnalyzeOnce(id)
	if err != nil {
		s.writeAnalyzeError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, snap)
}

func (s *Server) writeAnalyzeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrUnknownCamera):
		api.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrCameraDisabled):
		api.WriteError(w, http.StatusConflict, err.Error())
	default:
		api.WriteError(w, http.StatusBadGateway, err.Error())
	}
}

// handleSnapshot handles GET /api/snapshot/{camera_id} and serves the
// latest frame as JPEG.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap, ok := s.latestSnapshot(w, camID(r.URL.Path, "/api/snapshot"))
	if !ok {
		return
	}
	if len(snap.JPEG) == 0 {
		api.WriteError(w, http.StatusNotFound, "No frame available")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(snap.JPEG)))
	w.Write(snap.JPEG)
}

// handleDetections handles GET /api/detections/{camera_id}.
func (s *Server) handleDetections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap, ok := s.latestSnapshot(w, camID(r.URL.Path, "/api/detections"))
	if !ok {
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{
		"taken_at":   snap.TakenAt,
		"detections": snap.Detections,
		"states":     snap.States,
	})
}

// handleBillingLive handles GET /api/billing/live/{camera_id} and
// returns the latest tick's billing records.
func (s *Server) handleBillingLive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap, ok := s.latestSnapshot(w, camID(r.URL.Path, "/api/billing/live"))
	if !ok {
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{
		"taken_at": snap.TakenAt,
		"billing":  snap.Billing,
		"alerts":   snap.Alerts,
	})
}

// handleBillingLog handles GET /api/billing/{camera_id} from the
// persistent log.
func (s *Server) handleBillingLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := camID(r.URL.Path, "/api/billing")
	recs, err := s.config.Store.Billing().ListRecent(id, queryLimit(r))
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, "Failed to read billing log")
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"records": recs})
}

// handleAlerts handles GET /api/alerts/{camera_id} from the persistent
// event log.
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := camID(r.URL.Path, "/api/alerts")
	alerts, err := s.config.Store.Events().ListRecent(id, queryLimit(r))
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, "Failed to read event log")
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

func (s *Server) latestSnapshot(w http.ResponseWriter, cameraID string) (*worker.Snapshot, bool) {
	pub, ok := s.config.Controller.Publisher(cameraID)
	if !ok {
		api.WriteError(w, http.StatusNotFound, "Camera not running")
		return nil, false
	}
	snap := pub.Latest()
	if snap == nil {
		api.WriteError(w, http.StatusNotFound, "No snapshot yet")
		return nil, false
	}
	return snap, true
}

func queryLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return n
}

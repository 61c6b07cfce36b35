package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/sotocloud/sotovision/internal/store"
	"github.com/sotocloud/sotovision/internal/zone"
)

// ZoneHandler handles HTTP requests for zone resources.
type ZoneHandler struct {
	store *store.Store
}

// NewZoneHandler creates a new ZoneHandler with the given store.
func NewZoneHandler(s *store.Store) *ZoneHandler {
	return &ZoneHandler{store: s}
}

// ServeHTTP routes /api/zones, /api/zones/{id} and the per-camera
// listing /api/cameras/{camera_id}/zones.
func (h *ZoneHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/cameras/") && strings.HasSuffix(r.URL.Path, "/zones") {
		cameraID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/cameras/"), "/zones")
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.listByCamera(w, r, cameraID)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/zones")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.create(w, r)
		return
	}

	id := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type zoneRequest struct {
	CameraID string     `json:"camera_id"`
	Name     string     `json:"name"`
	Type     string     `json:"type"`
	Coords   [4]float64 `json:"coords"`
}

func (h *ZoneHandler) listByCamera(w http.ResponseWriter, r *http.Request, cameraID string) {
	zones, err := h.store.Zones().ListByCamera(cameraID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list zones")
		return
	}
	if zones == nil {
		zones = []zone.Zone{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"zones": zones})
}

func (h *ZoneHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	z, err := h.store.Zones().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Zone not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get zone")
		return
	}
	writeJSON(w, http.StatusOK, z)
}

func (h *ZoneHandler) create(w http.ResponseWriter, r *http.Request) {
	var req zoneRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.CameraID == "" || req.Name == "" || req.Type == "" {
		writeError(w, http.StatusBadRequest, "Camera, name and type are required")
		return
	}
	if _, err := h.store.Cameras().GetByID(req.CameraID); err != nil {
		writeError(w, http.StatusBadRequest, "Unknown camera")
		return
	}

	z := &zone.Zone{
		ID:       uuid.New().String(),
		CameraID: req.CameraID,
		Name:     req.Name,
		Type:     zone.Type(req.Type),
		Coords:   req.Coords,
	}
	if err := h.store.Zones().Create(z); err != nil {
		if errors.Is(err, zone.ErrMalformedZone) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create zone")
		return
	}
	writeJSON(w, http.StatusCreated, z)
}

func (h *ZoneHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	z, err := h.store.Zones().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Zone not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get zone")
		return
	}

	var req zoneRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Name != "" {
		z.Name = req.Name
	}
	if req.Type != "" {
		z.Type = zone.Type(req.Type)
	}
	if req.Coords != ([4]float64{}) {
		z.Coords = req.Coords
	}

	if err := h.store.Zones().Update(z); err != nil {
		if errors.Is(err, zone.ErrMalformedZone) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to update zone")
		return
	}
	writeJSON(w, http.StatusOK, z)
}

func (h *ZoneHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Zones().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Zone not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete zone")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

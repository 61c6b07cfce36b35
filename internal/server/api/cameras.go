package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/sotocloud/sotovision/internal/store"
)

// CameraHandler handles HTTP requests for camera resources.
type CameraHandler struct {
	store *store.Store
}

// NewCameraHandler creates a new CameraHandler with the given store.
func NewCameraHandler(s *store.Store) *CameraHandler {
	return &CameraHandler{store: s}
}

// ServeHTTP routes /api/cameras and /api/cameras/{id}.
func (h *CameraHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/cameras")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
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

type cameraRequest struct {
	Name     string `json:"name"`
	Source   string `json:"source"`
	BranchID string `json:"branch_id"`
	Enabled  *bool  `json:"enabled"`
}

type cameraResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Source   string `json:"source"`
	BranchID string `json:"branch_id,omitempty"`
	Enabled  bool   `json:"enabled"`
}

func toCameraResponse(c *store.Camera) cameraResponse {
	return cameraResponse{
		ID: c.ID, Name: c.Name, Source: c.Source,
		BranchID: c.BranchID, Enabled: c.Enabled,
	}
}

// list handles GET /api/cameras. Staff accounts only see their own
// branch's cameras.
func (h *CameraHandler) list(w http.ResponseWriter, r *http.Request) {
	var (
		cameras []*store.Camera
		err     error
	)
	if claims := ClaimsFrom(r.Context()); claims != nil && claims.Role == store.RoleStaff {
		cameras, err = h.store.Cameras().ListByBranch(claims.BranchID)
	} else {
		cameras, err = h.store.Cameras().List()
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list cameras")
		return
	}

	out := make([]cameraResponse, 0, len(cameras))
	for _, c := range cameras {
		out = append(out, toCameraResponse(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"cameras": out})
}

func (h *CameraHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	c, err := h.store.Cameras().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Camera not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get camera")
		return
	}
	writeJSON(w, http.StatusOK, toCameraResponse(c))
}

func (h *CameraHandler) create(w http.ResponseWriter, r *http.Request) {
	var req cameraRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Name == "" || req.Source == "" {
		writeError(w, http.StatusBadRequest, "Name and source are required")
		return
	}

	c := &store.Camera{
		ID:       uuid.New().String(),
		Name:     req.Name,
		Source:   req.Source,
		BranchID: req.BranchID,
		Enabled:  req.Enabled == nil || *req.Enabled,
	}
	if err := h.store.Cameras().Create(c); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create camera")
		return
	}
	writeJSON(w, http.StatusCreated, toCameraResponse(c))
}

func (h *CameraHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	c, err := h.store.Cameras().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Camera not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get camera")
		return
	}

	var req cameraRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Name != "" {
		c.Name = req.Name
	}
	if req.Source != "" {
		c.Source = req.Source
	}
	if req.BranchID != "" {
		c.BranchID = req.BranchID
	}
	if req.Enabled != nil {
		c.Enabled = *req.Enabled
	}

	if err := h.store.Cameras().Update(c); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update camera")
		return
	}
	writeJSON(w, http.StatusOK, toCameraResponse(c))
}

func (h *CameraHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Cameras().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Camera not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete camera")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

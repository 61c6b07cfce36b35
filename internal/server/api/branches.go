package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/sotocloud/sotovision/internal/store"
)

// BranchHandler handles HTTP requests for branch resources.
type BranchHandler struct {
	store *store.Store
}

// NewBranchHandler creates a new BranchHandler with the given store.
func NewBranchHandler(s *store.Store) *BranchHandler {
	return &BranchHandler{store: s}
}

// ServeHTTP routes /api/branches and /api/branches/{id}.
func (h *BranchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/branches")
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
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type branchRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type branchResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

func (h *BranchHandler) list(w http.ResponseWriter, r *http.Request) {
	branches, err := h.store.Branches().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list branches")
		return
	}
	out := make([]branchResponse, 0, len(branches))
	for _, b := range branches {
		out = append(out, branchResponse{ID: b.ID, Name: b.Name, Address: b.Address})
	}
	writeJSON(w, http.StatusOK, map[string]any{"branches": out})
}

func (h *BranchHandler) create(w http.ResponseWriter, r *http.Request) {
	var req branchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}

	b := &store.Branch{ID: uuid.New().String(), Name: req.Name, Address: req.Address}
	if err := h.store.Branches().Create(b); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create branch")
		return
	}
	writeJSON(w, http.StatusCreated, branchResponse{ID: b.ID, Name: b.Name, Address: b.Address})
}

func (h *BranchHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	b, err := h.store.Branches().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Branch not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get branch")
		return
	}

	var req branchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Name != "" {
		b.Name = req.Name
	}
	if req.Address != "" {
		b.Address = req.Address
	}

	if err := h.store.Branches().Update(b); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update branch")
		return
	}
	writeJSON(w, http.StatusOK, branchResponse{ID: b.ID, Name: b.Name, Address: b.Address})
}

func (h *BranchHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Branches().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Branch not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete branch")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

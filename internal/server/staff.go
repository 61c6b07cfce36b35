package server

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/sotocloud/sotovision/internal/identity"
	"github.com/sotocloud/sotovision/internal/server/api"
)

const maxStaffPhotoSize = 10 << 20 // 10 MB

// StaffHandler manages the staff photo directory and gallery reloads.
type StaffHandler struct {
	dir     string
	gallery *identity.Gallery
}

// NewStaffHandler creates a new StaffHandler for the given photo
// directory.
func NewStaffHandler(dir string, gallery *identity.Gallery) *StaffHandler {
	return &StaffHandler{dir: dir, gallery: gallery}
}

// ServeHTTP routes /api/staff (GET list, POST upload),
// /api/staff/reload (POST) and /api/staff/{name} (DELETE).
func (h *StaffHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/staff")
	path = strings.TrimPrefix(path, "/")

	switch {
	case path == "" && r.Method == http.MethodGet:
		h.list(w, r)
	case path == "" && r.Method == http.MethodPost:
		h.upload(w, r)
	case path == "reload" && r.Method == http.MethodPost:
		h.reload(w, r)
	case path != "" && r.Method == http.MethodDelete:
		h.delete(w, r, path)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// list returns the known staff names from the loaded gallery.
func (h *StaffHandler) list(w http.ResponseWriter, r *http.Request) {
	seen := map[string]bool{}
	names := []string{}
	for _, e := range h.gallery.Entries() {
		if !seen[e.Name] {
			seen[e.Name] = true
			names = append(names, e.Name)
		}
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"staff": names})
}

// upload saves a staff photo and reloads the gallery. The form carries
// a "name" field and a "photo" file.
func (h *StaffHandler) upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxStaffPhotoSize); err != nil {
		api.WriteError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	name := r.FormValue("name")
	if name == "" || strings.ContainsAny(name, "/\\.") {
		api.WriteError(w, http.StatusBadRequest, "Valid name is required")
		return
	}
	file, _, err := r.FormFile("photo")
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "Photo file is required")
		return
	}
	defer file.Close()

	dst, err := os.Create(filepath.Join(h.dir, name+".jpg"))
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, "Failed to save photo")
		return
	}
	defer dst.Close()
	if _, err := io.Copy(dst, file); err != nil {
		api.WriteError(w, http.StatusInternalServerError, "Failed to save photo")
		return
	}

	if err := h.gallery.Reload(); err != nil {
		api.WriteError(w, http.StatusInternalServerError, "Photo saved but reload failed")
		return
	}
	api.WriteJSON(w, http.StatusCreated, map[string]any{"name": name})
}

// delete removes every photo of one staff member and reloads.
func (h *StaffHandler) delete(w http.ResponseWriter, r *http.Request, name string) {
	if strings.ContainsAny(name, "/\\.") {
		api.WriteError(w, http.StatusBadRequest, "Invalid name")
		return
	}

	matches, err := filepath.Glob(filepath.Join(h.dir, name+"*.jpg"))
	if err != nil || len(matches) == 0 {
		api.WriteError(w, http.StatusNotFound, "Staff member not found")
		return
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil {
			api.WriteError(w, http.StatusInternalServerError, "Failed to remove photo")
			return
		}
	}

	if err := h.gallery.Reload(); err != nil {
		api.WriteError(w, http.StatusInternalServerError, "Photos removed but reload failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// reload re-encodes the photo directory on demand.
func (h *StaffHandler) reload(w http.ResponseWriter, r *http.Request) {
	if err := h.gallery.Reload(); err != nil {
		api.WriteError(w, http.StatusInternalServerError, "Reload failed")
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"entries": len(h.gallery.Entries())})
}

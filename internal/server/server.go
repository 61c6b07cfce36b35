// Package server provides the HTTP server for the analytics service.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sotocloud/sotovision/internal/auth"
	"github.com/sotocloud/sotovision/internal/identity"
	"github.com/sotocloud/sotovision/internal/server/api"
	"github.com/sotocloud/sotovision/internal/service"
	"github.com/sotocloud/sotovision/internal/store"
)

// Config holds the server configuration. Nil components disable their
// routes.
type Config struct {
	Store      *store.Store
	Auth       *auth.Authenticator
	Controller *service.Controller
	Gallery    *identity.Gallery
	StaffDir   string
	StaticDir  string
}

// Server represents the HTTP server for the analytics dashboard.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Auth != nil {
		s.mux.HandleFunc("/api/token", s.handleToken)
	}

	if s.config.Store != nil {
		cameraHandler := api.NewCameraHandler(s.config.Store)
		zoneHandler := api.NewZoneHandler(s.config.Store)

		// /api/cameras/{id}/zones belongs to the zone handler.
		cameraRouter := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasSuffix(r.URL.Path, "/zones") {
				s.requireRole(store.RoleStaff, zoneHandler).ServeHTTP(w, r)
				return
			}
			s.requireWriteRole(cameraHandler).ServeHTTP(w, r)
		})

		s.mux.Handle("/api/cameras", cameraRouter)
		s.mux.Handle("/api/cameras/", cameraRouter)
		s.mux.Handle("/api/zones", s.requireRole(store.RoleAdmin, zoneHandler))
		s.mux.Handle("/api/zones/", s.requireRole(store.RoleAdmin, zoneHandler))

		branchHandler := api.NewBranchHandler(s.config.Store)
		s.mux.Handle("/api/branches", s.requireRole(store.RoleAdmin, branchHandler))
		s.mux.Handle("/api/branches/", s.requireRole(store.RoleAdmin, branchHandler))

		userHandler := api.NewUserHandler(s.config.Store)
		s.mux.Handle("/api/users", s.requireRole(store.RoleAdmin, userHandler))
		s.mux.Handle("/api/users/", s.requireRole(store.RoleAdmin, userHandler))
	}

	if s.config.Controller != nil {
		s.mux.Handle("/api/service/status", s.requireRole(store.RoleStaff, http.HandlerFunc(s.handleServiceStatus)))
		s.mux.Handle("/api/service/enable", s.requireRole(store.RoleAdmin, http.HandlerFunc(s.handleServiceEnable)))
		s.mux.Handle("/api/service/disable", s.requireRole(store.RoleAdmin, http.HandlerFunc(s.handleServiceDisable)))
		s.mux.Handle("/api/analyze/", s.requireRole(store.RoleStaff, http.HandlerFunc(s.handleAnalyze)))

		s.mux.Handle("/api/snapshot/", s.requireRole(store.RoleStaff, http.HandlerFunc(s.handleSnapshot)))
		s.mux.Handle("/api/detections/", s.requireRole(store.RoleStaff, http.HandlerFunc(s.handleDetections)))
		s.mux.Handle("/api/billing/live/", s.requireRole(store.RoleStaff, http.HandlerFunc(s.handleBillingLive)))
		s.mux.Handle("/api/stream/", s.requireRole(store.RoleStaff, NewStreamHandler(s.config.Controller)))
		s.mux.Handle("/api/ws/", s.requireRole(store.RoleStaff, NewSnapshotSocket(s.config.Controller)))
	}

	if s.config.Store != nil {
		s.mux.Handle("/api/billing/", s.requireRole(store.RoleStaff, http.HandlerFunc(s.handleBillingLog)))
		s.mux.Handle("/api/alerts/", s.requireRole(store.RoleStaff, http.HandlerFunc(s.handleAlerts)))
	}

	if s.config.Gallery != nil && s.config.StaffDir != "" {
		staffHandler := NewStaffHandler(s.config.StaffDir, s.config.Gallery)
		s.mux.Handle("/api/staff", s.requireRole(store.RoleAdmin, staffHandler))
		s.mux.Handle("/api/staff/", s.requireRole(store.RoleAdmin, staffHandler))
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}

// requireRole wraps a handler with token validation. role is the
// minimum: staff tokens satisfy staff routes, admin routes need admin.
// With auth disabled every request passes.
func (s *Server) requireRole(role string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.Auth == nil {
			next.ServeHTTP(w, r)
			return
		}

		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			token = r.URL.Query().Get("token") // websocket and img clients
		}
		claims, err := s.config.Auth.ValidateToken(token)
		if err != nil {
			api.WriteError(w, http.StatusUnauthorized, "Invalid or missing token")
			return
		}
		if role == store.RoleAdmin && claims.Role != store.RoleAdmin {
			api.WriteError(w, http.StatusForbidden, "Admin access required")
			return
		}

		next.ServeHTTP(w, r.WithContext(api.WithClaims(r.Context(), claims)))
	})
}

// requireWriteRole lets staff read a resource but reserves writes for
// admins.
func (s *Server) requireWriteRole(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := store.RoleStaff
		if r.Method != http.MethodGet {
			role = store.RoleAdmin
		}
		s.requireRole(role, next).ServeHTTP(w, r)
	})
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// handleToken handles POST /api/token and exchanges credentials for a
// JWT.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	token, expiresAt, err := s.config.Auth.Authenticate(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			api.WriteError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		api.WriteError(w, http.StatusInternalServerError, "Authentication failed")
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_at": expiresAt,
	})
}

// Package api provides the REST and WebSocket surface for the
// monitoring engine.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/RamfiAogusto/competitor-tracker/internal/alert"
	"github.com/RamfiAogusto/competitor-tracker/internal/domain"
	"github.com/RamfiAogusto/competitor-tracker/internal/eventbus"
	"github.com/RamfiAogusto/competitor-tracker/internal/render"
	"github.com/RamfiAogusto/competitor-tracker/internal/scheduler"
	"github.com/RamfiAogusto/competitor-tracker/internal/snapshotstore"
	"github.com/RamfiAogusto/competitor-tracker/internal/target"
	"github.com/RamfiAogusto/competitor-tracker/internal/user"
)

// Server holds the dependencies for the API.
type Server struct {
	userStore     *user.Store
	targetStore   *target.Store
	snapshotStore *snapshotstore.Store
	alertStore    *alert.Store
	scheduler     *scheduler.Scheduler
	bus           *eventbus.Bus
	renderer      render.Renderer
	jwtSecret     []byte
	logger        *slog.Logger
}

// Dependencies bundles the collaborators the server routes against.
type Dependencies struct {
	UserStore     *user.Store
	TargetStore   *target.Store
	SnapshotStore *snapshotstore.Store
	AlertStore    *alert.Store
	Scheduler     *scheduler.Scheduler
	Bus           *eventbus.Bus
	Renderer      render.Renderer
	JWTSecret     string
}

// NewServer creates a new API Server instance.
func NewServer(deps Dependencies) *Server {
	return &Server{
		userStore:     deps.UserStore,
		targetStore:   deps.TargetStore,
		snapshotStore: deps.SnapshotStore,
		alertStore:    deps.AlertStore,
		scheduler:     deps.Scheduler,
		bus:           deps.Bus,
		renderer:      deps.Renderer,
		jwtSecret:     []byte(deps.JWTSecret),
		logger:        slog.Default(),
	}
}

// Routes returns the configured http.Handler (ServeMux) for the API.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// Auth routes (Public)
	mux.HandleFunc("POST /api/auth/register", s.handleRegister())
	mux.HandleFunc("POST /api/auth/login", s.handleLogin())

	protected := s.requireAuth(mux)

	// User
	mux.Handle("GET /api/users/me", s.requireAuthHandler(http.HandlerFunc(s.handleGetMe())))

	// Targets
	mux.Handle("POST /api/targets", s.requireAuthHandler(http.HandlerFunc(s.handleCreateTarget())))
	mux.Handle("GET /api/targets", s.requireAuthHandler(http.HandlerFunc(s.handleListTargets())))
	mux.Handle("GET /api/targets/{id}", s.requireAuthHandler(http.HandlerFunc(s.handleGetTarget())))
	mux.Handle("PUT /api/targets/{id}", s.requireAuthHandler(http.HandlerFunc(s.handleUpdateTarget())))
	mux.Handle("DELETE /api/targets/{id}", s.requireAuthHandler(http.HandlerFunc(s.handleDeleteTarget())))
	mux.Handle("POST /api/targets/{id}/capture", s.requireAuthHandler(http.HandlerFunc(s.handleCaptureTarget())))
	mux.Handle("POST /api/targets/{id}/start-monitoring", s.requireAuthHandler(http.HandlerFunc(s.handleStartMonitoring())))
	mux.Handle("POST /api/targets/{id}/disable-monitoring", s.requireAuthHandler(http.HandlerFunc(s.handleDisableMonitoring())))
	mux.Handle("GET /api/targets/{id}/monitoring-status", s.requireAuthHandler(http.HandlerFunc(s.handleMonitoringStatus())))
	mux.Handle("GET /api/targets/{id}/events", s.requireAuthHandler(http.HandlerFunc(s.handleTargetEvents())))

	// Changes and alerts
	mux.Handle("GET /api/changes", s.requireAuthHandler(http.HandlerFunc(s.handleListChanges())))
	mux.Handle("GET /api/alerts", s.requireAuthHandler(http.HandlerFunc(s.handleListAlerts())))
	mux.Handle("PUT /api/alerts/{id}", s.requireAuthHandler(http.HandlerFunc(s.handleUpdateAlert())))

	return protected
}

// --- Response envelope helpers ---

// envelope is the shape every JSON response takes: {success, data} on
// success, {success, code, message} on failure.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

// respondError maps a *domain.Error to its HTTP status and the
// {success: false, code, message} envelope. Any other error is treated
// as an unclassified internal failure.
func respondError(w http.ResponseWriter, err error) {
	var domainErr *domain.Error
	if de, ok := err.(*domain.Error); ok {
		domainErr = de
	} else {
		domainErr = domain.NewError(domain.StorageFailure, "internal error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(domainErr.Kind.HTTPStatus())
	_ = json.NewEncoder(w).Encode(envelope{
		Success: false,
		Code:    string(domainErr.Kind),
		Message: domainErr.Message,
	})
}

func badRequest(w http.ResponseWriter, message string) {
	respondError(w, domain.NewError(domain.ValidationFailed, message, nil))
}

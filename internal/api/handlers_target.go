package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/RamfiAogusto/competitor-tracker/internal/domain"
)

type CreateTargetRequest struct {
	URL               string `json:"url"`
	Name              string `json:"name"`
	CheckIntervalSecs int    `json:"check_interval_secs"`
}

func (s *Server) handleCreateTarget() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := getUserID(r)

		var req CreateTargetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "invalid request body")
			return
		}
		if req.URL == "" || req.Name == "" {
			badRequest(w, "url and name are required")
			return
		}

		t, err := s.targetStore.Create(r.Context(), userID, req.URL, req.Name, req.CheckIntervalSecs)
		if err != nil {
			respondError(w, domain.NewError(domain.StorageFailure, "create target", err))
			return
		}
		respondJSON(w, http.StatusCreated, t)
	}
}

func (s *Server) handleListTargets() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := getUserID(r)
		targets, err := s.targetStore.ListByUser(r.Context(), userID)
		if err != nil {
			respondError(w, domain.NewError(domain.StorageFailure, "list targets", err))
			return
		}
		respondJSON(w, http.StatusOK, targets)
	}
}

func (s *Server) handleGetTarget() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target, ok := s.ownedTarget(w, r)
		if !ok {
			return
		}
		respondJSON(w, http.StatusOK, target)
	}
}

type UpdateTargetRequest struct {
	URL               string `json:"url"`
	Name              string `json:"name"`
	CheckIntervalSecs int    `json:"check_interval_secs"`
}

func (s *Server) handleUpdateTarget() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		existing, ok := s.ownedTarget(w, r)
		if !ok {
			return
		}

		var req UpdateTargetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "invalid request body")
			return
		}
		if req.URL == "" {
			req.URL = existing.URL
		}
		if req.Name == "" {
			req.Name = existing.Name
		}
		if req.CheckIntervalSecs <= 0 {
			req.CheckIntervalSecs = existing.CheckIntervalSecs
		}

		if err := s.targetStore.Update(r.Context(), existing.ID, req.URL, req.Name, req.CheckIntervalSecs); err != nil {
			respondError(w, domain.NewError(domain.StorageFailure, "update target", err))
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"id": existing.ID.String()})
	}
}

func (s *Server) handleDeleteTarget() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		existing, ok := s.ownedTarget(w, r)
		if !ok {
			return
		}
		if err := s.targetStore.SoftDelete(r.Context(), existing.ID); err != nil {
			respondError(w, domain.NewError(domain.StorageFailure, "delete target", err))
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"id": existing.ID.String()})
	}
}

type CaptureTargetRequest struct {
	Options struct {
		HTML     string `json:"html"`
		Simulate bool   `json:"simulate"`
	} `json:"options"`
}

// handleCaptureTarget forces an immediate capture. When options.html is
// supplied the Renderer is bypassed entirely and that HTML is diffed
// directly; this is what lets tests and manual QA exercise the
// classify/persist/publish pipeline without a real render backend.
func (s *Server) handleCaptureTarget() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		existing, ok := s.ownedTarget(w, r)
		if !ok {
			return
		}

		var req CaptureTargetRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				badRequest(w, "invalid request body")
				return
			}
		}

		var (
			result interface{}
			err    error
		)
		if req.Options.HTML != "" {
			result, err = s.scheduler.CaptureWithHTML(r.Context(), *existing, req.Options.HTML)
		} else {
			result, err = s.scheduler.TriggerNow(r.Context(), *existing)
		}
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}

type MonitoringRequest struct {
	Interval int `json:"interval"`
}

func (s *Server) handleStartMonitoring() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		existing, ok := s.ownedTarget(w, r)
		if !ok {
			return
		}
		var req MonitoringRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				badRequest(w, "invalid request body")
				return
			}
		}
		interval := req.Interval
		if interval <= 0 {
			interval = existing.CheckIntervalSecs
		}
		if err := s.targetStore.SetMonitoring(r.Context(), existing.ID, true, interval); err != nil {
			respondError(w, domain.NewError(domain.StorageFailure, "start monitoring", err))
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"id": existing.ID.String()})
	}
}

func (s *Server) handleDisableMonitoring() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		existing, ok := s.ownedTarget(w, r)
		if !ok {
			return
		}
		if err := s.targetStore.SetMonitoring(r.Context(), existing.ID, false, 0); err != nil {
			respondError(w, domain.NewError(domain.StorageFailure, "disable monitoring", err))
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"id": existing.ID.String()})
	}
}

type MonitoringStatusResponse struct {
	MonitoringEnabled bool       `json:"monitoringEnabled"`
	Status            string     `json:"status"`
	LastCheckedAt     *time.Time `json:"lastCheckedAt"`
	NextCapture       *time.Time `json:"nextCapture"`
}

func (s *Server) handleMonitoringStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		existing, ok := s.ownedTarget(w, r)
		if !ok {
			return
		}

		status := "never"
		var next *time.Time
		if existing.LastCheckedAt != nil {
			if existing.MonitoringEnabled {
				status = "active"
				when := existing.LastCheckedAt.Add(time.Duration(existing.CheckIntervalSecs) * time.Second)
				next = &when
			} else {
				status = "paused"
			}
		} else if existing.MonitoringEnabled {
			status = "active"
			now := time.Now().UTC()
			next = &now
		}

		respondJSON(w, http.StatusOK, MonitoringStatusResponse{
			MonitoringEnabled: existing.MonitoringEnabled,
			Status:            status,
			LastCheckedAt:     existing.LastCheckedAt,
			NextCapture:       next,
		})
	}
}

// ownedTarget loads the {id} path target and verifies it belongs to the
// authenticated user and hasn't been soft-deleted, writing the
// appropriate error response itself when it hasn't.
func (s *Server) ownedTarget(w http.ResponseWriter, r *http.Request) (*domain.Target, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		badRequest(w, "invalid target id")
		return nil, false
	}

	t, err := s.targetStore.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, domain.NewError(domain.StorageFailure, "load target", err))
		return nil, false
	}
	if t == nil || t.Deleted || t.UserID != getUserID(r) {
		respondError(w, domain.NewError(domain.TargetNotFound, "target not found", nil))
		return nil, false
	}
	return t, true
}

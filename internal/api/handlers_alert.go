package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/RamfiAogusto/competitor-tracker/internal/domain"
)

// handleListAlerts returns the authenticated user's alerts, optionally
// scoped to a single target via ?targetId=.
func (s *Server) handleListAlerts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := getUserID(r)

		limit := 50
		if ls := r.URL.Query().Get("limit"); ls != "" {
			if v, err := strconv.Atoi(ls); err == nil && v > 0 {
				limit = v
			}
		}

		if targetIDStr := r.URL.Query().Get("targetId"); targetIDStr != "" {
			targetID, err := uuid.Parse(targetIDStr)
			if err != nil {
				badRequest(w, "invalid targetId")
				return
			}
			t, err := s.targetStore.GetByID(r.Context(), targetID)
			if err != nil {
				respondError(w, domain.NewError(domain.StorageFailure, "load target", err))
				return
			}
			if t == nil || t.Deleted || t.UserID != userID {
				respondError(w, domain.NewError(domain.TargetNotFound, "target not found", nil))
				return
			}
			alerts, err := s.alertStore.ListByTarget(r.Context(), targetID, limit)
			if err != nil {
				respondError(w, domain.NewError(domain.StorageFailure, "list alerts", err))
				return
			}
			respondJSON(w, http.StatusOK, alerts)
			return
		}

		alerts, err := s.alertStore.ListByUser(r.Context(), userID, limit)
		if err != nil {
			respondError(w, domain.NewError(domain.StorageFailure, "list alerts", err))
			return
		}
		respondJSON(w, http.StatusOK, alerts)
	}
}

type UpdateAlertRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleUpdateAlert() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			badRequest(w, "invalid alert id")
			return
		}

		existing, err := s.alertStore.GetByID(r.Context(), id)
		if err != nil {
			respondError(w, domain.NewError(domain.StorageFailure, "load alert", err))
			return
		}
		if existing == nil {
			respondError(w, domain.NewError(domain.TargetNotFound, "alert not found", nil))
			return
		}
		owner, err := s.targetStore.GetByID(r.Context(), existing.TargetID)
		if err != nil {
			respondError(w, domain.NewError(domain.StorageFailure, "load target", err))
			return
		}
		if owner == nil || owner.UserID != getUserID(r) {
			respondError(w, domain.NewError(domain.TargetNotFound, "alert not found", nil))
			return
		}

		var req UpdateAlertRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "invalid request body")
			return
		}

		status := domain.AlertStatus(req.Status)
		switch status {
		case domain.AlertUnread, domain.AlertRead, domain.AlertArchived:
		default:
			badRequest(w, "invalid status")
			return
		}

		if err := s.alertStore.SetStatus(r.Context(), id, status); err != nil {
			respondError(w, domain.NewError(domain.StorageFailure, "update alert", err))
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"id": id.String()})
	}
}

package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/RamfiAogusto/competitor-tracker/internal/domain"
)

// handleListChanges returns a target's snapshot history (its "changes"
// timeline) via ?targetId=.
func (s *Server) handleListChanges() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		targetIDStr := r.URL.Query().Get("targetId")
		if targetIDStr == "" {
			badRequest(w, "targetId is required")
			return
		}
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
		if t == nil || t.Deleted || t.UserID != getUserID(r) {
			respondError(w, domain.NewError(domain.TargetNotFound, "target not found", nil))
			return
		}

		limit := 50
		if ls := r.URL.Query().Get("limit"); ls != "" {
			if v, err := strconv.Atoi(ls); err == nil && v > 0 {
				limit = v
			}
		}

		snapshots, err := s.snapshotStore.List(r.Context(), targetID, limit)
		if err != nil {
			respondError(w, domain.NewError(domain.StorageFailure, "list changes", err))
			return
		}
		respondJSON(w, http.StatusOK, snapshots)
	}
}

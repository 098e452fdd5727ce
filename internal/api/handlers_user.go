package api

import (
	"encoding/json"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/RamfiAogusto/competitor-tracker/internal/domain"
)

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "invalid request body")
			return
		}

		if req.Email == "" || req.Password == "" {
			badRequest(w, "email and password are required")
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			respondError(w, domain.NewError(domain.StorageFailure, "failed to process password", err))
			return
		}

		id, err := s.userStore.CreateUser(r.Context(), req.Email, string(hash))
		if err != nil {
			s.logger.Error("failed to create user", "error", err)
			respondError(w, domain.NewError(domain.ValidationFailed, "user already exists or invalid request", err))
			return
		}

		token, err := s.generateToken(id)
		if err != nil {
			respondError(w, domain.NewError(domain.StorageFailure, "failed to generate token", err))
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     "token",
			Value:    token,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})

		respondJSON(w, http.StatusCreated, map[string]interface{}{
			"user_id": id,
			"token":   token,
		})
	}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "invalid request body")
			return
		}

		u, err := s.userStore.GetUserByEmail(r.Context(), req.Email)
		if err != nil {
			respondError(w, domain.NewError(domain.StorageFailure, "database error", err))
			return
		}
		if u == nil {
			respondError(w, domain.NewError(domain.ValidationFailed, "invalid credentials", nil))
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
			respondError(w, domain.NewError(domain.ValidationFailed, "invalid credentials", nil))
			return
		}

		token, err := s.generateToken(u.ID)
		if err != nil {
			respondError(w, domain.NewError(domain.StorageFailure, "failed to generate token", err))
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     "token",
			Value:    token,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})

		respondJSON(w, http.StatusOK, map[string]interface{}{
			"user_id": u.ID,
			"token":   token,
		})
	}
}

func (s *Server) handleGetMe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := getUserID(r)
		u, err := s.userStore.GetUserByID(r.Context(), userID)
		if err != nil {
			respondError(w, domain.NewError(domain.StorageFailure, "database error", err))
			return
		}
		if u == nil {
			respondError(w, domain.NewError(domain.TargetNotFound, "user not found", nil))
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"id":         u.ID,
			"email":      u.Email,
			"created_at": u.CreatedAt,
		})
	}
}

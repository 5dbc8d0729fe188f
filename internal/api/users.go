package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/urielparavi/natours-auth/internal/auth"
)

// setRoleRequest is the request body for PATCH /users/{id}/role.
type setRoleRequest struct {
	Role string `json:"role"`
}

// handleMe returns the current user, read fresh from the store.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.auth.Me(r.Context(), userFromContext(r.Context()).ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, userData{User: user})
}

// handleUpdateMe patches name, email and photo. Password fields are refused.
func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var req auth.ProfileInput
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := s.auth.UpdateProfile(r.Context(), userFromContext(r.Context()).ID, req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, userData{User: user})
}

// handleDeleteMe deactivates the current account and clears the cookie.
func (s *Server) handleDeleteMe(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Deactivate(r.Context(), userFromContext(r.Context()).ID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.clearSessionCookie(w, r)
	w.WriteHeader(http.StatusNoContent)
}

// handleListUsers returns accounts, optionally filtered by role.
// Query: role, include_inactive, limit, offset.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := auth.ListFilter{
		IncludeInactive: q.Get("include_inactive") == "true",
	}

	if v := q.Get("role"); v != "" {
		role, err := auth.ParseRole(v)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		filter.Role = role
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeFail(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeFail(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		filter.Offset = n
	}

	users, err := s.auth.ListUsers(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if users == nil {
		users = []auth.User{}
	}

	count := len(users)
	writeJSON(w, http.StatusOK, envelope{
		Status:  statusSuccess,
		Results: &count,
		Data:    map[string]any{"users": users},
	})
}

// handleGetUser returns any account by ID.
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.auth.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, userData{User: user})
}

// handleSetRole changes another account's role.
func (s *Server) handleSetRole(w http.ResponseWriter, r *http.Request) {
	var req setRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := s.auth.SetRole(r.Context(), userFromContext(r.Context()), chi.URLParam(r, "id"), req.Role)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, userData{User: user})
}

package api

import (
	"net/http"
	"strconv"

	"github.com/urielparavi/natours-auth/internal/audit"
)

// handleListAuditLogs returns paginated auth events with optional filters.
//
// Query parameters:
//   - action: filter by event type (signup, login, password_reset, ...)
//   - user_id: filter by account
//   - outcome: success or failure
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeError(w, http.StatusServiceUnavailable, "Audit logging is not configured.")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:  q.Get("action"),
		UserID:  q.Get("user_id"),
		Outcome: q.Get("outcome"),
	}

	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filter.Offset = n
		}
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	count := len(result.Logs)
	writeJSON(w, http.StatusOK, envelope{
		Status:  statusSuccess,
		Results: &count,
		Data:    result,
	})
}

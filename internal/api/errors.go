package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/urielparavi/natours-auth/internal/auth"
)

// Envelope status values.
const (
	statusSuccess = "success"
	statusFail    = "fail"
	statusError   = "error"
)

// envelope is the body of every JSON response.
type envelope struct {
	Status  string `json:"status"`
	Token   string `json:"token,omitempty"`
	Results *int   `json:"results,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// errorMapping ties a sentinel to its status code and client message.
// Order matters: the first errors.Is match wins, so ErrTokenExpired sits
// before ErrTokenInvalid which it wraps.
type errorMapping struct {
	err     error
	status  int
	message string
}

var errorMappings = []errorMapping{
	{auth.ErrMissingCredentials, http.StatusBadRequest, "Please provide email and password!"},
	{auth.ErrResetTokenInvalid, http.StatusBadRequest, "Token is invalid or has expired!"},
	{auth.ErrPasswordRouteMisuse, http.StatusBadRequest, "This route is not for password updates. Please use /updateMyPassword."},
	{auth.ErrInvalidRole, http.StatusBadRequest, "Invalid role. Use one of: user, guide, lead-guide, admin."},
	{auth.ErrEmailExists, http.StatusConflict, "Duplicate field value: email. Please use another value!"},
	{auth.ErrNotLoggedIn, http.StatusUnauthorized, "You are not logged in! please log in to get access."},
	{auth.ErrTokenExpired, http.StatusUnauthorized, "Your token has expired! Please log in again."},
	{auth.ErrTokenInvalid, http.StatusUnauthorized, "Invalid token. Please log in again!"},
	{auth.ErrUserGone, http.StatusUnauthorized, "The user belonging to this token does no longer exist."},
	{auth.ErrPasswordChanged, http.StatusUnauthorized, "User recently changed password! Please log in again."},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, "Incorrect email or password!"},
	{auth.ErrCurrentPasswordWrong, http.StatusUnauthorized, "Your current password is wrong."},
	{auth.ErrForbidden, http.StatusForbidden, "You do not have permission to perform this action."},
	{auth.ErrSelfModification, http.StatusForbidden, "You cannot change your own role."},
	{auth.ErrUserNotFound, http.StatusNotFound, "No user found with that ID."},
	{auth.ErrEmailDelivery, http.StatusInternalServerError, "There was an error sending the email. Try again later!"},
}

const internalErrorMessage = "Something went very wrong!"

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeSuccess writes a success envelope around data.
func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Status: statusSuccess, Data: data})
}

// writeFail writes a 4xx envelope.
func writeFail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Status: statusFail, Message: message})
}

// writeError writes a 5xx envelope. The message is always generic.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Status: statusError, Message: message})
}

// writeServiceError maps an error from the auth service to a response.
// Unknown errors are logged with the request ID and answered with 500.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *auth.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, envelope{
			Status:  statusFail,
			Message: verr.Error(),
			Data:    map[string]any{"errors": verr.Fields},
		})
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			if m.status >= http.StatusInternalServerError {
				s.logger.Error("request failed",
					"error", err,
					"path", r.URL.Path,
					"request_id", r.Context().Value(ctxKeyRequestID),
				)
				writeError(w, m.status, m.message)
				return
			}
			writeFail(w, m.status, m.message)
			return
		}
	}

	s.logger.Error("unhandled error",
		"error", err,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", r.Context().Value(ctxKeyRequestID),
	)
	writeError(w, http.StatusInternalServerError, internalErrorMessage)
}

// decodeJSON reads the request body into dst. It writes the failure
// response itself and returns false when the body is unusable.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeFail(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return false
	}
	writeFail(w, http.StatusBadRequest, "Invalid JSON body")
	return false
}

package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/urielparavi/natours-auth/internal/auth"
)

// resetRoutePath is where the reset link points, relative to the public URL.
const resetRoutePath = "/api/v1/users/resetPassword"

// loginRequest is the request body for POST /users/login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// forgotPasswordRequest is the request body for POST /users/forgotPassword.
type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// updatePasswordRequest is the request body for PATCH /users/updateMyPassword.
type updatePasswordRequest struct {
	PasswordCurrent string `json:"passwordCurrent"`
	auth.PasswordInput
}

// userData wraps a single user for the envelope's data field.
type userData struct {
	User *auth.User `json:"user"`
}

// writeSession sets the cookie and writes the token response shared by
// signup, login, reset and password update.
func (s *Server) writeSession(w http.ResponseWriter, r *http.Request, status int, res *auth.AuthResult) {
	s.setSessionCookie(w, r, res.Token, res.ExpiresAt)
	writeJSON(w, status, envelope{
		Status: statusSuccess,
		Token:  res.Token,
		Data:   userData{User: res.User},
	})
}

// handleSignup creates an account and logs it in.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req auth.SignupInput
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := s.auth.Signup(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeSession(w, r, http.StatusCreated, res)
}

// handleLogin exchanges credentials for a session.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeSession(w, r, http.StatusOK, res)
}

// handleLogout clears the session cookie. Bearer tokens held by the client
// stay valid until they expire.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.Logout(r.Context(), userFromContext(r.Context()))
	s.clearSessionCookie(w, r)
	writeJSON(w, http.StatusOK, envelope{Status: statusSuccess})
}

// handleSession reports the current user, or null when anonymous.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, userData{User: userFromContext(r.Context())})
}

// handleForgotPassword emails a reset link. The response is identical
// whether or not the address belongs to an account.
func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.auth.ForgotPassword(r.Context(), req.Email, s.resetURLBase(r)); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Status: statusSuccess, Message: "Token sent to email!"})
}

// handleResetPassword redeems a reset credential and logs the user in.
func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req auth.PasswordInput
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := s.auth.ResetPassword(r.Context(), chi.URLParam(r, "token"), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeSession(w, r, http.StatusOK, res)
}

// handleUpdateMyPassword changes the password after checking the current one.
func (s *Server) handleUpdateMyPassword(w http.ResponseWriter, r *http.Request) {
	var req updatePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user := userFromContext(r.Context())
	res, err := s.auth.UpdatePassword(r.Context(), user.ID, req.PasswordCurrent, req.PasswordInput)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeSession(w, r, http.StatusOK, res)
}

// resetURLBase builds the reset link prefix. A configured public URL wins;
// otherwise the request's own scheme and host are used.
func (s *Server) resetURLBase(r *http.Request) string {
	if s.publicURL != "" {
		return strings.TrimRight(s.publicURL, "/") + resetRoutePath
	}
	scheme := "http"
	if isSecureRequest(r) {
		scheme = "https"
	}
	return scheme + "://" + r.Host + resetRoutePath
}

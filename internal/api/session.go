package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/urielparavi/natours-auth/internal/auth"
)

// ctxKeyUser is the context key for the resolved user.
const ctxKeyUser contextKey = "user"

// loggedOutValue is the placeholder the logout cookie carries. It is never
// a token.
const loggedOutValue = "loggedout"

// withUser returns a copy of ctx carrying user.
func withUser(ctx context.Context, user *auth.User) context.Context {
	return context.WithValue(ctx, ctxKeyUser, user)
}

// userFromContext returns the user resolved by protect or isLoggedIn, or
// nil for an anonymous request.
func userFromContext(ctx context.Context) *auth.User {
	user, _ := ctx.Value(ctxKeyUser).(*auth.User) //nolint:errcheck // type assertion, not error
	return user
}

// tokenFromRequest extracts the session token. The Authorization header
// wins over the cookie; a "loggedout" cookie counts as no token.
func (s *Server) tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		if token := strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")); token != "" {
			return token
		}
	}

	c, err := r.Cookie(s.cookieName)
	if err != nil || c.Value == "" || c.Value == loggedOutValue {
		return ""
	}
	return c.Value
}

// protect rejects the request unless it carries a valid session for a live
// account whose password has not changed since the token was issued.
func (s *Server) protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _, err := s.auth.Authenticate(r.Context(), s.tokenFromRequest(r))
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

// isLoggedIn resolves the session when possible and never fails the
// request. Any verification problem leaves the request anonymous.
func (s *Server) isLoggedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := s.tokenFromRequest(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		user, _, err := s.auth.Authenticate(r.Context(), token)
		if err != nil {
			s.logger.Debug("optional session not resolved", "error", err)
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

// restrictTo admits only users holding one of roles. It must run after
// protect; without a resolved user it answers 401.
func (s *Server) restrictTo(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := userFromContext(r.Context())
			if user == nil {
				s.writeServiceError(w, r, auth.ErrNotLoggedIn)
				return
			}
			if err := auth.RequireRole(user, roles...); err != nil {
				s.writeServiceError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/urielparavi/natours-auth/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)
	r.Use(s.clientInfoMiddleware)

	r.NotFound(s.handleNotFound)
	r.MethodNotAllowed(s.handleNotFound)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/users", func(r chi.Router) {
			// Public
			r.Post("/signup", s.handleSignup)
			r.Post("/login", s.handleLogin)
			r.Post("/forgotPassword", s.handleForgotPassword)
			r.Patch("/resetPassword/{token}", s.handleResetPassword)

			// Session optional
			r.With(s.isLoggedIn).Get("/logout", s.handleLogout)
			r.With(s.isLoggedIn).Get("/session", s.handleSession)

			// Logged in
			r.Group(func(r chi.Router) {
				r.Use(s.protect)

				r.Patch("/updateMyPassword", s.handleUpdateMyPassword)
				r.Get("/me", s.handleMe)
				r.Patch("/updateMe", s.handleUpdateMe)
				r.Delete("/deleteMe", s.handleDeleteMe)

				// Admin
				r.Group(func(r chi.Router) {
					r.Use(s.restrictTo(auth.RoleAdmin))

					r.Get("/", s.handleListUsers)
					r.Get("/{id}", s.handleGetUser)
					r.Patch("/{id}/role", s.handleSetRole)
				})
			})
		})

		r.With(s.protect, s.restrictTo(auth.RoleAdmin)).Get("/audit-logs", s.handleListAuditLogs)
	})

	return r
}

// handleNotFound answers every unmatched route.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeFail(w, http.StatusNotFound, fmt.Sprintf("Can't find %s on this server!", r.URL.Path))
}

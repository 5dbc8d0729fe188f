// Package api implements the HTTP REST API for natours-auth.
//
// This package provides:
//   - Account endpoints under /api/v1/users (signup, login, logout, password
//     reset and update, profile, admin user management)
//   - Session resolution from a Bearer header or the jwt cookie
//   - Role gating for admin routes
//   - The admin audit log query and a health endpoint
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Responses
//
// Every JSON body uses one envelope:
//
//	{"status": "success" | "fail" | "error", "token": ..., "message": ..., "data": ...}
//
// "fail" marks a client error (4xx) and "error" a server error (5xx).
// Internal error details are logged and never returned.
//
// # Sessions
//
// protect rejects requests without a valid session. isLoggedIn resolves a
// session when one is present and otherwise continues anonymously.
// restrictTo must follow protect. Logout expires the cookie only; a token
// presented in the Authorization header keeps working until exp.
package api

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/urielparavi/natours-auth/internal/audit"
	"github.com/urielparavi/natours-auth/internal/auth"
	"github.com/urielparavi/natours-auth/internal/infrastructure/config"
	"github.com/urielparavi/natours-auth/internal/infrastructure/database"
	"github.com/urielparavi/natours-auth/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// defaultCookieName is used when the config leaves the cookie name empty.
const defaultCookieName = "jwt"

// HealthChecker is implemented by every optional backend reported on
// /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	Security  config.SecurityConfig
	PublicURL string
	Logger    *logging.Logger
	Auth      *auth.Service
	AuditRepo audit.Repository

	// DB is the SQLite handle; its pool stats appear on /health.
	DB *database.DB

	// Checks are named backends checked by /health. A failing check marks
	// the service degraded.
	Checks map[string]HealthChecker

	Version string
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes and middleware.
// The server is created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	cookieName string
	publicURL  string
	logger     *logging.Logger
	auth       *auth.Service
	auditRepo  audit.Repository
	db         *database.DB
	checks     map[string]HealthChecker
	version    string
	startTime  time.Time
	server     *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Logger and Auth are required. AuditRepo, DB and Checks are
//     optional; the audit and health routes degrade when they are nil.
//
// Returns:
//   - *Server: Configured server, not yet listening
//   - error: If a required dependency is missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("auth service is required")
	}

	cookieName := deps.Security.JWT.CookieName
	if cookieName == "" {
		cookieName = defaultCookieName
	}

	return &Server{
		cfg:        deps.Config,
		cookieName: cookieName,
		publicURL:  deps.PublicURL,
		logger:     deps.Logger,
		auth:       deps.Auth,
		auditRepo:  deps.AuditRepo,
		db:         deps.DB,
		checks:     deps.Checks,
		version:    deps.Version,
		startTime:  time.Now(),
	}, nil
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
//
// It performs the following setup:
//  1. Builds the chi router with middleware and all /api/v1 routes
//  2. Applies read, write and idle timeouts from the API config
//  3. Serves TLS when api.tls.enabled is set, plain HTTP otherwise
//
// Listen errors after startup (other than a normal shutdown) are logged,
// not returned, because they happen on the serving goroutine.
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.ReadTimeout(),
		ReadHeaderTimeout: s.cfg.ReadTimeout(),
		WriteTimeout:      s.cfg.WriteTimeout(),
		IdleTimeout:       s.cfg.IdleTimeout(),
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}

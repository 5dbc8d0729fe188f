// Package logging provides structured logging for the auth service.
//
// It wraps log/slog so every component logs the same way: JSON in
// production, text in development, with service and version fields on
// every record.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting service", "port", 3000)
//
// # Security
//
// Attributes keyed password, token, jwt, secret or authorization are
// replaced with [REDACTED] before they are written. Do not rely on this
// as the only guard: never pass credentials to the logger.
package logging

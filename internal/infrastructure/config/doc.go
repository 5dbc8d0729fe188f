// Package config handles loading and validating the auth service configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with NATOURS_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Secrets (JWT secret, SMTP and broker passwords) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//   - The JWT secret has no default; the service refuses to start without one
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.TokenTTL())
package config

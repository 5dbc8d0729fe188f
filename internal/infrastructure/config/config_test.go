package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "test-secret-key-at-least-32-chars!"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
service:
  environment: "test"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "0.0.0.0"
  port: 8080
security:
  jwt:
    secret: "` + testSecret + `"
    expires_in: "7d"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Service.Environment != "test" {
		t.Errorf("Service.Environment = %q, want %q", cfg.Service.Environment, "test")
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}
	if got := cfg.TokenTTL(); got != 7*24*time.Hour {
		t.Errorf("TokenTTL() = %v, want 168h", got)
	}
	// Unset keys keep their defaults.
	if cfg.Security.JWT.CookieName != "jwt" {
		t.Errorf("CookieName = %q, want jwt", cfg.Security.JWT.CookieName)
	}
	if cfg.ResetTTL() != 10*time.Minute {
		t.Errorf("ResetTTL() = %v, want 10m", cfg.ResetTTL())
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
database:
  path: "/tmp/test.db"
api:
  port: 8080
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected validation error for missing jwt secret, got nil")
	}
	if !strings.Contains(err.Error(), "security.jwt.secret is required") {
		t.Errorf("error = %v, want mention of security.jwt.secret", err)
	}
}

func TestLoad_EnvSecret(t *testing.T) {
	t.Setenv("NATOURS_JWT_SECRET", testSecret)
	t.Setenv("NATOURS_JWT_EXPIRES_IN", "12h")

	cfg, err := Load(writeConfig(t, "api:\n  port: 8080\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Security.JWT.Secret != testSecret {
		t.Errorf("JWT.Secret not taken from environment")
	}
	if cfg.TokenTTL() != 12*time.Hour {
		t.Errorf("TokenTTL() = %v, want 12h", cfg.TokenTTL())
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults with secret",
			modify: func(c *Config) {},
		},
		{
			name:    "unknown driver",
			modify:  func(c *Config) { c.Database.Driver = "postgres" },
			wantErr: "database.driver",
		},
		{
			name:    "sqlite without path",
			modify:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name: "mongo without uri",
			modify: func(c *Config) {
				c.Database.Driver = DriverMongo
				c.Database.Mongo.URI = ""
			},
			wantErr: "database.mongo.uri",
		},
		{
			name:    "invalid qos",
			modify:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name:    "port zero",
			modify:  func(c *Config) { c.API.Port = 0 },
			wantErr: "api.port",
		},
		{
			name:    "port too high",
			modify:  func(c *Config) { c.API.Port = 70000 },
			wantErr: "api.port",
		},
		{
			name:    "short secret",
			modify:  func(c *Config) { c.Security.JWT.Secret = "short" },
			wantErr: "at least 32 characters",
		},
		{
			name:    "bad horizon",
			modify:  func(c *Config) { c.Security.JWT.ExpiresIn = "ninety days" },
			wantErr: "security.jwt.expires_in",
		},
		{
			name:    "unknown algorithm",
			modify:  func(c *Config) { c.Security.Password.Algorithm = "md5" },
			wantErr: "security.password.algorithm",
		},
		{
			name:    "bcrypt cost out of range",
			modify:  func(c *Config) { c.Security.Password.BcryptCost = 40 },
			wantErr: "bcrypt_cost",
		},
		{
			name:    "zero reset ttl",
			modify:  func(c *Config) { c.Security.PasswordReset.TTLMinutes = 0 },
			wantErr: "ttl_minutes",
		},
		{
			name: "email enabled without host",
			modify: func(c *Config) {
				c.Email.Enabled = true
				c.Email.Host = ""
			},
			wantErr: "email.host",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Security.JWT.Secret = testSecret
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestAPIConfig_Timeouts(t *testing.T) {
	cfg := defaultConfig()
	cfg.API.Timeouts.Read = 10
	cfg.API.Timeouts.Write = 20
	cfg.API.Timeouts.Idle = 30

	if got := cfg.API.ReadTimeout(); got != 10*time.Second {
		t.Errorf("ReadTimeout() = %v, want %v", got, 10*time.Second)
	}
	if got := cfg.API.WriteTimeout(); got != 20*time.Second {
		t.Errorf("WriteTimeout() = %v, want %v", got, 20*time.Second)
	}
	if got := cfg.API.IdleTimeout(); got != 30*time.Second {
		t.Errorf("IdleTimeout() = %v, want %v", got, 30*time.Second)
	}
}

func TestIsProduction(t *testing.T) {
	tests := []struct {
		env  string
		want bool
	}{
		{"production", true},
		{"Production", true},
		{"development", false},
		{"", false},
	}
	for _, tt := range tests {
		cfg := &Config{Service: ServiceConfig{Environment: tt.env}}
		if got := cfg.IsProduction(); got != tt.want {
			t.Errorf("IsProduction() for %q = %v, want %v", tt.env, got, tt.want)
		}
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("NATOURS_DATABASE_PATH", "/custom/path.db")
	t.Setenv("NATOURS_DATABASE_DRIVER", "mongo")
	t.Setenv("NATOURS_DATABASE_MONGO_URI", "mongodb://db:27017")
	t.Setenv("NATOURS_MQTT_HOST", "mqtt.example.com")
	t.Setenv("NATOURS_MQTT_PORT", "8883")
	t.Setenv("NATOURS_API_PORT", "9090")
	t.Setenv("NATOURS_API_CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("NATOURS_LOG_LEVEL", "debug")
	t.Setenv("NATOURS_PASSWORD_ALGORITHM", "bcrypt")
	t.Setenv("NATOURS_SMTP_HOST", "smtp.example.com")
	t.Setenv("NATOURS_SEED_ADMIN_EMAIL", "admin@example.com")

	cfg := defaultConfig()
	if err := applyEnvOverrides(cfg); err != nil {
		t.Fatalf("applyEnvOverrides() error = %v", err)
	}

	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.Database.Driver != DriverMongo {
		t.Errorf("Database.Driver = %q, want mongo", cfg.Database.Driver)
	}
	if cfg.Database.Mongo.URI != "mongodb://db:27017" {
		t.Errorf("Database.Mongo.URI = %q", cfg.Database.Mongo.URI)
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("MQTT.Broker.Port = %d, want %d", cfg.MQTT.Broker.Port, 8883)
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 9090)
	}
	if len(cfg.API.CORS.AllowedOrigins) != 2 {
		t.Errorf("CORS.AllowedOrigins = %v, want 2 entries", cfg.API.CORS.AllowedOrigins)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Security.Password.Algorithm != "bcrypt" {
		t.Errorf("Password.Algorithm = %q, want bcrypt", cfg.Security.Password.Algorithm)
	}
	if cfg.Email.Host != "smtp.example.com" {
		t.Errorf("Email.Host = %q", cfg.Email.Host)
	}
	if cfg.Security.SeedAdminEmail != "admin@example.com" {
		t.Errorf("SeedAdminEmail = %q", cfg.Security.SeedAdminEmail)
	}
	// Untouched values keep their defaults.
	if cfg.Security.JWT.CookieName != "jwt" {
		t.Errorf("CookieName = %q, want jwt", cfg.Security.JWT.CookieName)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Database.Driver != DriverSQLite {
		t.Errorf("default Database.Driver = %q, want sqlite", cfg.Database.Driver)
	}
	if !cfg.Database.WALMode {
		t.Error("default Database.WALMode should be true")
	}
	if cfg.API.MaxBodyBytes != 10240 {
		t.Errorf("default API.MaxBodyBytes = %d, want 10240", cfg.API.MaxBodyBytes)
	}
	if cfg.Security.Password.BcryptCost != 10 {
		t.Errorf("default BcryptCost = %d, want 10", cfg.Security.Password.BcryptCost)
	}
	if cfg.Security.JWT.Secret != "" {
		t.Error("default JWT secret must be empty")
	}
	if cfg.MQTT.Enabled || cfg.InfluxDB.Enabled || cfg.Email.Enabled {
		t.Error("optional integrations should be disabled by default")
	}
}

func TestParseHorizon(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "90d", want: 90 * 24 * time.Hour},
		{in: "2w", want: 14 * 24 * time.Hour},
		{in: "12h", want: 12 * time.Hour},
		{in: "30m", want: 30 * time.Minute},
		{in: "3600", want: time.Hour},
		{in: "", wantErr: true},
		{in: "xd", wantErr: true},
		{in: "soon", wantErr: true},
		{in: "9999999999999d", wantErr: true},
		{in: "99999999999999w", wantErr: true},
		{in: "9999999999999999999", wantErr: true},
		{in: "106751d", want: 106751 * 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHorizon(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseHorizon(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseHorizon(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

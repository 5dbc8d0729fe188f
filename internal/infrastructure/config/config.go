package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable override.
const EnvPrefix = "NATOURS_"

// Supported credential store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// Config is the root configuration structure for the auth service.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Service  ServiceConfig  `yaml:"service"  envPrefix:"SERVICE_"`
	Database DatabaseConfig `yaml:"database" envPrefix:"DATABASE_"`
	MQTT     MQTTConfig     `yaml:"mqtt"     envPrefix:"MQTT_"`
	API      APIConfig      `yaml:"api"      envPrefix:"API_"`
	InfluxDB InfluxDBConfig `yaml:"influxdb" envPrefix:"INFLUXDB_"`
	Logging  LoggingConfig  `yaml:"logging"  envPrefix:"LOG_"`
	Security SecurityConfig `yaml:"security"`
	Email    EmailConfig    `yaml:"email"    envPrefix:"SMTP_"`
}

// ServiceConfig identifies the running deployment.
type ServiceConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment" env:"ENV"`

	// PublicURL is the externally reachable base URL used in reset emails.
	// When empty the URL is derived from the incoming request.
	PublicURL string `yaml:"public_url" env:"PUBLIC_URL"`
}

// DatabaseConfig selects and configures the credential store.
type DatabaseConfig struct {
	Driver      string      `yaml:"driver"       env:"DRIVER"`
	Path        string      `yaml:"path"         env:"PATH"`
	WALMode     bool        `yaml:"wal_mode"`
	BusyTimeout int         `yaml:"busy_timeout"`
	Mongo       MongoConfig `yaml:"mongo"        envPrefix:"MONGO_"`
}

// MongoConfig contains MongoDB connection settings.
type MongoConfig struct {
	URI      string `yaml:"uri"      env:"URI"`
	Database string `yaml:"database" env:"DATABASE"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled" env:"ENABLED"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"      env:"HOST"`
	Port     int    `yaml:"port"      env:"PORT"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username" env:"USERNAME"`
	Password string `yaml:"password" env:"PASSWORD"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host" env:"HOST"`
	Port     int              `yaml:"port" env:"PORT"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`

	// MaxBodyBytes caps request bodies. Auth payloads are tiny.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled" env:"ENABLED"`
	URL           string `yaml:"url"     env:"URL"`
	Token         string `yaml:"token"   env:"TOKEN"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"  env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
	Output string `yaml:"output"`
}

// SecurityConfig contains session, password and bootstrap settings.
type SecurityConfig struct {
	JWT           JWTConfig           `yaml:"jwt"            envPrefix:"JWT_"`
	Password      PasswordConfig      `yaml:"password"       envPrefix:"PASSWORD_"`
	PasswordReset PasswordResetConfig `yaml:"password_reset"`

	// SeedAdminEmail creates an admin account on first boot when the
	// credential store is empty.
	SeedAdminEmail string `yaml:"seed_admin_email" env:"SEED_ADMIN_EMAIL"`
}

// JWTConfig contains session token settings.
type JWTConfig struct {
	Secret string `yaml:"secret" env:"SECRET"`

	// ExpiresIn is the token horizon, e.g. "90d" or "12h".
	// The session cookie lives exactly as long.
	ExpiresIn  string `yaml:"expires_in"  env:"EXPIRES_IN"`
	CookieName string `yaml:"cookie_name"`
}

// PasswordConfig selects the password hashing algorithm and its work factor.
type PasswordConfig struct {
	Algorithm  string       `yaml:"algorithm" env:"ALGORITHM"`
	Argon2     Argon2Config `yaml:"argon2"`
	BcryptCost int          `yaml:"bcrypt_cost" env:"BCRYPT_COST"`
}

// Argon2Config contains Argon2id cost parameters.
type Argon2Config struct {
	Time      uint32 `yaml:"time"`
	MemoryKiB uint32 `yaml:"memory_kib"`
	Threads   uint8  `yaml:"threads"`
}

// PasswordResetConfig controls the reset credential lifetime.
type PasswordResetConfig struct {
	TTLMinutes int `yaml:"ttl_minutes"`
}

// EmailConfig contains SMTP delivery settings.
// When disabled, outgoing mail is written to the log instead.
type EmailConfig struct {
	Enabled  bool   `yaml:"enabled"  env:"ENABLED"`
	Host     string `yaml:"host"     env:"HOST"`
	Port     int    `yaml:"port"     env:"PORT"`
	Username string `yaml:"username" env:"USERNAME"`
	Password string `yaml:"password" env:"PASSWORD"`
	From     string `yaml:"from"     env:"FROM"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables use the NATOURS_ prefix followed by the section,
// for example NATOURS_DATABASE_PATH or NATOURS_JWT_SECRET.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "natours-auth",
			Environment: "development",
		},
		Database: DatabaseConfig{
			Driver:      DriverSQLite,
			Path:        "./data/natours.db",
			WALMode:     true,
			BusyTimeout: 5,
			Mongo: MongoConfig{
				URI:      "mongodb://localhost:27017",
				Database: "natours",
			},
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "natours-auth",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 3000,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			MaxBodyBytes: 10 << 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				ExpiresIn:  "90d",
				CookieName: "jwt",
			},
			Password: PasswordConfig{
				Algorithm: "argon2id",
				Argon2: Argon2Config{
					Time:      3,
					MemoryKiB: 64 * 1024,
					Threads:   1,
				},
				BcryptCost: 10,
			},
			PasswordReset: PasswordResetConfig{
				TTLMinutes: 10,
			},
		},
		Email: EmailConfig{
			Port: 587,
			From: "Natours <no-reply@natours.io>",
		},
	}
}

// applyEnvOverrides applies NATOURS_* environment variables on top of the
// loaded configuration. Unset variables leave the current value untouched.
func applyEnvOverrides(cfg *Config) error {
	return env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix})
}

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required for the sqlite driver")
		}
	case DriverMongo:
		if c.Database.Mongo.URI == "" || c.Database.Mongo.Database == "" {
			errs = append(errs, "database.mongo.uri and database.mongo.database are required for the mongo driver")
		}
		// The audit log always lives in SQLite.
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required for the audit log")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver must be %q or %q", DriverSQLite, DriverMongo))
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Anyone holding the secret can mint a session for any account.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set NATOURS_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if ttl, err := ParseHorizon(c.Security.JWT.ExpiresIn); err != nil {
		errs = append(errs, fmt.Sprintf("security.jwt.expires_in: %v", err))
	} else if ttl <= 0 {
		errs = append(errs, "security.jwt.expires_in must be positive")
	}

	if c.Security.JWT.CookieName == "" {
		errs = append(errs, "security.jwt.cookie_name is required")
	}

	switch c.Security.Password.Algorithm {
	case "argon2id":
		if c.Security.Password.Argon2.Time == 0 || c.Security.Password.Argon2.MemoryKiB == 0 || c.Security.Password.Argon2.Threads == 0 {
			errs = append(errs, "security.password.argon2 time, memory_kib and threads must be positive")
		}
	case "bcrypt":
	default:
		errs = append(errs, "security.password.algorithm must be argon2id or bcrypt")
	}
	if c.Security.Password.BcryptCost < 4 || c.Security.Password.BcryptCost > 31 {
		errs = append(errs, "security.password.bcrypt_cost must be between 4 and 31")
	}

	if c.Security.PasswordReset.TTLMinutes <= 0 {
		errs = append(errs, "security.password_reset.ttl_minutes must be positive")
	}

	if c.Email.Enabled {
		if c.Email.Host == "" || c.Email.Port == 0 || c.Email.From == "" {
			errs = append(errs, "email.host, email.port and email.from are required when email is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// IsProduction reports whether the service runs in the production environment.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Service.Environment, "production")
}

// TokenTTL returns the parsed session token horizon.
// Validate guarantees the value parses.
func (c *Config) TokenTTL() time.Duration {
	ttl, _ := ParseHorizon(c.Security.JWT.ExpiresIn) //nolint:errcheck // checked in Validate
	return ttl
}

// ResetTTL returns the password reset credential lifetime.
func (c *Config) ResetTTL() time.Duration {
	return time.Duration(c.Security.PasswordReset.TTLMinutes) * time.Minute
}

// ReadTimeout returns the API read timeout as a Duration.
func (c APIConfig) ReadTimeout() time.Duration {
	return time.Duration(c.Timeouts.Read) * time.Second
}

// WriteTimeout returns the API write timeout as a Duration.
func (c APIConfig) WriteTimeout() time.Duration {
	return time.Duration(c.Timeouts.Write) * time.Second
}

// IdleTimeout returns the API idle timeout as a Duration.
func (c APIConfig) IdleTimeout() time.Duration {
	return time.Duration(c.Timeouts.Idle) * time.Second
}

// ParseHorizon parses a token lifetime such as "90d", "2w", "12h" or "30m".
//
// Accepted forms, in the order they are tried:
//  1. A bare integer, read as seconds ("3600")
//  2. An integer with a day or week suffix ("90d", "2w")
//  3. Anything time.ParseDuration accepts ("12h", "1h30m")
//
// Returns:
//   - time.Duration: The parsed lifetime (may be zero or negative; Validate rejects those)
//   - error: If the value is empty, malformed, or does not fit in a Duration
func ParseHorizon(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return scaleDuration(s, n, time.Second)
	}

	for suffix, unit := range map[string]time.Duration{
		"d": 24 * time.Hour,
		"w": 7 * 24 * time.Hour,
	} {
		if num, ok := strings.CutSuffix(s, suffix); ok {
			n, err := strconv.ParseInt(num, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid duration %q", s)
			}
			return scaleDuration(s, n, unit)
		}
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}

// scaleDuration returns n units, rejecting products that overflow int64.
func scaleDuration(s string, n int64, unit time.Duration) (time.Duration, error) {
	limit := int64(math.MaxInt64 / unit)
	if n > limit || n < -limit {
		return 0, fmt.Errorf("duration %q out of range", s)
	}
	return time.Duration(n) * unit, nil
}

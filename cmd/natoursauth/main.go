// natours-auth serves account signup, login, sessions and the password
// lifecycle for the Natours API.
//
// Configuration is read from configs/config.yaml (override the path with
// NATOURS_CONFIG) and NATOURS_* environment variables.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/urielparavi/natours-auth/migrations"

	"github.com/urielparavi/natours-auth/internal/api"
	"github.com/urielparavi/natours-auth/internal/audit"
	"github.com/urielparavi/natours-auth/internal/auth"
	"github.com/urielparavi/natours-auth/internal/events"
	"github.com/urielparavi/natours-auth/internal/infrastructure/config"
	"github.com/urielparavi/natours-auth/internal/infrastructure/database"
	"github.com/urielparavi/natours-auth/internal/infrastructure/email"
	"github.com/urielparavi/natours-auth/internal/infrastructure/influxdb"
	"github.com/urielparavi/natours-auth/internal/infrastructure/logging"
	"github.com/urielparavi/natours-auth/internal/infrastructure/mongodb"
	"github.com/urielparavi/natours-auth/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the service and blocks until ctx is cancelled.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence with optional backends
	log := logging.Default()
	log.Info("starting natours-auth",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"environment", cfg.Service.Environment,
		"driver", cfg.Database.Driver,
	)

	// SQLite always holds the audit log, and the users table for the
	// sqlite driver.
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	checks := map[string]api.HealthChecker{"sqlite": db}

	// Credential store
	var users auth.UserRepository
	switch cfg.Database.Driver {
	case config.DriverMongo:
		mongoClient, connErr := mongodb.Connect(ctx, cfg.Database.Mongo)
		if connErr != nil {
			return fmt.Errorf("connecting to MongoDB: %w", connErr)
		}
		defer func() {
			log.Info("disconnecting from MongoDB")
			if closeErr := mongoClient.Close(); closeErr != nil {
				log.Error("error closing MongoDB", "error", closeErr)
			}
		}()
		mongoUsers, repoErr := auth.NewMongoUserRepository(ctx, mongoClient.Database())
		if repoErr != nil {
			return fmt.Errorf("preparing user collection: %w", repoErr)
		}
		users = mongoUsers
		checks["mongodb"] = mongoClient
		log.Info("MongoDB connected", "database", cfg.Database.Mongo.Database)
	default:
		users = auth.NewUserRepository(db.DB)
	}

	// Event sinks
	auditRepo := audit.NewSQLiteRepository(db.DB)
	sinks := []events.Sink{events.NewAuditSink(auditRepo)}

	if cfg.MQTT.Enabled {
		mqttClient, connErr := mqtt.Connect(cfg.MQTT)
		if connErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", connErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		sinks = append(sinks, events.NewMQTTSink(mqttClient, mqttClient.QoS()))
		checks["mqtt"] = mqttClient
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	influxClient, err := influxdb.Connect(ctx, cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		sinks = append(sinks, events.NewMetricsSink(influxClient))
		checks["influxdb"] = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	}

	// The dispatcher outlives the HTTP server so in-flight events drain
	// before the sinks close.
	dispatcher := events.NewDispatcher(events.DefaultQueueSize, log.Logger, sinks...)
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	go dispatcher.Run(dispatchCtx)
	defer func() {
		stopDispatch()
		<-dispatcher.Done()
		if n := dispatcher.Dropped(); n > 0 {
			log.Warn("auth events dropped", "count", n)
		}
	}()

	hasher, err := newHasher(cfg.Security.Password)
	if err != nil {
		return err
	}
	mailer, err := newMailer(cfg, log)
	if err != nil {
		return err
	}
	svc, err := buildService(cfg, users, hasher, mailer, dispatcher, log)
	if err != nil {
		return err
	}

	if _, err := auth.SeedAdmin(ctx, users, hasher, cfg.Security.SeedAdminEmail, log.Logger); err != nil {
		return fmt.Errorf("seeding admin: %w", err)
	}

	server, err := api.New(api.Deps{
		Config:    cfg.API,
		Security:  cfg.Security,
		PublicURL: cfg.Service.PublicURL,
		Logger:    log,
		Auth:      svc,
		AuditRepo: auditRepo,
		DB:        db,
		Checks:    checks,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	return nil
}

// newHasher builds the password hasher for the configured algorithm.
func newHasher(cfg config.PasswordConfig) (*auth.PasswordHasher, error) {
	hasher, err := auth.NewPasswordHasher(auth.HashParams{
		Algorithm:  cfg.Algorithm,
		Time:       cfg.Argon2.Time,
		MemoryKiB:  cfg.Argon2.MemoryKiB,
		Threads:    cfg.Argon2.Threads,
		BcryptCost: cfg.BcryptCost,
	})
	if err != nil {
		return nil, fmt.Errorf("creating password hasher: %w", err)
	}
	return hasher, nil
}

// buildService assembles the auth service from configuration.
func buildService(cfg *config.Config, users auth.UserRepository, hasher *auth.PasswordHasher, mailer auth.Mailer, recorder auth.EventRecorder, log *logging.Logger) (*auth.Service, error) {
	tokens, err := auth.NewTokenCodec(cfg.Security.JWT.Secret, cfg.TokenTTL())
	if err != nil {
		return nil, fmt.Errorf("creating token codec: %w", err)
	}

	svc, err := auth.NewService(auth.ServiceDeps{
		Users:    users,
		Hasher:   hasher,
		Tokens:   tokens,
		Mailer:   mailer,
		Events:   recorder,
		Logger:   log.Logger,
		ResetTTL: cfg.ResetTTL(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating auth service: %w", err)
	}
	return svc, nil
}

// sender is implemented by both email backends.
type sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// newMailer picks SMTP delivery when enabled, otherwise mail goes to the log.
//
// The log fallback writes reset links in clear text, so production
// deployments must configure SMTP.
func newMailer(cfg *config.Config, log *logging.Logger) (auth.Mailer, error) {
	var s sender
	switch {
	case cfg.Email.Enabled:
		s = email.NewSMTPSender(cfg.Email)
		log.Info("SMTP delivery enabled", "host", cfg.Email.Host, "port", cfg.Email.Port)
	case cfg.IsProduction():
		return nil, errors.New("email must be enabled in production: reset links would only reach the log")
	default:
		s = email.NewLogSender(log.Logger)
		log.Warn("SMTP disabled, outgoing mail is written to the log")
	}
	return auth.MailerFunc(func(ctx context.Context, msg auth.Message) error {
		return s.Send(ctx, msg.To, msg.Subject, msg.Body)
	}), nil
}

// getConfigPath returns the configuration file path.
// Uses NATOURS_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("NATOURS_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

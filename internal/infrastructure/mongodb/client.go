package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/urielparavi/natours-auth/internal/infrastructure/config"
)

const (
	defaultConnectTimeout    = 10 * time.Second
	defaultPingTimeout       = 5 * time.Second
	defaultDisconnectTimeout = 5 * time.Second
)

// ErrConnectionFailed indicates the deployment could not be reached.
var ErrConnectionFailed = errors.New("mongodb: connection failed")

// Client wraps a mongo.Client bound to one database.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect establishes a connection to the MongoDB deployment.
//
// It performs the following setup:
//  1. Rejects a config without URI or database name
//  2. Applies the URI with bounded connect and server selection timeouts
//  3. Pings the primary, disconnecting again if it does not answer
//
// Parameters:
//   - ctx: Bounds the initial ping (capped at the connect timeout)
//   - cfg: Mongo section of the service configuration
//
// Returns:
//   - *Client: Connected client; the caller must Close it
//   - error: Wraps ErrConnectionFailed for any setup failure
func Connect(ctx context.Context, cfg config.MongoConfig) (*Client, error) {
	if cfg.URI == "" || cfg.Database == "" {
		return nil, fmt.Errorf("%w: uri and database are required", ErrConnectionFailed)
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(defaultConnectTimeout).
		SetServerSelectionTimeout(defaultConnectTimeout)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background()) //nolint:errcheck // already failing
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}

	return &Client{client: client, db: client.Database(cfg.Database)}, nil
}

// Database returns the configured database handle.
func (c *Client) Database() *mongo.Database {
	return c.db
}

// HealthCheck pings the primary.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c == nil || c.client == nil {
		return ErrConnectionFailed
	}
	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := c.client.Ping(pingCtx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongodb health check: %w", err)
	}
	return nil
}

// Close disconnects the client. Safe to call on a nil Client.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultDisconnectTimeout)
	defer cancel()
	if err := c.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnecting mongodb: %w", err)
	}
	return nil
}

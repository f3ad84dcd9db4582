package db

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type Stage string

const (
	StageConfig     Stage = "config"
	StageDisconnect Stage = "disconnect"
	StageConnect    Stage = "connect"
	StagePing       Stage = "ping"
)

var ErrMissingURL = errors.New("missing database URL")

// ConnectError reports which step of Connector.Connect failed
type ConnectError struct {
	Stage Stage
	URI   string // redacted
	Err   error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("database %s failed for %s: %v", e.Stage, e.URI, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

type DBConnection struct {
	Client *mongo.Client
	DB     *mongo.Database
}

// Collection returns a MongoDB collection
func (conn *DBConnection) Collection(name string) *mongo.Collection {
	return conn.DB.Collection(name)
}

func (conn *DBConnection) Ping(ctx context.Context) error {
	return conn.Client.Ping(ctx, nil)
}

func (conn *DBConnection) Disconnect(ctx context.Context) error {
	if conn.Client == nil {
		return nil
	}
	return conn.Client.Disconnect(ctx)
}

// Connector owns at most one live connection. Every Connect replaces the previous one.
type Connector struct {
	mu     sync.Mutex
	conn   *DBConnection
	logger *zap.SugaredLogger

	dial func(ctx context.Context, opts *options.ClientOptions) (*mongo.Client, error)
	ping func(ctx context.Context, client *mongo.Client) error
}

func NewConnector(logger *zap.SugaredLogger) *Connector {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &Connector{
		logger: logger,
		dial: func(ctx context.Context, opts *options.ClientOptions) (*mongo.Client, error) {
			return mongo.Connect(ctx, opts)
		},
		ping: func(ctx context.Context, client *mongo.Client) error {
			return client.Ping(ctx, nil)
		},
	}
}

// Connect always tears down the current connection, if any, then opens a new one for cfg.
// The returned error is always a *ConnectError.
func (c *Connector) Connect(ctx context.Context, cfg Config) (*DBConnection, error) {
	uri := cfg.RedactedConnectionString()

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.teardown(ctx); err != nil {
		c.logger.Errorw("failed to tear down previous database connection", "error", err)
		return nil, &ConnectError{Stage: StageDisconnect, URI: uri, Err: err}
	}

	if cfg.URL == "" {
		c.logger.Errorw("failed to connect to database", "environment", cfg.EnvironmentLabel(), "error", ErrMissingURL)
		return nil, &ConnectError{Stage: StageConfig, URI: uri, Err: ErrMissingURL}
	}

	client, err := c.dial(ctx, clientOptions(cfg))
	if err != nil {
		c.logger.Errorw("failed to connect to database", "environment", cfg.EnvironmentLabel(), "uri", uri, "error", err)
		return nil, &ConnectError{Stage: StageConnect, URI: uri, Err: err}
	}

	// verify connection with a Ping
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout(cfg))
	defer cancel()

	if err := c.ping(pingCtx, client); err != nil {
		c.logger.Errorw("failed to ping database", "environment", cfg.EnvironmentLabel(), "uri", uri, "error", err)
		if dErr := client.Disconnect(ctx); dErr != nil {
			c.logger.Warnw("failed to disconnect after ping failure", "error", dErr)
		}
		return nil, &ConnectError{Stage: StagePing, URI: uri, Err: err}
	}

	c.conn = &DBConnection{
		Client: client,
		DB:     client.Database(cfg.EffectiveName()),
	}

	c.logger.Infow("connected to database", "environment", cfg.EnvironmentLabel(), "database", cfg.EffectiveName(), "uri", uri)
	return c.conn, nil
}

// Current returns the live connection or nil
func (c *Connector) Current() *DBConnection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *Connector) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.teardown(ctx); err != nil {
		c.logger.Warnw("failed to disconnect database", "error", err)
		return err
	}
	return nil
}

// teardown is a no-op without a connection. The reference is dropped even when
// Disconnect fails so the next Connect starts clean.
func (c *Connector) teardown(ctx context.Context) error {
	if c.conn == nil {
		return nil
	}

	conn := c.conn
	c.conn = nil

	if err := conn.Disconnect(ctx); err != nil {
		return err
	}
	c.logger.Infow("disconnected from database")
	return nil
}

func clientOptions(cfg Config) *options.ClientOptions {
	opts := options.Client().ApplyURI(cfg.ConnectionString())

	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectTimeout)
	}

	if cfg.TLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: cfg.AllowInvalidCertificates,
		})
	}

	return opts
}

func pingTimeout(cfg Config) time.Duration {
	if cfg.PingTimeout > 0 {
		return cfg.PingTimeout
	}
	return defaultPingTimeout
}

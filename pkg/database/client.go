// Package database provides the persistent store: a database/sql client
// over PostgreSQL (pgx) or SQLite, embedded schema migrations, and
// hand-written repositories for traces, budgets, ratings, releases,
// facts, and the audit trail.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx for database/sql
	_ "modernc.org/sqlite"             // register sqlite for database/sql
)

// Driver selects the backing engine.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

// Config holds database configuration.
type Config struct {
	Driver Driver

	// PostgreSQL settings.
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	// SQLite settings. Path is a filesystem path or ":memory:".
	Path string

	// Connection pool settings.
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DSN builds the driver-specific connection string.
func (c Config) DSN() string {
	if c.Driver == DriverSQLite {
		return c.Path
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Client wraps the connection pool and exposes the repositories.
type Client struct {
	db     *sql.DB
	driver Driver
	logger *slog.Logger
}

// DB returns the underlying pool for health checks and direct queries.
func (c *Client) DB() *sql.DB {
	return c.db
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.db.Close()
}

// NewClient opens the database, configures pooling, verifies
// connectivity, and applies pending migrations.
func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "database")

	driverName := "pgx"
	if cfg.Driver == DriverSQLite {
		driverName = "sqlite"
	}
	db, err := sql.Open(driverName, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.Driver == DriverSQLite {
		// SQLite serializes writers; a single connection avoids
		// SQLITE_BUSY under concurrent use.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(db, cfg.Driver, logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Client{db: db, driver: cfg.Driver, logger: logger}, nil
}

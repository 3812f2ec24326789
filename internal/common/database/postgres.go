// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"hr-assistant/internal/common/config"

	_ "github.com/lib/pq"
)

// PostgresClient wraps the SQL database connection
type PostgresClient struct {
	DB *sql.DB
}

// NewPostgres creates a new PostgreSQL client
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

// Ping tests the database connection
func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// Close closes the database connection
func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// Open connects to the configured dataset store and returns the handle with
// the driver name.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, string, error) {
	switch cfg.Driver {
	case "postgres":
		pg, err := NewPostgres(cfg.Postgres)
		if err != nil {
			return nil, "", err
		}
		if err := pg.Ping(ctx); err != nil {
			pg.Close()
			return nil, "", fmt.Errorf("postgres ping failed: %w", err)
		}
		return pg.DB, "postgres", nil
	default:
		lite, err := NewSQLite(cfg.SQLite)
		if err != nil {
			return nil, "", err
		}
		if err := lite.Ping(ctx); err != nil {
			lite.Close()
			return nil, "", fmt.Errorf("sqlite ping failed: %w", err)
		}
		return lite.DB, "sqlite", nil
	}
}

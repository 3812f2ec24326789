// internal/common/database/sqlite.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"hr-assistant/internal/common/config"

	_ "modernc.org/sqlite"
)

// SQLiteClient wraps a read-only connection to the HR dataset file.
type SQLiteClient struct {
	DB *sql.DB
}

// NewSQLite opens the dataset. The DSN is read-only; the assistant never writes.
func NewSQLite(cfg config.SQLiteConfig) (*SQLiteClient, error) {
	db, err := sql.Open("sqlite", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &SQLiteClient{DB: db}, nil
}

// Ping tests the database connection
func (c *SQLiteClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// Close closes the database connection
func (c *SQLiteClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

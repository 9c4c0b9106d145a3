// Package sqlite stores events and predictions in an embedded SQLite file.
// It backs local runs of the CLI and the store-level tests.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register sqlite driver
)

// timeLayout sorts lexically in time order because every value is UTC
// with a fixed-width fraction
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS purchase_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	item_name TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT '',
	quantity REAL NOT NULL,
	unit TEXT NOT NULL DEFAULT '',
	occurred_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_purchase_log_user_item ON purchase_log(user_id, item_name, occurred_at);

CREATE TABLE IF NOT EXISTS consumption_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	item_name TEXT NOT NULL,
	quantity_consumed REAL NOT NULL,
	occurred_at TEXT NOT NULL,
	days_since_acquisition REAL
);
CREATE INDEX IF NOT EXISTS idx_consumption_log_user_item ON consumption_log(user_id, item_name, occurred_at);

CREATE TABLE IF NOT EXISTS inventory (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	item_name TEXT NOT NULL,
	quantity REAL NOT NULL,
	unit TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_inventory_user_item ON inventory(user_id, item_name);

CREATE TABLE IF NOT EXISTS shopping_predictions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	item_name TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT '',
	current_stock REAL NOT NULL,
	unit TEXT NOT NULL DEFAULT '',
	depletion_date TEXT,
	suggested_quantity REAL,
	confidence TEXT NOT NULL,
	urgency TEXT NOT NULL,
	days_until_depletion REAL,
	last_analyzed TEXT NOT NULL,
	purchase_interval_days REAL,
	avg_purchase_quantity REAL,
	consumption_rate_per_day REAL,
	sample_count INTEGER NOT NULL DEFAULT 0,
	UNIQUE(user_id, item_name)
);
`

// DB wraps the SQL database connection
type DB struct {
	db *sql.DB
}

// Open opens or creates the database at path and ensures the schema exists
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Ping verifies the database file is still reachable
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Close closes the database
func (d *DB) Close() error {
	return d.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

package repository

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// Open connects to the entitlement database and verifies the connection.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	switch driver {
	case DriverSQLite:
		// SQLite has a single writer; one connection avoids SQLITE_BUSY churn.
		db.SetMaxOpenConns(1)
	default:
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(2)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

var migrations = map[string]string{
	DriverPostgres: `
		CREATE TABLE IF NOT EXISTS entitlements (
			user_id BIGINT PRIMARY KEY,
			paid    BOOLEAN NOT NULL DEFAULT FALSE,
			paid_at TIMESTAMPTZ
		);

		CREATE TABLE IF NOT EXISTS payment_events (
			transaction_id TEXT PRIMARY KEY,
			user_id        BIGINT NOT NULL,
			amount         TEXT NOT NULL,
			currency       TEXT NOT NULL,
			status         TEXT NOT NULL,
			received_at    TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_payment_events_user_id ON payment_events(user_id);
	`,
	DriverSQLite: `
		CREATE TABLE IF NOT EXISTS entitlements (
			user_id INTEGER PRIMARY KEY,
			paid    BOOLEAN NOT NULL DEFAULT FALSE,
			paid_at TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS payment_events (
			transaction_id TEXT PRIMARY KEY,
			user_id        INTEGER NOT NULL,
			amount         TEXT NOT NULL,
			currency       TEXT NOT NULL,
			status         TEXT NOT NULL,
			received_at    TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_payment_events_user_id ON payment_events(user_id);
	`,
}

// RunMigrations creates the schema for the given driver.
func RunMigrations(ctx context.Context, db *sql.DB, driver string) error {
	query, ok := migrations[driver]
	if !ok {
		return fmt.Errorf("no migrations for driver %q", driver)
	}
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Package sqlite stores parking spots in an embedded SQLite database.
// It backs local development (DB_DRIVER=sqlite) and the package tests.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// timeLayout is fixed width so that TEXT ordering equals chronological ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// NewDB opens the database at path. Use ":memory:" for a throwaway database.
func NewDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS parking_spots (
		id                  TEXT PRIMARY KEY,
		parking_spot_number TEXT NOT NULL UNIQUE,
		license_plate_car   TEXT NOT NULL UNIQUE,
		brand_car           TEXT NOT NULL,
		model_car           TEXT NOT NULL,
		color_car           TEXT NOT NULL,
		registration_date   TEXT NOT NULL,
		responsible_name    TEXT NOT NULL,
		apartment           TEXT NOT NULL,
		block               TEXT NOT NULL,
		UNIQUE (apartment, block)
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		username      TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL,
		last_login_at TEXT NULL,
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL
	)`,
}

// Migrate creates the tables if they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite migrate: %w", err)
		}
	}
	return nil
}

// uniqueViolation returns the "table.column" list named by a UNIQUE constraint failure.
func uniqueViolation(err error) (string, bool) {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return "", false
	}
	msg := sqliteErr.Error()
	code := sqliteErr.Code()
	if code != sqlite3.SQLITE_CONSTRAINT_UNIQUE &&
		(code&0xff != sqlite3.SQLITE_CONSTRAINT || !strings.Contains(msg, "UNIQUE")) {
		return "", false
	}
	if i := strings.Index(msg, "UNIQUE constraint failed:"); i >= 0 {
		msg = msg[i+len("UNIQUE constraint failed:"):]
	}
	return strings.TrimSpace(msg), true
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t, nil
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB wraps sql.DB for Postgres using pgx.
type DB struct {
	Client *sql.DB
}

// NewDB opens a Postgres connection with sane defaults and checks it is reachable.
func NewDB(ctx context.Context, connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &DB{Client: db}, nil
}

// Migrate creates the tables the service needs if they do not exist.
// attendance_records deliberately has no unique (worker_id, date) constraint:
// racing kiosks may insert twice and reads reconcile the duplicates.
func (d *DB) Migrate(ctx context.Context) error {
	_, err := d.Client.ExecContext(ctx, schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS workers (
	id              TEXT PRIMARY KEY,
	first_name      TEXT NOT NULL,
	last_name       TEXT NOT NULL,
	cedula          TEXT UNIQUE,
	birth_date      DATE,
	hire_date       DATE,
	eps             TEXT,
	arl             TEXT,
	job_title       TEXT,
	salary          BIGINT,
	photo_url       TEXT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS attendance_records (
	id              TEXT PRIMARY KEY,
	worker_id       TEXT NOT NULL REFERENCES workers(id) ON DELETE CASCADE,
	date            DATE NOT NULL,
	entry_time      TIMESTAMPTZ,
	exit_time       TIMESTAMPTZ,
	entry_photo_url TEXT,
	exit_photo_url  TEXT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_attendance_worker_date ON attendance_records(worker_id, date);

CREATE TABLE IF NOT EXISTS devices (
	device_id       TEXT PRIMARY KEY,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS refresh_tokens (
	token           TEXT PRIMARY KEY,
	device_id       TEXT NOT NULL REFERENCES devices(device_id) ON DELETE CASCADE,
	expires_at      TIMESTAMPTZ NOT NULL,
	revoked         BOOLEAN NOT NULL DEFAULT FALSE
);
`

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DB wraps one read-write connection and a read-only pool on the same file.
type DB struct {
	readWriteDB *sql.DB
	readDB      *sql.DB
	path        string
	log         *zap.SugaredLogger
	now         func() time.Time
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS rate_limits(
    identifier TEXT PRIMARY KEY,
    count INTEGER NOT NULL,
    reset_time INTEGER NOT NULL
  )`,
	`CREATE TABLE IF NOT EXISTS duplicate_attempts(
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ip_hash TEXT NOT NULL,
    attempted_at INTEGER NOT NULL
  )`,
	`CREATE INDEX IF NOT EXISTS idx_duplicate_attempts_ip_hash ON duplicate_attempts(ip_hash)`,
	`CREATE TABLE IF NOT EXISTS failed_emails(
    id TEXT PRIMARY KEY,
    email_type TEXT NOT NULL,
    payload TEXT NOT NULL,
    error TEXT NOT NULL DEFAULT '',
    retry_count INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL DEFAULT 'pending',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
  )`,
	`CREATE INDEX IF NOT EXISTS idx_failed_emails_status_created ON failed_emails(status, created_at)`,
	`CREATE TABLE IF NOT EXISTS submissions(
    id TEXT PRIMARY KEY,
    form_type TEXT NOT NULL,
    locale TEXT NOT NULL DEFAULT '',
    payload TEXT NOT NULL,
    identity TEXT NOT NULL,
    session_id TEXT,
    created_at INTEGER NOT NULL
  )`,
}

// Open creates the database file if needed and applies the schema.
func Open(log *zap.SugaredLogger, path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, errors.Wrap(err, "failed to create db directory")
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create new file for db")
	}
	_ = f.Close()

	openWrite := fmt.Sprintf("file:%s?mode=rw&_journal_mode=WAL&_busy_timeout=5000", path)
	openRead := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", path)

	db := &DB{path: path, log: log, now: time.Now}
	db.readWriteDB, err = sql.Open("sqlite3", openWrite)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open sqlite3 database")
	}
	db.readWriteDB.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.readWriteDB.Exec(stmt); err != nil {
			_ = db.readWriteDB.Close()
			return nil, errors.Wrap(err, "failed to create schema")
		}
	}

	db.readDB, err = sql.Open("sqlite3", openRead)
	if err != nil {
		_ = db.readWriteDB.Close()
		return nil, errors.Wrap(err, "failed to open read-only sqlite3 database")
	}
	log.Infow("Opened sqlite database", "path", path)
	return db, nil
}

// WithClock replaces the time source used for created/updated timestamps.
func (db *DB) WithClock(now func() time.Time) *DB {
	db.now = now
	return db
}

func (db *DB) Path() string {
	return db.path
}

// Ping checks both connection pools.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.readWriteDB.PingContext(ctx); err != nil {
		return errors.Wrap(err, "read-write connection")
	}
	if err := db.readDB.PingContext(ctx); err != nil {
		return errors.Wrap(err, "read-only connection")
	}
	return nil
}

func (db *DB) Close() error {
	rerr := db.readDB.Close()
	if err := db.readWriteDB.Close(); err != nil {
		return errors.Wrap(err, "failed to close sqlite3 database")
	}
	return rerr
}

// RateLimits returns the counter store backed by this database.
func (db *DB) RateLimits() *RateLimitStore {
	return &RateLimitStore{db: db}
}

// Deliveries returns the failed-delivery store backed by this database.
func (db *DB) Deliveries() *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Submissions returns the submission store backed by this database.
func (db *DB) Submissions() *SubmissionStore {
	return &SubmissionStore{db: db}
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// Package store persists vocabulary snapshots and generated reports in libsql.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "github.com/tursodatabase/go-libsql"
)

// ErrNotFound is returned when a snapshot or run does not exist.
var ErrNotFound = errors.New("not found")

// Config selects the database. URL is either a "file:" DSN or a remote libsql URL.
type Config struct {
	URL       string
	AuthToken string
}

// Store wraps one libsql connection pool.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS vocabularies (
		id TEXT PRIMARY KEY,
		dataset TEXT NOT NULL,
		threshold INTEGER NOT NULL,
		size INTEGER NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS vocabulary_tokens (
		vocab_id TEXT NOT NULL REFERENCES vocabularies(id) ON DELETE CASCADE,
		token_id INTEGER NOT NULL,
		token TEXT NOT NULL,
		frequency INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (vocab_id, token_id)
	)`,
	`CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		study_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		dataset TEXT NOT NULL,
		report TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reports_run ON reports(run_id, position)`,
	`CREATE INDEX IF NOT EXISTS idx_vocabularies_dataset ON vocabularies(dataset, created_at)`,
}

// Open connects to cfg.URL and creates the schema.
func Open(ctx context.Context, cfg Config, logger zerolog.Logger) (*Store, error) {
	dsn, err := resolveDSN(cfg)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connector: %w", err)
	}
	s := &Store{db: db, logger: logger}
	if err := s.initialize(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	logger.Debug().Str("url", redact(cfg.URL)).Msg("Store opened")
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) initialize(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for initialization: %w", err)
	}
	defer tx.Rollback()
	for _, statement := range schema {
		if _, err := tx.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return tx.Commit()
}

// resolveDSN makes sure local database directories exist and attaches the
// auth token to remote URLs.
func resolveDSN(cfg Config) (string, error) {
	if cfg.URL == "" {
		return "", fmt.Errorf("store url is empty")
	}
	if strings.HasPrefix(cfg.URL, "file:") {
		path := strings.TrimPrefix(cfg.URL, "file:")
		if i := strings.IndexByte(path, '?'); i >= 0 {
			path = path[:i]
		}
		if path != "" && !strings.HasPrefix(path, ":memory:") {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return "", fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		return cfg.URL, nil
	}
	if cfg.AuthToken == "" {
		return cfg.URL, nil
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return "", fmt.Errorf("invalid store url: %w", err)
	}
	q := u.Query()
	q.Set("authToken", cfg.AuthToken)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.RawQuery == "" {
		return raw
	}
	q := u.Query()
	if q.Has("authToken") {
		q.Set("authToken", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func now() string { return time.Now().UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

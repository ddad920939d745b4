package issuance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchemaVersion = 1

const sqliteSchemaV1 = `
CREATE TABLE IF NOT EXISTS issuance_requests (
  domain       TEXT PRIMARY KEY,
  requested_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_issuance_requested_at
  ON issuance_requests(requested_at, domain);
`

type SQLiteOption func(*SQLiteStore)

func WithSQLiteNowFunc(now func() time.Time) SQLiteOption {
	return func(s *SQLiteStore) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// SQLiteStore records every requested domain in a local SQLite database.
// Re-requesting a domain refreshes its timestamp.
type SQLiteStore struct {
	db    *sql.DB
	nowFn func() time.Time
}

func NewSQLiteStore(dbPath string, opts ...SQLiteOption) (*SQLiteStore, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, errors.New("empty db path")
	}

	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, nowFn: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) init() error {
	ctx := context.Background()

	var journalMode string
	if err := s.db.QueryRowContext(ctx, "PRAGMA journal_mode=WAL;").Scan(&journalMode); err != nil {
		return fmt.Errorf("sqlite: set journal_mode=wal: %w", err)
	}
	if strings.ToLower(journalMode) != "wal" {
		return fmt.Errorf("sqlite: journal_mode=%q, want wal", journalMode)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA synchronous=FULL;"); err != nil {
		return fmt.Errorf("sqlite: set synchronous=full: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout=5000;"); err != nil {
		return fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}
	return s.migrate(ctx)
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER NOT NULL);`); err != nil {
		return fmt.Errorf("sqlite: init migrations table: %w", err)
	}

	var current int
	err = tx.QueryRowContext(ctx, `SELECT version FROM schema_migrations LIMIT 1;`).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		current = 0
	case err != nil:
		return fmt.Errorf("sqlite: read schema_version: %w", err)
	}
	if current > sqliteSchemaVersion {
		return fmt.Errorf("sqlite: schema_version=%d, want <=%d", current, sqliteSchemaVersion)
	}

	if current < 1 {
		if _, err := tx.ExecContext(ctx, sqliteSchemaV1); err != nil {
			return fmt.Errorf("sqlite: migrate v1: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO schema_migrations(rowid, version) VALUES (1, ?);`, sqliteSchemaVersion); err != nil {
		return fmt.Errorf("sqlite: write schema_version: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) Record(ctx context.Context, domains []string) error {
	domains = normalizeDomains(domains)
	if len(domains) == 0 {
		return nil
	}
	now := s.nowFn().UTC().UnixNano()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, d := range domains {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO issuance_requests(domain, requested_at) VALUES (?, ?)
ON CONFLICT(domain) DO UPDATE SET requested_at = excluded.requested_at;
`, d, now); err != nil {
			return fmt.Errorf("sqlite: record %s: %w", d, err)
		}
	}
	return tx.Commit()
}

// Pending lists recorded requests, oldest first.
func (s *SQLiteStore) Pending(ctx context.Context) ([]Request, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT domain, requested_at FROM issuance_requests ORDER BY requested_at, domain;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		var (
			r  Request
			ns int64
		)
		if err := rows.Scan(&r.Domain, &ns); err != nil {
			return nil, err
		}
		r.RequestedAt = time.Unix(0, ns).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Remove drops a request once the certificate has been issued.
func (s *SQLiteStore) Remove(ctx context.Context, domain string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM issuance_requests WHERE domain = ?;`, strings.TrimSpace(domain))
	return err
}

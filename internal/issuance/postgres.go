package issuance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const postgresSchemaV1 = `
CREATE TABLE IF NOT EXISTS issuance_requests (
  domain       TEXT PRIMARY KEY,
  requested_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_issuance_requested_at
  ON issuance_requests(requested_at, domain);
`

type PostgresOption func(*PostgresStore)

func WithPostgresNowFunc(now func() time.Time) PostgresOption {
	return func(s *PostgresStore) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// PostgresStore is the shared-database variant of SQLiteStore, for setups
// where the issuer runs on another host.
type PostgresStore struct {
	db    *sql.DB
	nowFn func() time.Time
}

func NewPostgresStore(dsn string, opts ...PostgresOption) (*PostgresStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("empty postgres dsn")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &PostgresStore{db: db, nowFn: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	if _, err := db.ExecContext(ctx, postgresSchemaV1); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: init schema: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresStore) Record(ctx context.Context, domains []string) error {
	if s == nil || s.db == nil {
		return errors.New("postgres store is closed")
	}
	domains = normalizeDomains(domains)
	if len(domains) == 0 {
		return nil
	}
	now := s.nowFn().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, d := range domains {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO issuance_requests(domain, requested_at) VALUES ($1, $2)
ON CONFLICT (domain) DO UPDATE SET requested_at = EXCLUDED.requested_at;
`, d, now); err != nil {
			return fmt.Errorf("postgres: record %s: %w", d, err)
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) Pending(ctx context.Context) ([]Request, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("postgres store is closed")
	}
	rows, err := s.db.QueryContext(ctx, `SELECT domain, requested_at FROM issuance_requests ORDER BY requested_at, domain;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		var r Request
		if err := rows.Scan(&r.Domain, &r.RequestedAt); err != nil {
			return nil, err
		}
		r.RequestedAt = r.RequestedAt.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Remove(ctx context.Context, domain string) error {
	if s == nil || s.db == nil {
		return errors.New("postgres store is closed")
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM issuance_requests WHERE domain = $1;`, strings.TrimSpace(domain))
	return err
}

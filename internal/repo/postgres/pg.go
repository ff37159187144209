package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/healthgate/internal/repo"
)

var (
	_ repo.ReportStore = (*Store)(nil)
	_ repo.AlertStore  = (*Store)(nil)
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS reports (
  run_id      TEXT PRIMARY KEY,
  started_at  TIMESTAMPTZ NOT NULL,
  finished_at TIMESTAMPTZ NOT NULL,
  healthy     INTEGER NOT NULL,
  warning     INTEGER NOT NULL,
  error       INTEGER NOT NULL,
  exit_code   INTEGER NOT NULL,
  verdicts    JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reports_started_at ON reports (started_at DESC);

CREATE TABLE IF NOT EXISTS alerts (
  service      TEXT PRIMARY KEY,
  last_up      BOOLEAN NOT NULL,
  last_sent_at TIMESTAMPTZ NULL
);
`

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

// Migrate creates the tables when they don't exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	s.log.Info("pg_schema_ready")
	return nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

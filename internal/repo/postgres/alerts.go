package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hamed0406/healthgate/internal/repo"
)

func (s *Store) Get(ctx context.Context, service string) (*repo.AlertRecord, error) {
	const q = `SELECT last_up, last_sent_at FROM alerts WHERE service=$1`
	r := repo.AlertRecord{Service: service}
	var lastSent *time.Time
	err := s.pool.QueryRow(ctx, q, service).Scan(&r.LastUp, &lastSent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	r.LastSentAt = lastSent
	return &r, nil
}

func (s *Store) Set(ctx context.Context, service string, up bool, sentAt time.Time) error {
	const q = `
		INSERT INTO alerts (service, last_up, last_sent_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (service)
		DO UPDATE SET last_up=EXCLUDED.last_up, last_sent_at=EXCLUDED.last_sent_at
	`
	var ts *time.Time
	if !sentAt.IsZero() {
		ts = &sentAt
	}
	_, err := s.pool.Exec(ctx, q, service, up, ts)
	return err
}

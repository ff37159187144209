package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/hamed0406/healthgate/internal/domain"
)

const reportColumns = `run_id, started_at, finished_at, healthy, warning, error, verdicts`

func (s *Store) Append(ctx context.Context, r *domain.Report) error {
	if r == nil {
		return errors.New("postgres: nil report")
	}
	verdicts, err := json.Marshal(r.Verdicts)
	if err != nil {
		return fmt.Errorf("encode verdicts: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO reports (run_id, started_at, finished_at, healthy, warning, error, exit_code, verdicts)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.RunID, r.StartedAt, r.FinishedAt,
		r.Counts.Healthy, r.Counts.Warning, r.Counts.Error, r.ExitCode(),
		string(verdicts),
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (s *Store) Latest(ctx context.Context) (*domain.Report, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+reportColumns+`
		   FROM reports
		  ORDER BY started_at DESC, run_id DESC
		  LIMIT 1`)
	r, err := scanReport(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest report: %w", err)
	}
	return &r, nil
}

func (s *Store) List(ctx context.Context, limit int) ([]domain.Report, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+reportColumns+`
		   FROM reports
		  ORDER BY started_at DESC, run_id DESC
		  LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var out []domain.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanReport(row pgx.Row) (domain.Report, error) {
	var (
		r        domain.Report
		verdicts []byte
	)
	if err := row.Scan(&r.RunID, &r.StartedAt, &r.FinishedAt,
		&r.Counts.Healthy, &r.Counts.Warning, &r.Counts.Error, &verdicts); err != nil {
		return domain.Report{}, err
	}
	if err := json.Unmarshal(verdicts, &r.Verdicts); err != nil {
		return domain.Report{}, fmt.Errorf("decode verdicts: %w", err)
	}
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
	return r, nil
}

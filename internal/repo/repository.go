package repo

import (
	"context"

	"github.com/hamed0406/healthgate/internal/domain"
)

// ReportStore keeps the history of probe runs for the report API.
type ReportStore interface {
	Append(ctx context.Context, r *domain.Report) error
	// Latest returns nil, nil when no run has been stored yet.
	Latest(ctx context.Context) (*domain.Report, error)
	// List returns up to limit reports, newest first.
	List(ctx context.Context, limit int) ([]domain.Report, error)
}

package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hamed0406/healthgate/internal/domain"
	"github.com/hamed0406/healthgate/internal/repo"
)

var (
	_ repo.ReportStore = (*Store)(nil)
	_ repo.AlertStore  = (*Store)(nil)
)

const defaultLimit = 100

// Store keeps the most recent reports and alert state in memory.
type Store struct {
	mu      sync.RWMutex
	limit   int
	reports []domain.Report // oldest first
	alerts  map[string]repo.AlertRecord
}

func New(limit int) *Store {
	if limit <= 0 {
		limit = defaultLimit
	}
	return &Store{
		limit:   limit,
		reports: make([]domain.Report, 0, limit),
		alerts:  make(map[string]repo.AlertRecord),
	}
}

func (m *Store) Append(ctx context.Context, r *domain.Report) error {
	if r == nil {
		return errors.New("memory: nil report")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.reports) >= m.limit {
		m.reports = append(m.reports[:0], m.reports[len(m.reports)-m.limit+1:]...)
	}
	m.reports = append(m.reports, cloneReport(*r))
	return nil
}

func (m *Store) Latest(ctx context.Context) (*domain.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.reports) == 0 {
		return nil, nil
	}
	r := cloneReport(m.reports[len(m.reports)-1])
	return &r, nil
}

func (m *Store) List(ctx context.Context, limit int) ([]domain.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || limit > len(m.reports) {
		limit = len(m.reports)
	}
	out := make([]domain.Report, 0, limit)
	for i := len(m.reports) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, cloneReport(m.reports[i]))
	}
	return out, nil
}

func (m *Store) Get(ctx context.Context, service string) (*repo.AlertRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.alerts[service]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *Store) Set(ctx context.Context, service string, up bool, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ts *time.Time
	if !sentAt.IsZero() {
		ts = &sentAt
	}
	m.alerts[service] = repo.AlertRecord{Service: service, LastUp: up, LastSentAt: ts}
	return nil
}

// cloneReport copies the verdict slice so callers can't mutate stored history.
func cloneReport(r domain.Report) domain.Report {
	r.Verdicts = append([]domain.Verdict(nil), r.Verdicts...)
	return r
}

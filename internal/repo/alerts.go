package repo

import (
	"context"
	"time"
)

// AlertRecord holds the last up/down state seen for a service and the last
// time a notification was sent for it (used for cooldown).
type AlertRecord struct {
	Service    string
	LastUp     bool
	LastSentAt *time.Time
}

// AlertStore persists per-service alert state between scans.
type AlertStore interface {
	// Get returns nil, nil if there's no record yet.
	Get(ctx context.Context, service string) (*AlertRecord, error)
	// Set upserts the record. A zero sentAt is stored as NULL.
	Set(ctx context.Context, service string, up bool, sentAt time.Time) error
}

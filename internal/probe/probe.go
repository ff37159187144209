package probe

import (
	"context"

	"github.com/hamed0406/healthgate/internal/domain"
)

// Prober performs a single bounded request against a target URL.
//
// Implementations never return an error or panic to the caller: every
// failure is captured in the returned Outcome.
type Prober interface {
	Probe(ctx context.Context, target string) domain.Outcome
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, target string) domain.Outcome

func (f ProberFunc) Probe(ctx context.Context, target string) domain.Outcome {
	return f(ctx, target)
}

// Package aggregate runs one probe cycle over a registry and builds the
// report that decides the process exit code.
package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/healthgate/internal/domain"
	"github.com/hamed0406/healthgate/internal/evaluate"
	"github.com/hamed0406/healthgate/internal/probe"
	"github.com/hamed0406/healthgate/internal/registry"
)

// Diagnoser annotates generic network failures. It never changes a verdict's status.
type Diagnoser interface {
	Diagnose(ctx context.Context, target string) probe.DNSStatus
}

type Aggregator struct {
	registry    registry.Registry
	prober      probe.Prober
	log         *zap.Logger
	concurrency int
	diagnoser   Diagnoser
	dnsBudget   time.Duration
	now         func() time.Time
}

type Option func(*Aggregator)

func WithLogger(l *zap.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.log = l
		}
	}
}

// WithConcurrency bounds how many probes run at once. 1 (the default) probes
// sequentially in registry order.
func WithConcurrency(n int) Option {
	return func(a *Aggregator) {
		if n < 1 {
			n = 1
		}
		a.concurrency = n
	}
}

// WithDiagnoser annotates failures whose host did not resolve. budget is the
// per-probe timeout: diagnosis only gets what the probe left of it.
func WithDiagnoser(d Diagnoser, budget time.Duration) Option {
	return func(a *Aggregator) {
		if budget <= 0 {
			budget = probe.DefaultTimeout
		}
		a.diagnoser = d
		a.dnsBudget = budget
	}
}

func New(reg registry.Registry, p probe.Prober, opts ...Option) *Aggregator {
	a := &Aggregator{
		registry:    reg,
		prober:      p,
		log:         zap.NewNop(),
		concurrency: 1,
		now:         time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *Aggregator) Registry() registry.Registry { return a.registry }

// Run probes every target and the proxy check exactly once. Verdicts are
// stored by registry index, so the report order never depends on which
// probe finished first.
func (a *Aggregator) Run(ctx context.Context) domain.Report {
	targets := a.registry.All()
	rep := domain.Report{
		RunID:     uuid.NewString(),
		StartedAt: a.now().UTC(),
		Verdicts:  make([]domain.Verdict, len(targets)),
	}

	if a.concurrency <= 1 {
		for i, t := range targets {
			rep.Verdicts[i] = a.safeCheck(ctx, t)
		}
	} else {
		// no shared cancellation: a plain group, not errgroup.WithContext
		var g errgroup.Group
		g.SetLimit(a.concurrency)
		for i, t := range targets {
			g.Go(func() error {
				rep.Verdicts[i] = a.safeCheck(ctx, t)
				return nil
			})
		}
		_ = g.Wait()
	}

	rep.FinishedAt = a.now().UTC()
	rep.Tally()

	a.log.Info("run_complete",
		zap.String("run_id", rep.RunID),
		zap.Int("healthy", rep.Counts.Healthy),
		zap.Int("warning", rep.Counts.Warning),
		zap.Int("error", rep.Counts.Error),
		zap.Int("exit_code", rep.ExitCode()),
		zap.Duration("elapsed", rep.FinishedAt.Sub(rep.StartedAt)),
	)
	return rep
}

func (a *Aggregator) check(ctx context.Context, t domain.ServiceTarget) domain.Verdict {
	out := a.safeProbe(ctx, t.URL)
	v := evaluate.Evaluate(t, out)

	if a.diagnoser != nil && out.Failure != nil && out.Failure.Unresolved {
		a.diagnose(ctx, t, &v, a.dnsBudget-out.Latency)
	}

	fields := []zap.Field{
		zap.String("service", v.Service),
		zap.String("url", v.URL),
		zap.String("status", string(v.Status)),
		zap.Bool("critical", v.Critical),
		zap.Float64("latency_ms", v.LatencyMS),
		zap.String("detail", v.Detail),
	}
	if v.Code != nil {
		fields = append(fields, zap.Int("http_status", *v.Code))
	}
	if v.Status == domain.StatusError {
		a.log.Warn("probe_verdict", fields...)
	} else {
		a.log.Info("probe_verdict", fields...)
	}
	return v
}

func (a *Aggregator) diagnose(ctx context.Context, t domain.ServiceTarget, v *domain.Verdict, remaining time.Duration) {
	if remaining <= 0 {
		return
	}
	dctx, cancel := context.WithTimeout(ctx, remaining)
	defer cancel()

	dns := a.diagnoser.Diagnose(dctx, t.URL)
	if dns.Class != probe.DNSResolves {
		v.Detail = fmt.Sprintf("%s (dns=%s)", v.Detail, dns.Class)
	}
	a.log.Debug("dns_check",
		zap.String("service", t.Name),
		zap.String("domain", dns.Domain),
		zap.String("class", string(dns.Class)),
		zap.Strings("nameservers", dns.Nameservers),
		zap.String("cname", dns.CNAME),
		zap.String("resolver_error", dns.ResolverError),
	)
}

// safeCheck turns a panic anywhere in a check into an error verdict for that
// target. Concurrent checks run on their own goroutines, out of reach of
// Supervise.
func (a *Aggregator) safeCheck(ctx context.Context, t domain.ServiceTarget) (v domain.Verdict) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("check_panic", zap.String("service", t.Name), zap.Any("panic", r), zap.Stack("stack"))
			v = domain.Verdict{
				Service:  t.Name,
				URL:      t.URL,
				Critical: t.Critical,
				Status:   domain.StatusError,
				Detail:   fmt.Sprintf("check panicked: %v", r),
			}
		}
	}()
	return a.check(ctx, t)
}

// safeProbe keeps a misbehaving prober from taking down the rest of the run.
func (a *Aggregator) safeProbe(ctx context.Context, target string) (out domain.Outcome) {
	start := a.now()
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("probe_panic", zap.String("url", target), zap.Any("panic", r), zap.Stack("stack"))
			out = domain.Failed(domain.FailureOther, fmt.Sprintf("probe panicked: %v", r), a.now().Sub(start))
		}
	}()
	return a.prober.Probe(ctx, target)
}

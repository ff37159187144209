package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/healthgate/internal/domain"
	"github.com/hamed0406/healthgate/internal/notify"
	"github.com/hamed0406/healthgate/internal/repo"
)

type AlerterConfig struct {
	AlertOnRecovery bool
	Cooldown        time.Duration
	PollInterval    time.Duration
}

// Alerter watches the latest report and notifies on per-service up/down
// transitions. A service is down when its verdict is an error; warnings
// count as up.
type Alerter struct {
	log      *zap.Logger
	reports  repo.ReportStore
	alertDB  repo.AlertStore
	notifier notify.Notifier
	cfg      AlerterConfig
	now      func() time.Time
}

func NewAlerter(logger *zap.Logger, reports repo.ReportStore, alertDB repo.AlertStore, notifier notify.Notifier, cfg AlerterConfig) *Alerter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	return &Alerter{
		log:      logger,
		reports:  reports,
		alertDB:  alertDB,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (a *Alerter) Run(ctx context.Context) error {
	t := time.NewTicker(a.cfg.PollInterval)
	defer t.Stop()

	a.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			a.tick(ctx)
		}
	}
}

func (a *Alerter) tick(ctx context.Context) {
	if err := a.scanOnce(ctx); err != nil {
		a.log.Warn("scan_error", zap.Error(err))
	}
}

// scanOnce evaluates the latest report. A service whose alert state can't be
// read is skipped until the next scan. State is only recorded as sent once
// the notification went out, so a failed send is retried on the next scan.
func (a *Alerter) scanOnce(ctx context.Context) error {
	rep, err := a.reports.Latest(ctx)
	if err != nil {
		return fmt.Errorf("latest report: %w", err)
	}
	if rep == nil {
		return nil
	}

	now := a.now()
	var errs error

	for _, v := range rep.Verdicts {
		up := v.Status != domain.StatusError
		rec, err := a.alertDB.Get(ctx, v.Service)
		if err != nil {
			a.log.Warn("alert_state_error", zap.String("service", v.Service), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("read alert state %s: %w", v.Service, err))
			continue
		}

		stateChanged := rec == nil || rec.LastUp != up

		// Cooldown only applies to DOWN alerts.
		cooled := true
		if rec != nil && rec.LastSentAt != nil {
			cooled = now.Sub(*rec.LastSentAt) >= a.cfg.Cooldown
		}

		downAlert := stateChanged && !up && cooled
		// a service seen for the first time while up has nothing to recover from
		recoveryAlert := stateChanged && up && rec != nil && a.cfg.AlertOnRecovery

		var sentAt time.Time
		if downAlert || recoveryAlert {
			if err := a.notifier.Send(ctx, alertTitle(v, up), alertText(v, rep.FinishedAt)); err != nil {
				a.log.Warn("alert_send_error", zap.String("service", v.Service), zap.Bool("up", up), zap.Error(err))
				errs = multierr.Append(errs, fmt.Errorf("send alert %s: %w", v.Service, err))
				continue
			}
			sentAt = now
		} else if !stateChanged {
			continue
		}

		if err := a.alertDB.Set(ctx, v.Service, up, sentAt); err != nil {
			a.log.Warn("alert_state_error", zap.String("service", v.Service), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("write alert state %s: %w", v.Service, err))
		}
	}

	return errs
}

func alertTitle(v domain.Verdict, up bool) string {
	switch {
	case up:
		return "🟢 Service RECOVERED"
	case v.Critical:
		return "🔴 Critical service DOWN"
	default:
		return "🔴 Service DOWN"
	}
}

func alertText(v domain.Verdict, checked time.Time) string {
	httpTxt := "n/a"
	if v.Code != nil {
		httpTxt = fmt.Sprintf("%d", *v.Code)
	}
	text := fmt.Sprintf(
		"Service: %s\nURL: %s\nHTTP: %s\nLatency: %.0f ms\nReason: %s",
		v.Service, v.URL, httpTxt, v.LatencyMS, v.Detail,
	)
	if v.Suggestion != "" {
		text += "\nSuggestion: " + v.Suggestion
	}
	return text + "\nChecked: " + checked.Format(time.RFC3339)
}

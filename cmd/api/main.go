// Command api runs health checks on a schedule, keeps report history and
// serves it over HTTP, alerting when a service goes down or recovers.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/healthgate/internal/aggregate"
	"github.com/hamed0406/healthgate/internal/config"
	"github.com/hamed0406/healthgate/internal/httpapi"
	apimw "github.com/hamed0406/healthgate/internal/httpapi/middleware"
	"github.com/hamed0406/healthgate/internal/logging"
	"github.com/hamed0406/healthgate/internal/notify"
	"github.com/hamed0406/healthgate/internal/probe"
	"github.com/hamed0406/healthgate/internal/repo"
	"github.com/hamed0406/healthgate/internal/repo/memory"
	"github.com/hamed0406/healthgate/internal/repo/postgres"
	"github.com/hamed0406/healthgate/internal/scheduler"
)

type store interface {
	repo.ReportStore
	repo.AlertStore
}

func main() {
	fs := pflag.NewFlagSet("api", pflag.ExitOnError)
	configPath := fs.StringP("config", "c", "", "path to a YAML config file")
	fs.String("addr", "127.0.0.1:8080", "listen address")
	fs.Duration("timeout", probe.DefaultTimeout, "per-probe timeout")
	fs.Int("concurrency", 1, "probes in flight at once (1 = sequential)")
	fs.String("log-dir", "logs", "directory for the rotating log file (empty logs to stderr)")
	fs.String("log-level", "info", "log level")
	_ = fs.Parse(os.Args[1:])

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "⚠ could not load .env:", err)
	}

	cfg, err := config.Load(*configPath, fs)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "✖", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Log.Dir, cfg.Log.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "✖ init logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, logger); err != nil {
		logger.Error("api_exit", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store, func(), error) {
	if cfg.Database.URL == "" {
		logger.Info("store_memory", zap.Int("history_limit", cfg.API.HistoryLimit))
		return memory.New(cfg.API.HistoryLimit), func() {}, nil
	}
	pg, err := postgres.New(ctx, cfg.Database.URL, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, nil, err
	}
	logger.Info("store_postgres")
	return pg, pg.Close, nil
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	reg := cfg.Registry()
	aggOpts := []aggregate.Option{
		aggregate.WithLogger(logger),
		aggregate.WithConcurrency(cfg.Probe.Concurrency),
	}
	if cfg.Probe.DNSDiagnosis {
		aggOpts = append(aggOpts, aggregate.WithDiagnoser(probe.NewDNSDiagnoser(), cfg.Probe.Timeout))
	}
	agg := aggregate.New(reg, probe.NewHTTPProber(cfg.Probe.Timeout), aggOpts...)
	runner := scheduler.NewRunner(logger, agg, st, cfg.Schedule.Interval)

	notifiers := notify.Multi{notify.Log{Logger: logger}}
	if slack := notify.NewSlack(cfg.Slack.Webhook); slack != nil {
		notifiers = append(notifiers, slack)
	}
	poll := cfg.Schedule.Interval
	if poll <= 0 {
		poll = 30 * time.Second
	}
	alerter := scheduler.NewAlerter(logger, st, st, notifiers, scheduler.AlerterConfig{
		AlertOnRecovery: cfg.Alert.OnRecovery,
		Cooldown:        cfg.Alert.Cooldown,
		PollInterval:    poll,
	})

	api := httpapi.NewServer(logger, reg, st, runner, cfg.API.HistoryLimit)
	keys := apimw.Keys{Public: cfg.API.PublicKeys, Admin: cfg.API.AdminKeys}
	srv := &http.Server{
		Addr: cfg.API.Addr,
		Handler: api.Router(keys, cfg.API.AllowedOrigins,
			cfg.API.PublicRPM, cfg.API.PublicBurst, cfg.API.AdminRPM, cfg.API.AdminBurst),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		runner.Run(gctx)
		return nil
	})
	g.Go(func() error {
		if err := alerter.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("api_listen",
			zap.String("addr", cfg.API.Addr),
			zap.Int("targets", len(reg.All())),
			zap.Duration("interval", cfg.Schedule.Interval),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("api_shutdown")
		return srv.Shutdown(shutCtx)
	})
	return g.Wait()
}

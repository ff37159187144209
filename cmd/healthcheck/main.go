// Command healthcheck probes every configured service once, prints a report
// and exits 1 when any service is unreachable, 0 otherwise.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/hamed0406/healthgate/internal/aggregate"
	"github.com/hamed0406/healthgate/internal/config"
	"github.com/hamed0406/healthgate/internal/logging"
	"github.com/hamed0406/healthgate/internal/probe"
	"github.com/hamed0406/healthgate/internal/report"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	configPath string
	noColor    bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("healthcheck", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	var opts options
	fs.StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file (default: ./config/healthgate.yaml or ./healthgate.yaml if present)")
	fs.Duration("timeout", probe.DefaultTimeout, "per-probe timeout")
	fs.Int("concurrency", 1, "probes in flight at once (1 = sequential)")
	fs.String("format", "text", "output format: text or json")
	fs.BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	fs.String("log-dir", "logs", "directory for the rotating log file (empty logs to stderr)")
	fs.String("log-level", "info", "log level")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(stderr, "⚠ could not load .env:", err)
	}

	var (
		cfg *config.Config
		log *zap.Logger
	)
	code := aggregate.Supervise(nil, stderr, func() (int, error) {
		var err error
		cfg, log, err = setup(opts.configPath, fs)
		return 0, err
	})
	if code != 0 {
		return code
	}
	defer log.Sync()

	return aggregate.Supervise(log, stderr, func() (int, error) {
		useColor := cfg.Output.Color && !opts.noColor && !color.NoColor
		renderer, err := report.New(cfg.Output.Format, useColor)
		if err != nil {
			return 1, err
		}

		aggOpts := []aggregate.Option{
			aggregate.WithLogger(log),
			aggregate.WithConcurrency(cfg.Probe.Concurrency),
		}
		if cfg.Probe.DNSDiagnosis {
			aggOpts = append(aggOpts, aggregate.WithDiagnoser(probe.NewDNSDiagnoser(), cfg.Probe.Timeout))
		}
		agg := aggregate.New(cfg.Registry(), probe.NewHTTPProber(cfg.Probe.Timeout), aggOpts...)

		log.Info("run_start",
			zap.Int("targets", len(agg.Registry().All())),
			zap.Duration("timeout", cfg.Probe.Timeout),
			zap.Int("concurrency", cfg.Probe.Concurrency),
		)
		rep := agg.Run(ctx)
		if err := renderer.Render(stdout, rep); err != nil {
			return 1, fmt.Errorf("render report: %w", err)
		}
		return rep.ExitCode(), nil
	})
}

func setup(path string, fs *pflag.FlagSet) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(path, fs)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration:\n  %s", strings.ReplaceAll(err.Error(), "; ", "\n  "))
	}
	log, err := logging.NewLogger(cfg.Log.Dir, cfg.Log.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}

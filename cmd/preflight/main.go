// Command preflight checks the configuration before deploying the api or
// wiring healthcheck into a pipeline.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"

	"github.com/hamed0406/healthgate/internal/config"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	_ = godotenv.Load()

	fs := pflag.NewFlagSet("preflight", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	path := fs.StringP("config", "c", "", "path to a YAML config file")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	fail := func(msg string) { fmt.Fprintln(stderr, "✖", msg) }
	warn := func(msg string) { fmt.Fprintln(stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Fprintln(stdout, "✔", msg) }

	cfg, err := config.Load(*path, fs)
	if err != nil {
		fail(err.Error())
		return 1
	}

	failed := false
	if err := cfg.Validate(); err != nil {
		for _, e := range multierr.Errors(err) {
			fail(e.Error())
		}
		failed = true
	}

	for _, t := range cfg.Registry().All() {
		crit := ""
		if t.Critical {
			crit = " (critical)"
		}
		ok(fmt.Sprintf("target %s → %s%s", t.Name, t.URL, crit))
	}
	ok(fmt.Sprintf("probe timeout=%s concurrency=%d", cfg.Probe.Timeout, cfg.Probe.Concurrency))

	if len(cfg.API.AdminKeys) == 0 {
		warn("api.admin_keys is empty; POST /api/runs is open to anyone.")
	}
	if len(cfg.API.PublicKeys) == 0 && len(cfg.API.AdminKeys) == 0 {
		warn("no api keys configured; read routes are unauthenticated.")
	}
	for _, k := range append(cfg.API.PublicKeys, cfg.API.AdminKeys...) {
		if len(k) < 16 {
			warn("an api key is shorter than 16 characters.")
			break
		}
	}
	if cfg.API.Addr == "" {
		fail("api.addr is empty.")
		failed = true
	} else {
		ok("api.addr=" + cfg.API.Addr)
	}

	if cfg.Database.URL == "" {
		warn("database.url empty; report history is kept in memory and lost on restart.")
	} else {
		ok("database.url present")
	}
	if cfg.Slack.Webhook == "" {
		warn("slack.webhook empty; alerts only go to the log.")
	} else {
		ok("slack.webhook present")
	}
	if len(cfg.API.AllowedOrigins) == 0 {
		warn("api.allowed_origins empty; any origin may call the api.")
	} else {
		ok("api.allowed_origins=" + strings.Join(cfg.API.AllowedOrigins, ","))
	}
	if cfg.Schedule.Interval == 0 {
		warn("schedule.interval is 0; the api only runs checks on POST /api/runs.")
	}

	if failed {
		fail("preflight failed")
		return 1
	}
	ok("preflight passed")
	return 0
}

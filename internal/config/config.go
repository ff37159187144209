package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"

	"github.com/hamed0406/healthgate/internal/domain"
	"github.com/hamed0406/healthgate/internal/registry"
)

type Config struct {
	Backend  Endpoint               `mapstructure:"backend"`
	AI       Endpoint               `mapstructure:"ai"`
	Frontend Endpoint               `mapstructure:"frontend"`
	Targets  []domain.ServiceTarget `mapstructure:"targets"` // replaces the three endpoints above when set
	Proxy    ProxyConfig            `mapstructure:"proxy"`
	Probe    ProbeConfig            `mapstructure:"probe"`
	Output   OutputConfig           `mapstructure:"output"`
	Log      LogConfig              `mapstructure:"log"`
	API      APIConfig              `mapstructure:"api"`
	Database DatabaseConfig         `mapstructure:"database"`
	Schedule ScheduleConfig         `mapstructure:"schedule"`
	Alert    AlertConfig            `mapstructure:"alert"`
	Slack    SlackConfig            `mapstructure:"slack"`
}

type Endpoint struct {
	URL string `mapstructure:"url"`
}

// ProxyConfig is the database check inferred through the backend. An empty
// URL means {backend}/stats.
type ProxyConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Name    string `mapstructure:"name"`
	URL     string `mapstructure:"url"`
}

type ProbeConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	Concurrency  int           `mapstructure:"concurrency"` // 1 = sequential
	DNSDiagnosis bool          `mapstructure:"dns_diagnosis"`
}

type OutputConfig struct {
	Format string `mapstructure:"format"` // text | json
	Color  bool   `mapstructure:"color"`
}

type LogConfig struct {
	Dir   string `mapstructure:"dir"`
	Level string `mapstructure:"level"`
}

type APIConfig struct {
	Addr           string   `mapstructure:"addr"`
	PublicKeys     []string `mapstructure:"public_keys"`
	AdminKeys      []string `mapstructure:"admin_keys"`
	PublicRPM      int      `mapstructure:"public_rpm"`
	PublicBurst    int      `mapstructure:"public_burst"`
	AdminRPM       int      `mapstructure:"admin_rpm"`
	AdminBurst     int      `mapstructure:"admin_burst"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	HistoryLimit   int      `mapstructure:"history_limit"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"` // empty means in-memory report history
}

type ScheduleConfig struct {
	Interval time.Duration `mapstructure:"interval"` // 0 disables periodic runs
}

type AlertConfig struct {
	Cooldown   time.Duration `mapstructure:"cooldown"`
	OnRecovery bool          `mapstructure:"on_recovery"`
}

type SlackConfig struct {
	Webhook string `mapstructure:"webhook"`
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"timeout":     "probe.timeout",
	"concurrency": "probe.concurrency",
	"format":      "output.format",
	"color":       "output.color",
	"log-dir":     "log.dir",
	"log-level":   "log.level",
	"addr":        "api.addr",
}

// Load resolves configuration from, lowest to highest priority: defaults,
// a YAML file, environment variables (dots become underscores, e.g.
// BACKEND_URL, PROBE_TIMEOUT) and changed flags. An explicit path must
// exist; otherwise healthgate.yaml is looked up in ./config and . and is
// optional.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("healthgate")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.API.PublicKeys = cleanList(cfg.API.PublicKeys)
	cfg.API.AdminKeys = cleanList(cfg.API.AdminKeys)
	cfg.API.AllowedOrigins = cleanList(cfg.API.AllowedOrigins)
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.url", "http://localhost:8000")
	v.SetDefault("ai.url", "http://localhost:8001")
	v.SetDefault("frontend.url", "http://localhost:3000")
	v.SetDefault("targets", []map[string]any{})

	v.SetDefault("proxy.enabled", true)
	v.SetDefault("proxy.name", registry.DatabaseName)
	v.SetDefault("proxy.url", "")

	v.SetDefault("probe.timeout", 5*time.Second)
	v.SetDefault("probe.concurrency", 1)
	v.SetDefault("probe.dns_diagnosis", true)

	v.SetDefault("output.format", "text")
	v.SetDefault("output.color", true)

	v.SetDefault("log.dir", "logs")
	v.SetDefault("log.level", "info")

	v.SetDefault("api.addr", "127.0.0.1:8080")
	v.SetDefault("api.public_keys", []string{})
	v.SetDefault("api.admin_keys", []string{})
	v.SetDefault("api.public_rpm", 120)
	v.SetDefault("api.public_burst", 60)
	v.SetDefault("api.admin_rpm", 30)
	v.SetDefault("api.admin_burst", 10)
	v.SetDefault("api.allowed_origins", []string{})
	v.SetDefault("api.history_limit", 100)

	v.SetDefault("database.url", "")
	v.SetDefault("schedule.interval", time.Minute)
	v.SetDefault("alert.cooldown", 15*time.Minute)
	v.SetDefault("alert.on_recovery", true)
	v.SetDefault("slack.webhook", "")
}

// Registry builds the target list: explicit targets when configured,
// otherwise the reference backend / AI / frontend layout. The database
// proxy check is appended unless disabled; with explicit targets Validate
// requires proxy.url.
func (c *Config) Registry() registry.Registry {
	reg := registry.Default(c.Backend.URL, c.AI.URL, c.Frontend.URL)
	if len(c.Targets) > 0 {
		reg.Targets = append([]domain.ServiceTarget(nil), c.Targets...)
	}
	if !c.Proxy.Enabled {
		reg.Proxy = nil
		return reg
	}
	if c.Proxy.Name != "" {
		reg.Proxy.Name = c.Proxy.Name
	}
	if c.Proxy.URL != "" {
		reg.Proxy.URL = c.Proxy.URL
	}
	return reg
}

// Validate returns every problem found, combined.
func (c *Config) Validate() error {
	var err error
	if c.Probe.Timeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("probe.timeout must be > 0, got %s", c.Probe.Timeout))
	}
	if c.Probe.Concurrency < 1 {
		err = multierr.Append(err, fmt.Errorf("probe.concurrency must be >= 1, got %d", c.Probe.Concurrency))
	}
	switch strings.ToLower(c.Output.Format) {
	case "text", "json":
	default:
		err = multierr.Append(err, fmt.Errorf("output.format must be text or json, got %q", c.Output.Format))
	}
	if _, lerr := zapcore.ParseLevel(c.Log.Level); lerr != nil {
		err = multierr.Append(err, fmt.Errorf("log.level: %w", lerr))
	}
	if c.Schedule.Interval < 0 {
		err = multierr.Append(err, fmt.Errorf("schedule.interval must be >= 0, got %s", c.Schedule.Interval))
	}
	if len(c.Targets) > 0 && c.Proxy.Enabled && strings.TrimSpace(c.Proxy.URL) == "" {
		err = multierr.Append(err, errors.New("proxy.url must be set when targets are configured (or set proxy.enabled: false)"))
	}
	if c.API.PublicRPM < 0 || c.API.AdminRPM < 0 {
		err = multierr.Append(err, errors.New("api rate limits must be >= 0"))
	}
	return multierr.Append(err, c.Registry().Validate())
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

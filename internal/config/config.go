package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/robfig/cron/v3"
)

// Config holds all mailrules configuration.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Gmail    GmailConfig    `toml:"gmail"`
	Fetch    FetchConfig    `toml:"fetch"`
	Rules    RulesConfig    `toml:"rules"`
	Daemon   DaemonConfig   `toml:"daemon"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Log      LogConfig      `toml:"log"`
}

// DatabaseConfig selects and configures the store backend.
type DatabaseConfig struct {
	Driver       string `toml:"driver"`
	Path         string `toml:"path"`
	DSN          string `toml:"dsn"`
	BatchWorkers int    `toml:"batch_workers"`
}

// GmailConfig holds Gmail OAuth credentials.
// Users can override them via env vars.
type GmailConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	Account      string `toml:"account"`
}

// FetchConfig holds message fetching settings.
type FetchConfig struct {
	MaxEmails int    `toml:"max_emails"`
	Label     string `toml:"label"`
}

// RulesConfig locates the rule set and bounds its size.
type RulesConfig struct {
	File          string `toml:"file"`
	MaxRules      int    `toml:"max_rules"`
	MaxConditions int    `toml:"max_conditions"`
	MaxActions    int    `toml:"max_actions"`
}

// DaemonConfig holds the scheduled run settings.
type DaemonConfig struct {
	Schedule   string `toml:"schedule"`
	WatchRules bool   `toml:"watch_rules"`
}

// MetricsConfig holds the Prometheus endpoint address. Empty disables it.
type MetricsConfig struct {
	Listen string `toml:"listen"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func defaults() Config {
	return Config{
		Database: DatabaseConfig{
			Driver:       DriverSQLite,
			Path:         filepath.Join(DataDir(), "mailrules.db"),
			BatchWorkers: 4,
		},
		Gmail: GmailConfig{
			Account: "default",
		},
		Fetch: FetchConfig{
			MaxEmails: 50,
			Label:     "INBOX",
		},
		Rules: RulesConfig{
			File:          "rules.json",
			MaxRules:      100,
			MaxConditions: 10,
			MaxActions:    5,
		},
		Daemon: DaemonConfig{
			Schedule:   "@every 5m",
			WatchRules: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads config from path. If path is empty or the file does not exist,
// defaults are returned. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	cfg.applyEnv()
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("MAILRULES_DATABASE_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("GMAIL_CLIENT_ID"); v != "" {
		c.Gmail.ClientID = v
	}
	if v := os.Getenv("GMAIL_CLIENT_SECRET"); v != "" {
		c.Gmail.ClientSecret = v
	}
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database.path is required for the sqlite driver"))
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database.driver %q (want sqlite or postgres)", c.Database.Driver))
	}

	positive := map[string]int{
		"database.batch_workers": c.Database.BatchWorkers,
		"fetch.max_emails":       c.Fetch.MaxEmails,
		"rules.max_rules":        c.Rules.MaxRules,
		"rules.max_conditions":   c.Rules.MaxConditions,
		"rules.max_actions":      c.Rules.MaxActions,
	}
	for _, key := range []string{
		"database.batch_workers", "fetch.max_emails", "rules.max_rules", "rules.max_conditions", "rules.max_actions",
	} {
		if positive[key] < 1 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", key, positive[key]))
		}
	}

	if _, err := cron.ParseStandard(c.Daemon.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("invalid daemon.schedule %q: %w", c.Daemon.Schedule, err))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log.format %q (want console or json)", c.Log.Format))
	}
	return errors.Join(errs...)
}

// ConfigDir returns the mailrules config directory path.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "mailrules")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "mailrules")
}

// DataDir returns the mailrules data directory path.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "mailrules")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "mailrules")
}

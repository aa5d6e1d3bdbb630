package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lu-zhengda/mailrules/internal/config"
	"github.com/lu-zhengda/mailrules/internal/logging"
	"github.com/lu-zhengda/mailrules/internal/provider/gmail"
	"github.com/lu-zhengda/mailrules/internal/rules"
	"github.com/lu-zhengda/mailrules/internal/store"
	"github.com/lu-zhengda/mailrules/internal/store/postgres"
	"github.com/lu-zhengda/mailrules/internal/store/sqlite"
)

var (
	// version is set via ldflags at build time.
	version = "dev"
	cfgFile string

	// jsonFlag enables JSON output for all commands.
	jsonFlag bool

	// logLevel overrides [log] level when set.
	logLevel string
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mailrules",
		Short:         "Rule-based Gmail processing",
		Long:          "Fetch Gmail messages into a versioned store and apply validated rules to them.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(fmt.Sprintf("mailrules %s\n", version))
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	root.PersistentFlags().BoolVar(&jsonFlag, "json", false, "output in JSON format")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.AddCommand(newAuthCmd())
	root.AddCommand(newLabelsCmd())
	root.AddCommand(newFetchCmd())
	root.AddCommand(newProcessCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newHistoryCmd())
	root.AddCommand(newStatsCmd())
	root.AddCommand(newDaemonCmd())
	root.AddCommand(newMigrateCmd())
	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads and validates the application configuration.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = filepath.Join(config.ConfigDir(), "config.toml")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the run logger. Every line carries the run id.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("run_id", uuid.NewString())), nil
}

// setup loads the config and logger shared by every command.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// openStore opens the configured store backend.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	opts := []store.Option{
		store.WithBatchWorkers(cfg.Database.BatchWorkers),
		store.WithLogger(logger),
	}
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		db, err := postgres.New(ctx, cfg.Database.DSN, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		return db, nil
	default:
		if cfg.Database.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o700); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
		db, err := sqlite.New(cfg.Database.Path, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		return db, nil
	}
}

// newGmail returns the Gmail provider for the configured account.
func newGmail(cfg *config.Config, logger *zap.Logger) (*gmail.Provider, error) {
	if err := resolveGmailCredentials(cfg); err != nil {
		return nil, err
	}
	return gmail.New(cfg.Gmail.Account, store.NewKeyringTokenStore(),
		gmail.WithLabel(cfg.Fetch.Label),
		gmail.WithLogger(logger),
	), nil
}

// resolveGmailCredentials sets Gmail OAuth credentials from the config,
// which already carries the GMAIL_CLIENT_ID / GMAIL_CLIENT_SECRET overrides.
func resolveGmailCredentials(cfg *config.Config) error {
	if cfg.Gmail.ClientID != "" && cfg.Gmail.ClientSecret != "" {
		gmail.SetCredentials(cfg.Gmail.ClientID, cfg.Gmail.ClientSecret)
	}
	return gmail.EnsureCredentials()
}

// rulesOptions returns the engine options for the configured limits.
func rulesOptions(cfg *config.Config, logger *zap.Logger) []rules.Option {
	return []rules.Option{
		rules.WithValidator(&rules.Validator{
			MaxRules:      cfg.Rules.MaxRules,
			MaxConditions: cfg.Rules.MaxConditions,
			MaxActions:    cfg.Rules.MaxActions,
		}),
		rules.WithLogger(logger.Named("rules")),
	}
}

// rulesPath picks the rules file: flag, then argument, then config.
func rulesPath(cfg *config.Config, flag string, args []string) string {
	switch {
	case flag != "":
		return flag
	case len(args) > 0:
		return args[0]
	default:
		return cfg.Rules.File
	}
}

// loadRules loads the rule set, printing the validation report on failure.
func loadRules(cfg *config.Config, path string, logger *zap.Logger) (*rules.Engine, error) {
	engine, err := rules.LoadFile(path, rulesOptions(cfg, logger)...)
	if err != nil {
		return nil, rulesError(path, err)
	}
	return engine, nil
}

// rulesError turns a rule loading failure into a user-facing error. The
// full validation report goes to stderr.
func rulesError(path string, err error) error {
	var verr *rules.ValidationError
	switch {
	case errors.As(err, &verr):
		fmt.Fprintln(os.Stderr, verr.Error())
		return fmt.Errorf("cannot proceed: %s has %d validation errors", path, len(verr.Errors))
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("rules file %q not found", path)
	default:
		return fmt.Errorf("failed to load rules: %w", err)
	}
}

package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lu-zhengda/mailrules/internal/config"
	"github.com/lu-zhengda/mailrules/internal/store/postgres"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the postgres schema",
		Long:  "Apply or roll back postgres schema migrations. The sqlite store creates its schema on open.",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(m *postgres.Migrator) error {
				if err := m.Up(); err != nil {
					return err
				}
				return printVersion(m)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down [N]",
		Short: "Roll back N migrations (default 1)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 1 {
					return fmt.Errorf("invalid step count %q", args[0])
				}
				steps = n
			}
			return withMigrator(cmd, func(m *postgres.Migrator) error {
				if err := m.Down(steps); err != nil {
					return err
				}
				return printVersion(m)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, printVersion)
		},
	})
	return cmd
}

func withMigrator(cmd *cobra.Command, fn func(*postgres.Migrator) error) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Database.Driver != config.DriverPostgres {
		return fmt.Errorf("migrate requires database.driver = %q, got %q", config.DriverPostgres, cfg.Database.Driver)
	}
	m, err := postgres.NewMigrator(cmd.Context(), cfg.Database.DSN, logger)
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(m)
}

func printVersion(m *postgres.Migrator) error {
	v, dirty, err := m.Version()
	if err != nil {
		return err
	}
	if jsonFlag {
		return printJSON(jsonMigration{Version: v, Dirty: dirty})
	}
	fmt.Printf("Schema version: %d", v)
	if dirty {
		fmt.Print(" (dirty)")
	}
	fmt.Println()
	return nil
}

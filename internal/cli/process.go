package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lu-zhengda/mailrules/internal/app"
	"github.com/lu-zhengda/mailrules/internal/rules"
)

func newProcessCmd() *cobra.Command {
	var rulesFlag string
	var dryRunFlag bool

	cmd := &cobra.Command{
		Use:   "process [rules-file]",
		Short: "Apply rules to stored emails",
		Long:  "Validate the rule set, evaluate it against every current email and apply the resulting actions.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			// Rules are validated before anything else is opened.
			path := rulesPath(cfg, rulesFlag, args)
			engine, err := loadRules(cfg, path, logger)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			p, err := newGmail(cfg, logger)
			if err != nil {
				return err
			}
			db, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			processor := app.NewProcessor(db, p, logger, app.WithDryRun(dryRunFlag))
			summary, err := processor.Process(ctx, engine)
			if errors.Is(err, app.ErrNoEmails) {
				fmt.Fprintln(os.Stderr, "No emails found in the store. Run 'mailrules fetch' first.")
				return nil
			}
			if summary == nil {
				return err
			}

			if jsonFlag {
				if perr := printJSON(toJSONProcessSummary(summary)); perr != nil {
					return perr
				}
				return err
			}

			if summary.DryRun {
				fmt.Println("Dry run: no actions were applied.")
			}
			fmt.Printf("Emails processed:  %d/%d\n", summary.Matched, summary.Emails)
			fmt.Printf("Actions executed:  %d\n", summary.Actions)
			if summary.FailedActions > 0 {
				fmt.Printf("Actions failed:    %d\n", summary.FailedActions)
			}
			fmt.Printf("Versions created:  %d\n", summary.Versions())
			return err
		},
	}

	cmd.Flags().StringVarP(&rulesFlag, "rules", "r", "", "rules file (JSON or YAML)")
	cmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "evaluate rules without applying actions")
	return cmd
}

func newValidateCmd() *cobra.Command {
	var rulesFlag string

	cmd := &cobra.Command{
		Use:   "validate [rules-file]",
		Short: "Validate a rule set",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			path := rulesPath(cfg, rulesFlag, args)
			doc, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read rules file: %w", err)
			}

			v := &rules.Validator{
				MaxRules:      cfg.Rules.MaxRules,
				MaxConditions: cfg.Rules.MaxConditions,
				MaxActions:    cfg.Rules.MaxActions,
			}
			compiled, report, _ := v.Compile(doc, rules.FormatFromPath(path))

			if jsonFlag {
				if err := printJSON(toJSONValidation(report, len(compiled))); err != nil {
					return err
				}
			} else {
				renderReport(os.Stdout, path, report, len(compiled))
			}
			if report.HasErrors() {
				return fmt.Errorf("%s has %d validation errors", path, len(report.Errors))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&rulesFlag, "rules", "r", "", "rules file (JSON or YAML)")
	return cmd
}

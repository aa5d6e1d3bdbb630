package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lu-zhengda/mailrules/internal/app"
)

func newFetchCmd() *cobra.Command {
	var maxFlag int
	var forceFlag bool

	cmd := &cobra.Command{
		Use:   "fetch [N]",
		Short: "Fetch messages into the store",
		Long:  "Fetch up to N messages from the configured label and record them as versions in the store.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			max := cfg.Fetch.MaxEmails
			if len(args) == 1 {
				max, err = strconv.Atoi(args[0])
				if err != nil || max < 1 {
					return fmt.Errorf("invalid message count %q", args[0])
				}
			}
			if maxFlag > 0 {
				max = maxFlag
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

			fetcher := app.NewFetcher(p, db, logger)
			existing, need, err := fetcher.NeedsConfirmation(ctx, max)
			if err != nil {
				return err
			}
			if need && !forceFlag {
				prompt := fmt.Sprintf("Database already has %d emails. Fetch anyway? [y/N]: ", existing)
				if !confirm(os.Stdin, os.Stderr, prompt) {
					fmt.Fprintln(os.Stderr, "Skipping fetch. Use --force to override.")
					return nil
				}
			}

			summary, err := fetcher.Fetch(ctx, max)
			if summary == nil {
				return err
			}
			if jsonFlag {
				if perr := printJSON(summary); perr != nil {
					return perr
				}
				return err
			}

			fmt.Printf("Fetched:             %d\n", summary.Fetched)
			fmt.Printf("New emails:          %d\n", summary.Batch.Inserted)
			fmt.Printf("New versions:        %d\n", summary.Batch.Versioned)
			if summary.Batch.Failed > 0 {
				fmt.Printf("Failed:              %d\n", summary.Batch.Failed)
			}
			fmt.Printf("Unique emails:       %d\n", summary.Stats.UniqueEmails)
			fmt.Printf("Total versions:      %d\n", summary.Stats.TotalVersions)
			fmt.Printf("Historical versions: %d\n", summary.Stats.HistoricalVersions)
			return err
		},
	}

	cmd.Flags().IntVarP(&maxFlag, "max", "m", 0, "maximum messages to fetch (overrides N)")
	cmd.Flags().BoolVarP(&forceFlag, "force", "f", false, "skip the confirmation prompt")
	return cmd
}

// confirm writes prompt to w and reports whether the answer read from r is
// yes.
func confirm(r io.Reader, w io.Writer, prompt string) bool {
	fmt.Fprint(w, prompt)
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

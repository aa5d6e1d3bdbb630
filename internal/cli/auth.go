package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newAuthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize Gmail access via OAuth",
		Long:  "Run the OAuth consent flow and save the token to the OS keyring.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			p, err := newGmail(cfg, logger)
			if err != nil {
				return err
			}

			fmt.Fprintln(os.Stderr, "Starting Gmail OAuth flow...")
			err = p.Authenticate(cmd.Context(), func(url string) {
				fmt.Fprintf(os.Stderr, "Open this URL in your browser to authorize mailrules:\n\n%s\n\n", url)
			})
			if err != nil {
				return fmt.Errorf("failed to authenticate: %w", err)
			}

			if jsonFlag {
				return printJSON(jsonAction{OK: true, Action: "auth", Account: cfg.Gmail.Account})
			}
			fmt.Printf("Token saved for account %q.\n", cfg.Gmail.Account)
			return nil
		},
	}
}

func newLabelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "labels",
		Short: "List the Gmail labels move destinations resolve against",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			p, err := newGmail(cfg, logger)
			if err != nil {
				return err
			}
			labels, err := p.ListLabels(cmd.Context())
			if err != nil {
				return err
			}

			if jsonFlag {
				return printJSON(toJSONLabels(labels))
			}
			w := newTable(os.Stdout, "ID", "NAME", "TYPE")
			for _, l := range labels {
				fmt.Fprintf(w, "%s\t%s\t%s\n", l.ID, l.Name, l.Type)
			}
			return w.Flush()
		},
	}
}

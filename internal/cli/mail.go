package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lu-zhengda/mailrules/internal/domain"
	"github.com/lu-zhengda/mailrules/internal/store"
)

func newListCmd() *cobra.Command {
	var limitFlag int
	var searchFlag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List current emails",
		Long:  "List the current version of every stored email, newest first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			db, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			var emails []domain.Email
			if searchFlag != "" {
				emails, err = db.Search(cmd.Context(), searchFlag)
			} else {
				emails, err = db.CurrentAll(cmd.Context())
			}
			if err != nil {
				return fmt.Errorf("failed to list emails: %w", err)
			}
			if limitFlag > 0 && len(emails) > limitFlag {
				emails = emails[:limitFlag]
			}

			if jsonFlag {
				return printJSON(toJSONEmails(emails))
			}

			if len(emails) == 0 {
				fmt.Println("No emails found. Run 'mailrules fetch' first.")
				return nil
			}

			w := newTable(os.Stdout, "UNREAD", "FROM", "SUBJECT", "DATE", "LABELS", "ID")
			for _, e := range emails {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					unreadMark(&e),
					truncate(e.From, 30),
					truncate(e.Subject, 50),
					formatDate(e.ReceivedAt, "Jan 2, 2006"),
					strings.Join(e.Labels, ","),
					e.ID,
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limitFlag, "limit", 25, "max emails to show (0 for all)")
	cmd.Flags().StringVar(&searchFlag, "search", "", "only show emails whose sender, subject or body contains this text")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <email-id>",
		Short: "Show every stored version of an email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			db, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			records, err := db.History(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get history: %w", err)
			}

			if jsonFlag {
				return printJSON(toJSONRecords(records))
			}

			if len(records) == 0 {
				return fmt.Errorf("email %s: %w", args[0], store.ErrNotFound)
			}

			fmt.Printf("Subject: %s\n", records[len(records)-1].Subject)
			fmt.Printf("From: %s\n", records[len(records)-1].From)
			fmt.Println(strings.Repeat("─", 60))

			w := newTable(os.Stdout, "CURRENT", "VALID_FROM", "VALID_TO", "LABELS")
			for _, r := range records {
				current := " "
				if r.IsCurrent {
					current = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					current,
					r.ValidFrom.Local().Format(time.DateTime),
					formatDate(r.ValidTo, time.DateTime),
					strings.Join(r.Labels, ","),
				)
			}
			return w.Flush()
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show store statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			db, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			stats, err := db.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get stats: %w", err)
			}

			if jsonFlag {
				return printJSON(toJSONStats(stats))
			}
			fmt.Printf("Unique emails:       %d\n", stats.UniqueEmails)
			fmt.Printf("Total versions:      %d\n", stats.TotalVersions)
			fmt.Printf("Current versions:    %d\n", stats.CurrentVersions)
			fmt.Printf("Historical versions: %d\n", stats.HistoricalVersions)
			return nil
		},
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func formatDate(t *time.Time, layout string) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(layout)
}

// unreadMark returns the list column marker for unread emails.
func unreadMark(e *domain.Email) string {
	if e.HasLabel(domain.LabelUnread) {
		return "*"
	}
	return " "
}

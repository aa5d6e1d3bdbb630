package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/lu-zhengda/mailrules/internal/rules"
)

var (
	mutedColor   = lipgloss.Color("#6B7280")
	accentColor  = lipgloss.Color("#F59E0B")
	errorColor   = lipgloss.Color("#EF4444")
	successColor = lipgloss.Color("#10B981")

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7C3AED")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	mutedTextStyle = lipgloss.NewStyle().
			Foreground(mutedColor)
)

// renderReport writes the validation report for the rules file at path.
func renderReport(w io.Writer, path string, report *rules.Report, ruleCount int) {
	fmt.Fprintln(w, titleStyle.Render("Validating "+path))

	if len(report.Errors) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Validation Errors:")
		for _, msg := range report.Errors {
			fmt.Fprintf(w, "  %s %s\n", errorStyle.Render("ERROR:"), msg)
		}
	}
	if len(report.Warnings) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Warnings:")
		for _, msg := range report.Warnings {
			fmt.Fprintf(w, "  %s %s\n", warningStyle.Render("WARNING:"), msg)
		}
	}

	fmt.Fprintln(w)
	if report.HasErrors() {
		fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf("Invalid: %d errors, %d warnings", len(report.Errors), len(report.Warnings))))
		return
	}
	fmt.Fprintf(w, "%s %s\n",
		successStyle.Render(fmt.Sprintf("Valid: %d rules", ruleCount)),
		mutedTextStyle.Render(fmt.Sprintf("(%d warnings)", len(report.Warnings))),
	)
}

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// printJSON writes v to stdout for --json output.
func printJSON(v any) error {
	return writeJSON(os.Stdout, v)
}

// writeJSON encodes v as indented JSON. HTML escaping is off so sender
// addresses such as "Alice <alice@example.com>" print as they are stored.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// newTable starts an aligned table on w with the given column headers. The
// caller writes tab-separated rows and must call Flush.
func newTable(w io.Writer, header ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	return tw
}

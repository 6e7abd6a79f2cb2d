package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"skysurvey/internal/app"
	"skysurvey/internal/ledger"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent submissions from the history store",
	Long: `Show the most recent submissions, newest first. Requires a storage section
in the config (driver "file" or "sqlite").`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "max entries")
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := openApp(app.Options{ReadOnly: true})
	if err != nil {
		return err
	}
	defer a.Close()

	st := a.Store()
	if st == nil {
		return errors.New("submission history is disabled (no storage configured)")
	}
	entries, err := st.RecentSubmissions(cmd.Context(), historyLimit)
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No submissions recorded.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RECORDED\tFIELD\tGROUP\tSTATUS\tREQUEST\tWINDOWS\tRESPONSE")
	for _, e := range entries {
		req := e.RequestNumber
		if req == "" {
			req = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			e.RecordedAt.UTC().Format(ledger.TimestampLayout), e.Field, e.GroupID, e.Status, req, e.SubRequests, truncate(e.Response, 60))
	}
	return w.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

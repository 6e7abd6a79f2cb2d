package cli

import (
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"skysurvey/internal/app"
	"skysurvey/internal/ledger"
	"skysurvey/internal/survey"
)

var activeCmd = &cobra.Command{
	Use:   "active",
	Short: "List fields with a live observation group",
	Long: `List the fields that the next run would skip: groups recorded in yesterday's
or today's ledger whose status contains OK and whose expiry is still ahead.`,
	Args: cobra.NoArgs,
	RunE: runActive,
}

func runActive(cmd *cobra.Command, args []string) error {
	a, err := openApp(app.Options{ReadOnly: true})
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.Config()
	now := time.Now().UTC()
	yesterday, today := ledger.New(cfg.Survey, a.Logger()).DayPaths(now)
	active, err := ledger.LoadActive([]string{yesterday, today}, cfg.Survey.GroupPrefix, now, a.Logger())
	if err != nil {
		return err
	}
	return printActive(cmd, active, now)
}

func printActive(cmd *cobra.Command, active map[string]survey.ObservationGroup, now time.Time) error {
	out := cmd.OutOrStdout()
	if len(active) == 0 {
		fmt.Fprintln(out, "No active groups.")
		return nil
	}
	names := make([]string, 0, len(active))
	for name := range active {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FIELD\tGROUP\tSTATUS\tEXPIRES\tLEFT")
	for _, name := range names {
		g := active[name]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			name, g.GroupID, g.Status, g.Expire.Format(ledger.TimestampLayout), g.Expire.Sub(now).Round(time.Minute))
	}
	return w.Flush()
}

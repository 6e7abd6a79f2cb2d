package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"skysurvey/internal/app"
)

var runQuiet bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Perform one survey run and exit",
	Long: `Perform one survey run: take the run lock, load the active groups from
yesterday's and today's ledgers, then build, submit and record a request for
every target that is not already active.

The command exits non-zero when the run aborts (lock conflict, missing target
list, ledger I/O). Rejected submissions are recorded and do not fail the run.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "do not print the run summary")
}

func runRun(cmd *cobra.Command, args []string) error {
	a, err := openApp(app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	rep, err := a.RunOnce(ctx)
	if !runQuiet && rep.RunID != "" {
		fmt.Fprintln(cmd.OutOrStdout(), rep.Text())
	}
	return err
}

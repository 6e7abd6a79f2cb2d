package cli

import (
	"github.com/spf13/cobra"

	"skysurvey/internal/app"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Stay resident and run the survey on a schedule",
	Long: `Stay resident and trigger a survey run on daemon.schedule:

  "00:10"        every day at 00:10 in daemon.timezone
  "10 0 * * *"   cron expression (an optional leading seconds field is allowed)
  "6h"           fixed interval

A trigger that fires while a run is still in progress is skipped. The config
file is watched and changes apply from the next run. Under systemd, use
Type=notify: readiness and the last run summary are reported via sd_notify.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext(cmd.Context())
		defer cancel()
		return a.Daemon(ctx)
	},
}

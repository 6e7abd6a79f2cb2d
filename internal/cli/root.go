// Package cli provides the skysurvey command-line interface.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"skysurvey/internal/app"
)

var (
	// Version is set at build time.
	Version = "dev"

	cfgPath string
)

var rootCmd = &cobra.Command{
	Use:   "skysurvey",
	Short: "Submit repeating survey observations to the telescope network",
	Long: `skysurvey reads a target list, skips fields that still have a live request,
splits each remaining field's time-to-live into cadence windows and submits one
compound request per field. Every submission is appended to the daily ledger.

Run it once a day from cron (skysurvey run) or keep it resident (skysurvey daemon).`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "./skysurvey.yaml", "path to config (json or yaml)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(activeCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(unlockCmd)
}

func openApp(opt app.Options) (*app.App, error) {
	return app.New(cfgPath, opt)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

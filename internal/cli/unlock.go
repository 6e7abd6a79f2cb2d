package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"skysurvey/internal/app"
	"skysurvey/internal/lock"
)

var unlockForce bool

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Remove a stale run lock",
	Long: `Show the run lock left behind by a crashed run and, with --force, remove it.

Only remove the lock when no skysurvey process is running. Locks held by other
tools (survey.clashing_locks) are never touched.`,
	Args: cobra.NoArgs,
	RunE: runUnlock,
}

func init() {
	unlockCmd.Flags().BoolVar(&unlockForce, "force", false, "remove the lock file")
}

func runUnlock(cmd *cobra.Command, args []string) error {
	a, err := openApp(app.Options{ReadOnly: true})
	if err != nil {
		return err
	}
	defer a.Close()

	s := a.Config().Survey
	l := lock.New(s.LogDir, s.LockName)
	out := cmd.OutOrStdout()

	since, err := l.Read()
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(out, "No lock at %s.\n", l.Path())
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Lock %s created %s.\n", l.Path(), since)
	if !unlockForce {
		fmt.Fprintln(out, "Re-run with --force to remove it.")
		return nil
	}
	if err := l.Release(); err != nil {
		return err
	}
	fmt.Fprintln(out, "Lock removed.")
	return nil
}

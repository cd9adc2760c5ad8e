package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/inovacc/gitext/internal/hook"
	"github.com/spf13/cobra"
)

var installHookCmd = &cobra.Command{
	Use:   "install-hook",
	Short: "Install a post-merge hook that re-runs gitext",
	Long: `Install a git post-merge hook in the current repository so externals are
re-synced automatically after every git pull or merge.

An existing post-merge hook that does not already invoke gitext is backed
up with a .pre-gitext suffix before being replaced. Re-running the command
is a no-op.

Examples:
  gitext install-hook`,
	Args: cobra.NoArgs,
	RunE: runInstallHook,
}

func init() {
	rootCmd.AddCommand(installHookCmd)
}

func runInstallHook(_ *cobra.Command, _ []string) error {
	if err := hook.Install(".", slog.Default()); err != nil {
		return err
	}

	_, _ = fmt.Fprintln(os.Stdout, okStyle.Render("Post-merge hook installed."))

	return nil
}

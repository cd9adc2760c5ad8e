package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/inovacc/gitext/internal/updater"
	"github.com/spf13/cobra"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Check for a newer release and install it",
	Long: `Download the latest published gitext binary and replace the running one
if the published version is strictly newer. Downgrades are refused.

After a successful update the new binary is re-executed with the same
arguments and its exit code is propagated.

Examples:
  gitext update`,
	Args: cobra.NoArgs,
	RunE: runUpdate,
}

func init() {
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(_ *cobra.Command, _ []string) error {
	u := updater.New("", slog.Default())

	updated, err := u.Check()
	if err != nil {
		return err
	}

	if !updated {
		_, _ = fmt.Fprintln(os.Stdout, dimStyle.Render("Already up to date."))

		return nil
	}

	_, _ = fmt.Fprintln(os.Stdout, okStyle.Render("Updated, restarting..."))
	os.Exit(updater.Reexec(os.Args[1:]))

	return nil
}

package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/inovacc/gitext/internal/cache"
	"github.com/inovacc/gitext/internal/gitcmd"
	"github.com/inovacc/gitext/internal/journal"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the last sync outcome for each external",
	Long: `Show when each external was last synced, from which URL and branch, and
whether the sync succeeded. The information comes from the sync journal
kept next to the cache entries under .git/externals.

Examples:
  gitext status`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(_ *cobra.Command, _ []string) error {
	if err := gitcmd.LookGit(); err != nil {
		return err
	}

	cm, err := cache.NewManager(".", slog.Default())
	if err != nil {
		return err
	}

	jnl, err := journal.Open(cm.Root())
	if err != nil {
		return fmt.Errorf("failed to open sync journal: %w", err)
	}
	defer func() { _ = jnl.Close() }()

	entries, err := jnl.List()
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		_, _ = fmt.Fprintln(os.Stdout, dimStyle.Render("No syncs recorded yet."))

		return nil
	}

	for _, entry := range entries {
		status := okStyle.Render("[ OK ]")
		detail := fmt.Sprintf("%s@%s", entry.URL, entry.Branch)

		if !entry.Success {
			status = errStyle.Render("[FAIL]")
			detail = entry.Error
		}

		_, _ = fmt.Fprintf(os.Stdout, "%s %-24s %s %s\n",
			status, entry.Name, dimStyle.Render(entry.SyncedAt.Format("2006-01-02 15:04:05")), detail)
	}

	return nil
}

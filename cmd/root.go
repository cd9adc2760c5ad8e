package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/inovacc/gitext/internal/application"
	"github.com/inovacc/gitext/internal/sync"
	"github.com/inovacc/gitext/internal/updater"
	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   application.AppName,
	Short: "Sync external repositories into subdirectories",
	Long: `Gitext mirrors external git repositories into subdirectories of the
current repository, without submodules. Externals are declared in a
.gitexternals file at the repository root:

  [external "demo"]
      path = lib/demo
      url = https://example.com/demo.git
      branch = main
      script = hooks/after-demo.sh
      lfs = true

Each external keeps a persistent shallow clone under .git/externals and its
target directory always mirrors that clone's working tree. A .gitexternal
marker in every target records where its content came from.

Running gitext with no arguments checks for a newer release of the tool,
then syncs every configured external in file order. A failing external is
reported and the rest are still processed.

Examples:
  gitext                # sync all externals
  gitext status         # show the last sync outcome per external
  gitext install-hook   # re-sync automatically after git pull/merge
  gitext update         # force a self-update check`,
	Version:       application.Version,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}

		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})))
	},
	RunE: runSync,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, errStyle.Render("Error: ")+err.Error())

		if strings.Contains(err.Error(), "unknown command") {
			_ = rootCmd.Usage()
		}

		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.SetVersionTemplate(application.VersionMarker + "\n")
}

func runSync(cmd *cobra.Command, _ []string) error {
	// Update check first; any trouble here is a warning, the sync still
	// runs with the current binary.
	u := updater.New("", slog.Default())

	updated, err := u.Check()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, warnStyle.Render("Warning: ")+"self-update check failed: "+err.Error())
	}

	if updated {
		_, _ = fmt.Fprintln(os.Stdout, okStyle.Render("Updated, restarting..."))
		os.Exit(updater.Reexec(os.Args[1:]))
	}

	syncer, err := sync.New(sync.Options{Logger: slog.Default()})
	if err != nil {
		return err
	}
	defer func() { _ = syncer.Close() }()

	results, warnings, err := syncer.SyncAll()
	if err != nil {
		return err
	}

	for _, warning := range warnings {
		_, _ = fmt.Fprintln(os.Stderr, warnStyle.Render("Warning: ")+warning)
	}

	printResults(results)

	return nil
}

func printResults(results []sync.Result) {
	if len(results) == 0 {
		_, _ = fmt.Fprintln(os.Stdout, dimStyle.Render("No externals configured."))

		return
	}

	var synced, failed int

	for _, r := range results {
		switch {
		case r.Success:
			synced++

			_, _ = fmt.Fprintf(os.Stdout, "%s %-24s %s (%s, %s)\n",
				okStyle.Render("[ OK ]"), r.Name, dimStyle.Render(r.URL),
				r.Action, r.Duration.Round(timeUnit))
		default:
			failed++

			_, _ = fmt.Fprintf(os.Stdout, "%s %-24s %s\n",
				errStyle.Render("[FAIL]"), r.Name, r.Err.Error())
		}

		if r.Warning != "" {
			_, _ = fmt.Fprintf(os.Stdout, "       %s\n", warnStyle.Render(r.Warning))
		}
	}

	_, _ = fmt.Fprintln(os.Stdout, dimStyle.Render("───────────────────────────────────────────────"))
	_, _ = fmt.Fprintf(os.Stdout, "  Synced: %d  Failed: %d\n", synced, failed)
}

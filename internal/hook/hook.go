package hook

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/inovacc/gitext/internal/application"
	"github.com/inovacc/gitext/internal/gitcmd"
)

const hookName = "post-merge"

// backupSuffix is appended to a pre-existing foreign hook before it is
// replaced.
const backupSuffix = ".pre-gitext"

// Install writes a post-merge hook that re-runs the tool after every merge
// or pull. Installing twice is a no-op; a foreign hook is backed up first.
func Install(repoDir string, logger *slog.Logger) error {
	if err := gitcmd.LookGit(); err != nil {
		return err
	}

	if logger == nil {
		logger = slog.Default()
	}

	hookDir, err := gitcmd.HookDir(repoDir)
	if err != nil {
		return err
	}

	if !filepath.IsAbs(hookDir) {
		hookDir = filepath.Join(repoDir, hookDir)
	}

	exe, err := application.ExecutablePath()
	if err != nil {
		return err
	}

	hookPath := filepath.Join(hookDir, hookName)
	script := hookScript(exe)

	if existing, err := os.ReadFile(hookPath); err == nil {
		if strings.Contains(string(existing), exe) {
			logger.Info("hook already installed", slog.String("path", hookPath))

			return nil
		}

		backup := backupPath(hookPath)
		if err := os.Rename(hookPath, backup); err != nil {
			return fmt.Errorf("failed to back up existing hook: %w", err)
		}

		logger.Info("backed up existing hook", slog.String("path", backup))
	}

	if err := os.MkdirAll(hookDir, 0o755); err != nil {
		return fmt.Errorf("failed to create hooks directory: %w", err)
	}

	if err := os.WriteFile(hookPath, []byte(script), 0o755); err != nil {
		return fmt.Errorf("failed to write hook: %w", err)
	}

	logger.Info("installed post-merge hook", slog.String("path", hookPath))

	return nil
}

// backupPath returns a backup name for hookPath that does not overwrite a
// backup from an earlier install.
func backupPath(hookPath string) string {
	backup := hookPath + backupSuffix

	for i := 1; ; i++ {
		if _, err := os.Stat(backup); os.IsNotExist(err) {
			return backup
		}

		backup = fmt.Sprintf("%s%s.%d", hookPath, backupSuffix, i)
	}
}

// hookScript builds the hook body. exec makes the hook's exit code the
// tool's exit code. Git calls post-merge with a squash-status argument the
// tool does not take, so hook arguments are deliberately not forwarded.
func hookScript(exe string) string {
	return fmt.Sprintf("#!/bin/sh\n# installed by %s\nexec %q\n",
		application.AppName, exe)
}

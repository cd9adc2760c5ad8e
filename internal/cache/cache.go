package cache

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/inovacc/gitext/internal/config"
	"github.com/inovacc/gitext/internal/gitcmd"
)

// Action describes what the cache manager did for one external.
type Action string

const (
	ActionClone  Action = "clone"
	ActionUpdate Action = "update"
)

// BranchNotFoundError indicates the configured branch is absent from the
// remote. Available carries the remote's branch listing for the report.
type BranchNotFoundError struct {
	Branch    string
	URL       string
	Available []string
}

func (e *BranchNotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("branch %q not found on %s", e.Branch, e.URL)
	}

	return fmt.Sprintf("branch %q not found on %s (available: %s)",
		e.Branch, e.URL, strings.Join(e.Available, ", "))
}

// NetworkError wraps a failed remote operation for one external.
type NetworkError struct {
	Operation string
	Err       error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Operation, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Manager maintains one persistent shallow clone per external under the
// host repository's git directory. Entries are updated in place and never
// deleted.
type Manager struct {
	root   string
	logger *slog.Logger
}

// NewManager resolves the cache root inside the repository containing
// repoDir.
func NewManager(repoDir string, logger *slog.Logger) (*Manager, error) {
	gitDir, err := gitcmd.GitDir(repoDir)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		root:   filepath.Join(gitDir, "externals"),
		logger: logger,
	}, nil
}

// Root returns the cache root directory.
func (m *Manager) Root() string {
	return m.root
}

// Dir returns the cache entry directory for the named external.
func (m *Manager) Dir(name string) string {
	return filepath.Join(m.root, name)
}

// Sync brings the external's cache entry to the latest commit of its
// configured branch, cloning on first use.
func (m *Manager) Sync(ext config.External) (Action, error) {
	dir := m.Dir(ext.Name)

	if _, err := os.Stat(filepath.Join(dir, ".git")); os.IsNotExist(err) {
		if err := m.clone(ext, dir); err != nil {
			return ActionClone, err
		}

		if ext.LFS {
			m.pullLFS(ext, dir)
		}

		return ActionClone, nil
	}

	if err := m.update(ext, dir); err != nil {
		return ActionUpdate, err
	}

	if ext.LFS {
		m.pullLFS(ext, dir)
	}

	return ActionUpdate, nil
}

func (m *Manager) clone(ext config.External, dir string) error {
	m.logger.Info("cloning external",
		slog.String("name", ext.Name),
		slog.String("url", ext.URL),
		slog.String("branch", ext.Branch),
	)

	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return fmt.Errorf("failed to create cache root: %w", err)
	}

	_, err := gitcmd.Run("", "clone",
		"--depth", "1",
		"--single-branch",
		"--branch", ext.Branch,
		"--filter=blob:none",
		ext.URL, dir)
	if err != nil {
		return &NetworkError{Operation: "clone of " + ext.URL, Err: err}
	}

	return nil
}

func (m *Manager) update(ext config.External, dir string) error {
	m.logger.Info("updating external",
		slog.String("name", ext.Name),
		slog.String("branch", ext.Branch),
	)

	if _, err := gitcmd.Run(dir, "fetch", "--depth", "1", "origin", ext.Branch); err != nil {
		branches, lsErr := gitcmd.RemoteBranches(ext.URL)
		if lsErr == nil && !containsBranch(branches, ext.Branch) {
			return &BranchNotFoundError{
				Branch:    ext.Branch,
				URL:       ext.URL,
				Available: branches,
			}
		}

		return &NetworkError{Operation: "fetch of " + ext.URL, Err: err}
	}

	if _, err := gitcmd.Run(dir, "reset", "--hard", "FETCH_HEAD"); err != nil {
		return fmt.Errorf("failed to reset cache entry %q: %w", ext.Name, err)
	}

	if _, err := gitcmd.Run(dir, "clean", "-fdx"); err != nil {
		return fmt.Errorf("failed to clean cache entry %q: %w", ext.Name, err)
	}

	return nil
}

// pullLFS fetches large-file objects into the cache entry. A missing
// git-lfs installation degrades to a warning.
func (m *Manager) pullLFS(ext config.External, dir string) {
	if !gitcmd.HasLFS() {
		m.logger.Warn("git-lfs not installed, skipping large file download",
			slog.String("name", ext.Name),
		)

		return
	}

	if _, err := gitcmd.Run(dir, "lfs", "install", "--local"); err != nil {
		m.logger.Warn("git lfs install failed",
			slog.String("name", ext.Name),
			slog.String("error", err.Error()),
		)

		return
	}

	if _, err := gitcmd.Run(dir, "lfs", "pull"); err != nil {
		m.logger.Warn("git lfs pull failed",
			slog.String("name", ext.Name),
			slog.String("error", err.Error()),
		)
	}
}

func containsBranch(branches []string, name string) bool {
	for _, b := range branches {
		if b == name {
			return true
		}
	}

	return false
}

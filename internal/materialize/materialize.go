package materialize

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/inovacc/gitext/internal/application"
	"github.com/inovacc/gitext/internal/config"
	"github.com/inovacc/gitext/internal/gitcmd"
)

// preservedFile survives target clearing so a checked-in ignore file is not
// lost between syncs.
const preservedFile = ".gitignore"

// ScriptMissingError indicates the configured post-sync script does not
// exist. The sync itself already completed when this is raised.
type ScriptMissingError struct {
	Script string
}

func (e *ScriptMissingError) Error() string {
	return fmt.Sprintf("post-sync script not found: %s", e.Script)
}

// Materializer mirrors cache entries into target directories. Relative
// target paths resolve against the repository root.
type Materializer struct {
	repoDir string
	logger  *slog.Logger

	// now is swapped in tests to pin marker timestamps.
	now func() time.Time
}

// New returns a Materializer for the repository rooted at repoDir.
func New(repoDir string, logger *slog.Logger) *Materializer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Materializer{
		repoDir: repoDir,
		logger:  logger,
		now:     time.Now,
	}
}

// Target resolves the external's target directory.
func (m *Materializer) Target(ext config.External) (string, error) {
	path := ext.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(m.repoDir, path)
	}

	target, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve target path %q: %w", ext.Path, err)
	}

	return target, nil
}

// Mirror replaces the content of ext's target directory with the cache
// entry's working tree and rewrites the provenance marker. The target ends
// up as a byte-for-byte copy of the cache minus git metadata.
func (m *Materializer) Mirror(ext config.External, cacheDir string) error {
	target, err := m.Target(ext)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create parent of %q: %w", target, err)
	}

	if _, err := os.Stat(target); err == nil {
		if err := clearTarget(target); err != nil {
			return err
		}
	} else if err := os.MkdirAll(target, 0o755); err != nil {
		return fmt.Errorf("failed to create target %q: %w", target, err)
	}

	// Trailing slash on the source makes rsync copy the tree content, not
	// the directory itself.
	if _, err := gitcmd.RunTool("", "rsync", "-a", "--exclude=.git",
		cacheDir+string(os.PathSeparator), target); err != nil {
		return fmt.Errorf("failed to mirror %q into %q: %w", ext.Name, target, err)
	}

	if err := m.writeMarker(target, ext); err != nil {
		return err
	}

	m.logger.Info("materialized external",
		slog.String("name", ext.Name),
		slog.String("target", target),
	)

	return nil
}

// RunScript resolves and executes the external's post-sync script with the
// target directory as its argument. Relative script paths resolve against
// the tool's own directory.
func (m *Materializer) RunScript(ext config.External) error {
	script := ext.Script
	if script == "" {
		return nil
	}

	if !filepath.IsAbs(script) {
		exeDir, err := application.ExecutableDir()
		if err != nil {
			return err
		}

		script = filepath.Join(exeDir, script)
	}

	info, err := os.Stat(script)
	if err != nil {
		return &ScriptMissingError{Script: script}
	}

	if info.Mode()&0o111 == 0 {
		if err := os.Chmod(script, info.Mode()|0o755); err != nil {
			return fmt.Errorf("failed to make script executable: %w", err)
		}
	}

	m.logger.Info("running post-sync script",
		slog.String("name", ext.Name),
		slog.String("script", script),
	)

	target, err := m.Target(ext)
	if err != nil {
		return err
	}

	if _, err := gitcmd.RunTool("", script, target); err != nil {
		return fmt.Errorf("post-sync script for %q failed: %w", ext.Name, err)
	}

	return nil
}

func (m *Materializer) writeMarker(target string, ext config.External) error {
	marker := fmt.Sprintf("url=%s\nbranch=%s\nsynced=%s\n",
		ext.URL, ext.Branch, m.now().Format(time.RFC3339))

	path := filepath.Join(target, application.MarkerFileName)

	if err := os.WriteFile(path, []byte(marker), 0o644); err != nil {
		return fmt.Errorf("failed to write provenance marker: %w", err)
	}

	return nil
}

// clearTarget removes everything inside dir except the preserved ignore
// file.
func clearTarget(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read target %q: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.Name() == preservedFile {
			continue
		}

		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("failed to clear target %q: %w", dir, err)
		}
	}

	return nil
}

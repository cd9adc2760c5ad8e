package application

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// AppName is the application name used for directories and identification
	AppName = "gitext"

	// Version is the released version of the tool. The marker prefix is what
	// the self-updater scans for in binaries, so the two must stay on one line.
	Version = "2025.6.1"

	// VersionMarker is the exact line embedded in every released binary.
	VersionMarker = "gitext-version: " + Version
)

// ConfigFileName is the externals definition file expected at the
// repository root.
const ConfigFileName = ".gitexternals"

// MarkerFileName is the provenance marker written at the root of every
// synced target directory.
const MarkerFileName = ".gitexternal"

// ExecutablePath returns the resolved absolute path of the running binary,
// with symlinks evaluated so hook and script paths stay stable.
func ExecutablePath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to locate executable: %w", err)
	}

	resolved, err := filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("failed to resolve executable path: %w", err)
	}

	return resolved, nil
}

// ExecutableDir returns the directory holding the running binary. Post-sync
// scripts with relative paths are resolved against it.
func ExecutableDir() (string, error) {
	exe, err := ExecutablePath()
	if err != nil {
		return "", err
	}

	return filepath.Dir(exe), nil
}

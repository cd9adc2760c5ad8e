package updater

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	goversion "github.com/hashicorp/go-version"
	"github.com/inovacc/gitext/internal/application"
)

// DownloadURL is where releases of the tool are published.
const DownloadURL = "https://github.com/inovacc/gitext/releases/latest/download/gitext"

const markerPrefix = "gitext-version: "

// connectTimeout bounds connection establishment for the download. The
// transfer itself is not bounded.
const connectTimeout = 10 * time.Second

// Updater replaces the running binary with a newer published one.
type Updater struct {
	url    string
	logger *slog.Logger
	client *http.Client
}

// New returns an Updater fetching from url, or the release URL when url is
// empty.
func New(url string, logger *slog.Logger) *Updater {
	if url == "" {
		url = DownloadURL
	}

	if logger == nil {
		logger = slog.Default()
	}

	dialer := &net.Dialer{Timeout: connectTimeout}

	return &Updater{
		url:    url,
		logger: logger,
		client: &http.Client{
			Transport: &http.Transport{DialContext: dialer.DialContext},
		},
	}
}

// Check downloads the published binary and, when it is strictly newer than
// the running one, swaps it in place and reports updated=true. The caller
// is expected to re-exec after a successful swap.
func (u *Updater) Check() (updated bool, err error) {
	exe, err := application.ExecutablePath()
	if err != nil {
		return false, err
	}

	tmp, err := u.download(filepath.Dir(exe))
	if err != nil {
		return false, err
	}
	defer func() { _ = os.Remove(tmp) }()

	currentVersion, err := ExtractVersion(exe)
	if err != nil {
		return false, fmt.Errorf("failed to read current version: %w", err)
	}

	downloadedVersion, err := ExtractVersion(tmp)
	if err != nil {
		return false, fmt.Errorf("failed to read downloaded version: %w", err)
	}

	newer, err := IsNewer(currentVersion, downloadedVersion)
	if err != nil {
		return false, err
	}

	if !newer {
		u.logger.Info("already up to date",
			slog.String("current", currentVersion),
			slog.String("published", downloadedVersion),
		)

		return false, nil
	}

	u.logger.Info("updating",
		slog.String("from", currentVersion),
		slog.String("to", downloadedVersion),
	)

	if err := os.Chmod(tmp, 0o755); err != nil {
		return false, fmt.Errorf("failed to mark update executable: %w", err)
	}

	// Rename over the live binary; the temp file lives in the same
	// directory so this stays a single-filesystem rename.
	if err := os.Rename(tmp, exe); err != nil {
		return false, fmt.Errorf("failed to install update: %w", err)
	}

	return true, nil
}

// Reexec runs the (freshly replaced) binary with the original arguments and
// returns its exit code.
func Reexec(args []string) int {
	exe, err := application.ExecutablePath()
	if err != nil {
		return 1
	}

	cmd := exec.Command(exe, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode()
		}

		return 1
	}

	return 0
}

// download fetches the published binary into a temp file next to the
// running one. Empty downloads are rejected.
func (u *Updater) download(dir string) (string, error) {
	resp, err := u.client.Get(u.url)
	if err != nil {
		return "", fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download failed: %s returned %s", u.url, resp.Status)
	}

	tmp, err := os.CreateTemp(dir, "gitext-update-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}

	written, err := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()

	switch {
	case err != nil:
		_ = os.Remove(tmp.Name())

		return "", fmt.Errorf("download failed: %w", err)
	case closeErr != nil:
		_ = os.Remove(tmp.Name())

		return "", closeErr
	case written == 0:
		_ = os.Remove(tmp.Name())

		return "", fmt.Errorf("download from %s was empty", u.url)
	}

	return tmp.Name(), nil
}

// ExtractVersion scans a binary (or script) for the embedded version marker
// line and returns the version it carries.
func ExtractVersion(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	idx := bytes.Index(data, []byte(markerPrefix))
	if idx < 0 {
		return "", fmt.Errorf("no version marker in %s", path)
	}

	rest := data[idx+len(markerPrefix):]

	end := 0
	for end < len(rest) && isVersionByte(rest[end]) {
		end++
	}

	if end == 0 {
		return "", fmt.Errorf("empty version marker in %s", path)
	}

	return string(rest[:end]), nil
}

// IsNewer reports whether candidate is strictly newer than current under
// version ordering, so "2025.10.0" beats "2025.9.1" even though it sorts
// lower lexically.
func IsNewer(current, candidate string) (bool, error) {
	cur, err := goversion.NewVersion(current)
	if err != nil {
		return false, fmt.Errorf("invalid current version %q: %w", current, err)
	}

	cand, err := goversion.NewVersion(candidate)
	if err != nil {
		return false, fmt.Errorf("invalid downloaded version %q: %w", candidate, err)
	}

	return cand.GreaterThan(cur), nil
}

func isVersionByte(b byte) bool {
	return b >= '0' && b <= '9' || b == '.'
}

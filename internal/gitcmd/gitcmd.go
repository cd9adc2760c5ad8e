package gitcmd

import (
	"fmt"
	"os/exec"
	"strings"
)

// MissingDependencyError indicates a required external tool is not installed.
// It aborts the entire run.
type MissingDependencyError struct {
	Tool string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("required tool not found in PATH: %s", e.Tool)
}

// Run executes git with the given arguments in dir and returns the combined
// output. The output is folded into the error so callers can surface what
// git printed.
func Run(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir

	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("git %s: %w: %s",
			strings.Join(args, " "), err, strings.TrimSpace(string(output)))
	}

	return string(output), nil
}

// RunTool executes an arbitrary tool in dir and returns the combined output.
func RunTool(dir, tool string, args ...string) (string, error) {
	cmd := exec.Command(tool, args...)
	cmd.Dir = dir

	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("%s %s: %w: %s",
			tool, strings.Join(args, " "), err, strings.TrimSpace(string(output)))
	}

	return string(output), nil
}

// LookGit verifies the git binary is available.
func LookGit() error {
	if _, err := exec.LookPath("git"); err != nil {
		return &MissingDependencyError{Tool: "git"}
	}

	return nil
}

// LookRsync verifies the rsync binary is available.
func LookRsync() error {
	if _, err := exec.LookPath("rsync"); err != nil {
		return &MissingDependencyError{Tool: "rsync"}
	}

	return nil
}

// HasLFS reports whether the git-lfs extension is installed. LFS is
// optional, so absence is reported as a bool rather than an error.
func HasLFS() bool {
	_, err := exec.LookPath("git-lfs")

	return err == nil
}

// GitDir resolves the absolute .git directory of the repository containing
// dir. Fails when dir is not inside a work tree.
func GitDir(dir string) (string, error) {
	output, err := Run(dir, "rev-parse", "--absolute-git-dir")
	if err != nil {
		return "", fmt.Errorf("not inside a git repository: %w", err)
	}

	return strings.TrimSpace(output), nil
}

// HookDir resolves the hooks directory of the repository containing dir.
func HookDir(dir string) (string, error) {
	output, err := Run(dir, "rev-parse", "--git-path", "hooks")
	if err != nil {
		return "", fmt.Errorf("not inside a git repository: %w", err)
	}

	return strings.TrimSpace(output), nil
}

// RemoteBranches lists the branch names advertised by the remote at url.
func RemoteBranches(url string) ([]string, error) {
	output, err := Run("", "ls-remote", "--heads", url)
	if err != nil {
		return nil, err
	}

	var branches []string

	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}

		branches = append(branches, strings.TrimPrefix(fields[1], "refs/heads/"))
	}

	return branches, nil
}

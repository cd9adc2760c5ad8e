package sync

import (
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/inovacc/gitext/internal/application"
	"github.com/inovacc/gitext/internal/cache"
	"github.com/inovacc/gitext/internal/journal"
	"github.com/stretchr/testify/require"
)

func requireTools(t *testing.T) {
	t.Helper()

	for _, tool := range []string{"git", "rsync"} {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("%s not available, skipping test", tool)
		}
	}
}

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()

	cmd := exec.Command("git", args...)
	cmd.Dir = dir

	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, output)
}

// setupRemote builds a bare repository holding the given files on branch
// main, reachable over file://.
func setupRemote(t *testing.T, files map[string]string) (url string) {
	t.Helper()

	remoteDir := t.TempDir()
	runGit(t, remoteDir, "init", "--bare")

	workDir := t.TempDir()
	runGit(t, workDir, "init")
	runGit(t, workDir, "checkout", "-b", "main")
	runGit(t, workDir, "config", "user.email", "test@test.com")
	runGit(t, workDir, "config", "user.name", "Test User")

	for name, content := range files {
		path := filepath.Join(workDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	runGit(t, workDir, "add", ".")
	runGit(t, workDir, "commit", "-m", "initial")
	runGit(t, workDir, "push", remoteDir, "main")

	return "file://" + remoteDir
}

// setupHost builds an empty host repository with the given externals
// config.
func setupHost(t *testing.T, configContent string) string {
	t.Helper()

	hostDir := t.TempDir()
	runGit(t, hostDir, "init")

	path := filepath.Join(hostDir, application.ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(configContent), 0o644))

	return hostDir
}

func newSyncer(t *testing.T, hostDir string) *Syncer {
	t.Helper()

	syncer, err := New(Options{RepoDir: hostDir})
	require.NoError(t, err)
	t.Cleanup(func() { _ = syncer.Close() })

	return syncer
}

// snapshot reads every file under dir except the provenance marker.
func snapshot(t *testing.T, dir string) map[string]string {
	t.Helper()

	files := map[string]string{}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || d.Name() == application.MarkerFileName {
			return err
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		files[rel] = string(data)

		return nil
	})
	require.NoError(t, err)

	return files
}

func TestSyncAll_FirstSync(t *testing.T) {
	requireTools(t)

	url := setupRemote(t, map[string]string{
		"README.md":  "# demo\n",
		"src/lib.go": "package lib\n",
	})

	hostDir := setupHost(t, `[external "demo"]
path = lib/demo
url = `+url+`
branch = main
`)

	syncer := newSyncer(t, hostDir)

	results, warnings, err := syncer.SyncAll()
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Len(t, results, 1)
	require.True(t, results[0].Success)
	require.Equal(t, "clone", results[0].Action)

	// new cache entry exists
	_, err = os.Stat(filepath.Join(hostDir, ".git", "externals", "demo", ".git"))
	require.NoError(t, err)

	// target carries the remote's tree
	target := filepath.Join(hostDir, "lib", "demo")

	data, err := os.ReadFile(filepath.Join(target, "README.md"))
	require.NoError(t, err)
	require.Equal(t, "# demo\n", string(data))

	_, err = os.Stat(filepath.Join(target, ".git"))
	require.True(t, os.IsNotExist(err))

	// provenance marker records source and branch
	marker, err := os.ReadFile(filepath.Join(target, application.MarkerFileName))
	require.NoError(t, err)
	require.Contains(t, string(marker), "url="+url+"\n")
	require.Contains(t, string(marker), "branch=main\n")

	// journal recorded the sync
	require.NoError(t, syncer.Close())

	jnl, err := journal.Open(filepath.Join(hostDir, ".git", "externals"))
	require.NoError(t, err)
	defer func() { _ = jnl.Close() }()

	entries, err := jnl.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "demo", entries[0].Name)
	require.True(t, entries[0].Success)
}

func TestSyncAll_RerunIsIdempotent(t *testing.T) {
	requireTools(t)

	url := setupRemote(t, map[string]string{"README.md": "# demo\n"})
	hostDir := setupHost(t, `[external "demo"]
path = lib/demo
url = `+url+`
branch = main
`)

	syncer := newSyncer(t, hostDir)

	results, _, err := syncer.SyncAll()
	require.NoError(t, err)
	require.True(t, results[0].Success)

	target := filepath.Join(hostDir, "lib", "demo")
	before := snapshot(t, target)

	results, _, err = syncer.SyncAll()
	require.NoError(t, err)
	require.True(t, results[0].Success)
	require.Equal(t, "update", results[0].Action)

	require.Equal(t, before, snapshot(t, target))
}

func TestSyncAll_MissingBranchDoesNotTouchTarget(t *testing.T) {
	requireTools(t)

	urlA := setupRemote(t, map[string]string{"a.txt": "a\n"})
	urlB := setupRemote(t, map[string]string{"b.txt": "b\n"})

	hostDir := setupHost(t, `[external "alpha"]
path = lib/alpha
url = `+urlA+`
branch = main

[external "beta"]
path = lib/beta
url = `+urlB+`
branch = main
`)

	syncer := newSyncer(t, hostDir)

	results, _, err := syncer.SyncAll()
	require.NoError(t, err)
	require.True(t, results[0].Success)
	require.True(t, results[1].Success)

	// point alpha at a branch the remote does not have
	badConfig := `[external "alpha"]
path = lib/alpha
url = ` + urlA + `
branch = nope

[external "beta"]
path = lib/beta
url = ` + urlB + `
branch = main
`
	require.NoError(t, os.WriteFile(filepath.Join(hostDir, application.ConfigFileName), []byte(badConfig), 0o644))

	alphaBefore := snapshot(t, filepath.Join(hostDir, "lib", "alpha"))

	results, _, err = syncer.SyncAll()
	require.NoError(t, err)
	require.Len(t, results, 2)

	require.False(t, results[0].Success)

	var branchErr *cache.BranchNotFoundError
	require.True(t, errors.As(results[0].Err, &branchErr))
	require.Contains(t, branchErr.Available, "main")

	// the failed external's target is untouched, the next one still synced
	require.Equal(t, alphaBefore, snapshot(t, filepath.Join(hostDir, "lib", "alpha")))
	require.True(t, results[1].Success)
}

func TestSyncAll_InvalidExternalSkipped(t *testing.T) {
	requireTools(t)

	url := setupRemote(t, map[string]string{"ok.txt": "ok\n"})

	hostDir := setupHost(t, `[external "broken"]
url = `+url+`

[external "good"]
path = lib/good
url = `+url+`
branch = main
`)

	syncer := newSyncer(t, hostDir)

	results, _, err := syncer.SyncAll()
	require.NoError(t, err)
	require.Len(t, results, 2)

	require.False(t, results[0].Success)
	require.Equal(t, "skip", results[0].Action)

	require.True(t, results[1].Success)
}

func TestSyncAll_NoConfigFile(t *testing.T) {
	requireTools(t)

	hostDir := t.TempDir()
	runGit(t, hostDir, "init")

	syncer := newSyncer(t, hostDir)

	results, warnings, err := syncer.SyncAll()
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Empty(t, results)
}

func TestSyncAll_ParseWarningsSurface(t *testing.T) {
	requireTools(t)

	url := setupRemote(t, map[string]string{"ok.txt": "ok\n"})

	hostDir := setupHost(t, `[external "demo"]
path = lib/demo
url = `+url+`
branch = main
mystery = value
`)

	syncer := newSyncer(t, hostDir)

	results, warnings, err := syncer.SyncAll()
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0], "mystery")
	require.True(t, results[0].Success)
}

func TestSyncAll_ScriptMissingStillSucceeds(t *testing.T) {
	requireTools(t)

	url := setupRemote(t, map[string]string{"ok.txt": "ok\n"})

	hostDir := setupHost(t, `[external "demo"]
path = lib/demo
url = `+url+`
branch = main
script = /nonexistent/after-sync.sh
`)

	syncer := newSyncer(t, hostDir)

	results, _, err := syncer.SyncAll()
	require.NoError(t, err)
	require.Len(t, results, 1)

	// materialization completed, the missing script only degrades
	require.True(t, results[0].Success)
	require.Contains(t, results[0].Warning, "not found")

	_, err = os.Stat(filepath.Join(hostDir, "lib", "demo", "ok.txt"))
	require.NoError(t, err)
}

func TestSyncAll_LFSWithoutToolingStillMaterializes(t *testing.T) {
	requireTools(t)

	if _, err := exec.LookPath("git-lfs"); err == nil {
		t.Skip("git-lfs installed, degraded path not reachable")
	}

	url := setupRemote(t, map[string]string{"big.bin": "not actually big\n"})

	hostDir := setupHost(t, `[external "demo"]
path = lib/demo
url = `+url+`
branch = main
lfs = true
`)

	syncer := newSyncer(t, hostDir)

	results, _, err := syncer.SyncAll()
	require.NoError(t, err)
	require.True(t, results[0].Success)

	_, err = os.Stat(filepath.Join(hostDir, "lib", "demo", "big.bin"))
	require.NoError(t, err)
}

package sync

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/inovacc/gitext/internal/application"
	"github.com/inovacc/gitext/internal/cache"
	"github.com/inovacc/gitext/internal/config"
	"github.com/inovacc/gitext/internal/gitcmd"
	"github.com/inovacc/gitext/internal/journal"
	"github.com/inovacc/gitext/internal/materialize"
)

// Result captures the outcome of processing one external.
type Result struct {
	Name     string
	URL      string
	Branch   string
	Action   string
	Success  bool
	Err      error
	Warning  string
	Duration time.Duration
}

// Options configures a Syncer.
type Options struct {
	// RepoDir is a directory inside the host repository. Defaults to ".".
	RepoDir string
	Logger  *slog.Logger
}

// Syncer processes externals one at a time in config file order. A failure
// in one external never stops the ones after it.
type Syncer struct {
	repoDir string
	logger  *slog.Logger
	cache   *cache.Manager
	mat     *materialize.Materializer
	journal *journal.Journal
}

// New verifies the required tools are present and prepares a Syncer for the
// repository containing opts.RepoDir. Missing git or rsync is fatal.
func New(opts Options) (*Syncer, error) {
	if err := gitcmd.LookGit(); err != nil {
		return nil, err
	}

	if err := gitcmd.LookRsync(); err != nil {
		return nil, err
	}

	repoDir := opts.RepoDir
	if repoDir == "" {
		repoDir = "."
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cm, err := cache.NewManager(repoDir, logger)
	if err != nil {
		return nil, err
	}

	s := &Syncer{
		repoDir: repoDir,
		logger:  logger,
		cache:   cm,
		mat:     materialize.New(repoDir, logger),
	}

	// The journal is best effort: a locked or corrupt db must not block a
	// sync.
	jnl, err := journal.Open(cm.Root())
	if err != nil {
		logger.Warn("sync journal unavailable", slog.String("error", err.Error()))
	} else {
		s.journal = jnl
	}

	return s, nil
}

// Close releases the journal.
func (s *Syncer) Close() error {
	if s.journal == nil {
		return nil
	}

	return s.journal.Close()
}

// SyncAll parses the config file and processes every external in order.
// The returned warnings are parse-level; per-external failures live in the
// results.
func (s *Syncer) SyncAll() ([]Result, []string, error) {
	path := filepath.Join(s.repoDir, application.ConfigFileName)

	externals, warnings, err := config.Load(path)
	if err != nil {
		return nil, warnings, err
	}

	results := make([]Result, 0, len(externals))

	for _, ext := range externals {
		results = append(results, s.syncOne(ext))
	}

	return results, warnings, nil
}

func (s *Syncer) syncOne(ext config.External) Result {
	start := time.Now()

	result := Result{
		Name:   ext.Name,
		URL:    ext.URL,
		Branch: ext.Branch,
	}

	defer func() {
		result.Duration = time.Since(start)
		s.record(result)
	}()

	if err := ext.Validate(); err != nil {
		result.Action = "skip"
		result.Err = err

		return result
	}

	action, err := s.cache.Sync(ext)
	result.Action = string(action)

	if err != nil {
		result.Err = err

		return result
	}

	if err := s.mat.Mirror(ext, s.cache.Dir(ext.Name)); err != nil {
		result.Err = err

		return result
	}

	result.Success = true

	if err := s.mat.RunScript(ext); err != nil {
		// Materialization already happened, so script trouble degrades the
		// result instead of failing it.
		var missing *materialize.ScriptMissingError
		if errors.As(err, &missing) {
			result.Warning = missing.Error()
		} else {
			result.Warning = fmt.Sprintf("post-sync script failed: %v", err)
		}

		s.logger.Warn("post-sync script problem",
			slog.String("name", ext.Name),
			slog.String("detail", result.Warning),
		)
	}

	return result
}

func (s *Syncer) record(result Result) {
	if s.journal == nil {
		return
	}

	entry := journal.Entry{
		Name:     result.Name,
		URL:      result.URL,
		Branch:   result.Branch,
		Action:   result.Action,
		Success:  result.Success,
		SyncedAt: time.Now(),
		Duration: result.Duration,
	}

	if result.Err != nil {
		entry.Error = result.Err.Error()
	}

	if err := s.journal.Record(entry); err != nil {
		s.logger.Warn("failed to record sync journal entry",
			slog.String("name", result.Name),
			slog.String("error", err.Error()),
		)
	}
}

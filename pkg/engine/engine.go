// Package engine runs incremental scans of one repository and publishes
// immutable aggregated snapshots of the result.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/odvcencio/repodiet/pkg/config"
	"github.com/odvcencio/repodiet/pkg/object"
	"github.com/odvcencio/repodiet/pkg/observability"
	"github.com/odvcencio/repodiet/pkg/repo"
	"github.com/odvcencio/repodiet/pkg/store"
)

// Option adjusts Open.
type Option func(*Engine)

// WithLogger sets the logger; the default discards.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithMetrics shares a metrics set; by default each engine gets its own.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithProfile logs the duration of every phase at info level.
func WithProfile() Option {
	return func(e *Engine) { e.profile = true }
}

// WithFresh discards any existing scan database before opening it.
func WithFresh() Option {
	return func(e *Engine) { e.fresh = true }
}

// Engine owns the repository handle and the scan database. Scan and Rebuild
// may be called from different goroutines; only one scan runs at a time.
type Engine struct {
	cfg     *config.Config
	log     *slog.Logger
	metrics *observability.Metrics
	profile bool
	fresh   bool

	repo   *repo.Repo
	store  *store.Store
	dbPath string

	scanMu sync.Mutex
	snap   atomic.Pointer[Snapshot]
}

// Open opens the repository containing repoPath and its scan database. A
// path that is not a repository, or one whose HEAD does not resolve, fails
// with repo.ErrRepositoryUnavailable.
func Open(ctx context.Context, repoPath string, cfg *config.Config, opts ...Option) (*Engine, error) {
	e := &Engine{cfg: cfg}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = observability.Discard()
	}
	if e.metrics == nil {
		e.metrics = observability.NewMetrics()
	}

	deltaCache, err := cfg.DeltaCacheBytes()
	if err != nil {
		return nil, err
	}
	r, err := repo.Open(repoPath, object.ResolverOptions{
		Verify:        cfg.Scan.VerifyObjects,
		VerifyContent: cfg.Scan.VerifyObjects,
		BaseCacheSize: deltaCache,
	})
	if err != nil {
		return nil, err
	}
	if _, err := r.HeadCommit(); err != nil {
		_ = r.Close()
		return nil, err
	}

	root := r.RootDir
	if root == "" {
		root = r.CommonDir
	}
	dbPath, err := cfg.DatabasePath(root)
	if err != nil {
		_ = r.Close()
		return nil, err
	}
	if e.fresh {
		if err := removeDatabase(dbPath); err != nil {
			_ = r.Close()
			return nil, err
		}
	}

	start := time.Now()
	s, err := store.Open(ctx, dbPath)
	if err != nil {
		_ = r.Close()
		return nil, err
	}
	e.repo, e.store, e.dbPath = r, s, dbPath
	e.phase("open store", start)
	e.log.Debug("engine opened", "repository", root, "database", dbPath, "packs", r.Objects.PackCount())
	return e, nil
}

// Close releases the database and pack files.
func (e *Engine) Close() error {
	return errors.Join(e.store.Close(), e.repo.Close())
}

// Repo returns the repository handle.
func (e *Engine) Repo() *repo.Repo { return e.repo }

// Store returns the scan database.
func (e *Engine) Store() *store.Store { return e.store }

// Metrics returns the engine's metrics.
func (e *Engine) Metrics() *observability.Metrics { return e.metrics }

// DatabasePath returns the scan database file.
func (e *Engine) DatabasePath() string { return e.dbPath }

// Name is the repository directory name used in reports.
func (e *Engine) Name() string {
	if e.repo.RootDir != "" {
		return baseName(e.repo.RootDir)
	}
	return baseName(e.repo.CommonDir)
}

func (e *Engine) phase(name string, start time.Time) {
	elapsed := time.Since(start)
	e.metrics.PhaseSeconds.WithLabelValues(name).Set(elapsed.Seconds())
	if e.profile {
		e.log.Info("phase complete", "phase", name, "elapsed", elapsed)
	}
}

func removeDatabase(path string) error {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove scan database: %w", err)
		}
	}
	return nil
}

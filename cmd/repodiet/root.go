package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/odvcencio/repodiet/pkg/config"
	"github.com/odvcencio/repodiet/pkg/engine"
	"github.com/odvcencio/repodiet/pkg/observability"
	"github.com/odvcencio/repodiet/pkg/report"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	repoPath   string
	configPath string
	fresh      bool
	profile    bool
	noScan     bool
	noColor    bool
}

// flagBindings maps configuration keys to persistent flag names.
var flagBindings = map[string]string{
	"scan.workers":        "workers",
	"scan.batch_commits":  "batch",
	"scan.delta_cache":    "delta-cache",
	"scan.verify_objects": "verify",
	"cache.directory":     "cache-dir",
	"cache.path":          "db",
	"logging.level":       "log-level",
	"logging.format":      "log-format",
	"metrics.textfile":    "metrics-textfile",
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "repodiet",
		Short:         "Find what is making a Git repository heavy",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&g.repoPath, "repo", "C", ".", "repository to analyze")
	pf.StringVar(&g.configPath, "config", "", "config file (default: repodiet.yaml in . or the user config dir)")
	pf.BoolVar(&g.fresh, "fresh", false, "discard the scan cache and rescan all history")
	pf.BoolVar(&g.profile, "profile", false, "log phase timings; scans into a throwaway database")
	pf.BoolVar(&g.noScan, "no-scan", false, "use the cached scan without updating it")
	pf.BoolVar(&g.noColor, "no-color", false, "disable colored output")
	pf.Int("workers", config.DefaultWorkers(), "concurrent object lookups per commit")
	pf.Int("batch", config.DefaultBatchCommits, "commits per database transaction")
	pf.String("delta-cache", config.DefaultDeltaCache, "memory for reconstructed delta bases")
	pf.Bool("verify", false, "verify pack CRCs and object hashes while scanning")
	pf.String("cache-dir", config.DefaultCacheDir(), "directory holding scan databases")
	pf.String("db", "", "explicit scan database path")
	pf.String("log-level", config.DefaultLogLevel, "debug, info, warn or error")
	pf.String("log-format", config.DefaultLogFormat, "text or json")
	pf.String("metrics-textfile", "", "write prometheus metrics to this file after scanning")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newScanCmd(g))
	root.AddCommand(newTreeCmd(g))
	root.AddCommand(newTopCmd(g))
	root.AddCommand(newExtCmd(g))
	root.AddCommand(newSearchCmd(g))
	root.AddCommand(newReportCmd(g))
	return root
}

func (g *globalFlags) tableOptions() report.TableOptions {
	return report.TableOptions{Color: !g.noColor && !color.NoColor}
}

// session is an opened engine plus the logger and config it runs with.
type session struct {
	cfg    *config.Config
	log    *slog.Logger
	engine *engine.Engine
	close  func()
}

func (g *globalFlags) open(cmd *cobra.Command, extra ...config.Option) (*session, error) {
	opts := append([]config.Option{config.WithFlags(cmd.Flags(), flagBindings)}, extra...)
	cfg, err := config.Load(g.configPath, opts...)
	if err != nil {
		return nil, err
	}
	log := observability.NewLogger(cmd.ErrOrStderr(), cfg.Logging)

	cleanup := func() {}
	engineOpts := []engine.Option{engine.WithLogger(log)}
	if g.fresh {
		engineOpts = append(engineOpts, engine.WithFresh())
	}
	if g.profile {
		dir, err := os.MkdirTemp("", "repodiet-profile-")
		if err != nil {
			return nil, fmt.Errorf("profile database: %w", err)
		}
		cfg.Cache.Path = filepath.Join(dir, "profile.db")
		cleanup = func() { _ = os.RemoveAll(dir) }
		engineOpts = append(engineOpts, engine.WithProfile())
	}

	e, err := engine.Open(cmd.Context(), g.repoPath, cfg, engineOpts...)
	if err != nil {
		cleanup()
		return nil, err
	}
	return &session{
		cfg:    cfg,
		log:    log,
		engine: e,
		close: func() {
			_ = e.Close()
			cleanup()
		},
	}, nil
}

// snapshot updates the cache unless --no-scan was given and aggregates it.
func (g *globalFlags) snapshot(ctx context.Context, s *session) (*engine.Snapshot, error) {
	if !g.noScan {
		sum, err := s.engine.Scan(ctx, nil)
		if err != nil {
			return nil, err
		}
		if sum.Failed > 0 {
			s.log.Warn("some commits could not be scanned and will be retried", "count", sum.Failed)
		}
	}
	return s.engine.Rebuild(ctx)
}

// withSnapshot opens a session, scans and aggregates, then calls fn.
func (g *globalFlags) withSnapshot(cmd *cobra.Command, fn func(s *session, snap *engine.Snapshot) error) error {
	s, err := g.open(cmd)
	if err != nil {
		return err
	}
	defer s.close()
	snap, err := g.snapshot(cmd.Context(), s)
	if err != nil {
		return err
	}
	return fn(s, snap)
}

package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	DefaultBatchCommits = 500
	DefaultDeltaCache   = "64MiB"
	DefaultTop          = 50
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
)

// DefaultWorkers is the per-commit lookup concurrency.
func DefaultWorkers() int { return runtime.GOMAXPROCS(0) }

// DefaultCacheDir is the user cache directory, or the system temp directory
// when the user has none.
func DefaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "repodiet")
	}
	return filepath.Join(os.TempDir(), "repodiet")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("scan.workers", DefaultWorkers())
	v.SetDefault("scan.batch_commits", DefaultBatchCommits)
	v.SetDefault("scan.delta_cache", DefaultDeltaCache)
	v.SetDefault("scan.verify_objects", false)

	v.SetDefault("cache.directory", DefaultCacheDir())
	v.SetDefault("cache.path", "")

	v.SetDefault("report.top", DefaultTop)

	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.format", DefaultLogFormat)

	v.SetDefault("metrics.textfile", "")
}

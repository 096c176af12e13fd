package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/repodiet/pkg/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "repodiet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_EmptyFile_UsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultWorkers(), cfg.Scan.Workers)
	assert.Equal(t, config.DefaultBatchCommits, cfg.Scan.BatchCommits)
	assert.Equal(t, config.DefaultDeltaCache, cfg.Scan.DeltaCache)
	assert.False(t, cfg.Scan.VerifyObjects)
	assert.Equal(t, config.DefaultCacheDir(), cfg.Cache.Directory)
	assert.Empty(t, cfg.Cache.Path)
	assert.Equal(t, config.DefaultTop, cfg.Report.Top)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)

	n, err := cfg.DeltaCacheBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(64<<20), n)
}

func TestLoad_File_Unmarshals(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `scan:
  workers: 3
  batch_commits: 20
  delta_cache: "1MB"
  verify_objects: true
cache:
  directory: /var/cache/rd
report:
  top: 10
logging:
  level: debug
  format: json
metrics:
  textfile: /tmp/repodiet.prom
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Scan.Workers)
	assert.Equal(t, 20, cfg.Scan.BatchCommits)
	assert.True(t, cfg.Scan.VerifyObjects)
	assert.Equal(t, "/var/cache/rd", cfg.Cache.Directory)
	assert.Equal(t, 10, cfg.Report.Top)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "/tmp/repodiet.prom", cfg.Metrics.Textfile)

	n, err := cfg.DeltaCacheBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(1000000), n)
}

func TestLoad_MissingExplicitFile_Fails(t *testing.T) {
	t.Parallel()

	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("REPODIET_SCAN_WORKERS", "7")
	t.Setenv("REPODIET_CACHE_PATH", "/tmp/explicit.db")

	cfg, err := config.Load(writeConfig(t, "scan:\n  workers: 2\n"))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Scan.Workers)

	path, err := cfg.DatabasePath(".")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/explicit.db", path)
}

func TestLoad_FlagsOverride(t *testing.T) {
	t.Parallel()

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("workers", 1, "")
	fs.Int("top", 50, "")
	require.NoError(t, fs.Parse([]string{"--top", "5"}))

	cfg, err := config.Load(writeConfig(t, "scan:\n  workers: 4\n"),
		config.WithFlags(fs, map[string]string{"scan.workers": "workers", "report.top": "top"}))
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Scan.Workers, "unset flags do not override the file")
	assert.Equal(t, 5, cfg.Report.Top)

	_, err = config.Load(writeConfig(t, ""), config.WithFlags(fs, map[string]string{"scan.workers": "missing"}))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		yaml   string
		target error
	}{
		{"zero workers", "scan:\n  workers: 0\n", config.ErrInvalidWorkers},
		{"zero batch", "scan:\n  batch_commits: 0\n", config.ErrInvalidBatchSize},
		{"bad delta cache", "scan:\n  delta_cache: lots\n", config.ErrInvalidDeltaCache},
		{"zero delta cache", "scan:\n  delta_cache: 0B\n", config.ErrInvalidDeltaCache},
		{"zero top", "report:\n  top: 0\n", config.ErrInvalidTopN},
		{"bad level", "logging:\n  level: loud\n", config.ErrInvalidLogLevel},
		{"bad format", "logging:\n  format: xml\n", config.ErrInvalidLogFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.Load(writeConfig(t, tt.yaml))
			require.ErrorIs(t, err, tt.target)
		})
	}
}

func TestDatabasePath(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(writeConfig(t, "cache:\n  directory: /cache\n"))
	require.NoError(t, err)

	a, err := cfg.DatabasePath("/work/one/project")
	require.NoError(t, err)
	b, err := cfg.DatabasePath("/work/two/project")
	require.NoError(t, err)
	again, err := cfg.DatabasePath("/work/one/project/")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Equal(t, a, again)
	assert.Equal(t, "/cache", filepath.Dir(a))
	base := filepath.Base(a)
	assert.True(t, strings.HasPrefix(base, "project_"), base)
	assert.Len(t, strings.TrimSuffix(strings.TrimPrefix(base, "project_"), ".db"), 16)
}

// Package config loads repodiet settings from defaults, an optional YAML
// file, REPODIET_* environment variables and command-line flags.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/crypto/blake2b"
)

// Sentinel validation errors.
var (
	ErrInvalidWorkers    = errors.New("scan workers must be positive")
	ErrInvalidBatchSize  = errors.New("scan batch size must be positive")
	ErrInvalidDeltaCache = errors.New("invalid delta cache size")
	ErrInvalidTopN       = errors.New("report top must be positive")
	ErrInvalidLogLevel   = errors.New("invalid log level")
	ErrInvalidLogFormat  = errors.New("invalid log format")
)

const envPrefix = "REPODIET"

// Config holds every repodiet setting.
type Config struct {
	Scan    ScanConfig    `mapstructure:"scan"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Report  ReportConfig  `mapstructure:"report"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// ScanConfig tunes history scanning.
type ScanConfig struct {
	// Workers bounds concurrent object lookups within one commit.
	Workers int `mapstructure:"workers"`
	// BatchCommits is how many commits share one store transaction.
	BatchCommits int `mapstructure:"batch_commits"`
	// DeltaCache bounds reconstructed delta bases, e.g. "64MiB".
	DeltaCache string `mapstructure:"delta_cache"`
	// VerifyObjects checks pack CRCs and inflates every entry fully.
	VerifyObjects bool `mapstructure:"verify_objects"`
}

// CacheConfig locates the scan database.
type CacheConfig struct {
	Directory string `mapstructure:"directory"`
	// Path, when set, is used verbatim instead of a name derived from the
	// repository.
	Path string `mapstructure:"path"`
}

// ReportConfig shapes reports.
type ReportConfig struct {
	Top int `mapstructure:"top"`
}

// LoggingConfig selects the log handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig controls metric export.
type MetricsConfig struct {
	// Textfile is a node-exporter textfile path written after each scan.
	Textfile string `mapstructure:"textfile"`
}

// Option adjusts the viper instance before the configuration is decoded.
type Option func(v *viper.Viper) error

// WithFlags binds command-line flags to configuration keys. Only flags the
// user set override file and environment values.
func WithFlags(fs *pflag.FlagSet, bindings map[string]string) Option {
	return func(v *viper.Viper) error {
		for key, name := range bindings {
			f := fs.Lookup(name)
			if f == nil {
				return fmt.Errorf("bind flag %q: no such flag", name)
			}
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("bind flag %q: %w", name, err)
			}
		}
		return nil
	}
}

// Load reads configuration. An empty configPath searches for repodiet.yaml
// in the working directory and the user config directory; a missing file is
// not an error then.
func Load(configPath string, opts ...Option) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("repodiet")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "repodiet"))
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Scan.Workers <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Scan.Workers)
	}
	if c.Scan.BatchCommits <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBatchSize, c.Scan.BatchCommits)
	}
	if _, err := c.DeltaCacheBytes(); err != nil {
		return err
	}
	if c.Report.Top <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTopN, c.Report.Top)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Logging.Format)
	}
	return nil
}

// DeltaCacheBytes parses Scan.DeltaCache.
func (c *Config) DeltaCacheBytes() (int64, error) {
	n, err := humanize.ParseBytes(c.Scan.DeltaCache)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidDeltaCache, c.Scan.DeltaCache, err)
	}
	if n == 0 || n > 1<<40 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDeltaCache, c.Scan.DeltaCache)
	}
	return int64(n), nil
}

// DatabasePath returns where the scan database for the repository rooted at
// repoRoot lives: Cache.Path when set, otherwise a file in Cache.Directory
// named after the repository and a digest of its absolute path, so two
// checkouts with the same name never share a cache.
func (c *Config) DatabasePath(repoRoot string) (string, error) {
	if c.Cache.Path != "" {
		return c.Cache.Path, nil
	}
	abs, err := filepath.Abs(repoRoot)
	if err != nil {
		return "", fmt.Errorf("database path: %w", err)
	}
	h, err := blake2b.New(8, nil)
	if err != nil {
		return "", fmt.Errorf("database path: %w", err)
	}
	h.Write([]byte(abs))
	name := fmt.Sprintf("%s_%s.db", filepath.Base(abs), hex.EncodeToString(h.Sum(nil)))
	return filepath.Join(c.Cache.Directory, name), nil
}

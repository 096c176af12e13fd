package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/repodiet/pkg/config"
)

func TestNewLoggerJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewLogger(&buf, config.LoggingConfig{Level: "warn", Format: "JSON"})
	log.Info("hidden")
	log.Warn("commit skipped", "commit", "abc")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "commit skipped", entry["msg"])
	assert.Equal(t, "abc", entry["commit"])
}

func TestNewLoggerText(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewLogger(&buf, config.LoggingConfig{Level: "debug", Format: "text"})
	log.Debug("phase done", "phase", "scan")
	assert.Contains(t, buf.String(), "phase=scan")
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("other"))
}

func TestMetricsTextfile(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.CommitsScanned.Add(3)
	m.FrontierCommits.Set(10)
	m.PhaseSeconds.WithLabelValues("scan").Set(1.5)
	assert.InDelta(t, 3, testutil.ToFloat64(m.CommitsScanned), 0)

	path := filepath.Join(t.TempDir(), "repodiet.prom")
	require.NoError(t, m.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "repodiet_commits_scanned_total 3")
	assert.Contains(t, string(data), "repodiet_frontier_commits 10")
	assert.Contains(t, string(data), `repodiet_phase_seconds{phase="scan"} 1.5`)
}

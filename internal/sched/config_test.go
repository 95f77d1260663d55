package sched

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsOnEmptyPath(t *testing.T) {
	cfg := Load("")
	assert.Equal(t, defaultConfig(), cfg)
}

func TestLoadDefaultsOnMissingFile(t *testing.T) {
	cfg := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Equal(t, defaultConfig(), cfg)
}

func TestLoadOverridesFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(
		"tick_ms: 2\nslice_ticks: 25\nmax_threads: 8\npriority_max: 31\ntrace_csv: out.csv\n",
	), 0o644))

	cfg := Load(path)
	assert.Equal(t, 2, cfg.TickMS)
	assert.Equal(t, 25, cfg.SliceTicks)
	assert.Equal(t, 8, cfg.MaxThreads)
	assert.Equal(t, 0, cfg.PriorityMin)
	assert.Equal(t, 31, cfg.PriorityMax)
	assert.Equal(t, "out.csv", cfg.TraceCSV)
	assert.Equal(t, 256, cfg.EventBuffer)
}

func TestLoadClampsNonsenseValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(
		"tick_ms: -3\nslice_ticks: 0\nmax_threads: -1\npriority_min: 9\npriority_max: 1\nevent_buffer: 0\n",
	), 0o644))

	cfg := Load(path)
	assert.Equal(t, 5, cfg.TickMS)
	assert.Equal(t, 10, cfg.SliceTicks)
	assert.Equal(t, 64, cfg.MaxThreads)
	assert.Equal(t, 0, cfg.PriorityMin)
	assert.Equal(t, 15, cfg.PriorityMax)
	assert.Equal(t, 256, cfg.EventBuffer)
}

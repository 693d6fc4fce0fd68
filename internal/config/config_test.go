package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "studio.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
openscad_binary: /usr/local/bin/openscad
backend: manifold
cache_capacity: 20
history_limit: 100
archive_path: /tmp/history.db
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/usr/local/bin/openscad", cfg.OpenSCADBinary)
	assert.Equal(t, "manifold", cfg.Backend)
	assert.Equal(t, 20, cfg.CacheCapacity)
	assert.Equal(t, 100, cfg.HistoryLimit)
	assert.Equal(t, "/tmp/history.db", cfg.ArchivePath)
}

func TestLoad_AbsentFieldsKeepDefaults(t *testing.T) {
	path := writeConfig(t, "backend: cgal\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "cgal", cfg.Backend)
	assert.Equal(t, Default().CacheCapacity, cfg.CacheCapacity)
	assert.Equal(t, Default().HistoryLimit, cfg.HistoryLimit)
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	path := writeConfig(t, "cache_capasity: 10\n")
	_, err := Load(path)
	require.Error(t, err, "typos must not silently fall back to defaults")
}

func TestLoad_InvalidRanges(t *testing.T) {
	path := writeConfig(t, "cache_capacity: -1\n")
	_, err := Load(path)
	assert.Error(t, err)

	path = writeConfig(t, "history_limit: -5\n")
	_, err = Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

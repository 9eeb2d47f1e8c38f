package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultBaseline(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":9092", cfg.ListenAddr)
	assert.Equal(t, 30*time.Second, cfg.IdleTimeout)
	assert.True(t, cfg.ReuseAddr)
	assert.False(t, cfg.ReusePort)
	assert.Equal(t, 1024, cfg.AcceptBacklog)
}

func TestLoadOverlaysFileOnDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := "listen_addr: \"0.0.0.0:7000\"\nnum_workers: 16\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:7000", cfg.ListenAddr)
	assert.Equal(t, 16, cfg.NumWorkers)
	assert.Equal(t, 30*time.Second, cfg.IdleTimeout, "unset fields must keep the default")
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}

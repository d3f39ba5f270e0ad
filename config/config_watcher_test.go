package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// writeConfig replaces path atomically so the watcher never observes a
// truncated file.
func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte(content), 0644))
	require.NoError(t, os.Rename(tmp, path))
}

func TestConfigWatcher_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aci.yaml")
	writeConfig(t, path, "llm:\n  temperature: 0\n")

	cw, err := NewConfigWatcher(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer cw.Close()

	assert.Equal(t, float32(0), cw.GetCurrentConfig().LLM.Temperature)

	updates := cw.Subscribe()
	writeConfig(t, path, "llm:\n  temperature: 0.5\n")

	select {
	case cfg := <-updates:
		assert.Equal(t, float32(0.5), cfg.LLM.Temperature)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
	assert.Equal(t, float32(0.5), cw.GetCurrentConfig().LLM.Temperature)
}

func TestConfigWatcher_InvalidRevisionKeepsCurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aci.yaml")
	writeConfig(t, path, "server:\n  port: 8081\n")

	cw, err := NewConfigWatcher(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer cw.Close()

	updates := cw.Subscribe()
	writeConfig(t, path, "server:\n  port: -5\n")

	select {
	case cfg := <-updates:
		t.Fatalf("invalid revision published: %+v", cfg.Server)
	case <-time.After(300 * time.Millisecond):
	}
	assert.Equal(t, 8081, cw.GetCurrentConfig().Server.Port)
}

func TestConfigWatcher_Close(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aci.yaml")
	writeConfig(t, path, "")

	cw, err := NewConfigWatcher(path, zaptest.NewLogger(t))
	require.NoError(t, err)

	updates := cw.Subscribe()
	require.NoError(t, cw.Close())
	require.NoError(t, cw.Close())

	_, ok := <-updates
	assert.False(t, ok, "subscriber channel should be closed")

	_, ok = <-cw.Subscribe()
	assert.False(t, ok, "subscribing after close yields a closed channel")
}

func TestNewConfigWatcher_InvalidInitialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aci.yaml")
	writeConfig(t, path, "logging:\n  level: loud\n")

	_, err := NewConfigWatcher(path, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestStaticWatcher(t *testing.T) {
	cfg := DefaultConfig()
	w := NewStaticWatcher(cfg)

	assert.Same(t, cfg, w.GetCurrentConfig())

	_, ok := <-w.Subscribe()
	assert.False(t, ok)
	assert.NoError(t, w.Close())
}

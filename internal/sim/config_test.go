package sim

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenarioDefaults(t *testing.T) {
	sc, err := LoadScenario("")
	require.NoError(t, err)
	assert.Equal(t, ModeSynthetic, sc.Mode)
	assert.Equal(t, 25*time.Millisecond, sc.PacketInterval)
	assert.NotEmpty(t, sc.SeedFiles)
}

func TestLoadScenarioMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode: synthetic
packet_interval: 100ms
talkers: 3
seed_files:
  - path: /opt/app/config.ini
    size: 512
    hash: deadbeef
`), 0o644))

	sc, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, sc.PacketInterval)
	assert.Equal(t, 3, sc.Talkers)
	require.Len(t, sc.SeedFiles, 1)
	assert.Equal(t, "/opt/app/config.ini", sc.SeedFiles[0].Path)

	// Unset keys keep their defaults.
	assert.Equal(t, 3*time.Second, sc.FileChangeInterval)
	assert.Equal(t, 200, sc.RecentEvents)
}

func TestLoadScenarioRejectsBadMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mode: replay\n"), 0o644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestLoadScenarioLiveNeedsRoot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mode: live\n"), 0o644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "watch_root")
}

func TestLoadScenarioMissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

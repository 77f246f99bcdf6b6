package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lodestone.toml")
	content := `
[loader]
batch_size = 2
max_concurrent = 1
retry_delay_ms = 50

[memory]
pressure_threshold = 0.5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Loader.BatchSize)
	assert.Equal(t, 1, cfg.Loader.MaxConcurrent)
	assert.Equal(t, 50*time.Millisecond, cfg.Loader.RetryDelay())
	assert.Equal(t, 0.5, cfg.Memory.PressureThreshold)

	// Unnamed keys keep their defaults.
	assert.Equal(t, Default().Loader.RetryAttempts, cfg.Loader.RetryAttempts)
	assert.Equal(t, Default().Atlas.Padding, cfg.Atlas.Padding)
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[loader]\nbatch_size = 0\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

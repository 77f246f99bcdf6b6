package assets_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodestone-engine/lodestone/engine/assets"
	"github.com/lodestone-engine/lodestone/engine/assets/bundle"
	"github.com/lodestone-engine/lodestone/engine/core"
)

func TestDirectoryBackendFetch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "textures"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "textures", "grass.png"), []byte("pixels"), 0o644))

	backend, err := assets.NewDirectoryBackend(dir, 8)
	require.NoError(t, err)
	defer backend.Close()

	data, err := backend.Fetch(context.Background(), "textures/grass.png")
	require.NoError(t, err)
	assert.Equal(t, "pixels", string(data))

	// Second fetch is served from the memo.
	data, err = backend.Fetch(context.Background(), "textures/grass.png")
	require.NoError(t, err)
	assert.Equal(t, "pixels", string(data))
}

func TestDirectoryBackendNotFound(t *testing.T) {
	backend, err := assets.NewDirectoryBackend(t.TempDir(), 8)
	require.NoError(t, err)
	defer backend.Close()

	_, err = backend.Fetch(context.Background(), "absent.png")
	assert.ErrorIs(t, err, core.ErrResourceNotFound)
}

func TestDirectoryBackendWatchReportsChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "level.toml")
	require.NoError(t, os.WriteFile(path, []byte("name = \"one\"\n"), 0o644))

	backend, err := assets.NewDirectoryBackend(dir, 8)
	require.NoError(t, err)
	defer backend.Close()

	changed := make(chan string, 16)
	require.NoError(t, backend.Watch(func(locator string) {
		changed <- locator
	}))

	// Prime the memo, then rewrite the file on disk.
	_, err = backend.Fetch(context.Background(), "level.toml")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("name = \"two\"\n"), 0o644))

	select {
	case locator := <-changed:
		assert.Equal(t, "level.toml", locator)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never reported the change")
	}

	// The memo was invalidated, so the fetch sees the new contents.
	require.Eventually(t, func() bool {
		data, err := backend.Fetch(context.Background(), "level.toml")
		return err == nil && bytes.Contains(data, []byte("two"))
	}, 5*time.Second, 50*time.Millisecond)
}

func TestBundleBackendFetch(t *testing.T) {
	builder := bundle.NewBuilder(bundle.Header{Version: 1})
	require.NoError(t, builder.Add("model.obj", []byte("v 0 0 0")))

	var buf bytes.Buffer
	_, err := builder.WriteTo(&buf)
	require.NoError(t, err)

	archive, err := bundle.Open(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	backend := assets.NewBundleBackend(archive)
	data, err := backend.Fetch(context.Background(), "model.obj")
	require.NoError(t, err)
	assert.Equal(t, "v 0 0 0", string(data))

	_, err = backend.Fetch(context.Background(), "missing.obj")
	assert.ErrorIs(t, err, core.ErrResourceNotFound)
}

package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodestone-engine/lodestone/engine/assets"
	"github.com/lodestone-engine/lodestone/engine/config"
	"github.com/lodestone-engine/lodestone/engine/resources"
)

type echoDecoder struct{}

func (echoDecoder) Kind() resources.Kind { return resources.KindAudio }

func (echoDecoder) Decode(id string, data []byte) (*resources.Resource, error) {
	return &resources.Resource{
		ID:      id,
		Kind:    resources.KindAudio,
		Size:    uint64(len(data)),
		Payload: &resources.AudioData{PCM: data},
	}, nil
}

func newTestEngine(t *testing.T) (*Engine, func() []string) {
	t.Helper()

	var mu sync.Mutex
	var fetched []string
	backend := assets.BackendFunc(func(ctx context.Context, locator string) ([]byte, error) {
		mu.Lock()
		fetched = append(fetched, locator)
		mu.Unlock()
		return []byte(locator), nil
	})
	snapshot := func() []string {
		mu.Lock()
		defer mu.Unlock()
		out := make([]string, len(fetched))
		copy(out, fetched)
		return out
	}

	cfg := config.Default()
	cfg.Loader.YieldDelayMS = 1
	cfg.Loader.RetryDelayMS = 1

	decoders := assets.NewDecoderSet()
	decoders.Register(echoDecoder{})

	eng, err := New(cfg, backend, decoders)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Shutdown() })
	return eng, snapshot
}

func testDescriptor(id string, priority resources.Priority) *resources.Descriptor {
	return &resources.Descriptor{
		ID:       id,
		Kind:     resources.KindAudio,
		Locator:  id,
		Priority: priority,
		Size:     uint64(len(id)),
	}
}

func TestEngineLoadsRegisteredAssets(t *testing.T) {
	eng, _ := newTestEngine(t)
	eng.Systems().Start()

	require.NoError(t, eng.RegisterAsset(testDescriptor("music", resources.PriorityHigh)))
	require.NoError(t, eng.RegisterAsset(testDescriptor("voice", resources.PriorityMedium)))
	eng.Preload([]string{"voice"})

	require.Eventually(t, func() bool {
		overall := eng.OverallProgress()
		return overall.Loaded == 2 && overall.Status == "loaded"
	}, 2*time.Second, time.Millisecond)

	progress, err := eng.Progress("music")
	require.NoError(t, err)
	assert.Equal(t, resources.StatusLoaded, progress.Status)

	stats := eng.CacheStats()
	assert.Equal(t, 2, stats.CachedCount)
	assert.Equal(t, 2, stats.TotalKnown)
}

func TestEngineUpdateVisibility(t *testing.T) {
	eng, fetched := newTestEngine(t)
	eng.Systems().Start()

	require.NoError(t, eng.RegisterAsset(testDescriptor("near", resources.PriorityMedium)))
	require.NoError(t, eng.RegisterAsset(testDescriptor("far", resources.PriorityMedium)))

	// In view loads now, in preload range loads ahead of time, beyond the
	// radius nothing happens.
	eng.UpdateVisibility("near", 0)
	eng.UpdateVisibility("far", eng.cfg.Loader.PreloadDistance+1)

	require.Eventually(t, func() bool {
		return eng.OverallProgress().Loaded == 1
	}, 2*time.Second, time.Millisecond)

	assert.Equal(t, []string{"near"}, fetched())

	progress, err := eng.Progress("far")
	require.NoError(t, err)
	assert.Equal(t, resources.StatusPending, progress.Status)
}

func TestEngineRunAndShutdown(t *testing.T) {
	eng, _ := newTestEngine(t)

	runErr := make(chan error, 1)
	go func() { runErr <- eng.Run() }()

	require.NoError(t, eng.RegisterAsset(testDescriptor("hum", resources.PriorityHigh)))
	require.Eventually(t, func() bool {
		return eng.OverallProgress().Loaded == 1
	}, 2*time.Second, time.Millisecond)

	require.NoError(t, eng.Shutdown())
	select {
	case err := <-runErr:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Shutdown")
	}

	// Shutdown twice is tolerated.
	assert.NoError(t, eng.Shutdown())
}

package systems

import (
	"fmt"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodestone-engine/lodestone/engine/core"
)

func newTestAtlasSystem(t *testing.T, maxSize, padding int) (*AtlasSystem, *core.Bus) {
	t.Helper()
	bus := core.NewBus()
	as, err := NewAtlasSystem(AtlasSystemConfig{MaxSize: maxSize, Padding: padding}, bus)
	require.NoError(t, err)
	return as, bus
}

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestAtlasRoundsUpToPowerOfTwo(t *testing.T) {
	as, _ := newTestAtlasSystem(t, 2048, 2)

	atlas, err := as.CreateAtlas("main", 100)
	require.NoError(t, err)
	assert.Equal(t, 128, atlas.Surface.Bounds().Dx())
	assert.Equal(t, 128, atlas.Surface.Bounds().Dy())
}

func TestAtlasRejectsOversizedRequest(t *testing.T) {
	as, _ := newTestAtlasSystem(t, 1024, 2)

	_, err := as.CreateAtlas("huge", 1025)
	assert.Error(t, err)
}

func TestAtlasRejectsDuplicateID(t *testing.T) {
	as, _ := newTestAtlasSystem(t, 2048, 2)

	_, err := as.CreateAtlas("main", 128)
	require.NoError(t, err)
	_, err = as.CreateAtlas("main", 128)
	assert.Error(t, err)
}

func TestAtlasTwoLargeImagesOverflow(t *testing.T) {
	as, _ := newTestAtlasSystem(t, 2048, 2)

	atlas, err := as.CreateAtlas("main", 128)
	require.NoError(t, err)

	img := solidImage(64, 64, color.RGBA{R: 255, A: 255})

	require.True(t, as.AddTexture("main", "first", img))
	rect, ok := as.GetTexture("main", "first")
	require.True(t, ok)
	assert.Equal(t, image.Rect(2, 2, 66, 66), rect)

	// The second 64x64 image neither fits the remaining row width nor a
	// fresh row on a 128x128 surface with padding 2.
	assert.False(t, as.AddTexture("main", "second", img))
	assert.True(t, atlas.IsFull)

	_, ok = as.GetTexture("main", "second")
	assert.False(t, ok)
}

func TestAtlasRejectsImageWiderThanSurface(t *testing.T) {
	as, _ := newTestAtlasSystem(t, 2048, 2)

	atlas, err := as.CreateAtlas("main", 128)
	require.NoError(t, err)

	// 200px of width can never fit a 128px surface; the placement must be
	// refused instead of recording a rectangle past the atlas edge.
	require.False(t, as.AddTexture("main", "banner", solidImage(200, 10, color.RGBA{A: 255})))
	assert.True(t, atlas.IsFull)

	_, ok := as.GetTexture("main", "banner")
	assert.False(t, ok)
	assert.Empty(t, atlas.Regions)
	assert.Equal(t, int64(0), atlas.MemoryUsage)
}

func TestAtlasRegionsNeverOverlap(t *testing.T) {
	as, _ := newTestAtlasSystem(t, 2048, 2)

	atlas, err := as.CreateAtlas("main", 512)
	require.NoError(t, err)

	sizes := [][2]int{
		{60, 40}, {100, 100}, {30, 80}, {200, 50}, {64, 64},
		{10, 10}, {120, 90}, {45, 45}, {80, 20}, {33, 70},
	}
	var placed []image.Rectangle
	for i, wh := range sizes {
		id := fmt.Sprintf("tex_%d", i)
		if !as.AddTexture("main", id, solidImage(wh[0], wh[1], color.RGBA{A: 255})) {
			continue
		}
		rect, ok := as.GetTexture("main", id)
		require.True(t, ok)
		placed = append(placed, rect)
	}
	require.NotEmpty(t, placed)

	surface := atlas.Surface.Bounds()
	for i, a := range placed {
		assert.True(t, a.In(surface), "region %v escapes the surface", a)
		for j, b := range placed {
			if i == j {
				continue
			}
			assert.True(t, a.Intersect(b).Empty(), "regions %v and %v overlap", a, b)
		}
	}
}

func TestAtlasCopiesPixels(t *testing.T) {
	as, _ := newTestAtlasSystem(t, 2048, 0)

	atlas, err := as.CreateAtlas("main", 64)
	require.NoError(t, err)

	red := color.RGBA{R: 255, A: 255}
	require.True(t, as.AddTexture("main", "red", solidImage(16, 16, red)))

	rect, ok := as.GetTexture("main", "red")
	require.True(t, ok)
	assert.Equal(t, red, atlas.Surface.RGBAAt(rect.Min.X, rect.Min.Y))
	assert.Equal(t, red, atlas.Surface.RGBAAt(rect.Max.X-1, rect.Max.Y-1))
}

func TestAtlasUnknownAtlasAddFails(t *testing.T) {
	as, _ := newTestAtlasSystem(t, 2048, 2)
	assert.False(t, as.AddTexture("nope", "tex", solidImage(4, 4, color.RGBA{})))
}

func TestAtlasOptimizeRebuilds(t *testing.T) {
	as, _ := newTestAtlasSystem(t, 2048, 2)

	_, err := as.CreateAtlas("main", 256)
	require.NoError(t, err)

	colors := []color.RGBA{{R: 255, A: 255}, {G: 255, A: 255}, {B: 255, A: 255}}
	for i, c := range colors {
		require.True(t, as.AddTexture("main", fmt.Sprintf("tex_%d", i), solidImage(32, 32, c)))
	}

	rebuilt, err := as.Optimize("main")
	require.NoError(t, err)
	assert.Equal(t, "main_optimized", rebuilt.ID)

	// The source atlas is gone, the rebuilt one holds every region with
	// its pixels intact.
	_, ok := as.Get("main")
	assert.False(t, ok)
	for i, c := range colors {
		rect, ok := as.GetTexture("main_optimized", fmt.Sprintf("tex_%d", i))
		require.True(t, ok)
		assert.Equal(t, c, rebuilt.Surface.RGBAAt(rect.Min.X, rect.Min.Y))
	}
}

func TestAtlasOptimizeUnknown(t *testing.T) {
	as, _ := newTestAtlasSystem(t, 2048, 2)
	_, err := as.Optimize("missing")
	assert.Error(t, err)
}

func TestAtlasStreamPlaceRollsOver(t *testing.T) {
	as, bus := newTestAtlasSystem(t, 128, 2)

	var created []string
	bus.Subscribe(core.EventAtlasCreated, func(e core.Event) {
		created = append(created, e.Payload.(core.AtlasCreatedEvent).ID)
	})

	img := solidImage(64, 64, color.RGBA{A: 255})

	first, ok := as.Place("a", img)
	require.True(t, ok)
	assert.Equal(t, "stream_0", first)

	// Only one 64x64 fits a 128x128 surface with padding 2, so the second
	// placement must roll over to a fresh streaming atlas.
	second, ok := as.Place("b", img)
	require.True(t, ok)
	assert.Equal(t, "stream_1", second)

	assert.Equal(t, []string{"stream_0", "stream_1"}, created)
}

func TestAtlasStreamPlaceRejectsOversized(t *testing.T) {
	as, _ := newTestAtlasSystem(t, 64, 2)

	_, ok := as.Place("big", solidImage(128, 128, color.RGBA{A: 255}))
	assert.False(t, ok)
}

func TestAtlasStreamPlaceSurvivesOptimize(t *testing.T) {
	as, _ := newTestAtlasSystem(t, 64, 2)

	// An oversized placement leaves every streaming surface marked full,
	// so the next pressure pass rebuilds them all under new ids.
	_, ok := as.Place("big", solidImage(128, 128, color.RGBA{A: 255}))
	require.False(t, ok)
	as.OptimizeFull()

	// Streaming placement must keep working against the rebuilt surface.
	id, ok := as.Place("small", solidImage(16, 16, color.RGBA{A: 255}))
	require.True(t, ok)
	assert.Equal(t, "stream_1_optimized", id)

	rect, ok := as.GetTexture(id, "small")
	require.True(t, ok)
	assert.Equal(t, image.Rect(2, 2, 18, 18), rect)
}

func TestAtlasCreatedHandlerMayReenter(t *testing.T) {
	as, bus := newTestAtlasSystem(t, 128, 2)

	// Subscribers are allowed to query the atlas system from inside the
	// atlas-created handler.
	var sizes []int64
	bus.Subscribe(core.EventAtlasCreated, func(e core.Event) {
		ev := e.Payload.(core.AtlasCreatedEvent)
		_, ok := as.Get(ev.ID)
		assert.True(t, ok)
		sizes = append(sizes, as.TotalMemoryUsage())
	})

	_, ok := as.Place("tex", solidImage(16, 16, color.RGBA{A: 255}))
	require.True(t, ok)
	require.Len(t, sizes, 1)
}

func TestAtlasMemoryUsage(t *testing.T) {
	as, _ := newTestAtlasSystem(t, 2048, 2)

	_, err := as.CreateAtlas("main", 256)
	require.NoError(t, err)
	require.True(t, as.AddTexture("main", "a", solidImage(16, 16, color.RGBA{A: 255})))
	require.True(t, as.AddTexture("main", "b", solidImage(8, 8, color.RGBA{A: 255})))

	assert.Equal(t, int64(16*16*4+8*8*4), as.TotalMemoryUsage())
}

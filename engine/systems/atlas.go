package systems

import (
	"fmt"
	"image"
	"sync"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/lodestone-engine/lodestone/engine/core"
)

// Atlas is one packed backing surface. Sub-images are placed with a shelf
// packer: left to right along the current row, new row when the current one
// runs out of width. Good enough for near-uniform game texture sets; not a
// general 2D bin packer.
type Atlas struct {
	ID      string
	Surface *image.RGBA
	// Regions maps sub-image ids to their placed rectangles.
	Regions map[string]image.Rectangle

	cursorX   int
	cursorY   int
	rowHeight int

	IsFull      bool
	MemoryUsage int64
}

// AtlasSystemConfig configures atlas sizing and packing.
type AtlasSystemConfig struct {
	// MaxSize caps the side length of any atlas surface.
	MaxSize int
	// Padding is the gap kept around every placed sub-image.
	Padding int
}

// AtlasSystem owns every atlas surface. Mutations are serialized internally;
// returned rectangles are value copies and safe to hold.
type AtlasSystem struct {
	config AtlasSystemConfig

	mutex   sync.Mutex
	atlases map[string]*Atlas

	// streamAtlas is the atlas currently accepting scheduler-loaded images.
	streamAtlas string
	streamSeq   int

	bus *core.Bus
}

func NewAtlasSystem(config AtlasSystemConfig, bus *core.Bus) (*AtlasSystem, error) {
	if config.MaxSize < 1 {
		return nil, fmt.Errorf("func NewAtlasSystem - config.MaxSize must be > 0")
	}
	if config.Padding < 0 {
		return nil, fmt.Errorf("func NewAtlasSystem - config.Padding must be >= 0")
	}
	return &AtlasSystem{
		config:  config,
		atlases: make(map[string]*Atlas),
		bus:     bus,
	}, nil
}

// CreateAtlas allocates a backing surface sized to the next power of two at
// or above requestedSize, capped at MaxSize.
func (as *AtlasSystem) CreateAtlas(id string, requestedSize int) (*Atlas, error) {
	size := nextPowerOfTwo(requestedSize)
	if size > as.config.MaxSize {
		return nil, fmt.Errorf("atlas %s: size %d exceeds max %d", id, size, as.config.MaxSize)
	}

	as.mutex.Lock()
	if _, exists := as.atlases[id]; exists {
		as.mutex.Unlock()
		return nil, fmt.Errorf("atlas %s already exists", id)
	}
	atlas := &Atlas{
		ID:      id,
		Surface: image.NewRGBA(image.Rect(0, 0, size, size)),
		Regions: make(map[string]image.Rectangle),
	}
	as.atlases[id] = atlas
	as.mutex.Unlock()

	as.bus.Publish(core.EventAtlasCreated, core.AtlasCreatedEvent{ID: id, Size: size})
	return atlas, nil
}

// AddTexture attempts to place img into the atlas. Returns false when the
// image does not fit; the atlas is then marked full and the caller must
// Optimize it or create a new one.
func (as *AtlasSystem) AddTexture(atlasID, textureID string, img image.Image) bool {
	as.mutex.Lock()
	defer as.mutex.Unlock()

	atlas, ok := as.atlases[atlasID]
	if !ok {
		core.LogWarn("AddTexture: unknown atlas %s", atlasID)
		return false
	}
	return as.placeLocked(atlas, textureID, img)
}

func (as *AtlasSystem) placeLocked(atlas *Atlas, textureID string, img image.Image) bool {
	pad := as.config.Padding
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	side := atlas.Surface.Bounds().Dx()

	x := atlas.cursorX + pad
	y := atlas.cursorY + pad

	// An image wider than the surface cannot fit any row, current or fresh.
	if pad+w+pad > side {
		atlas.IsFull = true
		return false
	}
	// Out of row width: advance to a fresh row.
	if x+w+pad > side {
		atlas.cursorY += atlas.rowHeight
		atlas.cursorX = 0
		atlas.rowHeight = 0
		x = pad
		y = atlas.cursorY + pad
	}
	if y+h+pad > side {
		atlas.IsFull = true
		return false
	}

	rect := image.Rect(x, y, x+w, y+h)
	xdraw.Copy(atlas.Surface, rect.Min, img, bounds, xdraw.Src, nil)

	atlas.Regions[textureID] = rect
	atlas.cursorX = x + w
	if h+2*pad > atlas.rowHeight {
		atlas.rowHeight = h + 2*pad
	}
	atlas.MemoryUsage += int64(w * h * 4)
	return true
}

// GetTexture returns the placed rectangle for a sub-image.
func (as *AtlasSystem) GetTexture(atlasID, textureID string) (image.Rectangle, bool) {
	as.mutex.Lock()
	defer as.mutex.Unlock()

	atlas, ok := as.atlases[atlasID]
	if !ok {
		return image.Rectangle{}, false
	}
	rect, ok := atlas.Regions[textureID]
	return rect, ok
}

// Get returns the atlas handle itself.
func (as *AtlasSystem) Get(atlasID string) (*Atlas, bool) {
	as.mutex.Lock()
	defer as.mutex.Unlock()
	atlas, ok := as.atlases[atlasID]
	return atlas, ok
}

// Optimize rebuilds a full atlas into a fresh one suffixed "_optimized",
// re-packing every currently placed sub-image to reclaim fragmentation left
// by removed textures. This is a rebuild, not incremental defragmentation.
func (as *AtlasSystem) Optimize(atlasID string) (*Atlas, error) {
	newID := atlasID + "_optimized"

	as.mutex.Lock()
	defer as.mutex.Unlock()

	atlas, ok := as.atlases[atlasID]
	if !ok {
		return nil, fmt.Errorf("atlas %s not found", atlasID)
	}
	if _, exists := as.atlases[newID]; exists {
		return nil, fmt.Errorf("atlas %s already exists", newID)
	}

	side := atlas.Surface.Bounds().Dx()
	rebuilt := &Atlas{
		ID:      newID,
		Surface: image.NewRGBA(image.Rect(0, 0, side, side)),
		Regions: make(map[string]image.Rectangle),
	}

	// Deterministic repack order.
	ids := maps.Keys(atlas.Regions)
	slices.Sort(ids)
	for _, texID := range ids {
		rect := atlas.Regions[texID]
		if !as.placeLocked(rebuilt, texID, atlas.Surface.SubImage(rect)) {
			return nil, fmt.Errorf("atlas %s: repack of %s did not fit", atlasID, texID)
		}
	}

	delete(as.atlases, atlasID)
	as.atlases[newID] = rebuilt
	// Keep the streaming pointer valid when the current streaming atlas is
	// the one rebuilt.
	if as.streamAtlas == atlasID {
		as.streamAtlas = newID
	}
	return rebuilt, nil
}

// OptimizeFull rebuilds every atlas currently marked full. Called by the
// pressure monitor.
func (as *AtlasSystem) OptimizeFull() {
	as.mutex.Lock()
	var full []string
	for id, atlas := range as.atlases {
		if atlas.IsFull {
			full = append(full, id)
		}
	}
	as.mutex.Unlock()

	for _, id := range full {
		if _, err := as.Optimize(id); err != nil {
			core.LogWarn("optimize %s: %s", id, err.Error())
		}
	}
}

// Place adds a scheduler-loaded image to the current streaming atlas,
// rolling over to a new surface when the current one fills up. Returns the
// atlas id the image landed in.
func (as *AtlasSystem) Place(textureID string, img image.Image) (string, bool) {
	var created []core.AtlasCreatedEvent

	as.mutex.Lock()
	atlasID, ok := as.placeStreamLocked(textureID, img, &created)
	as.mutex.Unlock()

	for _, ev := range created {
		as.bus.Publish(core.EventAtlasCreated, ev)
	}
	return atlasID, ok
}

func (as *AtlasSystem) placeStreamLocked(textureID string, img image.Image, created *[]core.AtlasCreatedEvent) (string, bool) {
	// The streaming atlas may not exist yet, or may have been renamed out
	// from under us by an optimize pass.
	atlas, ok := as.atlases[as.streamAtlas]
	if !ok {
		if atlas, ok = as.newStreamAtlasLocked(created); !ok {
			return "", false
		}
	}
	if as.placeLocked(atlas, textureID, img) {
		return atlas.ID, true
	}

	// Current surface is full; roll over once. An image that does not fit
	// into an empty surface never will.
	if atlas, ok = as.newStreamAtlasLocked(created); !ok {
		return "", false
	}
	if as.placeLocked(atlas, textureID, img) {
		return atlas.ID, true
	}
	return "", false
}

func (as *AtlasSystem) newStreamAtlasLocked(created *[]core.AtlasCreatedEvent) (*Atlas, bool) {
	id := fmt.Sprintf("stream_%d", as.streamSeq)
	as.streamSeq++

	size := as.config.MaxSize
	if _, exists := as.atlases[id]; exists {
		return nil, false
	}
	atlas := &Atlas{
		ID:      id,
		Surface: image.NewRGBA(image.Rect(0, 0, size, size)),
		Regions: make(map[string]image.Rectangle),
	}
	as.atlases[id] = atlas
	as.streamAtlas = id

	*created = append(*created, core.AtlasCreatedEvent{ID: id, Size: size})
	return atlas, true
}

// TotalMemoryUsage sums the per-atlas byte counters.
func (as *AtlasSystem) TotalMemoryUsage() int64 {
	as.mutex.Lock()
	defer as.mutex.Unlock()
	var total int64
	for _, atlas := range as.atlases {
		total += atlas.MemoryUsage
	}
	return total
}

func nextPowerOfTwo(n int) int {
	size := 1
	for size < n {
		size *= 2
	}
	return size
}

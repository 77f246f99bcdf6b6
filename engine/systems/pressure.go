package systems

import (
	"runtime"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pbnjay/memory"

	"github.com/lodestone-engine/lodestone/engine/core"
)

// PressureConfig configures the memory pressure monitor.
type PressureConfig struct {
	// Threshold is the used/limit ratio above which reclamation runs.
	Threshold float64
	Interval  time.Duration
	// LimitBytes is the denominator of the sampled ratio. Zero means the
	// machine's total memory.
	LimitBytes uint64
}

// SampleFunc returns the current used/limit memory ratio.
type SampleFunc func() float64

// PressureMonitor samples a memory-usage ratio on a fixed interval and, when
// it crosses the threshold, opportunistically reclaims: cache eviction, pool
// shrink, atlas rebuild. Advisory only; it never blocks forward progress.
type PressureMonitor struct {
	config PressureConfig
	sample SampleFunc

	cache *ResourceCache
	pools *PoolSystem
	atlas *AtlasSystem

	clock clock.Clock
	bus   *core.Bus

	mutex   sync.Mutex
	ticker  *clock.Ticker
	done    chan struct{}
	running bool
}

func NewPressureMonitor(config PressureConfig, cache *ResourceCache, pools *PoolSystem,
	atlas *AtlasSystem, clk clock.Clock, bus *core.Bus) *PressureMonitor {
	limit := config.LimitBytes
	if limit == 0 {
		limit = memory.TotalMemory()
		if limit == 0 {
			// Unknown platform total; fall back to a conservative 1 GiB.
			limit = 1 << 30
		}
	}
	config.LimitBytes = limit

	pm := &PressureMonitor{
		config: config,
		cache:  cache,
		pools:  pools,
		atlas:  atlas,
		clock:  clk,
		bus:    bus,
	}
	pm.sample = pm.heapRatio
	return pm
}

// SetSampler replaces the default heap-based ratio sampler.
func (pm *PressureMonitor) SetSampler(f SampleFunc) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()
	pm.sample = f
}

func (pm *PressureMonitor) heapRatio() float64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return float64(ms.HeapAlloc) / float64(pm.config.LimitBytes)
}

// Start begins periodic sampling.
func (pm *PressureMonitor) Start() {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()
	if pm.running {
		return
	}
	pm.running = true
	pm.ticker = pm.clock.Ticker(pm.config.Interval)
	pm.done = make(chan struct{})

	go func(ticker *clock.Ticker, done chan struct{}) {
		for {
			select {
			case <-ticker.C:
				pm.Tick()
			case <-done:
				ticker.Stop()
				return
			}
		}
	}(pm.ticker, pm.done)
}

// Stop halts periodic sampling. Tick can still be driven externally.
func (pm *PressureMonitor) Stop() {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()
	if !pm.running {
		return
	}
	pm.running = false
	close(pm.done)
}

// Tick samples once and reclaims if the threshold is crossed. Exposed so the
// monitor can be driven by an external game tick instead of its own timer.
func (pm *PressureMonitor) Tick() {
	pm.mutex.Lock()
	sample := pm.sample
	pm.mutex.Unlock()

	ratio := sample()
	if ratio <= pm.config.Threshold {
		return
	}

	pm.bus.Publish(core.EventPressureWarning, core.PressureWarningEvent{
		Ratio:     ratio,
		Threshold: pm.config.Threshold,
	})
	core.LogWarn("memory pressure %.2f over threshold %.2f, reclaiming", ratio, pm.config.Threshold)

	evicted := pm.cache.Evict()
	pm.pools.ShrinkAll()
	pm.atlas.OptimizeFull()
	core.LogInfo("pressure pass complete, evicted %d cache entries", evicted)
}

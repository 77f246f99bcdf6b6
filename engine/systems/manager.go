package systems

import (
	"github.com/benbjohnson/clock"

	"github.com/lodestone-engine/lodestone/engine/assets"
	"github.com/lodestone-engine/lodestone/engine/config"
	"github.com/lodestone-engine/lodestone/engine/core"
)

// SystemManager is the composition root for the asset subsystems. It owns
// constructing them once, in dependency order, and tearing them down in
// reverse. No subsystem is reachable through package-level state.
type SystemManager struct {
	bus       *core.Bus
	jobSystem *JobSystem
	cache     *ResourceCache
	atlas     *AtlasSystem
	pools     *PoolSystem
	scheduler *LoadScheduler
	pressure  *PressureMonitor
}

func NewSystemManager(cfg *config.Config, backend assets.Backend, decoders *assets.DecoderSet, clk clock.Clock) (*SystemManager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	bus := core.NewBus()

	js, err := NewJobSystem(cfg.Loader.MaxConcurrent, cfg.Loader.BatchSize)
	if err != nil {
		return nil, err
	}

	cache := NewResourceCache(ResourceCacheConfig{
		SoftCapBytes: cfg.Cache.SoftCapBytes,
	}, clk, bus)

	atlas, err := NewAtlasSystem(AtlasSystemConfig{
		MaxSize: cfg.Atlas.MaxSize,
		Padding: cfg.Atlas.Padding,
	}, bus)
	if err != nil {
		return nil, err
	}

	pools := NewPoolSystem(bus)

	scheduler, err := NewLoadScheduler(SchedulerConfig{
		BatchSize:     cfg.Loader.BatchSize,
		MaxConcurrent: cfg.Loader.MaxConcurrent,
		RetryAttempts: cfg.Loader.RetryAttempts,
		RetryDelay:    cfg.Loader.RetryDelay(),
		YieldDelay:    cfg.Loader.YieldDelay(),
	}, backend, decoders, cache, atlas, js, clk, bus)
	if err != nil {
		return nil, err
	}
	cache.SetKnownStatsProvider(scheduler.KnownStats)

	pressure := NewPressureMonitor(PressureConfig{
		Threshold:  cfg.Memory.PressureThreshold,
		Interval:   cfg.Memory.CheckInterval(),
		LimitBytes: cfg.Memory.LimitBytes,
	}, cache, pools, atlas, clk, bus)

	return &SystemManager{
		bus:       bus,
		jobSystem: js,
		cache:     cache,
		atlas:     atlas,
		pools:     pools,
		scheduler: scheduler,
		pressure:  pressure,
	}, nil
}

func (sm *SystemManager) Bus() *core.Bus { return sm.bus }

func (sm *SystemManager) Cache() *ResourceCache { return sm.cache }

func (sm *SystemManager) Atlas() *AtlasSystem { return sm.atlas }

func (sm *SystemManager) Pools() *PoolSystem { return sm.pools }

func (sm *SystemManager) Scheduler() *LoadScheduler { return sm.scheduler }

func (sm *SystemManager) Pressure() *PressureMonitor { return sm.pressure }

// Start activates the scheduler dispatch loop and the pressure monitor.
func (sm *SystemManager) Start() {
	sm.scheduler.Start()
	sm.pressure.Start()
}

func (sm *SystemManager) Shutdown() error {
	sm.pressure.Stop()
	if err := sm.scheduler.Shutdown(); err != nil {
		return err
	}
	sm.cache.Clear()
	return nil
}

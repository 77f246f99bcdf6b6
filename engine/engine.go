package engine

import (
	"fmt"

	"github.com/benbjohnson/clock"

	"github.com/lodestone-engine/lodestone/engine/assets"
	"github.com/lodestone-engine/lodestone/engine/config"
	"github.com/lodestone-engine/lodestone/engine/core"
	"github.com/lodestone-engine/lodestone/engine/resources"
	"github.com/lodestone-engine/lodestone/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine completed construction and is ready to run
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

// Engine is the long-lived facade over the asset subsystems. Construct one
// at the application's composition root and pass it to collaborators; there
// is no global instance.
type Engine struct {
	currentStage  Stage
	cfg           *config.Config
	systemManager *systems.SystemManager
	clock         *core.Clock
	done          chan struct{}
}

// New builds an engine around the given backend. decoders may be nil, in
// which case the built-in decoder set is used.
func New(cfg *config.Config, backend assets.Backend, decoders *assets.DecoderSet) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if decoders == nil {
		decoders = assets.DefaultDecoderSet()
	}

	sm, err := systems.NewSystemManager(cfg, backend, decoders, clock.New())
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	return &Engine{
		currentStage:  EngineStageInitialized,
		cfg:           cfg,
		systemManager: sm,
		clock:         core.NewClock(),
		done:          make(chan struct{}),
	}, nil
}

// Systems exposes the underlying subsystems for advanced callers.
func (e *Engine) Systems() *systems.SystemManager {
	return e.systemManager
}

// Events returns the engine event bus.
func (e *Engine) Events() *core.Bus {
	return e.systemManager.Bus()
}

// RegisterAsset adds a resource descriptor to the registry.
func (e *Engine) RegisterAsset(desc *resources.Descriptor) error {
	return e.systemManager.Scheduler().Register(desc)
}

// RequestVisible is the hook for the visibility signal: the resource just
// crossed into view and is wanted now.
func (e *Engine) RequestVisible(id string) {
	e.systemManager.Scheduler().RequestVisible(id)
}

// UpdateVisibility reports how far a resource is from the viewer. In view
// (distance <= 0) requests it outright; within the preload radius it is
// queued ahead of time; beyond that it is left alone.
func (e *Engine) UpdateVisibility(id string, distance float64) {
	switch {
	case distance <= 0:
		e.RequestVisible(id)
	case distance <= e.cfg.Loader.PreloadDistance:
		e.Preload([]string{id})
	}
}

// Preload bulk-enqueues resources regardless of visibility.
func (e *Engine) Preload(ids []string) {
	e.systemManager.Scheduler().Preload(ids)
}

// Progress reports per-resource load state.
func (e *Engine) Progress(id string) (resources.Progress, error) {
	return e.systemManager.Scheduler().Progress(id)
}

// OverallProgress aggregates load state across every registered resource.
func (e *Engine) OverallProgress() resources.OverallProgress {
	return e.systemManager.Scheduler().OverallProgress()
}

// CacheStats returns a snapshot of the resource cache counters.
func (e *Engine) CacheStats() systems.CacheStats {
	return e.systemManager.Cache().Stats()
}

// Run starts the subsystems and blocks until Shutdown is called.
func (e *Engine) Run() error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("engine must be initialized before Run (stage %d)", e.currentStage)
	}
	e.currentStage = EngineStageRunning
	e.clock.Start()

	core.LogInfo("engine running")
	e.systemManager.Start()

	<-e.done

	e.clock.Update()
	core.LogInfo("engine stopped after %s", e.clock.Elapsed())
	return nil
}

// Shutdown stops dispatch, drains in-flight work and releases the caches.
// Safe to call from a signal handler goroutine.
func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShuttingDown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown

	err := e.systemManager.Shutdown()
	close(e.done)
	return err
}

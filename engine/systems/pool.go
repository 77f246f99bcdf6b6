package systems

import (
	"fmt"
	"math"
	"sync"

	"github.com/lodestone-engine/lodestone/engine/core"
)

// PoolConfig configures one object pool.
type PoolConfig struct {
	InitialSize     int
	MaxSize         int
	GrowthFactor    float64
	ShrinkThreshold float64
	// EnableAutoResize allows Acquire to grow the available set by
	// GrowthFactor while under MaxSize.
	EnableAutoResize bool
}

// PoolStats is a snapshot of one pool's counters.
type PoolStats struct {
	Available int
	InUse     int
	// Created counts every instance ever constructed by the factory.
	Created int
}

type objectPool struct {
	typeTag string
	factory func() interface{}
	reset   func(interface{})
	config  PoolConfig

	available []interface{}
	inUse     map[interface{}]struct{}
	created   int
}

// PoolSystem manages reusable-instance pools keyed by a type tag. Factory
// functions must return pointer (comparable) values, since checked-out
// instances are tracked by identity.
type PoolSystem struct {
	mutex sync.Mutex
	pools map[string]*objectPool
	bus   *core.Bus
}

func NewPoolSystem(bus *core.Bus) *PoolSystem {
	return &PoolSystem{
		pools: make(map[string]*objectPool),
		bus:   bus,
	}
}

// CreatePool registers a pool and pre-populates it with InitialSize
// factory-constructed instances.
func (ps *PoolSystem) CreatePool(typeTag string, factory func() interface{}, reset func(interface{}), config PoolConfig) error {
	if factory == nil {
		return fmt.Errorf("pool %s: factory must not be nil", typeTag)
	}

	ps.mutex.Lock()
	if _, exists := ps.pools[typeTag]; exists {
		ps.mutex.Unlock()
		return fmt.Errorf("pool %s already exists", typeTag)
	}
	pool := &objectPool{
		typeTag: typeTag,
		factory: factory,
		reset:   reset,
		config:  config,
		inUse:   make(map[interface{}]struct{}),
	}
	for i := 0; i < config.InitialSize; i++ {
		pool.available = append(pool.available, factory())
		pool.created++
	}
	ps.pools[typeTag] = pool
	ps.mutex.Unlock()

	ps.bus.Publish(core.EventPoolCreated, core.PoolCreatedEvent{Type: typeTag, InitialSize: config.InitialSize})
	return nil
}

// Acquire checks an instance out of the pool. When the available set is
// empty it grows by GrowthFactor (if auto-resize is on and under MaxSize),
// otherwise it falls back to constructing a single instance directly:
// emergency growth is never capped, running out of pooled objects must not
// stall the caller.
func (ps *PoolSystem) Acquire(typeTag string) (interface{}, error) {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	pool, ok := ps.pools[typeTag]
	if !ok {
		return nil, fmt.Errorf("%s: %w", typeTag, core.ErrPoolNotFound)
	}

	if len(pool.available) == 0 {
		total := len(pool.available) + len(pool.inUse)
		if pool.config.EnableAutoResize && total < pool.config.MaxSize {
			pool.growLocked()
		}
	}

	var instance interface{}
	if n := len(pool.available); n > 0 {
		instance = pool.available[n-1]
		pool.available = pool.available[:n-1]
	} else {
		instance = pool.factory()
		pool.created++
	}
	pool.inUse[instance] = struct{}{}
	return instance, nil
}

// growLocked expands the available set toward GrowthFactor times the current
// size, clamped to MaxSize.
func (p *objectPool) growLocked() {
	total := len(p.available) + len(p.inUse)
	target := int(math.Ceil(float64(total) * p.config.GrowthFactor))
	if target <= total {
		target = total + 1
	}
	if target > p.config.MaxSize {
		target = p.config.MaxSize
	}
	for total < target {
		p.available = append(p.available, p.factory())
		p.created++
		total++
	}
}

// Release resets the instance and returns it to the available set. Releasing
// into a pool that does not exist is a no-op: cleanup paths must be safe to
// call unconditionally.
func (ps *PoolSystem) Release(typeTag string, instance interface{}) {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	pool, ok := ps.pools[typeTag]
	if !ok {
		return
	}
	if _, checkedOut := pool.inUse[instance]; !checkedOut {
		core.LogWarn("pool %s: release of an instance that was not acquired", typeTag)
		return
	}
	if pool.reset != nil {
		pool.reset(instance)
	}
	delete(pool.inUse, instance)
	pool.available = append(pool.available, instance)
}

// Resize adjusts the pool so that available+inUse equals targetSize, as far
// as possible: instances in use are never discarded. Resize of a nonexistent
// pool is a no-op.
func (ps *PoolSystem) Resize(typeTag string, targetSize int) {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	pool, ok := ps.pools[typeTag]
	if !ok {
		return
	}
	total := len(pool.available) + len(pool.inUse)
	switch {
	case targetSize > total:
		for total < targetSize {
			pool.available = append(pool.available, pool.factory())
			pool.created++
			total++
		}
	case targetSize < total:
		keep := targetSize - len(pool.inUse)
		if keep < 0 {
			keep = 0
		}
		if keep < len(pool.available) {
			pool.available = pool.available[:keep]
		}
	}
}

// ShrinkAll trims under-utilized pools, keeping at least InitialSize
// available instances. Called by the pressure monitor.
func (ps *PoolSystem) ShrinkAll() {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	for _, pool := range ps.pools {
		total := len(pool.available) + len(pool.inUse)
		if total == 0 {
			continue
		}
		utilization := float64(len(pool.inUse)) / float64(total)
		if utilization >= pool.config.ShrinkThreshold {
			continue
		}
		target := int(math.Floor(float64(len(pool.available)) * 0.7))
		if target < pool.config.InitialSize {
			target = pool.config.InitialSize
		}
		if target < len(pool.available) {
			pool.available = pool.available[:target]
		}
	}
}

// Stats returns counters for one pool.
func (ps *PoolSystem) Stats(typeTag string) (PoolStats, error) {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	pool, ok := ps.pools[typeTag]
	if !ok {
		return PoolStats{}, fmt.Errorf("%s: %w", typeTag, core.ErrPoolNotFound)
	}
	return PoolStats{
		Available: len(pool.available),
		InUse:     len(pool.inUse),
		Created:   pool.created,
	}, nil
}

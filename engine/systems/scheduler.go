package systems

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/lodestone-engine/lodestone/engine/assets"
	"github.com/lodestone-engine/lodestone/engine/containers"
	"github.com/lodestone-engine/lodestone/engine/core"
	"github.com/lodestone-engine/lodestone/engine/resources"
)

// SchedulerConfig configures the load scheduler.
type SchedulerConfig struct {
	// BatchSize is the number of identities drained from the queue per
	// dispatch cycle.
	BatchSize int
	// MaxConcurrent bounds how many retrieval+decode operations run at once.
	MaxConcurrent int
	// RetryAttempts is the number of automatic re-enqueues after a failure.
	RetryAttempts int
	RetryDelay    time.Duration
	// YieldDelay is the pause between batches while the queue is non-empty.
	YieldDelay time.Duration
}

// loadState is the per-identity transient state owned by the scheduler.
type loadState struct {
	status   resources.LoadStatus
	attempts int
	// queued marks an identity sitting in the priority queue.
	queued bool
	// terminal marks a Failed identity whose retries are exhausted.
	terminal    bool
	loadedBytes uint64
}

// LoadScheduler drives retrieval and decode for registered resources. One
// dispatch loop per scheduler; retrievals for different identities race up to
// MaxConcurrent, but only one batch cycle runs at a time.
type LoadScheduler struct {
	config SchedulerConfig

	mutex       sync.Mutex
	descriptors map[string]*resources.Descriptor
	states      map[string]*loadState
	queues      [resources.PriorityBands]*containers.RingQueue[string]
	active      bool
	loopRunning bool

	wake chan struct{}
	quit chan struct{}

	clock    clock.Clock
	backend  assets.Backend
	decoders *assets.DecoderSet
	cache    *ResourceCache
	atlas    *AtlasSystem
	jobs     *JobSystem
	bus      *core.Bus
}

// NewLoadScheduler wires the scheduler. atlas may be nil; loaded images are
// then not auto-placed.
func NewLoadScheduler(config SchedulerConfig, backend assets.Backend, decoders *assets.DecoderSet,
	cache *ResourceCache, atlas *AtlasSystem, jobs *JobSystem, clk clock.Clock, bus *core.Bus) (*LoadScheduler, error) {
	if config.BatchSize < 1 {
		return nil, fmt.Errorf("func NewLoadScheduler - config.BatchSize must be > 0")
	}
	if config.MaxConcurrent < 1 {
		return nil, fmt.Errorf("func NewLoadScheduler - config.MaxConcurrent must be > 0")
	}
	if backend == nil || decoders == nil || cache == nil || jobs == nil {
		return nil, fmt.Errorf("func NewLoadScheduler - backend, decoders, cache and jobs are required")
	}

	ls := &LoadScheduler{
		config:      config,
		descriptors: make(map[string]*resources.Descriptor),
		states:      make(map[string]*loadState),
		wake:        make(chan struct{}, 1),
		quit:        make(chan struct{}),
		clock:       clk,
		backend:     backend,
		decoders:    decoders,
		cache:       cache,
		atlas:       atlas,
		jobs:        jobs,
		bus:         bus,
	}
	for i := range ls.queues {
		ls.queues[i] = containers.NewRingQueue[string](config.BatchSize)
	}
	return ls, nil
}

// Register adds a descriptor. High-priority resources are enqueued
// immediately. Registering a known identity returns ErrDuplicateResource;
// the call is otherwise ignored.
func (ls *LoadScheduler) Register(desc *resources.Descriptor) error {
	if desc == nil || desc.ID == "" {
		return fmt.Errorf("register: descriptor with empty id")
	}

	ls.mutex.Lock()
	if _, exists := ls.descriptors[desc.ID]; exists {
		ls.mutex.Unlock()
		core.LogWarn("register: %s: %s", desc.ID, core.ErrDuplicateResource.Error())
		return fmt.Errorf("%s: %w", desc.ID, core.ErrDuplicateResource)
	}
	ls.descriptors[desc.ID] = desc
	ls.states[desc.ID] = &loadState{status: resources.StatusPending}
	if desc.Priority == resources.PriorityHigh {
		ls.enqueueLocked(desc.ID)
	}
	ls.mutex.Unlock()

	ls.bus.Publish(core.EventResourceRegistered, core.ResourceEvent{ID: desc.ID, Kind: desc.Kind.String()})
	ls.wakeLoop()
	return nil
}

// RequestVisible is the visibility-signal hook: enqueue the identity unless
// it is already loaded, loading, queued, or terminally failed.
func (ls *LoadScheduler) RequestVisible(id string) {
	ls.mutex.Lock()
	ls.requestLocked(id)
	ls.mutex.Unlock()
	ls.wakeLoop()
}

// Preload bulk-enqueues identities, bypassing visibility. Dependencies of
// each identity are pulled in as well.
func (ls *LoadScheduler) Preload(ids []string) {
	ls.mutex.Lock()
	for _, id := range ids {
		ls.requestLocked(id)
		if desc, ok := ls.descriptors[id]; ok {
			for _, dep := range desc.Dependencies {
				ls.requestLocked(dep)
			}
		}
	}
	ls.mutex.Unlock()
	ls.wakeLoop()
}

func (ls *LoadScheduler) requestLocked(id string) {
	state, ok := ls.states[id]
	if !ok {
		core.LogWarn("request for unregistered resource %s", id)
		return
	}
	if state.queued || state.terminal ||
		state.status == resources.StatusLoading || state.status == resources.StatusLoaded {
		return
	}
	ls.enqueueLocked(id)
}

func (ls *LoadScheduler) enqueueLocked(id string) {
	desc := ls.descriptors[id]
	ls.queues[desc.Priority].Enqueue(id)
	ls.states[id].queued = true
}

// Start activates dispatch. The loop goroutine is created on first use.
func (ls *LoadScheduler) Start() {
	ls.mutex.Lock()
	ls.active = true
	if !ls.loopRunning {
		ls.loopRunning = true
		go ls.run()
	}
	ls.mutex.Unlock()
	ls.wakeLoop()
}

// Stop halts new dispatch. In-flight operations complete and their results
// are still applied.
func (ls *LoadScheduler) Stop() {
	ls.mutex.Lock()
	ls.active = false
	ls.mutex.Unlock()
}

// Shutdown stops the dispatch loop permanently and drains the worker pool.
func (ls *LoadScheduler) Shutdown() error {
	ls.Stop()
	ls.mutex.Lock()
	if ls.loopRunning {
		close(ls.quit)
		ls.loopRunning = false
	}
	ls.mutex.Unlock()
	return ls.jobs.Shutdown()
}

func (ls *LoadScheduler) wakeLoop() {
	select {
	case ls.wake <- struct{}{}:
	default:
	}
}

// run is the dispatch loop. One batch cycle at a time: drain up to BatchSize
// identities by priority, submit them to the worker pool, wait for the whole
// batch to settle, yield, repeat.
func (ls *LoadScheduler) run() {
	for {
		select {
		case <-ls.quit:
			return
		case <-ls.wake:
		}

		for {
			batch := ls.takeBatch()
			if len(batch) == 0 {
				break
			}

			var wg sync.WaitGroup
			for _, id := range batch {
				ls.dispatch(id, &wg)
			}
			wg.Wait()

			remaining := ls.queueLen()
			ls.bus.Publish(core.EventBatchComplete, core.BatchCompleteEvent{
				Dispatched: len(batch),
				Remaining:  remaining,
			})
			if remaining == 0 {
				break
			}

			// Yield between batches so the loop never monopolizes a core.
			select {
			case <-ls.quit:
				return
			case <-ls.after(ls.config.YieldDelay):
			}
		}
	}
}

func (ls *LoadScheduler) after(d time.Duration) <-chan time.Time {
	if d <= 0 {
		ch := make(chan time.Time, 1)
		ch <- time.Time{}
		return ch
	}
	return ls.clock.After(d)
}

// takeBatch drains up to BatchSize queued identities, High before Medium
// before Low, FIFO within each band.
func (ls *LoadScheduler) takeBatch() []string {
	ls.mutex.Lock()
	defer ls.mutex.Unlock()

	if !ls.active {
		return nil
	}
	var batch []string
	for band := 0; band < resources.PriorityBands && len(batch) < ls.config.BatchSize; band++ {
		for len(batch) < ls.config.BatchSize {
			id, ok := ls.queues[band].Dequeue()
			if !ok {
				break
			}
			state := ls.states[id]
			state.queued = false
			state.status = resources.StatusLoading
			batch = append(batch, id)
		}
	}
	return batch
}

func (ls *LoadScheduler) queueLen() int {
	ls.mutex.Lock()
	defer ls.mutex.Unlock()
	total := 0
	for _, q := range ls.queues {
		total += q.Len()
	}
	return total
}

func (ls *LoadScheduler) dispatch(id string, wg *sync.WaitGroup) {
	wg.Add(1)
	ls.jobs.Submit(JobTask{
		Run: func() error {
			return ls.load(id)
		},
		OnComplete: func() {
			wg.Done()
		},
		OnFailure: func(err error) {
			ls.onLoadError(id, err)
			wg.Done()
		},
	})
}

// load runs one retrieval+decode operation to completion.
func (ls *LoadScheduler) load(id string) error {
	ls.mutex.Lock()
	desc := ls.descriptors[id]
	ls.mutex.Unlock()

	ls.bus.Publish(core.EventLoadStart, core.ResourceEvent{ID: id, Kind: desc.Kind.String()})

	data, err := ls.backend.Fetch(context.Background(), desc.Locator)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", id, err)
	}
	ls.bus.Publish(core.EventLoadProgress, core.LoadProgressEvent{
		ID:     id,
		Loaded: uint64(len(data)),
		Total:  desc.Size,
	})

	res, err := ls.decoders.Decode(desc.Kind, id, data)
	if err != nil {
		return fmt.Errorf("decode %s: %w", id, err)
	}

	ls.cache.Put(id, res)
	if ls.atlas != nil {
		if img, ok := res.Payload.(*resources.ImageData); ok {
			if _, placed := ls.atlas.Place(id, img.Pixels); !placed {
				core.LogWarn("texture %s does not fit any atlas surface", id)
			}
		}
	}

	ls.mutex.Lock()
	state := ls.states[id]
	state.status = resources.StatusLoaded
	state.loadedBytes = res.Size
	ls.mutex.Unlock()

	ls.bus.Publish(core.EventLoadComplete, core.LoadCompleteEvent{
		ID:   id,
		Kind: res.Kind.String(),
		Size: res.Size,
	})
	return nil
}

// onLoadError applies the retry policy: re-enqueue after RetryDelay while
// attempts remain, otherwise mark terminal and report once. A fetch error
// wrapping ErrResourceNotFound skips retries entirely.
func (ls *LoadScheduler) onLoadError(id string, err error) {
	permanent := errors.Is(err, core.ErrResourceNotFound)

	ls.mutex.Lock()
	state := ls.states[id]
	state.status = resources.StatusFailed
	state.attempts++
	attempts := state.attempts
	retry := !permanent && attempts <= ls.config.RetryAttempts
	if !retry {
		state.terminal = true
	}
	ls.mutex.Unlock()

	if retry {
		core.LogWarn("load %s failed (attempt %d/%d), retrying: %s",
			id, attempts, ls.config.RetryAttempts+1, err.Error())
		ls.clock.AfterFunc(ls.config.RetryDelay, func() {
			ls.requeue(id)
		})
		return
	}

	core.LogError("load %s failed permanently after %d attempts: %s", id, attempts, err.Error())
	ls.bus.Publish(core.EventLoadError, core.LoadErrorEvent{ID: id, Err: err, Attempts: attempts})
}

func (ls *LoadScheduler) requeue(id string) {
	ls.mutex.Lock()
	state, ok := ls.states[id]
	if !ok || state.terminal || state.queued || state.status != resources.StatusFailed {
		ls.mutex.Unlock()
		return
	}
	state.status = resources.StatusPending
	ls.enqueueLocked(id)
	ls.mutex.Unlock()
	ls.wakeLoop()
}

// Progress reports the load state of one identity.
func (ls *LoadScheduler) Progress(id string) (resources.Progress, error) {
	ls.mutex.Lock()
	defer ls.mutex.Unlock()

	desc, ok := ls.descriptors[id]
	if !ok {
		return resources.Progress{}, fmt.Errorf("progress: unknown resource %s", id)
	}
	state := ls.states[id]

	p := resources.Progress{
		ID:     id,
		Loaded: state.loadedBytes,
		Total:  desc.Size,
		Status: state.status,
	}
	switch {
	case state.status == resources.StatusLoaded:
		p.Percentage = 100
	case desc.Size > 0:
		p.Percentage = float64(state.loadedBytes) / float64(desc.Size) * 100
	}
	return p, nil
}

// OverallProgress aggregates across all registered identities.
func (ls *LoadScheduler) OverallProgress() resources.OverallProgress {
	ls.mutex.Lock()
	defer ls.mutex.Unlock()

	overall := resources.OverallProgress{Total: len(ls.descriptors)}
	var inFlight, failed int
	for _, state := range ls.states {
		switch {
		case state.status == resources.StatusLoaded:
			overall.Loaded++
		case state.terminal:
			failed++
		case state.queued || state.status == resources.StatusLoading || state.status == resources.StatusFailed:
			inFlight++
		}
	}
	if overall.Total > 0 {
		overall.Percentage = float64(overall.Loaded) / float64(overall.Total) * 100
	}
	switch {
	case overall.Total == 0:
		overall.Status = "idle"
	case overall.Loaded == overall.Total:
		overall.Status = "loaded"
	case inFlight > 0:
		overall.Status = "loading"
	case failed > 0:
		overall.Status = "failed"
	default:
		overall.Status = "pending"
	}
	return overall
}

// KnownStats reports registry-wide totals for the cache's Stats call.
func (ls *LoadScheduler) KnownStats() (int, uint64) {
	ls.mutex.Lock()
	defer ls.mutex.Unlock()

	var bytes uint64
	for _, desc := range ls.descriptors {
		bytes += desc.Size
	}
	return len(ls.descriptors), bytes
}

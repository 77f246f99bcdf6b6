package core

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType names one of the lifecycle notifications the engine produces.
type EventType string

const (
	EventResourceRegistered EventType = "resource-registered"
	EventLoadStart          EventType = "load-start"
	EventLoadProgress       EventType = "load-progress"
	EventLoadComplete       EventType = "load-complete"
	EventLoadError          EventType = "load-error"
	EventCacheHit           EventType = "cache-hit"
	EventCacheMiss          EventType = "cache-miss"
	EventBatchComplete      EventType = "batch-complete"
	EventPressureWarning    EventType = "pressure-warning"
	EventAtlasCreated       EventType = "atlas-created"
	EventPoolCreated        EventType = "pool-created"
)

// Event is delivered to every handler subscribed to its type. Payload holds
// the event-specific struct below.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Payload   interface{}
}

// ResourceEvent is the payload for resource-registered, load-start,
// cache-hit and cache-miss.
type ResourceEvent struct {
	ID   string
	Kind string
}

// LoadProgressEvent reports fetched bytes for one identity.
type LoadProgressEvent struct {
	ID     string
	Loaded uint64
	Total  uint64
}

// LoadCompleteEvent is published once an identity reaches the cache.
type LoadCompleteEvent struct {
	ID   string
	Kind string
	Size uint64
}

// LoadErrorEvent is published once per identity, after retries are exhausted.
type LoadErrorEvent struct {
	ID       string
	Err      error
	Attempts int
}

// BatchCompleteEvent is published after every dispatch cycle settles.
type BatchCompleteEvent struct {
	Dispatched int
	Remaining  int
}

// PressureWarningEvent carries the sampled memory ratio that crossed the threshold.
type PressureWarningEvent struct {
	Ratio     float64
	Threshold float64
}

// AtlasCreatedEvent is published when a new atlas surface is allocated.
type AtlasCreatedEvent struct {
	ID   string
	Size int
}

// PoolCreatedEvent is published when an object pool is registered.
type PoolCreatedEvent struct {
	Type        string
	InitialSize int
}

// Handler receives published events. Handlers run synchronously on the
// publisher's goroutine and must not block.
type Handler func(Event)

// Subscription identifies one registered handler. Closing it removes the
// handler from the bus.
type Subscription struct {
	token string
	etype EventType
	bus   *Bus
}

// Close unsubscribes the handler. Safe to call more than once.
func (s *Subscription) Close() {
	if s.bus != nil {
		s.bus.unsubscribe(s.etype, s.token)
		s.bus = nil
	}
}

// Bus is a typed publish/subscribe fan-out for engine events.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType]map[string]Handler
}

func NewBus() *Bus {
	return &Bus{
		subs: make(map[EventType]map[string]Handler),
	}
}

// Subscribe registers a handler for one event type and returns the token
// used to remove it again.
func (b *Bus) Subscribe(etype EventType, h Handler) *Subscription {
	token := uuid.NewString()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[etype] == nil {
		b.subs[etype] = make(map[string]Handler)
	}
	b.subs[etype][token] = h

	return &Subscription{token: token, etype: etype, bus: b}
}

func (b *Bus) unsubscribe(etype EventType, token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs[etype], token)
}

// Publish delivers the payload to every handler registered for etype.
// Delivery order between handlers is unspecified.
func (b *Bus) Publish(etype EventType, payload interface{}) {
	event := Event{
		Type:      etype,
		Timestamp: time.Now(),
		Payload:   payload,
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[etype]))
	for _, h := range b.subs[etype] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
}

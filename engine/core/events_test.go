package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversToSubscribers(t *testing.T) {
	bus := NewBus()

	var got []Event
	bus.Subscribe(EventLoadComplete, func(e Event) {
		got = append(got, e)
	})

	bus.Publish(EventLoadComplete, LoadCompleteEvent{ID: "tex/grass", Kind: "texture", Size: 64})
	bus.Publish(EventLoadError, LoadErrorEvent{ID: "tex/missing"}) // different type, not delivered

	require.Len(t, got, 1)
	assert.Equal(t, EventLoadComplete, got[0].Type)
	assert.False(t, got[0].Timestamp.IsZero())

	payload, ok := got[0].Payload.(LoadCompleteEvent)
	require.True(t, ok)
	assert.Equal(t, "tex/grass", payload.ID)
}

func TestBusUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()

	count := 0
	sub := bus.Subscribe(EventCacheHit, func(Event) { count++ })

	bus.Publish(EventCacheHit, ResourceEvent{ID: "a"})
	sub.Close()
	bus.Publish(EventCacheHit, ResourceEvent{ID: "a"})
	sub.Close() // double close is fine

	assert.Equal(t, 1, count)
}

func TestBusMultipleSubscribersSameType(t *testing.T) {
	bus := NewBus()

	first, second := 0, 0
	bus.Subscribe(EventPressureWarning, func(Event) { first++ })
	bus.Subscribe(EventPressureWarning, func(Event) { second++ })

	bus.Publish(EventPressureWarning, PressureWarningEvent{Ratio: 0.9, Threshold: 0.8})

	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)
}

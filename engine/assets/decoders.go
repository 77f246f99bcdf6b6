package assets

import (
	"fmt"
	"sync"

	"github.com/lodestone-engine/lodestone/engine/assets/loaders"
	"github.com/lodestone-engine/lodestone/engine/core"
	"github.com/lodestone-engine/lodestone/engine/resources"
)

// Decoder turns raw fetched bytes into a decoded resource of one kind.
type Decoder interface {
	Kind() resources.Kind
	Decode(id string, data []byte) (*resources.Resource, error)
}

// DecoderSet is the registry dispatching each resource kind to its decoder.
type DecoderSet struct {
	mutex    sync.RWMutex
	decoders map[resources.Kind]Decoder
}

// NewDecoderSet returns an empty registry.
func NewDecoderSet() *DecoderSet {
	return &DecoderSet{
		decoders: make(map[resources.Kind]Decoder),
	}
}

// DefaultDecoderSet returns a registry with the built-in decoders for every
// resource kind.
func DefaultDecoderSet() *DecoderSet {
	ds := NewDecoderSet()
	ds.Register(&loaders.WorldLoader{})
	ds.Register(&loaders.ImageLoader{})
	ds.Register(&loaders.AudioLoader{})
	ds.Register(&loaders.ModelLoader{})
	ds.Register(&loaders.AnimationLoader{})
	ds.Register(&loaders.BitmapFontLoader{})
	return ds
}

// Register adds or replaces the decoder for d's kind.
func (ds *DecoderSet) Register(d Decoder) {
	ds.mutex.Lock()
	defer ds.mutex.Unlock()
	if _, exists := ds.decoders[d.Kind()]; exists {
		core.LogWarn("decoder for kind %s replaced", d.Kind())
	}
	ds.decoders[d.Kind()] = d
}

// Decode dispatches to the decoder registered for kind.
func (ds *DecoderSet) Decode(kind resources.Kind, id string, data []byte) (*resources.Resource, error) {
	ds.mutex.RLock()
	d, ok := ds.decoders[kind]
	ds.mutex.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", kind, core.ErrUnknownResourceKind)
	}
	return d.Decode(id, data)
}

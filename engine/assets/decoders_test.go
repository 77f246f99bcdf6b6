package assets_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodestone-engine/lodestone/engine/assets"
	"github.com/lodestone-engine/lodestone/engine/core"
	"github.com/lodestone-engine/lodestone/engine/resources"
)

func TestDefaultDecoderSetCoversAllKinds(t *testing.T) {
	ds := assets.DefaultDecoderSet()

	kinds := []resources.Kind{
		resources.KindWorld,
		resources.KindTexture,
		resources.KindAudio,
		resources.KindModel,
		resources.KindAnimation,
		resources.KindFont,
	}
	for _, kind := range kinds {
		// Garbage input still selects a decoder; only the decode itself fails.
		_, err := ds.Decode(kind, "x", []byte("garbage"))
		assert.NotErrorIs(t, err, core.ErrUnknownResourceKind, "kind %s", kind)
	}
}

func TestDecodeUnknownKind(t *testing.T) {
	ds := assets.NewDecoderSet()
	_, err := ds.Decode(resources.KindTexture, "x", nil)
	assert.ErrorIs(t, err, core.ErrUnknownResourceKind)
}

type fakeDecoder struct{}

func (fakeDecoder) Kind() resources.Kind { return resources.KindWorld }
func (fakeDecoder) Decode(id string, data []byte) (*resources.Resource, error) {
	return &resources.Resource{ID: id, Kind: resources.KindWorld, Payload: &resources.WorldData{Name: "fake"}}, nil
}

func TestRegisterReplacesDecoder(t *testing.T) {
	ds := assets.DefaultDecoderSet()
	ds.Register(fakeDecoder{})

	res, err := ds.Decode(resources.KindWorld, "w", []byte("ignored"))
	require.NoError(t, err)
	world := res.Payload.(*resources.WorldData)
	assert.Equal(t, "fake", world.Name)
}

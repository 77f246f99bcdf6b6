package loaders

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"

	"github.com/lodestone-engine/lodestone/engine/core"
	"github.com/lodestone-engine/lodestone/engine/resources"
)

// WorldLoader decodes TOML world definitions.
type WorldLoader struct{}

func (wl *WorldLoader) Kind() resources.Kind {
	return resources.KindWorld
}

func (wl *WorldLoader) Decode(id string, data []byte) (*resources.Resource, error) {
	world := &resources.WorldData{}
	if err := toml.Unmarshal(data, world); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", id, core.ErrDecodeFailed, err)
	}
	if world.Name == "" {
		return nil, fmt.Errorf("%s: %w: world without a name", id, core.ErrDecodeFailed)
	}

	return &resources.Resource{
		ID:      id,
		Kind:    resources.KindWorld,
		Size:    uint64(len(data)),
		Payload: world,
	}, nil
}

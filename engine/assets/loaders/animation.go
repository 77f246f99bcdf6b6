package loaders

import (
	"encoding/json"
	"fmt"

	"github.com/lodestone-engine/lodestone/engine/core"
	"github.com/lodestone-engine/lodestone/engine/resources"
)

// AnimationLoader decodes JSON keyframe clips.
type AnimationLoader struct{}

func (al *AnimationLoader) Kind() resources.Kind {
	return resources.KindAnimation
}

func (al *AnimationLoader) Decode(id string, data []byte) (*resources.Resource, error) {
	anim := &resources.AnimationData{}
	if err := json.Unmarshal(data, anim); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", id, core.ErrDecodeFailed, err)
	}
	if anim.Duration < 0 {
		return nil, fmt.Errorf("%s: %w: negative duration", id, core.ErrDecodeFailed)
	}
	for _, track := range anim.Tracks {
		if track.Target == "" {
			return nil, fmt.Errorf("%s: %w: track without target", id, core.ErrDecodeFailed)
		}
	}

	keyCount := 0
	for _, track := range anim.Tracks {
		keyCount += len(track.Keys)
	}

	return &resources.Resource{
		ID:      id,
		Kind:    resources.KindAnimation,
		Size:    uint64(keyCount * 20), // 8 byte time + 12 byte value
		Payload: anim,
	}, nil
}

package loaders

import (
	"encoding/binary"
	"fmt"

	"github.com/lodestone-engine/lodestone/engine/core"
	"github.com/lodestone-engine/lodestone/engine/resources"
)

// AudioLoader decodes RIFF/WAVE payloads. Only uncompressed PCM (format tag 1)
// is accepted; compressed codecs are out of scope.
type AudioLoader struct{}

func (al *AudioLoader) Kind() resources.Kind {
	return resources.KindAudio
}

func (al *AudioLoader) Decode(id string, data []byte) (*resources.Resource, error) {
	fail := func(detail string) (*resources.Resource, error) {
		return nil, fmt.Errorf("%s: %w: %s", id, core.ErrDecodeFailed, detail)
	}

	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return fail("not a RIFF/WAVE stream")
	}

	audio := &resources.AudioData{}
	var havePCM, haveFmt bool

	// Walk the chunk list. Chunks are word-aligned.
	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		if body+chunkSize > len(data) {
			return fail("truncated chunk " + chunkID)
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return fail("fmt chunk too short")
			}
			formatTag := binary.LittleEndian.Uint16(data[body : body+2])
			if formatTag != 1 {
				return fail(fmt.Sprintf("unsupported format tag %d", formatTag))
			}
			audio.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			audio.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			audio.BitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			haveFmt = true
		case "data":
			audio.PCM = data[body : body+chunkSize]
			havePCM = true
		}

		offset = body + chunkSize
		if chunkSize%2 == 1 {
			offset++
		}
	}

	if !haveFmt || !havePCM {
		return fail("missing fmt or data chunk")
	}

	return &resources.Resource{
		ID:      id,
		Kind:    resources.KindAudio,
		Size:    uint64(len(audio.PCM)),
		Payload: audio,
	}, nil
}

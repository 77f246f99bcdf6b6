package resources

import (
	"image"

	"github.com/fzipp/bmfont"
)

// Kind identifies what a resource decodes into.
type Kind int

const (
	KindWorld Kind = iota
	KindTexture
	KindAudio
	KindModel
	KindAnimation
	KindFont
)

func (k Kind) String() string {
	switch k {
	case KindWorld:
		return "world"
	case KindTexture:
		return "texture"
	case KindAudio:
		return "audio"
	case KindModel:
		return "model"
	case KindAnimation:
		return "animation"
	case KindFont:
		return "font"
	default:
		return "unknown"
	}
}

// Priority orders dispatch. The numeric value doubles as the scheduler's
// queue band index, so High must stay the lowest value.
type Priority int

const (
	PriorityHigh Priority = iota
	PriorityMedium
	PriorityLow
)

// PriorityBands is the number of distinct priority levels.
const PriorityBands = 3

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// LoadStatus is the per-identity lifecycle state owned by the scheduler.
type LoadStatus int

const (
	StatusPending LoadStatus = iota
	StatusLoading
	StatusLoaded
	StatusFailed
)

func (s LoadStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusLoading:
		return "loading"
	case StatusLoaded:
		return "loaded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Descriptor is the immutable metadata record for a resource, created once
// at registration time.
type Descriptor struct {
	// ID uniquely identifies the resource.
	ID string
	// Kind selects the decoder and the payload type.
	Kind Kind
	// Locator is the backend-specific source, e.g. a path inside a bundle.
	Locator string
	Priority Priority
	// Size is the declared payload size in bytes. Informational; the decoded
	// size is authoritative for cache accounting.
	Size uint64
	// Dependencies are ids that should be requested alongside this one.
	Dependencies []string
	Metadata     map[string]string
}

// Resource is a decoded payload plus its identity, as produced by a decoder
// and held by the cache.
type Resource struct {
	ID      string
	Kind    Kind
	Size    uint64
	Payload Payload
}

// Payload is the tagged union of decoded representations. Exactly one
// concrete type below corresponds to each Kind.
type Payload interface {
	payload()
}

// ImageData is the decoded representation for KindTexture.
type ImageData struct {
	Width  int
	Height int
	Format string
	// Pixels is the RGBA surface, ready for atlas placement.
	Pixels *image.RGBA
}

func (*ImageData) payload() {}

// AudioData is the decoded representation for KindAudio (PCM samples).
type AudioData struct {
	Channels      int
	SampleRate    int
	BitsPerSample int
	PCM           []byte
}

func (*AudioData) payload() {}

// VertexRef indexes into the position/texcoord/normal arrays of a model.
// A value of -1 means the attribute is absent.
type VertexRef struct {
	Position int
	TexCoord int
	Normal   int
}

// ModelData is the decoded representation for KindModel.
type ModelData struct {
	Positions [][3]float32
	TexCoords [][2]float32
	Normals   [][3]float32
	Triangles [][3]VertexRef
}

func (*ModelData) payload() {}

// Keyframe is one sample on an animation track.
type Keyframe struct {
	Time  float64    `json:"t"`
	Value [3]float32 `json:"value"`
}

// AnimationTrack animates one named target over time.
type AnimationTrack struct {
	Target string     `json:"target"`
	Keys   []Keyframe `json:"keys"`
}

// AnimationData is the decoded representation for KindAnimation.
type AnimationData struct {
	Name     string           `json:"name"`
	Duration float64          `json:"duration"`
	Tracks   []AnimationTrack `json:"tracks"`
}

func (*AnimationData) payload() {}

// WorldEntity is one placed entity inside a world definition.
type WorldEntity struct {
	Name      string     `toml:"name"`
	Archetype string     `toml:"archetype"`
	Position  [3]float64 `toml:"position"`
	// Assets lists resource ids the entity needs before it can be shown.
	Assets []string `toml:"assets"`
}

// WorldData is the decoded representation for KindWorld.
type WorldData struct {
	Name     string        `toml:"name"`
	Spawn    [3]float64    `toml:"spawn"`
	Entities []WorldEntity `toml:"entity"`
}

func (*WorldData) payload() {}

// FontData is the decoded representation for KindFont.
type FontData struct {
	Descriptor *bmfont.Descriptor
	LineHeight int
}

func (*FontData) payload() {}

// Progress reports the load state of one identity.
type Progress struct {
	ID         string
	Loaded     uint64
	Total      uint64
	Percentage float64
	Status     LoadStatus
}

// OverallProgress aggregates load state across every registered identity.
type OverallProgress struct {
	Loaded     int
	Total      int
	Percentage float64
	Status     string
}

// Package testbed is a small demo application exercising the engine: it
// builds an asset bundle in memory, registers descriptors with mixed
// priorities and streams everything through the scheduler.
package testbed

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"time"

	"github.com/lodestone-engine/lodestone/engine"
	"github.com/lodestone-engine/lodestone/engine/assets"
	"github.com/lodestone-engine/lodestone/engine/assets/bundle"
	"github.com/lodestone-engine/lodestone/engine/config"
	"github.com/lodestone-engine/lodestone/engine/core"
	"github.com/lodestone-engine/lodestone/engine/resources"
)

type Game struct {
	Engine *engine.Engine
}

// NewDemo builds the demo bundle and an engine streaming from it.
func NewDemo() (*Game, error) {
	backend, err := buildDemoBundle()
	if err != nil {
		return nil, err
	}

	cfg := config.Default()
	cfg.Loader.BatchSize = 4
	cfg.Loader.MaxConcurrent = 2

	e, err := engine.New(cfg, backend, nil)
	if err != nil {
		return nil, err
	}

	e.Events().Subscribe(core.EventLoadComplete, func(ev core.Event) {
		p := ev.Payload.(core.LoadCompleteEvent)
		core.LogInfo("loaded %s (%s, %d bytes)", p.ID, p.Kind, p.Size)
	})
	e.Events().Subscribe(core.EventLoadError, func(ev core.Event) {
		p := ev.Payload.(core.LoadErrorEvent)
		core.LogError("gave up on %s after %d attempts: %v", p.ID, p.Attempts, p.Err)
	})

	g := &Game{Engine: e}
	if err := g.registerAssets(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Game) registerAssets() error {
	descriptors := []*resources.Descriptor{
		{ID: "world/overworld", Kind: resources.KindWorld, Locator: "overworld.toml",
			Priority: resources.PriorityHigh, Size: 256,
			Dependencies: []string{"tex/grass", "tex/dirt"}},
		{ID: "tex/grass", Kind: resources.KindTexture, Locator: "grass.png",
			Priority: resources.PriorityMedium, Size: 16384},
		{ID: "tex/dirt", Kind: resources.KindTexture, Locator: "dirt.png",
			Priority: resources.PriorityMedium, Size: 16384},
		{ID: "sfx/step", Kind: resources.KindAudio, Locator: "step.wav",
			Priority: resources.PriorityLow, Size: 8000},
		{ID: "model/tree", Kind: resources.KindModel, Locator: "tree.obj",
			Priority: resources.PriorityLow, Size: 512},
		{ID: "anim/sway", Kind: resources.KindAnimation, Locator: "sway.json",
			Priority: resources.PriorityLow, Size: 256},
		{ID: "font/main", Kind: resources.KindFont, Locator: "main.fnt",
			Priority: resources.PriorityLow, Size: 512},
	}
	for _, desc := range descriptors {
		if err := g.Engine.RegisterAsset(desc); err != nil {
			return err
		}
	}
	return nil
}

// Play drives the demo: preload everything, then poll until the stream
// settles and print the final stats.
func (g *Game) Play() {
	g.Engine.Preload([]string{
		"world/overworld", "sfx/step", "model/tree", "anim/sway", "font/main",
	})

	deadline := time.After(10 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			overall := g.Engine.OverallProgress()
			if overall.Status == "loaded" || overall.Status == "failed" {
				stats := g.Engine.CacheStats()
				core.LogInfo("stream settled: %d/%d loaded, %d bytes cached, hit rate %.2f",
					overall.Loaded, overall.Total, stats.CachedBytes, stats.HitRate)
				return
			}
		case <-deadline:
			core.LogWarn("demo timed out waiting for assets")
			return
		}
	}
}

func buildDemoBundle() (assets.Backend, error) {
	builder := bundle.NewBuilder(bundle.Header{
		Author:      "testbed",
		DateCreated: time.Now().Unix(),
		Version:     1,
	})

	entries := map[string][]byte{
		"overworld.toml": demoWorld(),
		"grass.png":      demoPNG(color.RGBA{R: 40, G: 160, B: 60, A: 255}),
		"dirt.png":       demoPNG(color.RGBA{R: 120, G: 80, B: 40, A: 255}),
		"step.wav":       demoWAV(),
		"tree.obj":       demoOBJ(),
		"sway.json":      demoAnimation(),
		"main.fnt":       demoFont(),
	}
	for name, data := range entries {
		if err := builder.Add(name, data); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if _, err := builder.WriteTo(&buf); err != nil {
		return nil, err
	}
	archive, err := bundle.Open(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return nil, err
	}
	return assets.NewBundleBackend(archive), nil
}

func demoWorld() []byte {
	return []byte(`name = "overworld"
spawn = [0.0, 0.0, 0.0]

[[entity]]
name = "oak"
archetype = "tree"
position = [4.0, 0.0, -2.0]
assets = ["model/tree", "tex/grass"]
`)
}

func demoPNG(c color.RGBA) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

// demoWAV produces 0.1s of silence, 16-bit mono at 8kHz.
func demoWAV() []byte {
	pcm := make([]byte, 1600)
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(8000))
	binary.Write(&buf, binary.LittleEndian, uint32(16000))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

func demoOBJ() []byte {
	return []byte(`# demo tree
v 0 0 0
v 1 0 0
v 0 1 0
v 1 1 0
f 1 2 3
f 2 4 3
`)
}

func demoAnimation() []byte {
	anim := resources.AnimationData{
		Name:     "sway",
		Duration: 2.0,
		Tracks: []resources.AnimationTrack{
			{Target: "trunk", Keys: []resources.Keyframe{
				{Time: 0, Value: [3]float32{0, 0, 0}},
				{Time: 1, Value: [3]float32{0, 0, 0.1}},
				{Time: 2, Value: [3]float32{0, 0, 0}},
			}},
		},
	}
	data, _ := json.Marshal(anim)
	return data
}

func demoFont() []byte {
	return []byte(fmt.Sprintln(`info face="demo" size=32 bold=0 italic=0 charset="" unicode=1 stretchH=100 smooth=1 aa=1 padding=0,0,0,0 spacing=1,1 outline=0
common lineHeight=36 base=29 scaleW=256 scaleH=256 pages=1 packed=0 alphaChnl=1 redChnl=0 greenChnl=0 blueChnl=0
page id=0 file="demo_0.png"
chars count=2
char id=65 x=0 y=0 width=20 height=26 xoffset=0 yoffset=4 xadvance=21 page=0 chnl=15
char id=66 x=22 y=0 width=19 height=26 xoffset=1 yoffset=4 xadvance=21 page=0 chnl=15`))
}

package loaders

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"

	// Register the texture formats the engine ships with.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"

	"github.com/lodestone-engine/lodestone/engine/core"
	"github.com/lodestone-engine/lodestone/engine/resources"
)

// ImageLoader decodes PNG, JPEG and BMP payloads into RGBA surfaces ready
// for atlas placement.
type ImageLoader struct{}

func (il *ImageLoader) Kind() resources.Kind {
	return resources.KindTexture
}

func (il *ImageLoader) Decode(id string, data []byte) (*resources.Resource, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", id, core.ErrDecodeFailed, err)
	}

	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}

	return &resources.Resource{
		ID:   id,
		Kind: resources.KindTexture,
		Size: uint64(len(rgba.Pix)),
		Payload: &resources.ImageData{
			Width:  bounds.Dx(),
			Height: bounds.Dy(),
			Format: format,
			Pixels: rgba,
		},
	}, nil
}

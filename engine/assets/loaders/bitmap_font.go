package loaders

import (
	"bytes"
	"fmt"

	"github.com/fzipp/bmfont"

	"github.com/lodestone-engine/lodestone/engine/core"
	"github.com/lodestone-engine/lodestone/engine/resources"
)

// BitmapFontLoader decodes AngelCode BMFont descriptors (.fnt, text format).
// The page images referenced by the descriptor are separate texture resources
// and load through the regular texture path.
type BitmapFontLoader struct{}

func (fl *BitmapFontLoader) Kind() resources.Kind {
	return resources.KindFont
}

func (fl *BitmapFontLoader) Decode(id string, data []byte) (*resources.Resource, error) {
	desc, err := bmfont.ReadDescriptor(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", id, core.ErrDecodeFailed, err)
	}
	if len(desc.Chars) == 0 {
		return nil, fmt.Errorf("%s: %w: font has no glyphs", id, core.ErrDecodeFailed)
	}

	return &resources.Resource{
		ID:   id,
		Kind: resources.KindFont,
		Size: uint64(len(data)),
		Payload: &resources.FontData{
			Descriptor: desc,
			LineHeight: desc.Common.LineHeight,
		},
	}, nil
}

package frames

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/gif"

	"github.com/disintegration/imaging"

	"github.com/1F47E/go-stickerconv/internal/errs"
)

func decodeGif(data []byte) ([]*image.NRGBA, error) {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrDecode, err)
	}
	if len(g.Image) == 0 {
		return nil, fmt.Errorf("%w: gif has no frames", errs.ErrDecode)
	}

	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if bounds.Empty() {
		bounds = g.Image[0].Bounds()
	}
	canvas := image.NewNRGBA(bounds)

	out := make([]*image.NRGBA, 0, len(g.Image))
	for i, fr := range g.Image {
		disposal := byte(gif.DisposalNone)
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}

		var saved *image.NRGBA
		if disposal == gif.DisposalPrevious {
			saved = imaging.Clone(canvas)
		}

		draw.Draw(canvas, fr.Bounds(), fr, fr.Bounds().Min, draw.Over)
		out = append(out, imaging.Clone(canvas))

		switch disposal {
		case gif.DisposalBackground:
			clearRect(canvas, fr.Bounds())
		case gif.DisposalPrevious:
			copy(canvas.Pix, saved.Pix)
		}
	}
	return out, nil
}

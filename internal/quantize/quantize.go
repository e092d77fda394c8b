// Package quantize maps a whole animation onto one shared palette.
//
// Frames are stacked into a single tall master raster, quantized and dithered
// in one pass, and cut back into frames at the original boundaries. Every
// output frame references the same palette, so a colour index means the same
// colour in every frame.
package quantize

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"

	"github.com/1F47E/go-stickerconv/internal/errs"
	"github.com/1F47E/go-stickerconv/internal/frames"
	cfg "github.com/1F47E/go-stickerconv/pkg/config"
	"github.com/1F47E/go-stickerconv/pkg/logger"
)

const maxColors = 256

type Options struct {
	Colors     int
	QualityMin int
	QualityMax int
	Dither     bool
}

func DefaultOptions() Options {
	return Options{
		Colors:     cfg.PaletteColors,
		QualityMin: cfg.QualityMin,
		QualityMax: cfg.QualityMax,
		Dither:     true,
	}
}

// Result is the quantized animation.
type Result struct {
	Palette color.Palette
	Frames  []*image.Paletted
	Delays  []int
	Master  *image.Paletted
	MSE     float64
	Quality int
}

func (o Options) validate() error {
	if o.Colors < 1 || o.Colors > maxColors {
		return fmt.Errorf("%w: color count %d outside 1..%d", errs.ErrQuantize, o.Colors, maxColors)
	}
	if o.QualityMin < 0 || o.QualityMax > 100 || o.QualityMin > o.QualityMax {
		return fmt.Errorf("%w: quality range %d..%d is not within 0..100", errs.ErrQuantize, o.QualityMin, o.QualityMax)
	}
	return nil
}

// Quantize builds one palette for all frames of anim and remaps them onto it.
// Frame count and order are kept.
func Quantize(anim *frames.Animation, opts Options) (*Result, error) {
	log := logger.Scope("quantize")

	if err := anim.Validate(); err != nil {
		return nil, err
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	master, err := Tile(anim)
	if err != nil {
		return nil, err
	}
	_, fh := anim.Size()

	pal := buildPalette(master, opts.Colors, qualityToMSE(opts.QualityMax))
	log.Debugf("palette of %d colors for %d frames", len(pal), anim.Len())

	pm := image.NewPaletted(master.Bounds(), pal)
	if opts.Dither {
		draw.FloydSteinberg.Draw(pm, pm.Bounds(), master, image.Point{})
	} else {
		draw.Draw(pm, pm.Bounds(), master, image.Point{}, draw.Src)
	}

	mse := remapError(master, pm)
	q := mseToQuality(mse)
	if q < opts.QualityMin {
		return nil, fmt.Errorf("%w: quality %d below minimum %d", errs.ErrQuantize, q, opts.QualityMin)
	}

	slices, err := Crop(pm, anim.Len(), fh)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Palette: pal,
		Frames:  slices,
		Delays:  make([]int, anim.Len()),
		Master:  pm,
		MSE:     mse,
		Quality: q,
	}
	for i, f := range anim.Frames {
		res.Delays[i] = f.Delay
	}
	log.Debugf("quantized to quality %d (mse %.6f)", q, mse)
	return res, nil
}

// Tile stacks the frames top to bottom, frame i starting at row i*h.
func Tile(anim *frames.Animation) (*image.NRGBA, error) {
	if err := anim.Validate(); err != nil {
		return nil, err
	}
	w, h := anim.Size()
	master := imaging.New(w, h*anim.Len(), color.NRGBA{})
	for i, f := range anim.Frames {
		r := image.Rect(0, i*h, w, (i+1)*h)
		draw.Draw(master, r, f.Image, f.Image.Bounds().Min, draw.Src)
	}
	return master, nil
}

// Crop cuts the quantized master back into n frames of height h. Each frame
// starts at the origin and shares the master palette.
func Crop(master *image.Paletted, n, h int) ([]*image.Paletted, error) {
	b := master.Bounds()
	if n < 1 || h < 1 || b.Dy() != n*h {
		return nil, fmt.Errorf("%w: master of height %d does not hold %d frames of %d rows", errs.ErrQuantize, b.Dy(), n, h)
	}
	w := b.Dx()
	out := make([]*image.Paletted, n)
	for i := range out {
		fr := image.NewPaletted(image.Rect(0, 0, w, h), master.Palette)
		for y := 0; y < h; y++ {
			src := master.PixOffset(b.Min.X, b.Min.Y+i*h+y)
			copy(fr.Pix[y*fr.Stride:y*fr.Stride+w], master.Pix[src:src+w])
		}
		out[i] = fr
	}
	return out, nil
}

package core

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/1F47E/go-stickerconv/internal/apng"
	"github.com/1F47E/go-stickerconv/internal/errs"
	"github.com/1F47E/go-stickerconv/internal/storage"
)

// transcode + verify, for the verify command
func (c *Core) TranscodeVerify(ctx context.Context, path string) (Result, error) {
	res, err := c.Transcode(ctx, path)
	if err != nil || res.Skipped {
		return res, err
	}
	if err := c.Verify(res); err != nil {
		res.Err = err
		res.Stage = errs.StageOf(err)
		return res, err
	}
	return res, nil
}

// Verify reads back the apng of res and checks that it holds res.Frames
// frames of one size that all share one palette.
func (c *Core) Verify(res Result) error {
	if res.Output == "" {
		return fmt.Errorf("%s: nothing to verify", res.Source)
	}
	data, err := storage.ReadAsset(res.Output)
	if err != nil {
		return errs.Wrap(res.Output, errs.StageEncode, err)
	}
	if err := verifyAPNG(data, res.Frames, c.opts.Frame.Width, c.opts.Frame.Height); err != nil {
		return errs.Wrap(res.Output, errs.StageEncode, err)
	}
	return nil
}

// width and height of 0 accept any frame size
func verifyAPNG(data []byte, want, width, height int) error {
	declared, err := apng.NumFrames(data)
	if err != nil {
		return fmt.Errorf("%w: %w", errs.ErrEncode, err)
	}
	if declared != want {
		return fmt.Errorf("%w: acTL declares %d frames, want %d", errs.ErrEncode, declared, want)
	}
	list, err := apng.Split(data)
	if err != nil {
		return fmt.Errorf("%w: %w", errs.ErrEncode, err)
	}

	var first *image.Paletted
	for i, f := range list {
		img, err := png.Decode(bytes.NewReader(f.Data))
		if err != nil {
			return fmt.Errorf("%w: frame %d: %v", errs.ErrEncode, i, err)
		}
		p, ok := img.(*image.Paletted)
		if !ok {
			return fmt.Errorf("%w: frame %d is not paletted", errs.ErrEncode, i)
		}
		if first == nil {
			first = p
			b := p.Bounds()
			if width > 0 && (b.Dx() != width || b.Dy() != height) {
				return fmt.Errorf("%w: frames are %dx%d, want %dx%d", errs.ErrEncode, b.Dx(), b.Dy(), width, height)
			}
			continue
		}
		if p.Bounds() != first.Bounds() {
			return fmt.Errorf("%w: frame %d is %v, frame 0 is %v", errs.ErrEncode, i, p.Bounds(), first.Bounds())
		}
		if !samePalette(first, p) {
			return fmt.Errorf("%w: frame %d has its own palette", errs.ErrEncode, i)
		}
	}
	return nil
}

func samePalette(a, b *image.Paletted) bool {
	if len(a.Palette) != len(b.Palette) {
		return false
	}
	for i := range a.Palette {
		r1, g1, b1, a1 := a.Palette[i].RGBA()
		r2, g2, b2, a2 := b.Palette[i].RGBA()
		if r1 != r2 || g1 != g2 || b1 != b2 || a1 != a2 {
			return false
		}
	}
	return true
}

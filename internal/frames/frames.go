// Package frames turns an animated container into an ordered list of RGBA
// frames of one fixed size.
package frames

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/1F47E/go-stickerconv/internal/errs"
	cfg "github.com/1F47E/go-stickerconv/pkg/config"
	"github.com/1F47E/go-stickerconv/pkg/logger"
)

// Frame is one fully composited picture of the animation.
type Frame struct {
	Image *image.NRGBA
	Delay int // ms
}

type Animation struct {
	Frames []Frame
}

type Options struct {
	Width  int // 0 keeps the source size
	Height int
	Delay  int // ms, applied to every frame
}

func DefaultOptions() Options {
	return Options{Width: cfg.FrameWidth, Height: cfg.FrameHeight, Delay: cfg.FrameDelayMs}
}

func (a *Animation) Len() int {
	if a == nil {
		return 0
	}
	return len(a.Frames)
}

// Size returns the dimensions of the first frame.
func (a *Animation) Size() (int, int) {
	if a.Len() == 0 {
		return 0, 0
	}
	b := a.Frames[0].Image.Bounds()
	return b.Dx(), b.Dy()
}

// Validate checks that there is at least one frame and that every frame has
// the size of the first one.
func (a *Animation) Validate() error {
	if a.Len() == 0 {
		return fmt.Errorf("%w: animation has no frames", errs.ErrDecode)
	}
	w, h := a.Size()
	if w == 0 || h == 0 {
		return fmt.Errorf("%w: frame 0 is empty", errs.ErrDecode)
	}
	for i, f := range a.Frames {
		if f.Image == nil {
			return fmt.Errorf("%w: frame %d has no image", errs.ErrDecode, i)
		}
		b := f.Image.Bounds()
		if b.Dx() != w || b.Dy() != h {
			return fmt.Errorf("%w: frame %d is %dx%d, want %dx%d", errs.ErrDecode, i, b.Dx(), b.Dy(), w, h)
		}
	}
	return nil
}

// ExtractFile reads path and extracts it by its extension.
func ExtractFile(path string, opts Options) (*Animation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrIO, err)
	}
	return Extract(data, filepath.Ext(path), opts)
}

// Extract decodes every frame of data. ext selects the container.
func Extract(data []byte, ext string, opts Options) (*Animation, error) {
	log := logger.Scope("frames")
	if opts.Delay <= 0 {
		opts.Delay = cfg.FrameDelayMs
	}

	var (
		canvases []*image.NRGBA
		err      error
	)
	switch strings.ToLower(ext) {
	case cfg.ExtWebp:
		canvases, err = decodeWebp(data)
	case cfg.ExtGif:
		canvases, err = decodeGif(data)
	default:
		return nil, fmt.Errorf("%w: %q is not an animated container", errs.ErrFormat, ext)
	}
	if err != nil {
		return nil, err
	}
	if len(canvases) == 0 {
		return nil, fmt.Errorf("%w: no frames in %s", errs.ErrDecode, ext)
	}

	anim := &Animation{Frames: make([]Frame, 0, len(canvases))}
	for _, c := range canvases {
		anim.Frames = append(anim.Frames, Frame{
			Image: resize(c, opts.Width, opts.Height),
			Delay: opts.Delay,
		})
	}
	w, h := anim.Size()
	log.Debugf("extracted %d frames, %dx%d", anim.Len(), w, h)
	return anim, anim.Validate()
}

// every frame goes through the same filter so the animation stays coherent
func resize(img *image.NRGBA, w, h int) *image.NRGBA {
	if w <= 0 || h <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h && b.Min == (image.Point{}) {
		return img
	}
	return imaging.Resize(img, w, h, imaging.CatmullRom)
}

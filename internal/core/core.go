package core

import (
	"fmt"
	"time"

	"github.com/1F47E/go-stickerconv/internal/cipher"
	"github.com/1F47E/go-stickerconv/internal/encoder"
	"github.com/1F47E/go-stickerconv/internal/frames"
	"github.com/1F47E/go-stickerconv/internal/pngopt"
	"github.com/1F47E/go-stickerconv/internal/quantize"
	cfg "github.com/1F47E/go-stickerconv/pkg/config"
)

type Core struct {
	opts    cfg.Options
	scheme  cipher.Scheme
	encoder *encoder.FrameEncoder
}

func NewCore(opts cfg.Options) *Core {
	return &Core{
		opts:   opts,
		scheme: cipher.Kakao(),
		encoder: encoder.NewFrameEncoder(encoder.Options{
			Optimize: opts.Optimize.Enabled,
			PNG: pngopt.Options{
				Brute:         opts.Optimize.Brute,
				OptimizeAlpha: opts.Optimize.OptimizeAlpha,
				Strip:         pngopt.Strip(opts.Optimize.Strip),
			},
		}),
	}
}

// Result reports one transcoded asset.
type Result struct {
	Source   string
	Output   string // empty unless an apng was written
	Stage    string // failed stage, empty on success
	Frames   int
	Colors   int
	Quality  int
	Bytes    int64
	Checksum string // of the output file
	Skipped  bool   // not an animated asset, left as is
	Elapsed  time.Duration
	Err      error
}

func (r Result) OK() bool {
	return r.Err == nil
}

func (r Result) Print() string {
	switch {
	case r.Err != nil:
		return fmt.Sprintf("%s: failed: %v", r.Source, r.Err)
	case r.Skipped:
		return fmt.Sprintf("%s: skipped", r.Source)
	}
	return fmt.Sprintf("%s -> %s: %d frames, %d colors, %d bytes, took %s", r.Source, r.Output, r.Frames, r.Colors, r.Bytes, r.Elapsed.Round(time.Millisecond))
}

func (c *Core) frameOptions() frames.Options {
	return frames.Options{
		Width:  c.opts.Frame.Width,
		Height: c.opts.Frame.Height,
		Delay:  c.opts.Frame.Delay,
	}
}

func (c *Core) quantizeOptions() quantize.Options {
	return quantize.Options{
		Colors:     c.opts.Compression.Color,
		QualityMin: c.opts.Compression.QualityMin,
		QualityMax: c.opts.Compression.QualityMax,
		Dither:     c.opts.Compression.Dither,
	}
}

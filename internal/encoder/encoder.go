package encoder

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"time"

	"github.com/1F47E/go-stickerconv/internal/apng"
	"github.com/1F47E/go-stickerconv/internal/errs"
	"github.com/1F47E/go-stickerconv/internal/pngopt"
	"github.com/1F47E/go-stickerconv/internal/quantize"
	"github.com/1F47E/go-stickerconv/internal/storage"
	"github.com/1F47E/go-stickerconv/pkg/logger"
)

type Options struct {
	Optimize bool
	PNG      pngopt.Options
}

func DefaultOptions() Options {
	return Options{Optimize: true, PNG: pngopt.DefaultOptions()}
}

type FrameEncoder struct {
	opts Options
}

func NewFrameEncoder(opts Options) *FrameEncoder {
	return &FrameEncoder{opts: opts}
}

// EncodeFrame writes img as a standalone png. The palette is written in the
// order it has, so frames sharing a palette get identical PLTE chunks.
func (f *FrameEncoder) EncodeFrame(img *image.Paletted) ([]byte, error) {
	level := png.BestCompression
	if f.opts.Optimize {
		// the optimizer redoes compression anyway
		level = png.BestSpeed
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: level}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: png: %v", errs.ErrEncode, err)
	}
	if !f.opts.Optimize {
		return buf.Bytes(), nil
	}
	out, err := pngopt.Optimize(buf.Bytes(), f.opts.PNG)
	if err != nil {
		return nil, fmt.Errorf("%w: optimize: %w", errs.ErrEncode, err)
	}
	return out, nil
}

// Encode writes every frame of q into wd, joins them into an apng and
// stores it at dest. delay applies to every frame; 0 keeps the delays of q.
// It returns the size of the written file.
func (f *FrameEncoder) Encode(q *quantize.Result, delay int, dest string, wd *storage.WorkDir) (int64, error) {
	log := logger.Log.WithField("scope", "apng encoder")
	if q == nil || len(q.Frames) == 0 {
		return 0, fmt.Errorf("%w: nothing to encode", errs.ErrEncode)
	}

	now := time.Now()
	frames := make([][]byte, len(q.Frames))
	delays := make([]int, len(q.Frames))
	for i, img := range q.Frames {
		data, err := f.EncodeFrame(img)
		if err != nil {
			return 0, fmt.Errorf("frame %d: %w", i, err)
		}
		frames[i] = data
		delays[i] = delay
		if delay <= 0 && i < len(q.Delays) {
			delays[i] = q.Delays[i]
		}
		if wd != nil {
			if _, err := wd.SaveFrame(i, data); err != nil {
				return 0, err
			}
		}
		log.Debugf("frame %d: %d bytes", i, len(data))
	}

	// assemble from what landed in the work dir
	if wd != nil {
		list, err := wd.ScanFrames()
		if err != nil {
			return 0, err
		}
		if len(list) != len(frames) {
			return 0, fmt.Errorf("%w: %d frames in work dir, want %d", errs.ErrEncode, len(list), len(frames))
		}
		for i, path := range list {
			if frames[i], err = storage.ReadAsset(path); err != nil {
				return 0, err
			}
		}
	}

	out, err := apng.Assemble(frames, delays)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", errs.ErrEncode, err)
	}
	if err := storage.WriteAsset(dest, out); err != nil {
		return 0, fmt.Errorf("%w: writing %s: %v", errs.ErrEncode, dest, err)
	}
	log.Debugf("apng %s: %d frames, %d bytes, took %s", dest, len(frames), len(out), time.Since(now))
	return int64(len(out)), nil
}

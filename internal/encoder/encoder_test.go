package encoder

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1F47E/go-stickerconv/internal/apng"
	"github.com/1F47E/go-stickerconv/internal/errs"
	"github.com/1F47E/go-stickerconv/internal/frames"
	"github.com/1F47E/go-stickerconv/internal/quantize"
	"github.com/1F47E/go-stickerconv/internal/storage"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	m := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(m.Pix); i += 4 {
		m.Pix[i], m.Pix[i+1], m.Pix[i+2], m.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return m
}

func quantized(t *testing.T, cols ...color.NRGBA) *quantize.Result {
	t.Helper()
	anim := &frames.Animation{}
	for _, c := range cols {
		anim.Frames = append(anim.Frames, frames.Frame{Image: solid(8, 8, c), Delay: 100})
	}
	q, err := quantize.Quantize(anim, quantize.DefaultOptions())
	require.NoError(t, err)
	return q
}

func TestEncodeFrameKeepsPalette(t *testing.T) {
	pal := color.Palette{
		color.NRGBA{0, 0, 255, 255},
		color.NRGBA{0, 0, 0, 0},
		color.NRGBA{255, 0, 0, 255},
	}
	img := image.NewPaletted(image.Rect(0, 0, 5, 5), pal)
	for i := range img.Pix {
		img.Pix[i] = uint8(i % 3)
	}

	for _, optimize := range []bool{true, false} {
		opts := DefaultOptions()
		opts.Optimize = optimize
		data, err := NewFrameEncoder(opts).EncodeFrame(img)
		require.NoError(t, err)

		got, err := png.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		p, ok := got.(*image.Paletted)
		require.True(t, ok, "optimize=%v", optimize)
		require.GreaterOrEqual(t, len(p.Palette), len(pal))
		for i, c := range pal {
			assert.Equal(t, color.NRGBAModel.Convert(c), color.NRGBAModel.Convert(p.Palette[i]))
		}
		assert.Equal(t, img.Pix, p.Pix)
	}
}

func TestEncode(t *testing.T) {
	dir := t.TempDir()
	wd, err := storage.NewWorkDir(dir, "s")
	require.NoError(t, err)
	defer wd.Remove()

	q := quantized(t,
		color.NRGBA{255, 0, 0, 255},
		color.NRGBA{0, 255, 0, 255},
		color.NRGBA{0, 0, 255, 255},
	)
	dest := filepath.Join(dir, "s.apng")
	n, err := NewFrameEncoder(DefaultOptions()).Encode(q, 100, dest, wd)
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), n)

	split, err := apng.Split(data)
	require.NoError(t, err)
	require.Len(t, split, 3)
	want := []color.NRGBA{{255, 0, 0, 255}, {0, 255, 0, 255}, {0, 0, 255, 255}}
	for i, f := range split {
		assert.Equal(t, 100, f.Delay)
		img, err := png.Decode(bytes.NewReader(f.Data))
		require.NoError(t, err)
		assert.Equal(t, want[i], color.NRGBAModel.Convert(img.At(3, 3)))
	}

	list, err := wd.ScanFrames()
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestEncodeKeepsResultDelays(t *testing.T) {
	q := quantized(t, color.NRGBA{255, 0, 0, 255}, color.NRGBA{0, 0, 255, 255})
	q.Delays = []int{40, 80}
	dest := filepath.Join(t.TempDir(), "d.apng")
	_, err := NewFrameEncoder(DefaultOptions()).Encode(q, 0, dest, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	split, err := apng.Split(data)
	require.NoError(t, err)
	assert.Equal(t, 40, split[0].Delay)
	assert.Equal(t, 80, split[1].Delay)
}

func TestEncodeErrors(t *testing.T) {
	enc := NewFrameEncoder(DefaultOptions())

	_, err := enc.Encode(&quantize.Result{}, 100, filepath.Join(t.TempDir(), "x.apng"), nil)
	assert.ErrorIs(t, err, errs.ErrEncode)

	// frames that do not share a palette cannot form one animation
	a := quantized(t, color.NRGBA{255, 0, 0, 255}, color.NRGBA{0, 255, 0, 255})
	b := quantized(t, color.NRGBA{9, 9, 9, 255}, color.NRGBA{200, 100, 0, 255})
	mixed := &quantize.Result{Frames: []*image.Paletted{a.Frames[0], b.Frames[0]}}
	_, err = enc.Encode(mixed, 100, filepath.Join(t.TempDir(), "x.apng"), nil)
	assert.ErrorIs(t, err, errs.ErrEncode)
	assert.ErrorIs(t, err, apng.ErrMismatch)

	q := quantized(t, color.NRGBA{255, 0, 0, 255})
	_, err = enc.Encode(q, 100, filepath.Join(t.TempDir(), "missing", "x.apng"), nil)
	assert.ErrorIs(t, err, errs.ErrEncode)
}

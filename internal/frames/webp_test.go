package frames

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/webp"

	"github.com/1F47E/go-stickerconv/internal/errs"
)

// testdata/anim.webp is a 400x301 canvas holding the untouched bitstreams of
// gopher.lossless.webp (VP8L, 75x100 at 0,0) and rose.lossy-alpha.webp
// (ALPH + VP8, full canvas), both without blending.
func decodeTestdata(t *testing.T, name string) image.Image {
	t.Helper()
	f, err := os.Open(filepath.Join("testdata", name))
	require.NoError(t, err)
	defer f.Close()
	img, err := webp.Decode(f)
	require.NoError(t, err)
	return img
}

// sameOpaque compares alpha everywhere and color where the reference is opaque.
func sameOpaque(t *testing.T, want image.Image, got *image.NRGBA, r image.Rectangle) (opaque, clear int) {
	t.Helper()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			w := color.NRGBAModel.Convert(want.At(x, y)).(color.NRGBA)
			g := got.NRGBAAt(x, y)
			require.Equal(t, w.A, g.A, "alpha at %d,%d", x, y)
			switch w.A {
			case 0xff:
				require.Equal(t, w, g, "pixel at %d,%d", x, y)
				opaque++
			case 0:
				clear++
			}
		}
	}
	return opaque, clear
}

func TestExtractWebpRealBitstreams(t *testing.T) {
	anim, err := ExtractFile(filepath.Join("testdata", "anim.webp"), Options{})
	require.NoError(t, err)
	require.NoError(t, anim.Validate())
	require.Equal(t, 2, anim.Len())
	w, h := anim.Size()
	assert.Equal(t, 400, w)
	assert.Equal(t, 301, h)

	// lossless frame lands in its rect, the rest of the canvas stays clear
	gopher := decodeTestdata(t, "gopher.lossless.webp")
	require.Equal(t, image.Rect(0, 0, 75, 100), gopher.Bounds())
	f0 := anim.Frames[0].Image
	opaque, _ := sameOpaque(t, gopher, f0, gopher.Bounds())
	assert.Positive(t, opaque)
	assert.Equal(t, uint8(0), f0.NRGBAAt(200, 150).A)
	assert.Equal(t, uint8(0), f0.NRGBAAt(399, 300).A)

	// lossy frame keeps its ALPH plane
	rose := decodeTestdata(t, "rose.lossy-alpha.webp")
	require.Equal(t, image.Rect(0, 0, 400, 301), rose.Bounds())
	opaque, clear := sameOpaque(t, rose, anim.Frames[1].Image, rose.Bounds())
	assert.Positive(t, opaque)
	assert.Positive(t, clear)
}

func TestExtractWebpStill(t *testing.T) {
	for _, name := range []string{"gopher.lossless.webp", "rose.lossy-alpha.webp"} {
		t.Run(name, func(t *testing.T) {
			data, err := os.ReadFile(filepath.Join("testdata", name))
			require.NoError(t, err)
			anim, err := Extract(data, ".webp", Options{})
			require.NoError(t, err)
			require.Equal(t, 1, anim.Len())

			want := decodeTestdata(t, name)
			sameOpaque(t, want, anim.Frames[0].Image, want.Bounds())
		})
	}
}

func TestExtractFileMissing(t *testing.T) {
	_, err := ExtractFile(filepath.Join(t.TempDir(), "1.webp"), Options{})
	assert.ErrorIs(t, err, errs.ErrIO)
}

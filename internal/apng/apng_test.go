package apng

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1F47E/go-stickerconv/internal/pngopt"
)

var testPalette = color.Palette{
	color.NRGBA{0, 0, 0, 0},
	color.NRGBA{255, 0, 0, 255},
	color.NRGBA{0, 255, 0, 255},
	color.NRGBA{0, 0, 255, 255},
}

func framePNG(t *testing.T, pal color.Palette, w, h int, idx uint8) []byte {
	t.Helper()
	m := image.NewPaletted(image.Rect(0, 0, w, h), pal)
	for i := range m.Pix {
		m.Pix[i] = idx
	}
	m.Pix[0] = 0 // keep tRNS in every frame
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, m))
	return buf.Bytes()
}

func TestAssembleSplit(t *testing.T) {
	frames := [][]byte{
		framePNG(t, testPalette, 6, 4, 1),
		framePNG(t, testPalette, 6, 4, 2),
		framePNG(t, testPalette, 6, 4, 3),
	}
	out, err := Assemble(frames, []int{100, 100, 250})
	require.NoError(t, err)

	n, err := NumFrames(out)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// plain decoders show the first frame
	first, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{255, 0, 0, 255}, color.NRGBAModel.Convert(first.At(1, 1)))

	split, err := Split(out)
	require.NoError(t, err)
	require.Len(t, split, 3)
	for i, f := range split {
		want, err := png.Decode(bytes.NewReader(frames[i]))
		require.NoError(t, err)
		got, err := png.Decode(bytes.NewReader(f.Data))
		require.NoError(t, err, "frame %d", i)
		assert.True(t, pngopt.SamePixels(want, got), "frame %d", i)
		assert.Equal(t, uint8(DisposeNone), f.Dispose)
		assert.Equal(t, uint8(BlendSource), f.Blend)
	}
	assert.Equal(t, []int{100, 100, 250}, []int{split[0].Delay, split[1].Delay, split[2].Delay})
}

func TestAssembleLoopsForever(t *testing.T) {
	out, err := Assemble([][]byte{framePNG(t, testPalette, 2, 2, 1)}, []int{100})
	require.NoError(t, err)
	chunks, err := pngopt.ReadChunks(out)
	require.NoError(t, err)
	assert.Equal(t, "acTL", chunks[1].Type)
	assert.Equal(t, []byte{0, 0, 0, 1, 0, 0, 0, 0}, chunks[1].Data)
}

func TestAssembleErrors(t *testing.T) {
	other := append(color.Palette{}, testPalette...)
	other[3] = color.NRGBA{9, 9, 9, 255}

	tests := []struct {
		name   string
		frames [][]byte
		delays []int
		want   error
	}{
		{"empty", nil, nil, ErrNoFrames},
		{"size", [][]byte{framePNG(t, testPalette, 4, 4, 1), framePNG(t, testPalette, 5, 5, 1)}, []int{100, 100}, ErrMismatch},
		{"palette", [][]byte{framePNG(t, testPalette, 4, 4, 1), framePNG(t, other, 4, 4, 1)}, []int{100, 100}, ErrMismatch},
		{"delays", [][]byte{framePNG(t, testPalette, 4, 4, 1)}, []int{100, 100}, nil},
		{"not png", [][]byte{[]byte("nope")}, []int{100}, pngopt.ErrNotPNG},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Assemble(tt.frames, tt.delays)
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestSplitRejectsStill(t *testing.T) {
	_, err := Split(framePNG(t, testPalette, 2, 2, 1))
	assert.ErrorIs(t, err, ErrNotAPNG)
}

func TestFcTLDelay(t *testing.T) {
	assert.Equal(t, 100, fcTL{DelayNum: 100, DelayDen: 1000}.delayMs())
	assert.Equal(t, 100, fcTL{DelayNum: 10}.delayMs())
	assert.Equal(t, uint16(0xffff), clampU16(1<<20))
	assert.Equal(t, uint16(0), clampU16(-5))
}

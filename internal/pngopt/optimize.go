// Package pngopt recompresses png streams without touching their pixels.
package pngopt

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
)

type Strip string

const (
	StripSafe Strip = "safe"
	StripNone Strip = "none"
	StripAll  Strip = "all"
)

// chunks kept by StripSafe besides the critical ones
var safeChunks = map[string]bool{
	"tRNS": true,
	"gAMA": true,
	"cHRM": true,
	"sRGB": true,
	"iCCP": true,
	"sBIT": true,
	"cICP": true,
	"pHYs": true,
}

type Options struct {
	Brute         bool
	OptimizeAlpha bool
	Strip         Strip
}

func DefaultOptions() Options {
	return Options{Brute: true, OptimizeAlpha: true, Strip: StripSafe}
}

func (o Options) keep(typ string) bool {
	switch o.Strip {
	case StripNone:
		return true
	case StripAll:
		return typ == "tRNS"
	default:
		return safeChunks[typ]
	}
}

// Optimize re-filters and re-deflates a png. Palette data, bit depth and
// pixel values are preserved; the smaller of data and the result is returned.
// Animated and interlaced streams are returned as is.
func Optimize(data []byte, opts Options) ([]byte, error) {
	chunks, err := ReadChunks(data)
	if err != nil {
		return nil, err
	}
	hdr, err := ParseIHDR(chunks[0].Data)
	if err != nil {
		return nil, err
	}
	for _, c := range chunks {
		if c.Type == "acTL" {
			return data, nil
		}
	}
	if hdr.Interlace != 0 {
		return data, nil
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("pngopt: decode: %w", err)
	}

	rows, next, ok := scanlines(img, hdr, opts)
	if !ok {
		return data, nil
	}
	idat, err := bestIDAT(rows, bytesPerPixel(next), opts)
	if err != nil {
		return nil, err
	}

	out := assemble(chunks, hdr, next, idat, opts)
	if len(out) >= len(data) {
		return data, nil
	}

	got, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("pngopt: verify: %w", err)
	}
	if !SamePixels(img, got) {
		return nil, fmt.Errorf("pngopt: verify: pixels differ after recompression")
	}
	return out, nil
}

// bestIDAT tries every filter strategy and keeps the smallest stream
func bestIDAT(rows [][]byte, bpp int, opts Options) ([]byte, error) {
	strategies := []strategy{
		fixed(ftNone), fixed(ftSub), fixed(ftUp), fixed(ftAverage), fixed(ftPaeth),
		minSum,
	}
	if opts.Brute {
		strategies = append(strategies, newBrute().pick)
	}

	var best []byte
	for _, s := range strategies {
		z, err := deflate(filterImage(rows, bpp, s))
		if err != nil {
			return nil, fmt.Errorf("pngopt: deflate: %w", err)
		}
		if best == nil || len(z) < len(best) {
			best = z
		}
	}
	return best, nil
}

func assemble(chunks []Chunk, old, hdr IHDR, idat []byte, opts Options) []byte {
	sameColor := old.ColorType == hdr.ColorType
	var out []Chunk
	wroteIDAT := false
	for _, c := range chunks {
		switch c.Type {
		case "IHDR":
			out = append(out, Chunk{Type: "IHDR", Data: hdr.Bytes()})
		case "PLTE":
			// suggested palettes of truecolour images are dropped with the rest
			if hdr.ColorType == ColorPalette || (sameColor && opts.Strip == StripNone) {
				out = append(out, c)
			}
		case "tRNS":
			if sameColor {
				out = append(out, c)
			}
		case "IDAT":
			if !wroteIDAT {
				out = append(out, Chunk{Type: "IDAT", Data: idat})
				wroteIDAT = true
			}
		case "IEND":
			out = append(out, c)
		case "sBIT", "bKGD":
			if sameColor && opts.keep(c.Type) {
				out = append(out, c)
			}
		default:
			if !c.Critical() && opts.keep(c.Type) {
				out = append(out, c)
			}
		}
	}
	return EncodeChunks(out)
}

// scanlines returns raw rows for img and the header they are written with.
// ok is false for layouts this package leaves alone.
func scanlines(img image.Image, hdr IHDR, opts Options) ([][]byte, IHDR, bool) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	next := hdr
	rows := make([][]byte, h)

	switch m := img.(type) {
	case *image.Paletted:
		if hdr.ColorType != ColorPalette {
			return nil, hdr, false
		}
		depth := int(hdr.Depth)
		for y := 0; y < h; y++ {
			rows[y] = packIndices(m.Pix[y*m.Stride:y*m.Stride+w], depth)
		}
	case *image.NRGBA:
		if hdr.Depth != 8 {
			return nil, hdr, false
		}
		if opts.OptimizeAlpha {
			m = clearTransparent(m).(*image.NRGBA)
		}
		next.ColorType = ColorRGBA
		if m.Opaque() {
			next.ColorType = ColorRGB
		}
		for y := 0; y < h; y++ {
			src := m.Pix[y*m.Stride : y*m.Stride+4*w]
			if next.ColorType == ColorRGBA {
				rows[y] = append([]byte(nil), src...)
				continue
			}
			row := make([]byte, 0, 3*w)
			for x := 0; x < w; x++ {
				row = append(row, src[4*x:4*x+3]...)
			}
			rows[y] = row
		}
	case *image.RGBA:
		if hdr.Depth != 8 || !m.Opaque() {
			return nil, hdr, false
		}
		next.ColorType = ColorRGB
		for y := 0; y < h; y++ {
			src := m.Pix[y*m.Stride : y*m.Stride+4*w]
			row := make([]byte, 0, 3*w)
			for x := 0; x < w; x++ {
				row = append(row, src[4*x:4*x+3]...)
			}
			rows[y] = row
		}
	default:
		return nil, hdr, false
	}
	return rows, next, true
}

func packIndices(pix []byte, depth int) []byte {
	if depth == 8 {
		return append([]byte(nil), pix...)
	}
	perByte := 8 / depth
	out := make([]byte, (len(pix)+perByte-1)/perByte)
	for i, v := range pix {
		shift := uint(8 - depth*(i%perByte+1))
		out[i/perByte] |= v << shift
	}
	return out
}

func bytesPerPixel(h IHDR) int {
	channels := 1
	switch h.ColorType {
	case ColorRGB:
		channels = 3
	case ColorGrayAlpha:
		channels = 2
	case ColorRGBA:
		channels = 4
	}
	bits := channels * int(h.Depth)
	if bits < 8 {
		return 1
	}
	return bits / 8
}

// clearTransparent zeroes the colour of fully transparent NRGBA pixels.
// Other images are returned unchanged.
func clearTransparent(img image.Image) image.Image {
	m, ok := img.(*image.NRGBA)
	if !ok {
		return img
	}
	out := &image.NRGBA{Pix: append([]byte(nil), m.Pix...), Stride: m.Stride, Rect: m.Rect}
	for i := 0; i+3 < len(out.Pix); i += 4 {
		if out.Pix[i+3] == 0 {
			out.Pix[i], out.Pix[i+1], out.Pix[i+2] = 0, 0, 0
		}
	}
	return out
}

// SamePixels reports whether a and b have the same bounds and colour at
// every pixel. Fully transparent pixels compare equal whatever their colour.
func SamePixels(a, b image.Image) bool {
	if a.Bounds() != b.Bounds() {
		return false
	}
	r := a.Bounds()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if pixel(a, x, y) != pixel(b, x, y) {
				return false
			}
		}
	}
	return true
}

func pixel(m image.Image, x, y int) [4]uint32 {
	r, g, b, a := m.At(x, y).RGBA()
	if a == 0 {
		return [4]uint32{}
	}
	return [4]uint32{r, g, b, a}
}

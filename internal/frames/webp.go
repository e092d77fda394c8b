package frames

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/draw"

	"github.com/disintegration/imaging"
	"golang.org/x/image/webp"

	"github.com/1F47E/go-stickerconv/internal/errs"
	"github.com/1F47E/go-stickerconv/pkg/logger"
)

const (
	fccRIFF = "RIFF"
	fccWEBP = "WEBP"
	fccVP8  = "VP8 "
	fccVP8L = "VP8L"
	fccVP8X = "VP8X"
	fccALPH = "ALPH"
	fccANIM = "ANIM"
	fccANMF = "ANMF"

	vp8xAnimation = 1 << 1
	vp8xAlpha     = 1 << 4

	anmfDisposeBackground = 1 << 0
	anmfNoBlend           = 1 << 1
	anmfHeaderLen         = 16
)

type chunk struct {
	fourcc string
	data   []byte
}

// bitstream is the image payload of one webp frame
type bitstream struct {
	alpha    []byte // ALPH payload, only with lossy data
	data     []byte
	lossless bool
	width    int
	height   int
}

// anmf is one ANMF chunk, offsets already doubled
type anmf struct {
	x, y          int
	width, height int
	duration      int
	dispose       bool
	blend         bool
	bits          bitstream
}

// decodeFrame decodes a single webp bitstream. Swapped in tests.
var decodeFrame = func(b bitstream) (image.Image, error) {
	return webp.Decode(bytes.NewReader(wrapStill(b)))
}

func decodeWebp(data []byte) ([]*image.NRGBA, error) {
	log := logger.Scope("frames webp")

	chunks, err := readRIFF(data)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: webp has no chunks", errs.ErrDecode)
	}

	switch chunks[0].fourcc {
	case fccVP8, fccVP8L:
		img, err := decodeStill(chunks)
		if err != nil {
			return nil, err
		}
		return []*image.NRGBA{img}, nil
	case fccVP8X:
	default:
		return nil, fmt.Errorf("%w: unexpected first chunk %q", errs.ErrDecode, chunks[0].fourcc)
	}

	hdr := chunks[0].data
	if len(hdr) < 10 {
		return nil, fmt.Errorf("%w: short VP8X chunk", errs.ErrDecode)
	}
	if hdr[0]&vp8xAnimation == 0 {
		img, err := decodeStill(chunks[1:])
		if err != nil {
			return nil, err
		}
		return []*image.NRGBA{img}, nil
	}

	cw, ch := int(u24(hdr[4:]))+1, int(u24(hdr[7:]))+1
	canvas := image.NewNRGBA(image.Rect(0, 0, cw, ch))
	log.Debugf("animated webp canvas %dx%d", cw, ch)

	var out []*image.NRGBA
	var prev *anmf
	for _, c := range chunks[1:] {
		if c.fourcc != fccANMF {
			continue
		}
		fr, err := parseANMF(c.data)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", len(out), err)
		}
		if prev != nil && prev.dispose {
			clearRect(canvas, image.Rect(prev.x, prev.y, prev.x+prev.width, prev.y+prev.height))
		}

		img, err := decodeFrame(fr.bits)
		if err != nil {
			return nil, fmt.Errorf("%w: frame %d: %v", errs.ErrDecode, len(out), err)
		}
		op := draw.Src
		if fr.blend {
			op = draw.Over
		}
		r := image.Rect(fr.x, fr.y, fr.x+fr.width, fr.y+fr.height).Intersect(canvas.Bounds())
		draw.Draw(canvas, r, img, img.Bounds().Min, op)

		out = append(out, imaging.Clone(canvas))
		prev = fr
	}
	return out, nil
}

// still image, possibly with an ALPH chunk ahead of the lossy data
func decodeStill(chunks []chunk) (*image.NRGBA, error) {
	var b bitstream
	for _, c := range chunks {
		switch c.fourcc {
		case fccALPH:
			b.alpha = c.data
		case fccVP8:
			b.data = c.data
			b.width, b.height = vp8Size(c.data)
		case fccVP8L:
			b.data = c.data
			b.lossless = true
			b.width, b.height = vp8lSize(c.data)
		}
	}
	if b.data == nil {
		return nil, fmt.Errorf("%w: webp has no image data", errs.ErrDecode)
	}
	img, err := decodeFrame(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrDecode, err)
	}
	return imaging.Clone(img), nil
}

func parseANMF(p []byte) (*anmf, error) {
	if len(p) < anmfHeaderLen {
		return nil, fmt.Errorf("%w: short ANMF chunk", errs.ErrDecode)
	}
	fr := &anmf{
		x:        int(u24(p[0:])) * 2,
		y:        int(u24(p[3:])) * 2,
		width:    int(u24(p[6:])) + 1,
		height:   int(u24(p[9:])) + 1,
		duration: int(u24(p[12:])),
		dispose:  p[15]&anmfDisposeBackground != 0,
		blend:    p[15]&anmfNoBlend == 0,
	}
	subs, err := readChunks(p[anmfHeaderLen:])
	if err != nil {
		return nil, err
	}
	for _, c := range subs {
		switch c.fourcc {
		case fccALPH:
			fr.bits.alpha = c.data
		case fccVP8:
			fr.bits.data = c.data
		case fccVP8L:
			fr.bits.data = c.data
			fr.bits.lossless = true
		}
	}
	if fr.bits.data == nil {
		return nil, fmt.Errorf("%w: ANMF without image data", errs.ErrDecode)
	}
	fr.bits.width, fr.bits.height = fr.width, fr.height
	return fr, nil
}

func readRIFF(data []byte) ([]chunk, error) {
	if len(data) < 12 || string(data[0:4]) != fccRIFF || string(data[8:12]) != fccWEBP {
		return nil, fmt.Errorf("%w: not a RIFF/WEBP stream", errs.ErrDecode)
	}
	size := int(binary.LittleEndian.Uint32(data[4:8]))
	end := 8 + size
	if end > len(data) {
		// NOTE: some encoders round the riff size, trust the buffer
		end = len(data)
	}
	return readChunks(data[12:end])
}

func readChunks(p []byte) ([]chunk, error) {
	var out []chunk
	for len(p) > 0 {
		if len(p) < 8 {
			return nil, fmt.Errorf("%w: truncated chunk header", errs.ErrDecode)
		}
		n := int(binary.LittleEndian.Uint32(p[4:8]))
		if n < 0 || 8+n > len(p) {
			return nil, fmt.Errorf("%w: chunk %q overruns stream", errs.ErrDecode, string(p[0:4]))
		}
		out = append(out, chunk{fourcc: string(p[0:4]), data: p[8 : 8+n]})
		n += n & 1
		if 8+n > len(p) {
			break
		}
		p = p[8+n:]
	}
	return out, nil
}

// wrapStill builds a standalone webp file around one frame bitstream so the
// still decoder can read it.
func wrapStill(b bitstream) []byte {
	var body bytes.Buffer
	body.WriteString(fccWEBP)
	switch {
	case b.lossless:
		writeChunk(&body, fccVP8L, b.data)
	case b.alpha != nil:
		x := make([]byte, 10)
		x[0] = vp8xAlpha
		putU24(x[4:], uint32(b.width-1))
		putU24(x[7:], uint32(b.height-1))
		writeChunk(&body, fccVP8X, x)
		writeChunk(&body, fccALPH, b.alpha)
		writeChunk(&body, fccVP8, b.data)
	default:
		writeChunk(&body, fccVP8, b.data)
	}

	out := make([]byte, 8, 8+body.Len())
	copy(out, fccRIFF)
	binary.LittleEndian.PutUint32(out[4:], uint32(body.Len()))
	return append(out, body.Bytes()...)
}

func writeChunk(w *bytes.Buffer, fourcc string, data []byte) {
	var hdr [8]byte
	copy(hdr[:4], fourcc)
	binary.LittleEndian.PutUint32(hdr[4:], uint32(len(data)))
	w.Write(hdr[:])
	w.Write(data)
	if len(data)&1 == 1 {
		w.WriteByte(0)
	}
}

// vp8 keyframe header: 3 byte tag, 3 byte start code, 14 bit sizes
func vp8Size(p []byte) (int, int) {
	if len(p) < 10 {
		return 0, 0
	}
	w := int(binary.LittleEndian.Uint16(p[6:8]) & 0x3fff)
	h := int(binary.LittleEndian.Uint16(p[8:10]) & 0x3fff)
	return w, h
}

// vp8l header: signature byte then 14 bit width-1 and height-1
func vp8lSize(p []byte) (int, int) {
	if len(p) < 5 {
		return 0, 0
	}
	bits := binary.LittleEndian.Uint32(p[1:5])
	return int(bits&0x3fff) + 1, int(bits>>14&0x3fff) + 1
}

func clearRect(img *image.NRGBA, r image.Rectangle) {
	draw.Draw(img, r.Intersect(img.Bounds()), image.Transparent, image.Point{}, draw.Src)
}

func u24(p []byte) uint32 {
	return uint32(p[0]) | uint32(p[1])<<8 | uint32(p[2])<<16
}

func putU24(p []byte, v uint32) {
	p[0] = byte(v)
	p[1] = byte(v >> 8)
	p[2] = byte(v >> 16)
}

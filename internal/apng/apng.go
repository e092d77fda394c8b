// Package apng joins single-image png streams into an animated png and
// splits them apart again.
package apng

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/1F47E/go-stickerconv/internal/pngopt"
)

const (
	DisposeNone       = 0
	DisposeBackground = 1
	DisposePrevious   = 2

	BlendSource = 0
	BlendOver   = 1
)

var (
	ErrMismatch = errors.New("apng: frames do not share header")
	ErrNoFrames = errors.New("apng: no frames")
	ErrNotAPNG  = errors.New("apng: missing acTL")
)

type Frame struct {
	Data    []byte // standalone png
	Delay   int    // ms
	Dispose uint8
	Blend   uint8
}

// frame-constant chunks that every input must agree on
var shared = []string{"IHDR", "PLTE", "tRNS"}

// Assemble builds an endlessly looping apng. Each frame is shown for its
// delay, disposed to none and blended as source.
func Assemble(frames [][]byte, delays []int) ([]byte, error) {
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	if len(delays) != len(frames) {
		return nil, fmt.Errorf("apng: %d delays for %d frames", len(delays), len(frames))
	}

	parsed := make([][]pngopt.Chunk, len(frames))
	for i, f := range frames {
		chunks, err := pngopt.ReadChunks(f)
		if err != nil {
			return nil, fmt.Errorf("apng: frame %d: %w", i, err)
		}
		parsed[i] = chunks
	}
	for i := 1; i < len(parsed); i++ {
		for _, typ := range shared {
			if !bytes.Equal(find(parsed[0], typ), find(parsed[i], typ)) {
				return nil, fmt.Errorf("%w: frame %d has different %s", ErrMismatch, i, typ)
			}
		}
	}
	hdr, err := pngopt.ParseIHDR(parsed[0][0].Data)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(pngopt.Signature)
	seq := uint32(0)
	put := func(typ string, data []byte) {
		pngopt.AppendChunk(&buf, typ, data)
	}
	fctl := func(delay int) {
		put("fcTL", fcTL{
			Seq: seq, Width: uint32(hdr.Width), Height: uint32(hdr.Height),
			DelayNum: clampU16(delay), DelayDen: 1000,
			Dispose: DisposeNone, Blend: BlendSource,
		}.bytes())
		seq++
	}

	wroteFrames := false
	for _, c := range parsed[0] {
		switch c.Type {
		case "IHDR":
			put(c.Type, c.Data)
			put("acTL", acTL(uint32(len(frames)), 0))
		case "IDAT":
			if wroteFrames {
				continue
			}
			fctl(delays[0])
			for _, d := range idats(parsed[0]) {
				put("IDAT", d)
			}
			for i := 1; i < len(parsed); i++ {
				fctl(delays[i])
				for _, d := range idats(parsed[i]) {
					body := make([]byte, 4+len(d))
					binary.BigEndian.PutUint32(body, seq)
					copy(body[4:], d)
					put("fdAT", body)
					seq++
				}
			}
			wroteFrames = true
		case "acTL", "fcTL", "fdAT":
		default:
			put(c.Type, c.Data)
		}
	}
	return buf.Bytes(), nil
}

// Split returns the animation frames of an apng as standalone png streams.
// A default image without fcTL is not part of the animation and is skipped.
func Split(data []byte) ([]Frame, error) {
	chunks, err := pngopt.ReadChunks(data)
	if err != nil {
		return nil, err
	}
	if find(chunks, "acTL") == nil {
		return nil, ErrNotAPNG
	}
	actl := find(chunks, "acTL")
	if len(actl) != 8 {
		return nil, fmt.Errorf("apng: acTL is %d bytes", len(actl))
	}
	declared := int(binary.BigEndian.Uint32(actl[:4]))

	var (
		header []pngopt.Chunk
		frames []Frame
		cur    *fcTL
		body   []pngopt.Chunk
		seq    uint32
	)
	flush := func() error {
		if cur == nil {
			return nil
		}
		if len(body) == 0 {
			return fmt.Errorf("apng: frame %d has no data", len(frames))
		}
		ihdr, err := pngopt.ParseIHDR(header[0].Data)
		if err != nil {
			return err
		}
		ihdr.Width, ihdr.Height = int(cur.Width), int(cur.Height)
		out := []pngopt.Chunk{{Type: "IHDR", Data: ihdr.Bytes()}}
		out = append(out, header[1:]...)
		out = append(out, body...)
		out = append(out, pngopt.Chunk{Type: "IEND"})
		frames = append(frames, Frame{
			Data:    pngopt.EncodeChunks(out),
			Delay:   cur.delayMs(),
			Dispose: cur.Dispose,
			Blend:   cur.Blend,
		})
		cur, body = nil, nil
		return nil
	}
	checkSeq := func(got uint32) error {
		if got != seq {
			return fmt.Errorf("apng: sequence %d, want %d", got, seq)
		}
		seq++
		return nil
	}

	for _, c := range chunks {
		switch c.Type {
		case "acTL", "IEND":
		case "fcTL":
			if err := flush(); err != nil {
				return nil, err
			}
			f, err := parseFcTL(c.Data)
			if err != nil {
				return nil, err
			}
			if err := checkSeq(f.Seq); err != nil {
				return nil, err
			}
			cur = &f
		case "IDAT":
			if cur != nil {
				body = append(body, c)
			}
		case "fdAT":
			if len(c.Data) < 4 {
				return nil, fmt.Errorf("apng: short fdAT")
			}
			if cur == nil {
				return nil, fmt.Errorf("apng: fdAT before fcTL")
			}
			if err := checkSeq(binary.BigEndian.Uint32(c.Data)); err != nil {
				return nil, err
			}
			body = append(body, pngopt.Chunk{Type: "IDAT", Data: c.Data[4:]})
		default:
			if len(frames) == 0 && cur == nil && len(body) == 0 {
				header = append(header, c)
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if len(frames) != declared {
		return nil, fmt.Errorf("apng: acTL declares %d frames, found %d", declared, len(frames))
	}
	return frames, nil
}

// NumFrames reads the frame count declared in acTL.
func NumFrames(data []byte) (int, error) {
	chunks, err := pngopt.ReadChunks(data)
	if err != nil {
		return 0, err
	}
	actl := find(chunks, "acTL")
	if len(actl) != 8 {
		return 0, ErrNotAPNG
	}
	return int(binary.BigEndian.Uint32(actl[:4])), nil
}

func find(chunks []pngopt.Chunk, typ string) []byte {
	for _, c := range chunks {
		if c.Type == typ {
			return c.Data
		}
	}
	return nil
}

func idats(chunks []pngopt.Chunk) [][]byte {
	var out [][]byte
	for _, c := range chunks {
		if c.Type == "IDAT" {
			out = append(out, c.Data)
		}
	}
	return out
}

func acTL(frames, plays uint32) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint32(b[0:], frames)
	binary.BigEndian.PutUint32(b[4:], plays)
	return b
}

type fcTL struct {
	Seq            uint32
	Width, Height  uint32
	X, Y           uint32
	DelayNum       uint16
	DelayDen       uint16
	Dispose, Blend uint8
}

func (f fcTL) bytes() []byte {
	b := make([]byte, 26)
	binary.BigEndian.PutUint32(b[0:], f.Seq)
	binary.BigEndian.PutUint32(b[4:], f.Width)
	binary.BigEndian.PutUint32(b[8:], f.Height)
	binary.BigEndian.PutUint32(b[12:], f.X)
	binary.BigEndian.PutUint32(b[16:], f.Y)
	binary.BigEndian.PutUint16(b[20:], f.DelayNum)
	binary.BigEndian.PutUint16(b[22:], f.DelayDen)
	b[24] = f.Dispose
	b[25] = f.Blend
	return b
}

func parseFcTL(b []byte) (fcTL, error) {
	if len(b) != 26 {
		return fcTL{}, fmt.Errorf("apng: fcTL is %d bytes", len(b))
	}
	return fcTL{
		Seq:      binary.BigEndian.Uint32(b[0:]),
		Width:    binary.BigEndian.Uint32(b[4:]),
		Height:   binary.BigEndian.Uint32(b[8:]),
		X:        binary.BigEndian.Uint32(b[12:]),
		Y:        binary.BigEndian.Uint32(b[16:]),
		DelayNum: binary.BigEndian.Uint16(b[20:]),
		DelayDen: binary.BigEndian.Uint16(b[22:]),
		Dispose:  b[24],
		Blend:    b[25],
	}, nil
}

// a zero denominator means hundredths of a second
func (f fcTL) delayMs() int {
	den := int(f.DelayDen)
	if den == 0 {
		den = 100
	}
	return int(f.DelayNum) * 1000 / den
}

func clampU16(v int) uint16 {
	if v < 0 {
		return 0
	}
	if v > 0xffff {
		return 0xffff
	}
	return uint16(v)
}

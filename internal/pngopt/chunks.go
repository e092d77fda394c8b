package pngopt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
)

const Signature = "\x89PNG\r\n\x1a\n"

var ErrNotPNG = errors.New("pngopt: not a png stream")

type Chunk struct {
	Type string
	Data []byte
}

// Critical reports whether the chunk is needed to decode the image at all.
func (c Chunk) Critical() bool {
	return len(c.Type) == 4 && c.Type[0]&0x20 == 0
}

// ReadChunks splits a png stream into chunks, checking every crc.
func ReadChunks(data []byte) ([]Chunk, error) {
	if len(data) < len(Signature) || string(data[:len(Signature)]) != Signature {
		return nil, ErrNotPNG
	}
	p := data[len(Signature):]
	var out []Chunk
	for len(p) > 0 {
		if len(p) < 12 {
			return nil, fmt.Errorf("pngopt: truncated chunk after %d chunks", len(out))
		}
		n := binary.BigEndian.Uint32(p[0:4])
		if uint64(n)+12 > uint64(len(p)) {
			return nil, fmt.Errorf("pngopt: chunk %q overruns stream", string(p[4:8]))
		}
		typ := string(p[4:8])
		body := p[8 : 8+n]
		crc := binary.BigEndian.Uint32(p[8+n : 12+n])
		if crc32.ChecksumIEEE(p[4:8+n]) != crc {
			return nil, fmt.Errorf("pngopt: bad crc in %q chunk", typ)
		}
		out = append(out, Chunk{Type: typ, Data: body})
		p = p[12+n:]
		if typ == "IEND" {
			break
		}
	}
	if len(out) == 0 || out[0].Type != "IHDR" {
		return nil, fmt.Errorf("pngopt: stream does not start with IHDR")
	}
	return out, nil
}

// AppendChunk appends length, type, data and crc to buf.
func AppendChunk(buf *bytes.Buffer, typ string, data []byte) {
	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[:4], uint32(len(data)))
	copy(hdr[4:], typ)
	crc := crc32.NewIEEE()
	crc.Write(hdr[4:8])
	crc.Write(data)
	var tail [4]byte
	binary.BigEndian.PutUint32(tail[:], crc.Sum32())

	buf.Write(hdr[:])
	buf.Write(data)
	buf.Write(tail[:])
}

// EncodeChunks writes a complete png stream.
func EncodeChunks(chunks []Chunk) []byte {
	var buf bytes.Buffer
	buf.WriteString(Signature)
	for _, c := range chunks {
		AppendChunk(&buf, c.Type, c.Data)
	}
	return buf.Bytes()
}

type IHDR struct {
	Width, Height int
	Depth         uint8
	ColorType     uint8
	Interlace     uint8
}

const (
	ColorGray      = 0
	ColorRGB       = 2
	ColorPalette   = 3
	ColorGrayAlpha = 4
	ColorRGBA      = 6
)

func ParseIHDR(data []byte) (IHDR, error) {
	if len(data) != 13 {
		return IHDR{}, fmt.Errorf("pngopt: IHDR is %d bytes", len(data))
	}
	return IHDR{
		Width:     int(binary.BigEndian.Uint32(data[0:4])),
		Height:    int(binary.BigEndian.Uint32(data[4:8])),
		Depth:     data[8],
		ColorType: data[9],
		Interlace: data[12],
	}, nil
}

func (h IHDR) Bytes() []byte {
	b := make([]byte, 13)
	binary.BigEndian.PutUint32(b[0:4], uint32(h.Width))
	binary.BigEndian.PutUint32(b[4:8], uint32(h.Height))
	b[8] = h.Depth
	b[9] = h.ColorType
	b[12] = h.Interlace
	return b
}

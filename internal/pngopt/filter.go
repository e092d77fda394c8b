package pngopt

import (
	"bytes"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"
)

const (
	ftNone = iota
	ftSub
	ftUp
	ftAverage
	ftPaeth
	nFilters
)

// filterRow writes the filtered form of cur into out, prefixed by the filter byte
func filterRow(out, cur, prev []byte, ft byte, bpp int) {
	out[0] = ft
	dst := out[1:]
	for i := range cur {
		var a, b, c byte
		if i >= bpp {
			a = cur[i-bpp]
			c = prev[i-bpp]
		}
		b = prev[i]
		switch ft {
		case ftNone:
			dst[i] = cur[i]
		case ftSub:
			dst[i] = cur[i] - a
		case ftUp:
			dst[i] = cur[i] - b
		case ftAverage:
			dst[i] = cur[i] - byte((int(a)+int(b))/2)
		case ftPaeth:
			dst[i] = cur[i] - paeth(a, b, c)
		}
	}
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// strategy picks a filter for row y given the candidates of every filter
type strategy func(y int, cands [][]byte) int

func fixed(ft int) strategy {
	return func(int, [][]byte) int { return ft }
}

// minSum is the usual heuristic: smallest sum of bytes read as signed
func minSum(_ int, cands [][]byte) int {
	best, bestSum := 0, -1
	for ft, row := range cands {
		sum := 0
		for _, v := range row[1:] {
			sum += abs(int(int8(v)))
		}
		if bestSum < 0 || sum < bestSum {
			best, bestSum = ft, sum
		}
	}
	return best
}

// brute compresses every candidate behind the rows already chosen and keeps
// the one that costs the fewest bytes
type brute struct {
	window []byte
	buf    bytes.Buffer
	fw     *flate.Writer
}

const bruteContext = 4

func newBrute() *brute {
	fw, _ := flate.NewWriter(nil, flate.BestCompression)
	return &brute{fw: fw}
}

func (b *brute) pick(_ int, cands [][]byte) int {
	best, bestLen := 0, -1
	for ft, row := range cands {
		b.buf.Reset()
		b.fw.Reset(&b.buf)
		b.fw.Write(b.window)
		b.fw.Write(row)
		b.fw.Close()
		if bestLen < 0 || b.buf.Len() < bestLen {
			best, bestLen = ft, b.buf.Len()
		}
	}
	b.window = append(b.window, cands[best]...)
	if keep := bruteContext * len(cands[best]); len(b.window) > keep {
		b.window = b.window[len(b.window)-keep:]
	}
	return best
}

// filterImage filters every scanline with the row choices of s
func filterImage(rows [][]byte, bpp int, s strategy) []byte {
	if len(rows) == 0 {
		return nil
	}
	width := len(rows[0])
	prev := make([]byte, width)
	cands := make([][]byte, nFilters)
	for i := range cands {
		cands[i] = make([]byte, width+1)
	}

	out := make([]byte, 0, len(rows)*(width+1))
	for y, cur := range rows {
		for ft := range cands {
			filterRow(cands[ft], cur, prev, byte(ft), bpp)
		}
		out = append(out, cands[s(y, cands)]...)
		prev = cur
	}
	return out
}

func deflate(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(raw); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

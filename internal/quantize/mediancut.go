package quantize

import (
	"image"
	"image/color"
	"math"
	"sort"
)

// entry is one distinct source colour, premultiplied, with its pixel count
type entry struct {
	c [4]float64
	n float64
}

type box struct {
	lo, hi int // entries[lo:hi]
	sse    float64
}

// buildPalette runs a median cut over the colours of img. Fully transparent
// pixels get a palette slot of their own when there is room for one.
// Splitting stops at maxColors boxes or once the mean squared error per pixel
// drops to target.
func buildPalette(img *image.NRGBA, maxColors int, target float64) color.Palette {
	entries, transparent, total := histogram(img)

	var pal color.Palette
	if transparent > 0 && (maxColors > 1 || len(entries) == 0) {
		pal = append(pal, color.RGBA{})
		maxColors--
	} else if transparent > 0 {
		entries = append(entries, entry{n: transparent})
	}
	if len(entries) == 0 || maxColors == 0 {
		return pal
	}

	boxes := []box{newBox(entries, 0, len(entries))}
	limit := target * total * 255 * 255
	for len(boxes) < maxColors {
		var sse float64
		pick := -1
		for i, b := range boxes {
			sse += b.sse
			if b.hi-b.lo > 1 && b.sse > 0 && (pick < 0 || b.sse > boxes[pick].sse) {
				pick = i
			}
		}
		if pick < 0 || sse <= limit {
			break
		}
		a, b := split(entries, boxes[pick])
		boxes[pick] = a
		boxes = append(boxes, b)
	}

	for _, b := range boxes {
		pal = append(pal, mean(entries[b.lo:b.hi]))
	}
	return pal
}

func histogram(img *image.NRGBA) ([]entry, float64, float64) {
	counts := make(map[uint32]int)
	var transparent, total float64
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		for i := 0; i+3 < len(row); i += 4 {
			total++
			if row[i+3] == 0 {
				transparent++
				continue
			}
			k := uint32(row[i])<<24 | uint32(row[i+1])<<16 | uint32(row[i+2])<<8 | uint32(row[i+3])
			counts[k]++
		}
	}

	keys := make([]uint32, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	entries := make([]entry, len(keys))
	for i, k := range keys {
		a := float64(k & 0xff)
		entries[i] = entry{
			c: [4]float64{
				float64(k>>24) * a / 255,
				float64(k>>16&0xff) * a / 255,
				float64(k>>8&0xff) * a / 255,
				a,
			},
			n: float64(counts[k]),
		}
	}
	return entries, transparent, total
}

func newBox(entries []entry, lo, hi int) box {
	m := centroid(entries[lo:hi])
	var sse float64
	for _, e := range entries[lo:hi] {
		sse += e.n * dist(e.c, m)
	}
	return box{lo: lo, hi: hi, sse: sse}
}

// split cuts b at the weighted median of its widest channel
func split(entries []entry, b box) (box, box) {
	part := entries[b.lo:b.hi]
	ch := widestChannel(part)
	sort.SliceStable(part, func(i, j int) bool { return part[i].c[ch] < part[j].c[ch] })

	var total float64
	for _, e := range part {
		total += e.n
	}
	cut := 1
	var acc float64
	for i, e := range part {
		acc += e.n
		if acc >= total/2 {
			cut = i + 1
			break
		}
	}
	if cut >= len(part) {
		cut = len(part) - 1
	}
	return newBox(entries, b.lo, b.lo+cut), newBox(entries, b.lo+cut, b.hi)
}

func widestChannel(part []entry) int {
	m := centroid(part)
	var v [4]float64
	for _, e := range part {
		for c := 0; c < 4; c++ {
			d := e.c[c] - m[c]
			v[c] += e.n * d * d
		}
	}
	best := 0
	for c := 1; c < 4; c++ {
		if v[c] > v[best] {
			best = c
		}
	}
	return best
}

func centroid(part []entry) [4]float64 {
	var s [4]float64
	var n float64
	for _, e := range part {
		for c := 0; c < 4; c++ {
			s[c] += e.c[c] * e.n
		}
		n += e.n
	}
	if n > 0 {
		for c := 0; c < 4; c++ {
			s[c] /= n
		}
	}
	return s
}

// palette entries are premultiplied, like color.RGBA
func mean(part []entry) color.RGBA {
	m := centroid(part)
	a := clamp(m[3])
	return color.RGBA{
		R: min(clamp(m[0]), a),
		G: min(clamp(m[1]), a),
		B: min(clamp(m[2]), a),
		A: a,
	}
}

func dist(a, b [4]float64) float64 {
	var d float64
	for c := 0; c < 4; c++ {
		x := a[c] - b[c]
		d += x * x
	}
	return d
}

func clamp(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

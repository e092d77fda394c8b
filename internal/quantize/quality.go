package quantize

import (
	"image"
	"math"
)

// qualityToMSE maps a 0..100 quality to the mean squared error per pixel it
// allows, colour channels scaled to 0..1 and summed.
func qualityToMSE(q int) float64 {
	if q <= 0 {
		return 1e20
	}
	if q >= 100 {
		return 0
	}
	f := float64(q)
	lowFudge := math.Max(0, 0.016/(0.001+f)-0.001)
	return lowFudge + 2.5/math.Pow(210+f, 1.2)*(100.1-f)/100
}

func mseToQuality(mse float64) int {
	for q := 100; q > 0; q-- {
		if mse <= qualityToMSE(q)+0.000001 {
			return q
		}
	}
	return 0
}

// remapError is the mean squared error between src and its paletted version,
// in the same units as qualityToMSE.
func remapError(src image.Image, pm *image.Paletted) float64 {
	b := pm.Bounds()
	if b.Empty() {
		return 0
	}
	var sum float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r0, g0, b0, a0 := src.At(x, y).RGBA()
			r1, g1, b1, a1 := pm.Palette[pm.ColorIndexAt(x, y)].RGBA()
			sum += sq(r0, r1) + sq(g0, g1) + sq(b0, b1) + sq(a0, a1)
		}
	}
	return sum / float64(b.Dx()*b.Dy())
}

func sq(a, b uint32) float64 {
	d := (float64(a) - float64(b)) / 0xffff
	return d * d
}

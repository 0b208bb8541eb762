package effect

import (
	"image"
	"math"
)

// SaturationBoost converts to HSV, multiplies the saturation channel by
// boost (clamped to the channel maximum), and converts back.
func SaturationBoost(src *image.RGBA, boost float64) *image.RGBA {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := newRGBA(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			si := src.PixOffset(x, y)
			hue, sat, val := rgbToHSV(src.Pix[si], src.Pix[si+1], src.Pix[si+2])
			sat *= boost
			if sat > 1 {
				sat = 1
			}
			r, g, b := hsvToRGB(hue, sat, val)
			oi := dst.PixOffset(x, y)
			dst.Pix[oi] = r
			dst.Pix[oi+1] = g
			dst.Pix[oi+2] = b
			dst.Pix[oi+3] = 255
		}
	}
	return dst
}

// Posterize quantizes each channel to levels evenly spaced values:
// v -> (v/step)*step + step/2.
func Posterize(src *image.RGBA, levels int) *image.RGBA {
	if levels < 2 {
		levels = 2
	}
	step := 256 / levels
	if step < 1 {
		step = 1
	}

	var table [256]uint8
	for v := 0; v < 256; v++ {
		q := (v/step)*step + step/2
		if q > 255 {
			q = 255
		}
		table[v] = uint8(q)
	}

	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := newRGBA(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			si := src.PixOffset(x, y)
			oi := dst.PixOffset(x, y)
			dst.Pix[oi] = table[src.Pix[si]]
			dst.Pix[oi+1] = table[src.Pix[si+1]]
			dst.Pix[oi+2] = table[src.Pix[si+2]]
			dst.Pix[oi+3] = 255
		}
	}
	return dst
}

// rgbToHSV returns hue in degrees [0,360), saturation and value in [0,1].
func rgbToHSV(r8, g8, b8 uint8) (float64, float64, float64) {
	r := float64(r8) / 255
	g := float64(g8) / 255
	b := float64(b8) / 255

	maxC := r
	if g > maxC {
		maxC = g
	}
	if b > maxC {
		maxC = b
	}
	minC := r
	if g < minC {
		minC = g
	}
	if b < minC {
		minC = b
	}

	val := maxC
	delta := maxC - minC

	var sat float64
	if maxC > 0 {
		sat = delta / maxC
	}

	var hue float64
	if delta > 0 {
		switch maxC {
		case r:
			hue = 60 * ((g - b) / delta)
		case g:
			hue = 60 * (2 + (b-r)/delta)
		default:
			hue = 60 * (4 + (r-g)/delta)
		}
		if hue < 0 {
			hue += 360
		}
	}
	return hue, sat, val
}

func hsvToRGB(hue, sat, val float64) (uint8, uint8, uint8) {
	c := val * sat
	hp := hue / 60
	xv := c * (1 - math.Abs(math.Mod(hp, 2)-1))
	m := val - c

	var r, g, b float64
	switch {
	case hp < 1:
		r, g, b = c, xv, 0
	case hp < 2:
		r, g, b = xv, c, 0
	case hp < 3:
		r, g, b = 0, c, xv
	case hp < 4:
		r, g, b = 0, xv, c
	case hp < 5:
		r, g, b = xv, 0, c
	default:
		r, g, b = c, 0, xv
	}
	return clampU8((r + m) * 255), clampU8((g + m) * 255), clampU8((b + m) * 255)
}

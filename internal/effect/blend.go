package effect

import "image"

// DodgeBlend produces the pencil-sketch look: bright where the blurred layer
// closely matches the base, near-white where they diverge. The divisor is
// floored to 1 so a fully white blur never divides by zero.
func DodgeBlend(base, blur *image.Gray) *image.Gray {
	w, h := base.Rect.Dx(), base.Rect.Dy()
	dst := newGray(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g := float64(base.Pix[y*base.Stride+x])
			d := 255 - float64(blur.Pix[y*blur.Stride+x])
			if d < 1 {
				d = 1
			}
			dst.Pix[y*dst.Stride+x] = clampU8(g * 255 / d)
		}
	}
	return dst
}

// MultiplyBlend combines two color buffers by per-pixel product scaled back
// into [0,255].
func MultiplyBlend(a, b *image.RGBA) *image.RGBA {
	w, h := a.Rect.Dx(), a.Rect.Dy()
	dst := newRGBA(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			ai := a.PixOffset(x, y)
			bi := b.PixOffset(x, y)
			oi := dst.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				dst.Pix[oi+c] = uint8(int(a.Pix[ai+c]) * int(b.Pix[bi+c]) / 255)
			}
			dst.Pix[oi+3] = 255
		}
	}
	return dst
}

// AddWeighted blends wa*a + wb*b + gamma per channel. The weights are an
// artistic control and need not sum to 1.
func AddWeighted(a *image.RGBA, wa float64, b *image.RGBA, wb float64, gamma float64) *image.RGBA {
	w, h := a.Rect.Dx(), a.Rect.Dy()
	dst := newRGBA(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			ai := a.PixOffset(x, y)
			bi := b.PixOffset(x, y)
			oi := dst.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				dst.Pix[oi+c] = clampU8(wa*float64(a.Pix[ai+c]) + wb*float64(b.Pix[bi+c]) + gamma)
			}
			dst.Pix[oi+3] = 255
		}
	}
	return dst
}

// ScaleAbs applies alpha*v + beta per channel, the brightness nudge.
func ScaleAbs(src *image.RGBA, alpha, beta float64) *image.RGBA {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := newRGBA(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			si := src.PixOffset(x, y)
			oi := dst.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				dst.Pix[oi+c] = clampU8(alpha*float64(src.Pix[si+c]) + beta)
			}
			dst.Pix[oi+3] = 255
		}
	}
	return dst
}

// ApplyMask keeps color pixels where the binary mask is set and blacks out
// the rest (the bitwise-and combine of the cartoon style).
func ApplyMask(color *image.RGBA, mask *image.Gray) *image.RGBA {
	w, h := color.Rect.Dx(), color.Rect.Dy()
	dst := newRGBA(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m := mask.Pix[y*mask.Stride+x]
			si := color.PixOffset(x, y)
			oi := dst.PixOffset(x, y)
			dst.Pix[oi] = color.Pix[si] & m
			dst.Pix[oi+1] = color.Pix[si+1] & m
			dst.Pix[oi+2] = color.Pix[si+2] & m
			dst.Pix[oi+3] = 255
		}
	}
	return dst
}

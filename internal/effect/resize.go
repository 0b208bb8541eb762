package effect

import (
	"image"
	"math"
)

// ResizeIfOversized downscales proportionally so the longer side equals cap
// when max(h, w) exceeds it, using area averaging for quality when
// shrinking. It never upscales and preserves aspect ratio to within one
// pixel of rounding. Images already within the cap are returned as a copy.
func ResizeIfOversized(src *image.RGBA, cap int) *image.RGBA {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	longer := w
	if h > longer {
		longer = h
	}
	if cap <= 0 || longer <= cap {
		return cloneRGBA(src)
	}

	scale := float64(cap) / float64(longer)
	newW := int(math.Round(float64(w) * scale))
	newH := int(math.Round(float64(h) * scale))
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}
	return resizeArea(src, newW, newH)
}

// resizeArea averages each destination pixel over its footprint in the
// source, weighting partially covered rows and columns by their overlap.
func resizeArea(src *image.RGBA, newW, newH int) *image.RGBA {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := newRGBA(newW, newH)

	xRatio := float64(w) / float64(newW)
	yRatio := float64(h) / float64(newH)

	for dy := 0; dy < newH; dy++ {
		srcY0 := float64(dy) * yRatio
		srcY1 := float64(dy+1) * yRatio
		for dx := 0; dx < newW; dx++ {
			srcX0 := float64(dx) * xRatio
			srcX1 := float64(dx+1) * xRatio

			var sumR, sumG, sumB, area float64
			for sy := int(srcY0); sy < int(math.Ceil(srcY1)) && sy < h; sy++ {
				rowCover := cover(float64(sy), float64(sy+1), srcY0, srcY1)
				if rowCover <= 0 {
					continue
				}
				for sx := int(srcX0); sx < int(math.Ceil(srcX1)) && sx < w; sx++ {
					colCover := cover(float64(sx), float64(sx+1), srcX0, srcX1)
					if colCover <= 0 {
						continue
					}
					weight := rowCover * colCover
					i := src.PixOffset(sx, sy)
					sumR += weight * float64(src.Pix[i])
					sumG += weight * float64(src.Pix[i+1])
					sumB += weight * float64(src.Pix[i+2])
					area += weight
				}
			}

			i := dst.PixOffset(dx, dy)
			dst.Pix[i] = clampU8(sumR / area)
			dst.Pix[i+1] = clampU8(sumG / area)
			dst.Pix[i+2] = clampU8(sumB / area)
			dst.Pix[i+3] = 255
		}
	}
	return dst
}

// cover returns the overlap length of [a0,a1) with [b0,b1).
func cover(a0, a1, b0, b1 float64) float64 {
	lo := a0
	if b0 > lo {
		lo = b0
	}
	hi := a1
	if b1 < hi {
		hi = b1
	}
	if hi <= lo {
		return 0
	}
	return hi - lo
}

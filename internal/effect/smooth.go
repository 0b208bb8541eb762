package effect

import (
	"image"
	"math"
)

// MedianBlurGray replaces each pixel with the median of its k×k
// neighborhood. k must be odd; borders replicate.
func MedianBlurGray(src *image.Gray, k int) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := newGray(w, h)
	radius := k / 2
	half := (k*k + 1) / 2

	var hist [256]int
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for i := range hist {
				hist[i] = 0
			}
			for dy := -radius; dy <= radius; dy++ {
				sy := clampCoord(y+dy, h)
				row := sy * src.Stride
				for dx := -radius; dx <= radius; dx++ {
					sx := clampCoord(x+dx, w)
					hist[src.Pix[row+sx]]++
				}
			}
			dst.Pix[y*dst.Stride+x] = medianFromHist(&hist, half)
		}
	}
	return dst
}

// MedianBlurRGBA applies an independent k×k median to each color channel.
func MedianBlurRGBA(src *image.RGBA, k int) *image.RGBA {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := newRGBA(w, h)
	radius := k / 2
	half := (k*k + 1) / 2

	var hist [3][256]int
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for c := 0; c < 3; c++ {
				for i := range hist[c] {
					hist[c][i] = 0
				}
			}
			for dy := -radius; dy <= radius; dy++ {
				sy := clampCoord(y+dy, h)
				for dx := -radius; dx <= radius; dx++ {
					sx := clampCoord(x+dx, w)
					i := src.PixOffset(sx, sy)
					hist[0][src.Pix[i]]++
					hist[1][src.Pix[i+1]]++
					hist[2][src.Pix[i+2]]++
				}
			}
			i := dst.PixOffset(x, y)
			dst.Pix[i] = medianFromHist(&hist[0], half)
			dst.Pix[i+1] = medianFromHist(&hist[1], half)
			dst.Pix[i+2] = medianFromHist(&hist[2], half)
			dst.Pix[i+3] = 255
		}
	}
	return dst
}

func medianFromHist(hist *[256]int, half int) uint8 {
	count := 0
	for v := 0; v < 256; v++ {
		count += hist[v]
		if count >= half {
			return uint8(v)
		}
	}
	return 255
}

// GaussianBlurGray blurs with a separable k×k Gaussian kernel. sigma <= 0
// derives sigma from the kernel size the way the classic vision libraries do.
func GaussianBlurGray(src *image.Gray, k int, sigma float64) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	kernel := gaussianKernel(k, sigma)
	radius := k / 2

	tmp := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum := 0.0
			for t := -radius; t <= radius; t++ {
				sx := clampCoord(x+t, w)
				sum += kernel[t+radius] * float64(src.Pix[y*src.Stride+sx])
			}
			tmp[y*w+x] = sum
		}
	}

	dst := newGray(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum := 0.0
			for t := -radius; t <= radius; t++ {
				sy := clampCoord(y+t, h)
				sum += kernel[t+radius] * tmp[sy*w+x]
			}
			dst.Pix[y*dst.Stride+x] = clampU8(sum)
		}
	}
	return dst
}

func gaussianKernel(k int, sigma float64) []float64 {
	if sigma <= 0 {
		sigma = 0.3*(float64(k-1)*0.5-1) + 0.8
	}
	radius := k / 2
	kernel := make([]float64, k)
	sum := 0.0
	for t := -radius; t <= radius; t++ {
		v := math.Exp(-float64(t*t) / (2 * sigma * sigma))
		kernel[t+radius] = v
		sum += v
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// BilateralFilter is the edge-preserving blur used to flatten color regions.
// d is the pixel neighborhood diameter; sigmaColor controls how dissimilar
// colors may be and still mix; sigmaSpace weights by distance. Styles that
// need heavy flattening run several passes instead of one large kernel, which
// flattens more while keeping edges.
func BilateralFilter(src *image.RGBA, d int, sigmaColor, sigmaSpace float64) *image.RGBA {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := newRGBA(w, h)
	radius := d / 2
	if radius < 1 {
		radius = 1
	}

	// L1 color distance table: three channels, max 3*255.
	colorWeight := make([]float64, 3*256)
	gaussColor := -0.5 / (sigmaColor * sigmaColor)
	for i := range colorWeight {
		colorWeight[i] = math.Exp(gaussColor * float64(i) * float64(i))
	}

	side := 2*radius + 1
	spaceWeight := make([]float64, side*side)
	gaussSpace := -0.5 / (sigmaSpace * sigmaSpace)
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			dist2 := float64(dx*dx + dy*dy)
			spaceWeight[(dy+radius)*side+(dx+radius)] = math.Exp(gaussSpace * dist2)
		}
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			ci := src.PixOffset(x, y)
			cr := int(src.Pix[ci])
			cg := int(src.Pix[ci+1])
			cb := int(src.Pix[ci+2])

			var sumR, sumG, sumB, sumW float64
			for dy := -radius; dy <= radius; dy++ {
				sy := clampCoord(y+dy, h)
				for dx := -radius; dx <= radius; dx++ {
					sx := clampCoord(x+dx, w)
					ni := src.PixOffset(sx, sy)
					nr := int(src.Pix[ni])
					ng := int(src.Pix[ni+1])
					nb := int(src.Pix[ni+2])

					diff := absInt(nr-cr) + absInt(ng-cg) + absInt(nb-cb)
					weight := spaceWeight[(dy+radius)*side+(dx+radius)] * colorWeight[diff]
					sumR += weight * float64(nr)
					sumG += weight * float64(ng)
					sumB += weight * float64(nb)
					sumW += weight
				}
			}

			oi := dst.PixOffset(x, y)
			dst.Pix[oi] = clampU8(sumR / sumW)
			dst.Pix[oi+1] = clampU8(sumG / sumW)
			dst.Pix[oi+2] = clampU8(sumB / sumW)
			dst.Pix[oi+3] = 255
		}
	}
	return dst
}

// EdgePreservingSmooth is the single parametrized smoothing operator behind
// the painterly styles: sigmaS sets the spatial extent, sigmaR the color
// range sensitivity in [0,1]. Internally it iterates a modest bilateral
// kernel rather than running one huge pass.
func EdgePreservingSmooth(src *image.RGBA, sigmaS, sigmaR float64) *image.RGBA {
	passes := int(math.Round(sigmaS / 20))
	if passes < 1 {
		passes = 1
	}
	if passes > 5 {
		passes = 5
	}
	sigmaColor := sigmaR * 255
	if sigmaColor < 1 {
		sigmaColor = 1
	}

	out := src
	for i := 0; i < passes; i++ {
		out = BilateralFilter(out, 9, sigmaColor, sigmaS)
	}
	if out == src {
		out = cloneRGBA(src)
	}
	return out
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

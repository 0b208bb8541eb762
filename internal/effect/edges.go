package effect

import "image"

// AdaptiveMeanThreshold produces a binary edge mask: a pixel stays white when
// its value exceeds the mean of its blockSize×blockSize neighborhood minus c.
// blockSize must be odd. Borders replicate via window clipping.
func AdaptiveMeanThreshold(src *image.Gray, blockSize int, c float64) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := newGray(w, h)
	radius := blockSize / 2

	// Summed-area table, one row/col of zero padding.
	integral := make([]int64, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		var rowSum int64
		for x := 0; x < w; x++ {
			rowSum += int64(src.Pix[y*src.Stride+x])
			integral[(y+1)*(w+1)+(x+1)] = integral[y*(w+1)+(x+1)] + rowSum
		}
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			x0 := clampCoord(x-radius, w)
			y0 := clampCoord(y-radius, h)
			x1 := clampCoord(x+radius, w)
			y1 := clampCoord(y+radius, h)

			area := int64((x1 - x0 + 1) * (y1 - y0 + 1))
			sum := integral[(y1+1)*(w+1)+(x1+1)] -
				integral[y0*(w+1)+(x1+1)] -
				integral[(y1+1)*(w+1)+x0] +
				integral[y0*(w+1)+x0]

			mean := float64(sum) / float64(area)
			if float64(src.Pix[y*src.Stride+x]) > mean-c {
				dst.Pix[y*dst.Stride+x] = 255
			}
		}
	}
	return dst
}

// GradientEdges is the sharper, sparser edge detector: Sobel gradients,
// non-maximum suppression, then two-threshold hysteresis. Pixels reachable
// from a strong edge through weak ones survive; isolated weak pixels do not.
// The returned mask is 255 on edges.
func GradientEdges(src *image.Gray, lowThreshold, highThreshold float64) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()

	gx := make([]float64, w*h)
	gy := make([]float64, w*h)
	mag := make([]float64, w*h)

	at := func(x, y int) float64 {
		return float64(src.Pix[clampCoord(y, h)*src.Stride+clampCoord(x, w)])
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sx := -at(x-1, y-1) + at(x+1, y-1) +
				-2*at(x-1, y) + 2*at(x+1, y) +
				-at(x-1, y+1) + at(x+1, y+1)
			sy := -at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1) +
				at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1)
			i := y*w + x
			gx[i] = sx
			gy[i] = sy
			mag[i] = absFloat(sx) + absFloat(sy)
		}
	}

	// Non-maximum suppression along the quantized gradient direction.
	const (
		weak   = 1
		strong = 2
	)
	marks := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			m := mag[i]
			if m < lowThreshold {
				continue
			}

			var m1, m2 float64
			ax, ay := absFloat(gx[i]), absFloat(gy[i])
			switch {
			case ax >= 2.414*ay: // ~horizontal gradient
				m1 = magAt(mag, w, h, x-1, y)
				m2 = magAt(mag, w, h, x+1, y)
			case ay >= 2.414*ax: // ~vertical gradient
				m1 = magAt(mag, w, h, x, y-1)
				m2 = magAt(mag, w, h, x, y+1)
			case gx[i]*gy[i] > 0: // diagonal
				m1 = magAt(mag, w, h, x-1, y-1)
				m2 = magAt(mag, w, h, x+1, y+1)
			default:
				m1 = magAt(mag, w, h, x-1, y+1)
				m2 = magAt(mag, w, h, x+1, y-1)
			}
			if m < m1 || m < m2 {
				continue
			}

			if m >= highThreshold {
				marks[i] = strong
			} else {
				marks[i] = weak
			}
		}
	}

	// Hysteresis: breadth-first walk from strong pixels promotes connected
	// weak pixels.
	dst := newGray(w, h)
	queue := make([]int, 0, w*h/8)
	for i, m := range marks {
		if m == strong {
			dst.Pix[(i/w)*dst.Stride+i%w] = 255
			queue = append(queue, i)
		}
	}
	for len(queue) > 0 {
		i := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		x, y := i%w, i/w
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || nx >= w || ny < 0 || ny >= h {
					continue
				}
				ni := ny*w + nx
				if marks[ni] == weak && dst.Pix[ny*dst.Stride+nx] == 0 {
					dst.Pix[ny*dst.Stride+nx] = 255
					queue = append(queue, ni)
				}
			}
		}
	}
	return dst
}

func magAt(mag []float64, w, h, x, y int) float64 {
	if x < 0 || x >= w || y < 0 || y >= h {
		return 0
	}
	return mag[y*w+x]
}

// Dilate3 grows a binary mask by one pixel with a 3×3 structuring element.
func Dilate3(src *image.Gray) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := newGray(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var maxV uint8
			for dy := -1; dy <= 1; dy++ {
				sy := clampCoord(y+dy, h)
				for dx := -1; dx <= 1; dx++ {
					sx := clampCoord(x+dx, w)
					if v := src.Pix[sy*src.Stride+sx]; v > maxV {
						maxV = v
					}
				}
			}
			dst.Pix[y*dst.Stride+x] = maxV
		}
	}
	return dst
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

package effect

import (
	"image"
	"math"
	"math/rand/v2"
)

const (
	quantizeMaxIterations = 20
	quantizeEpsilon       = 1.0
)

// Quantize clusters the pixel colors into k centers with k-means over RGB
// and replaces each pixel by its assigned center. Initialization picks
// random pixels as seeds, so two runs on identical input may differ slightly
// in exact center values; the cluster structure is stable. Iteration stops
// after a fixed budget or once every center moves less than epsilon.
func Quantize(src *image.RGBA, k int) *image.RGBA {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	n := w * h
	if k < 2 {
		k = 2
	}
	if k > n {
		k = n
	}

	pixels := make([][3]float64, n)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := src.PixOffset(x, y)
			pixels[y*w+x] = [3]float64{
				float64(src.Pix[i]),
				float64(src.Pix[i+1]),
				float64(src.Pix[i+2]),
			}
		}
	}

	centers := make([][3]float64, k)
	for i := range centers {
		centers[i] = pixels[rand.IntN(n)]
	}

	labels := make([]int, n)
	counts := make([]int, k)
	sums := make([][3]float64, k)

	for iter := 0; iter < quantizeMaxIterations; iter++ {
		for i := range counts {
			counts[i] = 0
			sums[i] = [3]float64{}
		}

		for i, p := range pixels {
			best := 0
			bestDist := math.MaxFloat64
			for c, center := range centers {
				dr := p[0] - center[0]
				dg := p[1] - center[1]
				db := p[2] - center[2]
				dist := dr*dr + dg*dg + db*db
				if dist < bestDist {
					bestDist = dist
					best = c
				}
			}
			labels[i] = best
			counts[best]++
			sums[best][0] += p[0]
			sums[best][1] += p[1]
			sums[best][2] += p[2]
		}

		maxShift := 0.0
		for c := range centers {
			if counts[c] == 0 {
				// Re-seed an empty cluster from a random pixel.
				centers[c] = pixels[rand.IntN(n)]
				maxShift = math.MaxFloat64
				continue
			}
			next := [3]float64{
				sums[c][0] / float64(counts[c]),
				sums[c][1] / float64(counts[c]),
				sums[c][2] / float64(counts[c]),
			}
			shift := math.Sqrt(
				(next[0]-centers[c][0])*(next[0]-centers[c][0]) +
					(next[1]-centers[c][1])*(next[1]-centers[c][1]) +
					(next[2]-centers[c][2])*(next[2]-centers[c][2]))
			if shift > maxShift {
				maxShift = shift
			}
			centers[c] = next
		}
		if maxShift < quantizeEpsilon {
			break
		}
	}

	dst := newRGBA(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			center := centers[labels[y*w+x]]
			i := dst.PixOffset(x, y)
			dst.Pix[i] = clampU8(center[0])
			dst.Pix[i+1] = clampU8(center[1])
			dst.Pix[i+2] = clampU8(center[2])
			dst.Pix[i+3] = 255
		}
	}
	return dst
}

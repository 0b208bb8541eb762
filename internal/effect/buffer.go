package effect

import (
	"image"
	"image/draw"
)

// Stages operate on buffers anchored at (0,0): RGBA for color, Gray for
// grayscale and edge masks. Every stage returns a fresh buffer; none retains
// a reference to its input.

func newRGBA(w, h int) *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func newGray(w, h int) *image.Gray {
	return image.NewGray(image.Rect(0, 0, w, h))
}

// ToRGBA copies an arbitrary decoded image into an RGBA buffer with its
// origin at (0,0).
func ToRGBA(src image.Image) *image.RGBA {
	bounds := src.Bounds()
	dst := newRGBA(bounds.Dx(), bounds.Dy())
	draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)
	return dst
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := newRGBA(src.Rect.Dx(), src.Rect.Dy())
	copy(dst.Pix, src.Pix)
	return dst
}

// Grayscale converts using the BT.601 luma weights.
func Grayscale(src *image.RGBA) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := newGray(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := src.PixOffset(x, y)
			r := float64(src.Pix[i])
			g := float64(src.Pix[i+1])
			b := float64(src.Pix[i+2])
			dst.Pix[dst.PixOffset(x, y)] = clampU8(0.299*r + 0.587*g + 0.114*b)
		}
	}
	return dst
}

// GrayToRGBA replicates a single channel across all three color channels.
func GrayToRGBA(src *image.Gray) *image.RGBA {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := newRGBA(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := src.Pix[src.PixOffset(x, y)]
			i := dst.PixOffset(x, y)
			dst.Pix[i] = v
			dst.Pix[i+1] = v
			dst.Pix[i+2] = v
			dst.Pix[i+3] = 255
		}
	}
	return dst
}

// InvertGray returns 255-v per pixel.
func InvertGray(src *image.Gray) *image.Gray {
	dst := newGray(src.Rect.Dx(), src.Rect.Dy())
	for i, v := range src.Pix {
		dst.Pix[i] = 255 - v
	}
	return dst
}

func clampU8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// clampCoord pins a coordinate into [0, n), replicating the border pixel,
// the behavior every neighborhood stage uses at image edges.
func clampCoord(v, n int) int {
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}

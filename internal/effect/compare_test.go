package effect

import (
	"image"
	"image/color"
	"testing"
)

func buildFlatRGBA(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestSideBySideGeometry(t *testing.T) {
	original := buildFlatRGBA(120, 80, color.RGBA{R: 200, G: 40, B: 40, A: 255})
	processed := buildFlatRGBA(120, 80, color.RGBA{R: 40, G: 40, B: 200, A: 255})

	out := SideBySide(original, processed)

	wantW := 2*120 + separatorWidth
	if out.Rect.Dx() != wantW || out.Rect.Dy() != 80 {
		t.Fatalf("got %dx%d, want %dx80", out.Rect.Dx(), out.Rect.Dy(), wantW)
	}

	// The separator column is solid white top to bottom.
	for y := 0; y < 80; y++ {
		for x := 120; x < 120+separatorWidth; x++ {
			c := out.RGBAAt(x, y)
			if c.R != 255 || c.G != 255 || c.B != 255 {
				t.Fatalf("separator pixel (%d,%d) = %v, want white", x, y, c)
			}
		}
	}

	// Below the label boxes each half keeps its own pixels.
	left := out.RGBAAt(10, 60)
	if left.R != 200 || left.B != 40 {
		t.Fatalf("left half pixel = %v, want original color", left)
	}
	right := out.RGBAAt(120+separatorWidth+10, 60)
	if right.R != 40 || right.B != 200 {
		t.Fatalf("right half pixel = %v, want processed color", right)
	}
}

func TestSideBySideDrawsLabels(t *testing.T) {
	original := buildFlatRGBA(200, 100, color.RGBA{A: 255})
	processed := buildFlatRGBA(200, 100, color.RGBA{A: 255})

	out := SideBySide(original, processed)

	// Both label regions contain black text on a white box, so neither corner
	// can still be solid black.
	sawWhite := false
	for y := 0; y < 13 && !sawWhite; y++ {
		for x := 0; x < 60; x++ {
			c := out.RGBAAt(x, y)
			if c.R == 255 && c.G == 255 && c.B == 255 {
				sawWhite = true
				break
			}
		}
	}
	if !sawWhite {
		t.Fatal("left label box was not drawn")
	}

	sawWhite = false
	for y := 0; y < 13 && !sawWhite; y++ {
		for x := 200 + separatorWidth; x < 200+separatorWidth+60; x++ {
			c := out.RGBAAt(x, y)
			if c.R == 255 && c.G == 255 && c.B == 255 {
				sawWhite = true
				break
			}
		}
	}
	if !sawWhite {
		t.Fatal("right label box was not drawn")
	}
}

func TestSideBySideResizesMismatchedProcessed(t *testing.T) {
	original := buildFlatRGBA(100, 50, color.RGBA{R: 10, G: 10, B: 10, A: 255})
	processed := buildFlatRGBA(50, 25, color.RGBA{R: 240, G: 240, B: 240, A: 255})

	out := SideBySide(original, processed)

	if out.Rect.Dx() != 2*100+separatorWidth || out.Rect.Dy() != 50 {
		t.Fatalf("got %dx%d, want %dx50", out.Rect.Dx(), out.Rect.Dy(), 2*100+separatorWidth)
	}
	c := out.RGBAAt(100+separatorWidth+50, 40)
	if c.R != 240 {
		t.Fatalf("processed half not resized into place: pixel = %v", c)
	}
}

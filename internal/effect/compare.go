package effect

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	separatorWidth = 5
	labelPadding   = 4
)

// SideBySide builds the before/after gallery artifact: the original on the
// left, the processed image on the right, split by a white separator and
// labeled in the top-left corner of each half. The processed half is resized
// to the original's dimensions if they drifted apart.
func SideBySide(original, processed *image.RGBA) *image.RGBA {
	w := original.Rect.Dx()
	h := original.Rect.Dy()

	if processed.Rect.Dx() != w || processed.Rect.Dy() != h {
		processed = nearestResize(processed, w, h)
	}

	out := newRGBA(2*w+separatorWidth, h)
	draw.Draw(out, image.Rect(0, 0, w, h), original, original.Rect.Min, draw.Src)
	draw.Draw(out, image.Rect(w, 0, w+separatorWidth, h), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(out, image.Rect(w+separatorWidth, 0, 2*w+separatorWidth, h), processed, processed.Rect.Min, draw.Src)

	drawLabel(out, 0, "Original")
	drawLabel(out, w+separatorWidth, "Toonified")
	return out
}

// drawLabel paints a white box with black text at the top-left of the half
// starting at x. Labels are clipped rather than scaled on tiny images.
func drawLabel(dst *image.RGBA, x int, text string) {
	face := basicfont.Face7x13
	textWidth := font.MeasureString(face, text).Ceil()

	boxW := textWidth + 2*labelPadding
	boxH := face.Height + 2*labelPadding
	box := image.Rect(x, 0, x+boxW, boxH).Intersect(dst.Rect)
	if box.Empty() {
		return
	}
	draw.Draw(dst, box, image.NewUniform(color.White), image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.Black),
		Face: face,
		Dot: fixed.P(
			x+labelPadding,
			labelPadding+face.Ascent,
		),
	}
	drawer.DrawString(text)
}

func nearestResize(src *image.RGBA, newW, newH int) *image.RGBA {
	srcW := src.Rect.Dx()
	srcH := src.Rect.Dy()
	out := newRGBA(newW, newH)

	for y := 0; y < newH; y++ {
		sy := clampCoord(y*srcH/newH, srcH)
		for x := 0; x < newW; x++ {
			sx := clampCoord(x*srcW/newW, srcW)
			si := src.PixOffset(src.Rect.Min.X+sx, src.Rect.Min.Y+sy)
			di := out.PixOffset(x, y)
			copy(out.Pix[di:di+4], src.Pix[si:si+4])
		}
	}
	return out
}

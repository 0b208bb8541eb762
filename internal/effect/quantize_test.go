package effect

import "testing"

func TestQuantizeLimitsPalette(t *testing.T) {
	src := buildGradientRGBA(t, 64, 64)
	out := Quantize(src, 8)

	colors := make(map[[3]uint8]bool)
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			i := out.PixOffset(x, y)
			colors[[3]uint8{out.Pix[i], out.Pix[i+1], out.Pix[i+2]}] = true
		}
	}

	if len(colors) > 8 {
		t.Fatalf("expected at most 8 distinct colors, got %d", len(colors))
	}
	if len(colors) < 2 {
		t.Fatalf("expected a gradient to quantize into multiple colors, got %d", len(colors))
	}
}

func TestQuantizeUniformImageStaysUniform(t *testing.T) {
	src := newRGBA(16, 16)
	for i := 0; i < len(src.Pix); i += 4 {
		src.Pix[i] = 40
		src.Pix[i+1] = 90
		src.Pix[i+2] = 200
		src.Pix[i+3] = 255
	}

	out := Quantize(src, 4)
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			i := out.PixOffset(x, y)
			if out.Pix[i] != 40 || out.Pix[i+1] != 90 || out.Pix[i+2] != 200 {
				t.Fatalf("pixel (%d,%d) drifted to (%d,%d,%d)", x, y, out.Pix[i], out.Pix[i+1], out.Pix[i+2])
			}
		}
	}
}

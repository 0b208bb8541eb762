package effect

import (
	"image"
	"testing"
)

func uniformGray(v uint8, w, h int) *image.Gray {
	img := newGray(w, h)
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func TestMedianBlurRemovesImpulseNoise(t *testing.T) {
	src := uniformGray(100, 15, 15)
	src.Pix[7*src.Stride+7] = 255

	out := MedianBlurGray(src, 3)
	if got := out.Pix[7*out.Stride+7]; got != 100 {
		t.Fatalf("expected impulse removed, got %d", got)
	}
}

func TestMedianBlurPreservesUniform(t *testing.T) {
	src := uniformGray(77, 12, 9)
	out := MedianBlurGray(src, 5)
	for i, v := range out.Pix {
		if v != 77 {
			t.Fatalf("pixel %d drifted to %d", i, v)
		}
	}
}

func TestGaussianBlurPreservesUniform(t *testing.T) {
	src := uniformGray(130, 16, 16)
	out := GaussianBlurGray(src, 7, 0)
	for i, v := range out.Pix {
		if v < 129 || v > 131 {
			t.Fatalf("pixel %d drifted to %d", i, v)
		}
	}
}

func TestGaussianBlurSoftensEdge(t *testing.T) {
	src := buildStepGray(t, 32, 8)
	out := GaussianBlurGray(src, 5, 0)

	// Immediately left of the step the blur pulls values upward.
	x := 32/2 - 1
	if got := out.Pix[4*out.Stride+x]; got <= 20 {
		t.Fatalf("expected softened edge, got %d", got)
	}
}

func TestBilateralFilterPreservesHardEdge(t *testing.T) {
	src := buildGradientRGBA(t, 24, 24)
	for y := 0; y < 24; y++ {
		for x := 0; x < 24; x++ {
			i := src.PixOffset(x, y)
			if x >= 12 {
				src.Pix[i], src.Pix[i+1], src.Pix[i+2] = 250, 250, 250
			} else {
				src.Pix[i], src.Pix[i+1], src.Pix[i+2] = 10, 10, 10
			}
		}
	}

	out := BilateralFilter(src, 9, 30, 75)

	// With a tight color sigma the two plateaus stay far apart.
	left := out.Pix[out.PixOffset(4, 12)]
	right := out.Pix[out.PixOffset(20, 12)]
	if int(right)-int(left) < 180 {
		t.Fatalf("expected edge preserved, got left=%d right=%d", left, right)
	}
}

func TestSaturationBoostLeavesGraysAlone(t *testing.T) {
	src := newRGBA(8, 8)
	for i := 0; i < len(src.Pix); i += 4 {
		src.Pix[i], src.Pix[i+1], src.Pix[i+2], src.Pix[i+3] = 120, 120, 120, 255
	}

	out := SaturationBoost(src, 2.0)
	for i := 0; i < len(out.Pix); i += 4 {
		if out.Pix[i] != 120 || out.Pix[i+1] != 120 || out.Pix[i+2] != 120 {
			t.Fatalf("gray pixel shifted to (%d,%d,%d)", out.Pix[i], out.Pix[i+1], out.Pix[i+2])
		}
	}
}

func TestPosterizeReducesLevels(t *testing.T) {
	src := buildGradientRGBA(t, 64, 8)
	out := Posterize(src, 4)

	levels := make(map[uint8]bool)
	for i := 0; i < len(out.Pix); i += 4 {
		levels[out.Pix[i]] = true
	}
	if len(levels) > 4 {
		t.Fatalf("expected at most 4 red levels, got %d", len(levels))
	}
}

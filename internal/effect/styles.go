package effect

import (
	"errors"
	"fmt"
	"image"
)

var ErrUnknownStyle = errors.New("unknown style")

const (
	StyleCartoon      = "cartoon"
	StylePencilSketch = "pencil_sketch"
	StyleColorPencil  = "color_pencil"
	StyleOilPainting  = "oil_painting"
	StyleWatercolor   = "watercolor"
	StylePopArt       = "pop_art"
)

// StyleDescriptor maps a style id to its stage composition and parameter
// schema. The table is immutable and shared read-only across all jobs.
type StyleDescriptor struct {
	ID     string
	Schema Schema
	apply  func(img *image.RGBA, p Params) *image.RGBA
}

var styleTable = map[string]StyleDescriptor{
	StyleCartoon: {
		ID: StyleCartoon,
		Schema: Schema{
			"blur_kernel_size":     {Kind: ParamInt, Default: 7, Min: 3, Max: 31, MustOdd: true},
			"threshold_block_size": {Kind: ParamInt, Default: 9, Min: 3, Max: 51, MustOdd: true},
			"threshold_c":          {Kind: ParamFloat, Default: 9, Min: 0, Max: 30},
			"bilateral_d":          {Kind: ParamInt, Default: 9, Min: 3, Max: 15},
			"bilateral_sigma":      {Kind: ParamFloat, Default: 75, Min: 10, Max: 300},
			"num_colors":           {Kind: ParamInt, Default: 8, Min: 2, Max: 32},
		},
		apply: applyCartoon,
	},
	StylePencilSketch: {
		ID: StylePencilSketch,
		Schema: Schema{
			"blur_kernel_size": {Kind: ParamInt, Default: 21, Min: 3, Max: 51, MustOdd: true},
			"invert":           {Kind: ParamBool, Default: 1},
		},
		apply: applyPencilSketch,
	},
	StyleColorPencil: {
		ID: StyleColorPencil,
		Schema: Schema{
			"blur_kernel_size": {Kind: ParamInt, Default: 21, Min: 3, Max: 51, MustOdd: true},
			"sketch_weight":    {Kind: ParamFloat, Default: 0.7, Min: 0, Max: 1},
			"color_weight":     {Kind: ParamFloat, Default: 0.3, Min: 0, Max: 1},
		},
		apply: applyColorPencil,
	},
	StyleOilPainting: {
		ID: StyleOilPainting,
		Schema: Schema{
			"sigma_s": {Kind: ParamFloat, Default: 60, Min: 1, Max: 200},
			"sigma_r": {Kind: ParamFloat, Default: 0.6, Min: 0.01, Max: 1},
		},
		apply: applyOilPainting,
	},
	StyleWatercolor: {
		ID: StyleWatercolor,
		Schema: Schema{
			"bilateral_sigma":  {Kind: ParamFloat, Default: 100, Min: 10, Max: 300},
			"blur_kernel_size": {Kind: ParamInt, Default: 7, Min: 3, Max: 31, MustOdd: true},
			"num_colors":       {Kind: ParamInt, Default: 12, Min: 2, Max: 32},
		},
		apply: applyWatercolor,
	},
	StylePopArt: {
		ID: StylePopArt,
		Schema: Schema{
			"num_colors":       {Kind: ParamInt, Default: 8, Min: 2, Max: 64},
			"saturation_boost": {Kind: ParamFloat, Default: 1.5, Min: 1, Max: 3},
		},
		apply: applyPopArt,
	},
}

// Styles lists the supported style ids.
func Styles() []string {
	out := make([]string, 0, len(styleTable))
	for id := range styleTable {
		out = append(out, id)
	}
	return out
}

// Describe resolves a style id against the static table.
func Describe(style string) (StyleDescriptor, error) {
	desc, ok := styleTable[style]
	if !ok {
		return StyleDescriptor{}, fmt.Errorf("%w: %s", ErrUnknownStyle, style)
	}
	return desc, nil
}

// Normalize validates and repairs a raw parameter map against the style's
// schema.
func Normalize(style string, raw map[string]any) (Params, error) {
	desc, err := Describe(style)
	if err != nil {
		return nil, err
	}
	return desc.Schema.Normalize(raw)
}

// Apply runs the style's stage composition over the image with normalized
// parameters. Stages are pure with respect to the pipeline: none observes
// job metadata, and the input buffer is never retained.
func Apply(style string, img *image.RGBA, p Params) (*image.RGBA, error) {
	desc, err := Describe(style)
	if err != nil {
		return nil, err
	}
	return desc.apply(img, p), nil
}

// applyCartoon: edge mask from a blurred grayscale, flattened colors from
// three bilateral passes plus k-means quantization, combined by mask.
func applyCartoon(img *image.RGBA, p Params) *image.RGBA {
	gray := Grayscale(img)
	gray = MedianBlurGray(gray, p.Int("blur_kernel_size"))
	edges := AdaptiveMeanThreshold(gray, p.Int("threshold_block_size"), p.Float("threshold_c"))

	color := img
	sigma := p.Float("bilateral_sigma")
	for i := 0; i < 3; i++ {
		color = BilateralFilter(color, p.Int("bilateral_d"), sigma, sigma)
	}
	color = Quantize(color, p.Int("num_colors"))

	return ApplyMask(color, edges)
}

func applyPencilSketch(img *image.RGBA, p Params) *image.RGBA {
	return GrayToRGBA(pencilSketchGray(img, p))
}

func pencilSketchGray(img *image.RGBA, p Params) *image.Gray {
	gray := Grayscale(img)
	inverted := InvertGray(gray)
	blurred := GaussianBlurGray(inverted, p.Int("blur_kernel_size"), 0)
	sketch := DodgeBlend(gray, blurred)
	if !p.Bool("invert") {
		sketch = InvertGray(sketch)
	}
	return sketch
}

func applyColorPencil(img *image.RGBA, p Params) *image.RGBA {
	sketchParams := Params{
		"blur_kernel_size": p["blur_kernel_size"],
		"invert":           1,
	}
	sketch := GrayToRGBA(pencilSketchGray(img, sketchParams))
	return AddWeighted(sketch, p.Float("sketch_weight"), img, p.Float("color_weight"), 0)
}

func applyOilPainting(img *image.RGBA, p Params) *image.RGBA {
	return EdgePreservingSmooth(img, p.Float("sigma_s"), p.Float("sigma_r"))
}

// applyWatercolor: five bilateral passes and a median blur flatten the
// colors, quantization reduces the palette, and a softened inverted edge
// mask darkens contours before a slight brightness lift.
func applyWatercolor(img *image.RGBA, p Params) *image.RGBA {
	sigma := p.Float("bilateral_sigma")
	result := img
	for i := 0; i < 5; i++ {
		result = BilateralFilter(result, 9, sigma, sigma)
	}
	result = MedianBlurRGBA(result, p.Int("blur_kernel_size"))
	result = Quantize(result, p.Int("num_colors"))

	gray := Grayscale(img)
	edges := GradientEdges(gray, 30, 100)
	edges = Dilate3(edges)
	edges = GaussianBlurGray(edges, 5, 0)
	overlay := GrayToRGBA(InvertGray(edges))

	result = MultiplyBlend(result, overlay)
	return ScaleAbs(result, 1.1, 10)
}

func applyPopArt(img *image.RGBA, p Params) *image.RGBA {
	boosted := SaturationBoost(img, p.Float("saturation_boost"))
	return Posterize(boosted, p.Int("num_colors"))
}

package compositor

import (
	"image/color"
	"strconv"
	"strings"

	"github.com/deckfsd/deckfsd/internal/model"
)

// LayerSpecFromEntity translates a resolved model.ImageLayer's normalized
// options into a LayerSpec, per §4.7's file/draw/color/opacity/crop/
// angles/margin/coords/fill/rotate option set.
func LayerSpecFromEntity(il *model.ImageLayer) LayerSpec {
	layer := unsetLayer
	if v, ok := il.Get("layer"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			layer = n
		}
	}

	spec := LayerSpec{
		Layer:   layer,
		ModTime: il.ModTime.UnixNano(),
		Opacity: 1,
	}

	if v, ok := il.Get("file"); ok {
		spec.FilePath = v
	} else if draw, ok := il.Get("draw"); ok {
		spec.Primitive = primitiveFromEntity(draw, il)
	}

	_, cropTuple := il.GetTuple("crop")
	spec.CropTuple = cropTuple

	if v, ok := il.Get("rotate"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			spec.Rotate = f
		}
	}

	_, marginTuple := il.GetTuple("margin")
	spec.Margin = marginTuple

	if v, ok := il.Get("color"); ok {
		spec.Colorize = parseHexColor(v)
	} else if v, ok := il.Get("colorize"); ok {
		spec.Colorize = parseHexColor(v)
	}

	if v, ok := il.Get("opacity"); ok {
		spec.Opacity = ParseOpacity(v)
	}

	return spec
}

// primitiveFromEntity builds a PrimitiveSpec from `draw=<kind>` plus its
// coords/angles/fill/stroke sibling options.
func primitiveFromEntity(kind string, il *model.ImageLayer) *PrimitiveSpec {
	coordsRaw, _ := il.GetTuple("coords")
	anglesRaw, _ := il.GetTuple("angles")
	fill, _ := il.Get("fill")
	stroke, _ := il.Get("color")
	return &PrimitiveSpec{
		Kind:   kind,
		Coords: splitTuple(coordsRaw),
		Angles: splitTuple(anglesRaw),
		Fill:   fill,
		Stroke: stroke,
	}
}

// splitTuple splits a comma-separated tuple option value into its ordered
// tokens, returning nil for an empty/absent value.
func splitTuple(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

// TextSpecFromEntity translates a resolved model.TextLine's normalized
// options into a TextSpec, per §4.7 step 5's text/font/size/color/align/
// valign/wrap/scroll/margin option set.
func TextSpecFromEntity(t *model.TextLine) TextSpec {
	spec := TextSpec{
		Color:         color.White,
		Align:         "left",
		Valign:        "top",
		Size:          "fit",
		EmojisEnabled: true,
	}
	if v, ok := t.Get("text"); ok {
		spec.Text = v
	}
	if v, ok := t.Get("size"); ok {
		spec.Size = v
	}
	if v, ok := t.Get("color"); ok {
		spec.Color = parseHexColor(v)
	}
	if v, ok := t.Get("align"); ok {
		spec.Align = v
	}
	if v, ok := t.Get("valign"); ok {
		spec.Valign = v
	}
	if v, ok := t.Get("wrap"); ok {
		spec.Wrap = v != "false"
	}
	if v, ok := t.Get("scroll"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			spec.Scroll = f
		}
	}
	if v, ok := t.Get("emojis"); ok {
		spec.EmojisEnabled = v != "false"
	}
	if v, ok := t.Get("font"); ok {
		spec.Font = fontSpecFromName(v)
	}
	if t.LineIndex != nil {
		spec.Line = *t.LineIndex
	}
	_, marginTuple := t.GetTuple("margin")
	spec.Margin = marginTuple
	return spec
}

func fontSpecFromName(raw string) FontSpec {
	parts := strings.Split(raw, ",")
	spec := FontSpec{Family: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		switch strings.TrimSpace(p) {
		case "bold":
			spec.Weight = "bold"
		case "italic":
			spec.Italic = true
		}
	}
	return spec
}

// parseHexColor parses a "#RRGGBB" or "#RRGGBBAA" option value, defaulting
// to opaque white on malformed input.
func parseHexColor(s string) color.Color {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 && len(s) != 8 {
		return color.White
	}
	r, err1 := strconv.ParseUint(s[0:2], 16, 8)
	g, err2 := strconv.ParseUint(s[2:4], 16, 8)
	b, err3 := strconv.ParseUint(s[4:6], 16, 8)
	a := uint64(255)
	var err4 error
	if len(s) == 8 {
		a, err4 = strconv.ParseUint(s[6:8], 16, 8)
	}
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return color.White
	}
	return color.RGBA{R: uint8(r), G: uint8(g), B: uint8(b), A: uint8(a)}
}

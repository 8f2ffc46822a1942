// Package compositor implements the per-key rendering pipeline
// (component G): layer ordering, raster/vector layer sources, the
// crop -> rotate -> margin-fit -> colorize -> opacity per-layer pipeline,
// bottom-up alpha compositing, and scrolling text overlay, per spec.md
// §4.7.
package compositor

import (
	"image"
	"image/color"
	"sort"
	"strconv"
	"time"
)

// LayerSpec is one resolved ImageLayer ready for compositing.
type LayerSpec struct {
	Layer     int
	ModTime   int64 // unix nano, used for the "ties -> most recent mtime" ordering rule
	FilePath  string
	Primitive *PrimitiveSpec
	CropTuple map[string]string
	Rotate    float64
	Margin    map[string]string
	Colorize  color.Color
	Opacity   float64 // 1.0 = opaque
}

// Compositor renders a key's current layer/text stack into an RGBA
// bitmap of a fixed size, per J's device geometry.
type Compositor struct {
	rasters *rasterCache
	fonts   *FontManager
	KeyW    int
	KeyH    int
}

func New(fonts *FontManager, keyW, keyH int) *Compositor {
	return &Compositor{rasters: newRasterCache(), fonts: fonts, KeyW: keyW, KeyH: keyH}
}

// Compose runs the full per-key pipeline of §4.7 and returns the final
// bitmap. scrollClock is the elapsed time driving any active text scroll
// animation.
func (c *Compositor) Compose(layers []LayerSpec, texts []TextSpec, scrollClock time.Duration) (*image.RGBA, error) {
	out := image.NewRGBA(image.Rect(0, 0, c.KeyW, c.KeyH))

	ordered := orderLayers(layers)
	for _, l := range ordered {
		src, err := c.renderLayerSource(l)
		if err != nil {
			return nil, err
		}
		src = cropRect(src, l.CropTuple)
		src = rotateImage(src, l.Rotate)
		src = marginFit(src, c.KeyW, c.KeyH, l.Margin)
		if l.Colorize != nil {
			src = colorizeImage(src, l.Colorize)
		}
		if l.Opacity < 1 {
			src = applyOpacity(src, l.Opacity)
		}
		compositeOver(out, src, 0, 0)
	}

	for _, t := range orderTexts(texts) {
		t.Text = expandEmoji(t.Text, t.emojisEnabled())
		layer, err := renderText(c.fonts, t.TextSpec, c.KeyW, c.KeyH, scrollClock)
		if err != nil {
			return nil, err
		}
		compositeOver(out, layer, 0, 0)
	}
	return out, nil
}

func (c *Compositor) renderLayerSource(l LayerSpec) (*image.RGBA, error) {
	if l.Primitive != nil {
		return drawPrimitive(*l.Primitive, c.KeyW, c.KeyH)
	}
	return c.rasters.loadRasterFile(l.FilePath, 0, 0)
}

// orderLayers implements §4.7 step 1: ascending `layer`, ties broken by
// most-recent modification; if any layer has an explicit index, unlayered
// (index-less) images are dropped entirely.
func orderLayers(layers []LayerSpec) []LayerSpec {
	hasLayered := false
	for _, l := range layers {
		if l.Layer != unsetLayer {
			hasLayered = true
			break
		}
	}
	var kept []LayerSpec
	for _, l := range layers {
		if hasLayered && l.Layer == unsetLayer {
			continue
		}
		kept = append(kept, l)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Layer != kept[j].Layer {
			return kept[i].Layer < kept[j].Layer
		}
		return kept[i].ModTime < kept[j].ModTime
	})
	return kept
}

// unsetLayer marks a LayerSpec with no explicit `layer=` index.
const unsetLayer = -1

// textEntry wraps a TextSpec for stacking-order sorting.
type textEntry struct {
	TextSpec
}

func (t textEntry) emojisEnabled() bool { return t.EmojisEnabled }

func orderTexts(texts []TextSpec) []textEntry {
	entries := make([]textEntry, len(texts))
	for i, t := range texts {
		entries[i] = textEntry{TextSpec: t}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Line < entries[j].Line })
	return entries
}

// ParseOpacity parses an `opacity=` option value (0-100 or 0.0-1.0 form)
// into the 0..1 factor applyOpacity expects.
func ParseOpacity(raw string) float64 {
	if raw == "" {
		return 1
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 1
	}
	if v > 1 {
		return v / 100
	}
	return v
}

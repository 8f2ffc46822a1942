package compositor

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// FontSpec names a font family plus weight/italic, resolved to a concrete
// .ttf/.otf path by FontManager's configured family table.
type FontSpec struct {
	Family string
	Weight string // "regular" | "bold"
	Italic bool
}

// FontManager loads and caches opentype faces at arbitrary sizes, the way
// the teacher's getFontFace loads a fixed fonts map but generalized to
// per-request sizes (needed for `fit` auto-sizing).
type FontManager struct {
	mu       sync.Mutex
	families map[string]map[string]string // family -> variant key -> file path
	parsed   map[string]*opentype.Font
	faces    map[string]font.Face
}

func NewFontManager(families map[string]map[string]string) *FontManager {
	return &FontManager{
		families: families,
		parsed:   map[string]*opentype.Font{},
		faces:    map[string]font.Face{},
	}
}

func variantKey(spec FontSpec) string {
	w := spec.Weight
	if w == "" {
		w = "regular"
	}
	if spec.Italic {
		w += "-italic"
	}
	return w
}

func (fm *FontManager) path(spec FontSpec) (string, error) {
	variants, ok := fm.families[spec.Family]
	if !ok {
		return "", fmt.Errorf("compositor: unknown font family %q", spec.Family)
	}
	key := variantKey(spec)
	if p, ok := variants[key]; ok {
		return p, nil
	}
	if p, ok := variants["regular"]; ok {
		return p, nil
	}
	return "", fmt.Errorf("compositor: font family %q has no %q or regular variant", spec.Family, key)
}

// Face returns a font.Face for spec at sizePx, loading and caching the
// underlying opentype.Font on first use per family.
func (fm *FontManager) Face(spec FontSpec, sizePx float64) (font.Face, error) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	path, err := fm.path(spec)
	if err != nil {
		return nil, err
	}
	cacheKey := fmt.Sprintf("%s@%g", path, sizePx)
	if f, ok := fm.faces[cacheKey]; ok {
		return f, nil
	}

	parsed, ok := fm.parsed[path]
	if !ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		parsed, err = opentype.Parse(data)
		if err != nil {
			return nil, err
		}
		fm.parsed[path] = parsed
	}

	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    sizePx,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, err
	}
	fm.faces[cacheKey] = face
	return face, nil
}

// TextSpec is one TextLine's normalized rendering request, per §4.7 step 5.
type TextSpec struct {
	Text           string
	Font           FontSpec
	Size           string // fixed pixel size, or "fit"
	Color          color.Color
	Align          string // left|center|right
	Valign         string // top|middle|bottom
	Wrap           bool
	Scroll         float64 // pixels/sec; 0 = no scroll; negative = reverse
	Margin         map[string]string
	Line           int  // source `line=` index, for stacking order
	EmojisEnabled  bool // `emojis=` option, defaults true
}

// renderText draws spec into a keyW x keyH transparent canvas, honoring
// fixed or fit sizing, wrap, align/valign, and scroll-clock-driven
// translation, per §4.7 step 5.
func renderText(fm *FontManager, spec TextSpec, keyW, keyH int, scrollClock time.Duration) (*image.RGBA, error) {
	top := int(resolveCoord(valueOr(spec.Margin, "0", "top", "0"), keyH))
	right := int(resolveCoord(valueOr(spec.Margin, "1", "right", "0"), keyW))
	bottom := int(resolveCoord(valueOr(spec.Margin, "2", "bottom", "0"), keyH))
	left := int(resolveCoord(valueOr(spec.Margin, "3", "left", "0"), keyW))
	boxW, boxH := keyW-left-right, keyH-top-bottom
	if boxW <= 0 || boxH <= 0 {
		return image.NewRGBA(image.Rect(0, 0, keyW, keyH)), nil
	}

	sizePx, face, lines, err := resolveSizeAndWrap(fm, spec, boxW, boxH)
	if err != nil {
		return nil, err
	}
	_ = sizePx

	canvas := image.NewRGBA(image.Rect(0, 0, keyW, keyH))
	metrics := face.Metrics()
	lineHeight := metrics.Ascent.Round() + metrics.Descent.Round()
	totalHeight := lineHeight * len(lines)

	scrollOffset := 0
	scrolling := spec.Scroll != 0 && (totalHeight > boxH || maxLineWidth(face, lines) > boxW)
	if scrolling {
		pxPerSec := spec.Scroll
		dir := 1.0
		if pxPerSec < 0 {
			dir = -1.0
			pxPerSec = -pxPerSec
		}
		scrollOffset = int(dir * pxPerSec * scrollClock.Seconds())
	}

	startY := top
	switch spec.Valign {
	case "middle":
		startY = top + (boxH-totalHeight)/2
	case "bottom":
		startY = top + boxH - totalHeight
	}
	if scrolling && spec.Scroll > 0 {
		startY = top - scrollOffset
	} else if scrolling && spec.Scroll < 0 {
		startY = top + boxH - totalHeight + scrollOffset
	}

	for i, line := range lines {
		y := startY + i*lineHeight
		w := measureWidth(face, line)
		x := left
		align := spec.Align
		if scrolling {
			align = "left"
			if spec.Scroll < 0 {
				align = "right"
			}
		}
		switch align {
		case "center":
			x = left + (boxW-w)/2
		case "right":
			x = left + boxW - w
		}
		if scrolling {
			x = left - scrollOffset
			if spec.Scroll < 0 {
				x = left + boxW - w + scrollOffset
			}
		}
		drawTextLine(canvas, line, x, y, face, spec.Color)
	}
	return canvas, nil
}

// resolveSizeAndWrap finds the face/line-set to render: a fixed pixel
// size, or (size="fit") the largest size whose wrapped text still fits
// the bounded box, per §4.7 step 5's `fit` semantics.
func resolveSizeAndWrap(fm *FontManager, spec TextSpec, boxW, boxH int) (float64, font.Face, []string, error) {
	if spec.Size != "fit" {
		sizePx, err := strconv.ParseFloat(spec.Size, 64)
		if err != nil {
			sizePx = 12
		}
		face, err := fm.Face(spec.Font, sizePx)
		if err != nil {
			return 0, nil, nil, err
		}
		lines := []string{spec.Text}
		if spec.Wrap {
			lines = wrapLines(face, spec.Text, boxW)
		}
		return sizePx, face, lines, nil
	}

	// Largest-size-that-fits search: shrink from a generous upper bound
	// one point at a time (bounded search space keeps this deterministic
	// and cheap for on-device font sizes).
	const maxFit = 96
	for size := maxFit; size >= 6; size-- {
		face, err := fm.Face(spec.Font, float64(size))
		if err != nil {
			return 0, nil, nil, err
		}
		lines := []string{spec.Text}
		if spec.Wrap {
			lines = wrapLines(face, spec.Text, boxW)
		}
		metrics := face.Metrics()
		lineHeight := metrics.Ascent.Round() + metrics.Descent.Round()
		if lineHeight*len(lines) <= boxH && maxLineWidth(face, lines) <= boxW {
			return float64(size), face, lines, nil
		}
	}
	face, err := fm.Face(spec.Font, 6)
	if err != nil {
		return 0, nil, nil, err
	}
	return 6, face, []string{spec.Text}, nil
}

func wrapLines(face font.Face, text string, maxWidth int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}
	var lines []string
	cur := words[0]
	for _, w := range words[1:] {
		candidate := cur + " " + w
		if measureWidth(face, candidate) > maxWidth {
			lines = append(lines, cur)
			cur = w
			continue
		}
		cur = candidate
	}
	lines = append(lines, cur)
	return lines
}

func maxLineWidth(face font.Face, lines []string) int {
	max := 0
	for _, l := range lines {
		if w := measureWidth(face, l); w > max {
			max = w
		}
	}
	return max
}

func measureWidth(face font.Face, s string) int {
	d := &font.Drawer{Face: face}
	return d.MeasureString(s).Round()
}

// drawTextLine draws one line of text at (x,y) top-left, matching the
// teacher's drawText baseline convention (y is top of the glyph box, the
// drawer positions the baseline at y+ascent).
func drawTextLine(img *image.RGBA, text string, x, y int, face font.Face, clr color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(clr),
		Face: face,
	}
	baseline := y + face.Metrics().Ascent.Round()
	d.Dot = fixed.P(x, baseline)
	d.DrawString(text)
}

package compositor

import (
	"bytes"
	"fmt"
	"image"
	"strconv"
	"strings"

	svg "github.com/ajstarks/svgo"
)

// PrimitiveSpec describes one vector drawing instruction from an
// ImageLayer's `draw=` option, per spec.md §4.7 step 2. Coordinates and
// angles are kept as raw strings so they can be resolved against the
// owning key's pixel size (percent vs. absolute) at draw time.
type PrimitiveSpec struct {
	Kind   string // points|line|rectangle|polygon|ellipse|arc|chord|pieslice|fill
	Coords []string
	Angles []string
	Fill   string
	Stroke string
}

// drawPrimitive renders spec into a transparent keyW x keyH canvas by
// emitting SVG markup via ajstarks/svgo and rasterizing it through
// oksvg/rasterx, the same two-stage technique the teacher uses for its
// signal-strength glyph (generate markup, then rasterize).
func drawPrimitive(spec PrimitiveSpec, keyW, keyH int) (*image.RGBA, error) {
	var buf bytes.Buffer
	canvas := svg.New(&buf)
	canvas.Start(keyW, keyH)

	style := styleAttr(spec)
	xs, ys := resolveCoordPairs(spec.Coords, keyW, keyH)

	switch spec.Kind {
	case "points":
		for i := range xs {
			canvas.Circle(xs[i], ys[i], 1, style)
		}
	case "line":
		if len(xs) >= 2 {
			canvas.Line(xs[0], ys[0], xs[1], ys[1], style)
		}
	case "rectangle":
		if len(xs) >= 2 {
			x0, y0 := xs[0], ys[0]
			w, h := xs[1]-x0, ys[1]-y0
			canvas.Rect(x0, y0, w, h, style)
		}
	case "polygon":
		canvas.Polygon(xs, ys, style)
	case "ellipse":
		if len(xs) >= 2 {
			canvas.Ellipse(xs[0], ys[0], xs[1], ys[1], style)
		}
	case "arc", "chord", "pieslice":
		drawArcFamily(canvas, spec, xs, ys, keyW, keyH, style)
	case "fill":
		canvas.Rect(0, 0, keyW, keyH, style)
	default:
		canvas.End()
		return nil, fmt.Errorf("compositor: unknown primitive %q", spec.Kind)
	}
	canvas.End()

	return rasterizeSVG(buf.Bytes(), keyW, keyH)
}

func styleAttr(spec PrimitiveSpec) string {
	fill := spec.Fill
	if fill == "" {
		fill = "none"
	}
	stroke := spec.Stroke
	if stroke == "" {
		stroke = fill
	}
	return fmt.Sprintf("fill:%s;stroke:%s", fill, stroke)
}

// resolveCoordPairs turns an (x,y,x,y,...) coordinate list - each token
// either an absolute pixel integer or an "NN%" percent of key size - into
// parallel x/y int slices.
func resolveCoordPairs(coords []string, keyW, keyH int) (xs, ys []int) {
	for i := 0; i+1 < len(coords); i += 2 {
		xs = append(xs, int(resolveCoord(coords[i], keyW)))
		ys = append(ys, int(resolveCoord(coords[i+1], keyH)))
	}
	return xs, ys
}

// resolveCoord parses one coordinate token: pixels if bare, or percent of
// dim if suffixed with "%".
func resolveCoord(tok string, dim int) float64 {
	tok = strings.TrimSpace(tok)
	if strings.HasSuffix(tok, "%") {
		pct, _ := strconv.ParseFloat(strings.TrimSuffix(tok, "%"), 64)
		return pct / 100.0 * float64(dim)
	}
	v, _ := strconv.ParseFloat(tok, 64)
	return v
}

// resolveAngle parses one angle token into screen-space degrees (0 =
// positive x-axis, increasing clockwise since y points down), given the
// domain convention
// that 0 = 12 o'clock (i.e. north) and percent denotes a fraction of a
// full 360-degree turn.
func resolveAngle(tok string) float64 {
	tok = strings.TrimSpace(tok)
	var clockDeg float64
	if strings.HasSuffix(tok, "%") {
		pct, _ := strconv.ParseFloat(strings.TrimSuffix(tok, "%"), 64)
		clockDeg = pct / 100.0 * 360.0
	} else {
		clockDeg, _ = strconv.ParseFloat(tok, 64)
	}
	// 12 o'clock (north) is svg-space 270 degrees (-90); clockwise
	// rotation from there maps directly onto svg's clockwise arc sweep.
	return clockDeg - 90
}

func drawArcFamily(canvas *svg.SVG, spec PrimitiveSpec, xs, ys []int, keyW, keyH int, style string) {
	if len(xs) < 1 || len(spec.Angles) < 2 {
		return
	}
	cx, cy := xs[0], ys[0]
	r := keyW / 2
	if len(xs) >= 2 {
		r = xs[1]
	}
	start := resolveAngle(spec.Angles[0])
	end := resolveAngle(spec.Angles[1])
	large := 0
	if end-start > 180 {
		large = 1
	}
	sx := cx + int(float64(r)*cosDeg(start))
	sy := cy + int(float64(r)*sinDeg(start))
	ex := cx + int(float64(r)*cosDeg(end))
	ey := cy + int(float64(r)*sinDeg(end))

	switch spec.Kind {
	case "arc":
		canvas.Path(fmt.Sprintf("M%d,%d A%d,%d 0 %d,1 %d,%d", sx, sy, r, r, large, ex, ey), style)
	case "chord":
		canvas.Path(fmt.Sprintf("M%d,%d A%d,%d 0 %d,1 %d,%d Z", sx, sy, r, r, large, ex, ey), style)
	case "pieslice":
		canvas.Path(fmt.Sprintf("M%d,%d L%d,%d A%d,%d 0 %d,1 %d,%d Z", cx, cy, sx, sy, r, r, large, ex, ey), style)
	}
}

package compositor

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/llgcode/draw2d/draw2dimg"
	xdraw "golang.org/x/image/draw"
)

// cropRect crops src to the rectangle described by a 4-value tuple
// (left, top, right, bottom), each an absolute pixel or "NN%" of the
// source's own dimensions, per the `crop` tuple option in §4.1/§4.7.
func cropRect(src *image.RGBA, tuple map[string]string) *image.RGBA {
	if len(tuple) == 0 {
		return src
	}
	b := src.Bounds()
	left := int(resolveCoord(valueOr(tuple, "0", "left", "0"), b.Dx()))
	top := int(resolveCoord(valueOr(tuple, "1", "top", "0"), b.Dy()))
	right := int(resolveCoord(valueOr(tuple, "2", "right", "0"), b.Dx()))
	bottom := int(resolveCoord(valueOr(tuple, "3", "bottom", "0"), b.Dy()))

	rect := image.Rect(b.Min.X+left, b.Min.Y+top, b.Max.X-right, b.Max.Y-bottom)
	rect = rect.Intersect(b)
	if rect.Empty() {
		return image.NewRGBA(image.Rect(0, 0, 0, 0))
	}
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(out, out.Bounds(), src, rect.Min, draw.Src)
	return out
}

func valueOr(m map[string]string, idxKey, nameKey, def string) string {
	if v, ok := m[nameKey]; ok {
		return v
	}
	if v, ok := m[idxKey]; ok {
		return v
	}
	return def
}

// rotateImage rotates src by degrees (clockwise, 0 = no rotation) about
// its center into a same-size transparent canvas, using draw2d the way
// the teacher's drawRoundedRect builds vector paths with a
// draw2dimg.GraphicContext.
func rotateImage(src *image.RGBA, degrees float64) *image.RGBA {
	if degrees == 0 {
		return src
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	gc := draw2dimg.NewGraphicContext(dst)
	gc.Translate(float64(w)/2, float64(h)/2)
	gc.Rotate(degrees * math.Pi / 180)
	gc.Translate(-float64(w)/2, -float64(h)/2)
	gc.DrawImage(src)
	gc.Close()
	return dst
}

// marginFit scales src to fit inside a (keyW,keyH) canvas inset by the
// margin tuple (top,right,bottom,left - matching marginNames in the
// grammar package), preserving aspect ratio, and centers the result
// within that inset box on a transparent canvas of the full key size.
func marginFit(src *image.RGBA, keyW, keyH int, margin map[string]string) *image.RGBA {
	top := int(resolveCoord(valueOr(margin, "0", "top", "0"), keyH))
	right := int(resolveCoord(valueOr(margin, "1", "right", "0"), keyW))
	bottom := int(resolveCoord(valueOr(margin, "2", "bottom", "0"), keyH))
	left := int(resolveCoord(valueOr(margin, "3", "left", "0"), keyW))

	boxW, boxH := keyW-left-right, keyH-top-bottom
	if boxW <= 0 || boxH <= 0 {
		return image.NewRGBA(image.Rect(0, 0, keyW, keyH))
	}
	sb := src.Bounds()
	if sb.Dx() == 0 || sb.Dy() == 0 {
		return image.NewRGBA(image.Rect(0, 0, keyW, keyH))
	}
	scale := math.Min(float64(boxW)/float64(sb.Dx()), float64(boxH)/float64(sb.Dy()))
	scaledW := int(float64(sb.Dx()) * scale)
	scaledH := int(float64(sb.Dy()) * scale)
	if scaledW < 1 {
		scaledW = 1
	}
	if scaledH < 1 {
		scaledH = 1
	}

	scaled := image.NewRGBA(image.Rect(0, 0, scaledW, scaledH))
	xdraw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), src, sb, xdraw.Over, nil)

	canvas := image.NewRGBA(image.Rect(0, 0, keyW, keyH))
	ox := left + (boxW-scaledW)/2
	oy := top + (boxH-scaledH)/2
	draw.Draw(canvas, image.Rect(ox, oy, ox+scaledW, oy+scaledH), scaled, image.Point{}, draw.Over)
	return canvas
}

// colorizeImage tints every non-transparent pixel of src to c, preserving
// each pixel's original alpha, per §4.7 step 3.
func colorizeImage(src *image.RGBA, c color.Color) *image.RGBA {
	r, g, b, _ := c.RGBA()
	out := image.NewRGBA(src.Bounds())
	bounds := src.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			sample := src.RGBAAt(x, y)
			if sample.A == 0 {
				continue
			}
			out.SetRGBA(x, y, color.RGBA{
				R: uint8(r >> 8),
				G: uint8(g >> 8),
				B: uint8(b >> 8),
				A: sample.A,
			})
		}
	}
	return out
}

// applyOpacity multiplies every pixel's alpha channel by factor (clamped
// 0..1), per §4.7 step 3's final pipeline stage.
func applyOpacity(src *image.RGBA, factor float64) *image.RGBA {
	if factor >= 1 {
		return src
	}
	if factor < 0 {
		factor = 0
	}
	out := image.NewRGBA(src.Bounds())
	bounds := src.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			s := src.RGBAAt(x, y)
			s.A = uint8(float64(s.A) * factor)
			out.SetRGBA(x, y, s)
		}
	}
	return out
}

// compositeOver alpha-composites src onto dst at (x0,y0), bottom-up, using
// the same over-operator arithmetic as the teacher's copyImageToImageAt.
func compositeOver(dst *image.RGBA, src *image.RGBA, x0, y0 int) {
	sb := src.Bounds()
	for y := 0; y < sb.Dy(); y++ {
		for x := 0; x < sb.Dx(); x++ {
			sample := src.RGBAAt(sb.Min.X+x, sb.Min.Y+y)
			if sample.A == 0 {
				continue
			}
			dx, dy := x0+x, y0+y
			if !(image.Point{dx, dy}.In(dst.Bounds())) {
				continue
			}
			if sample.A == 255 {
				dst.SetRGBA(dx, dy, sample)
				continue
			}
			bg := dst.RGBAAt(dx, dy)
			a := uint16(sample.A)
			invA := uint16(255 - sample.A)
			dst.SetRGBA(dx, dy, color.RGBA{
				R: uint8((uint16(sample.R)*a + uint16(bg.R)*invA) / 255),
				G: uint8((uint16(sample.G)*a + uint16(bg.G)*invA) / 255),
				B: uint8((uint16(sample.B)*a + uint16(bg.B)*invA) / 255),
				A: uint8(uint16(sample.A) + uint16(bg.A)*invA/255),
			})
		}
	}
}

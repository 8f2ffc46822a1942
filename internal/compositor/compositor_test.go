package compositor

import (
	"image"
	"image/color"
	"testing"
)

func TestCompositeOver(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 10, 10))
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	red := color.RGBA{255, 0, 0, 255}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			src.SetRGBA(x, y, red)
		}
	}
	compositeOver(dst, src, 2, 2)
	if got := dst.RGBAAt(3, 3); got != red {
		t.Errorf("got %v, want %v", got, red)
	}
	if got := dst.RGBAAt(0, 0); got.A != 0 {
		t.Errorf("expected untouched pixel to stay transparent, got %v", got)
	}
}

func TestApplyOpacity(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	src.SetRGBA(0, 0, color.RGBA{10, 20, 30, 200})
	out := applyOpacity(src, 0.5)
	got := out.RGBAAt(0, 0)
	if got.A != 100 {
		t.Errorf("alpha = %d, want 100", got.A)
	}
}

func TestColorizePreservesAlpha(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	src.SetRGBA(0, 0, color.RGBA{10, 20, 30, 128})
	out := colorizeImage(src, color.RGBA{255, 0, 0, 255})
	got := out.RGBAAt(0, 0)
	if got.A != 128 {
		t.Errorf("alpha changed: got %d, want 128", got.A)
	}
	if got.R != 255 || got.G != 0 || got.B != 0 {
		t.Errorf("color not applied: got %v", got)
	}
}

func TestCropRect(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 10, 10))
	out := cropRect(src, map[string]string{"top": "2", "left": "2", "bottom": "2", "right": "2"})
	if out.Bounds().Dx() != 6 || out.Bounds().Dy() != 6 {
		t.Errorf("crop dims = %dx%d, want 6x6", out.Bounds().Dx(), out.Bounds().Dy())
	}
}

func TestOrderLayersDropsUnlayeredWhenMixed(t *testing.T) {
	layers := []LayerSpec{
		{Layer: unsetLayer, ModTime: 1},
		{Layer: 2, ModTime: 1},
		{Layer: 1, ModTime: 1},
	}
	ordered := orderLayers(layers)
	if len(ordered) != 2 {
		t.Fatalf("expected unlayered image dropped, got %d layers", len(ordered))
	}
	if ordered[0].Layer != 1 || ordered[1].Layer != 2 {
		t.Errorf("expected ascending layer order, got %+v", ordered)
	}
}

func TestOrderLayersTieBreakByModTime(t *testing.T) {
	layers := []LayerSpec{
		{Layer: 1, ModTime: 5},
		{Layer: 1, ModTime: 2},
	}
	ordered := orderLayers(layers)
	if ordered[0].ModTime != 2 || ordered[1].ModTime != 5 {
		t.Errorf("expected older modtime first, got %+v", ordered)
	}
}

func TestExpandEmoji(t *testing.T) {
	out := expandEmoji("status: :check: done", true)
	if out == "status: :check: done" {
		t.Error("expected :check: to expand")
	}
	out2 := expandEmoji("status: :check: done", false)
	if out2 != "status: :check: done" {
		t.Error("expected no expansion when disabled")
	}
	out3 := expandEmoji("no :unknown: match", true)
	if out3 != "no :unknown: match" {
		t.Error("unknown emoji name should be left untouched")
	}
}

func TestResolveCoordPercentAndPixel(t *testing.T) {
	if got := resolveCoord("50%", 100); got != 50 {
		t.Errorf("percent coord = %v, want 50", got)
	}
	if got := resolveCoord("12", 100); got != 12 {
		t.Errorf("pixel coord = %v, want 12", got)
	}
}

func TestParseOpacity(t *testing.T) {
	cases := map[string]float64{"": 1, "0.5": 0.5, "50": 0.5, "100": 1}
	for in, want := range cases {
		if got := ParseOpacity(in); got != want {
			t.Errorf("ParseOpacity(%q) = %v, want %v", in, got, want)
		}
	}
}

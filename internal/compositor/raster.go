package compositor

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// rasterCache memoizes decoded source bitmaps by file path + mtime, since
// the same image layer file is re-read on every producer-variable change
// even when the file itself didn't move.
type rasterCache struct {
	mu    sync.Mutex
	byKey map[string]*image.RGBA
}

func newRasterCache() *rasterCache {
	return &rasterCache{byKey: map[string]*image.RGBA{}}
}

func (c *rasterCache) get(key string) (*image.RGBA, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	img, ok := c.byKey[key]
	return img, ok
}

func (c *rasterCache) put(key string, img *image.RGBA) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byKey[key] = img
}

// loadRasterFile decodes a PNG/JPEG/GIF/SVG file into an *image.RGBA,
// rendering SVGs at their intrinsic viewBox size unless targetW/targetH
// are given.
func (c *rasterCache) loadRasterFile(path string, targetW, targetH int) (*image.RGBA, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	cacheKey := fmt.Sprintf("%s@%d@%dx%d", path, info.ModTime().UnixNano(), targetW, targetH)
	if img, ok := c.get(cacheKey); ok {
		return img, nil
	}

	ext := strings.ToLower(filepath.Ext(path))
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var img *image.RGBA
	switch ext {
	case ".svg":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		img, err = rasterizeSVG(data, targetW, targetH)
		if err != nil {
			return nil, err
		}
	case ".png":
		decoded, err := png.Decode(f)
		if err != nil {
			return nil, err
		}
		img = toRGBA(decoded)
	case ".jpg", ".jpeg":
		decoded, err := jpeg.Decode(f)
		if err != nil {
			return nil, err
		}
		img = toRGBA(decoded)
	case ".gif":
		decoded, err := gif.Decode(f)
		if err != nil {
			return nil, err
		}
		img = toRGBA(decoded)
	default:
		return nil, fmt.Errorf("compositor: unsupported image format %q", ext)
	}

	c.put(cacheKey, img)
	return img, nil
}

// rasterizeSVG renders SVG source data at its intrinsic size, or at
// w x h when both are positive.
func rasterizeSVG(data []byte, w, h int) (*image.RGBA, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if w <= 0 {
		w = int(icon.ViewBox.W)
	}
	if h <= 0 {
		h = int(icon.ViewBox.H)
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("compositor: svg has no usable dimensions")
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{}), image.Point{}, draw.Src)
	icon.SetTarget(0, 0, float64(w), float64(h))
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	dasher := rasterx.NewDasher(w, h, scanner)
	icon.Draw(dasher, 1.0)
	return img, nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	bounds := img.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, img, bounds.Min, draw.Src)
	return out
}

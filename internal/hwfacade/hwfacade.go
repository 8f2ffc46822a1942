// Package hwfacade abstracts the physical key-grid device (component J):
// key press/release events, per-key RGBA bitmap output, and backlight
// control, behind a single interface with a real periph.io/evdev backed
// implementation and an in-memory mock used by tests and the optional
// HTTP snapshot server.
package hwfacade

import (
	"image"
	"time"
)

// KeyEvent is one raw press/release notification from the physical grid.
type KeyEvent struct {
	Row, Col int
	Pressed  bool
	At       time.Time
}

// Facade is the hardware-independent surface the rest of the daemon
// drives: it reports the device's key geometry and pixel size, accepts
// composed per-key bitmaps, and emits raw key events.
type Facade interface {
	// Geometry returns (rows, cols, keyWidthPx, keyHeightPx).
	Geometry() (rows, cols, keyW, keyH int)
	// SetKeyImage pushes a composed bitmap to one key's illuminated area.
	SetKeyImage(row, col int, img *image.RGBA) error
	// SetBrightness sets the device backlight, 0-100.
	SetBrightness(pct int) error
	// Events returns the channel of raw key press/release notifications.
	Events() <-chan KeyEvent
	// Close releases any underlying OS resources (GPIO lines, SPI port,
	// evdev file descriptors).
	Close() error
}

package hwfacade

import (
	"fmt"
	"image"
	"sync"
	"time"
)

// Mock is an in-memory Facade for tests and for internal/httpsnapshot,
// which needs a composited bitmap per key without any real device
// attached.
type Mock struct {
	mu         sync.Mutex
	rows, cols int
	keyW, keyH int
	images     map[[2]int]*image.RGBA
	brightness int
	events     chan KeyEvent
	closed     bool
}

func NewMock(rows, cols, keyW, keyH int) *Mock {
	return &Mock{
		rows: rows, cols: cols, keyW: keyW, keyH: keyH,
		images: make(map[[2]int]*image.RGBA),
		events: make(chan KeyEvent, 64),
	}
}

func (m *Mock) Geometry() (rows, cols, keyW, keyH int) {
	return m.rows, m.cols, m.keyW, m.keyH
}

func (m *Mock) SetKeyImage(row, col int, img *image.RGBA) error {
	if row < 0 || row >= m.rows || col < 0 || col >= m.cols {
		return fmt.Errorf("hwfacade: key (%d,%d) out of range", row, col)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.images[[2]int{row, col}] = img
	return nil
}

// KeyImage returns the last bitmap pushed to a key, for test assertions
// and for the snapshot server's PNG encode path.
func (m *Mock) KeyImage(row, col int) *image.RGBA {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.images[[2]int{row, col}]
}

func (m *Mock) SetBrightness(pct int) error {
	switch {
	case pct < 0:
		pct = 0
	case pct > 100:
		pct = 100
	}
	m.mu.Lock()
	m.brightness = pct
	m.mu.Unlock()
	return nil
}

func (m *Mock) Brightness() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.brightness
}

func (m *Mock) Events() <-chan KeyEvent { return m.events }

// Inject lets tests and the snapshot server's debug input endpoint
// synthesize a key press/release without real hardware.
func (m *Mock) Inject(row, col int, pressed bool) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return
	}
	m.events <- KeyEvent{Row: row, Col: col, Pressed: pressed, At: time.Now()}
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.events)
	return nil
}

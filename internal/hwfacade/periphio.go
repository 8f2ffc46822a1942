package hwfacade

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	evdev "github.com/holoplot/go-evdev"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// PeriphConfig names the SPI port, GPIO lines, and evdev device used by a
// real key-grid board, adapted from the teacher's RST_PIN/DC_PIN/BL_PIN
// and SPI1.0 constants.
type PeriphConfig struct {
	SPIPort      string // e.g. "SPI1.0"
	ResetPin     string
	DataCmdPin   string
	ChipSelect   string
	BacklightPin string
	InputDevice  string // evdev device name, e.g. "deckfsd keypad"
	Rows, Cols   int
	KeyW, KeyH   int
	OffDelay     time.Duration
}

// Periph is the real-hardware Facade, wiring periph.io SPI/GPIO for pixel
// and backlight output and go-evdev for key input, grounded on the
// teacher's display.go/main.go device init and utils.go's setBacklight
// and monitorKeyboard.
type Periph struct {
	cfg  PeriphConfig
	log  *slog.Logger
	conn spi.Conn
	dc   gpio.PinIO

	mu          sync.Mutex
	lastLogical int
	offTimer    *time.Timer
	lastImages  map[[2]int]*image.RGBA

	events chan KeyEvent
	done   chan struct{}
}

// NewPeriph opens the SPI port and GPIO lines and starts the evdev input
// reader. Missing hardware (wrong board, no root) surfaces as an error
// rather than a panic so the caller can fall back to a mock facade.
func NewPeriph(cfg PeriphConfig, log *slog.Logger) (*Periph, error) {
	if log == nil {
		log = slog.Default()
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("hwfacade: host init: %w", err)
	}
	port, err := spireg.Open(cfg.SPIPort)
	if err != nil {
		return nil, fmt.Errorf("hwfacade: open spi %s: %w", cfg.SPIPort, err)
	}
	conn, err := port.Connect(8*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("hwfacade: connect spi: %w", err)
	}

	p := &Periph{
		cfg:        cfg,
		log:        log,
		conn:       conn,
		dc:         gpioreg.ByName(cfg.DataCmdPin),
		lastImages: map[[2]int]*image.RGBA{},
		events:     make(chan KeyEvent, 32),
		done:       make(chan struct{}),
	}

	if rst := gpioreg.ByName(cfg.ResetPin); rst != nil {
		rst.Out(gpio.High)
	}
	if bl := gpioreg.ByName(cfg.BacklightPin); bl != nil {
		bl.Out(gpio.High)
	}

	go p.runInput()
	return p, nil
}

func (p *Periph) Geometry() (rows, cols, keyW, keyH int) {
	return p.cfg.Rows, p.cfg.Cols, p.cfg.KeyW, p.cfg.KeyH
}

// SetKeyImage writes one key's framebuffer over SPI, addressed by a
// two-byte (row, col) prefix sent in the same burst ahead of the pixels —
// the multi-key analogue of the teacher's single-panel displayPNG write.
func (p *Periph) SetKeyImage(row, col int, img *image.RGBA) error {
	if row < 0 || row >= p.cfg.Rows || col < 0 || col >= p.cfg.Cols {
		return fmt.Errorf("hwfacade: key (%d,%d) out of range", row, col)
	}
	if p.dc != nil {
		if err := p.dc.Out(gpio.High); err != nil {
			return fmt.Errorf("hwfacade: dc pin: %w", err)
		}
	}
	addr := []byte{byte(row), byte(col)}
	buf := make([]byte, len(addr)+len(img.Pix))
	copy(buf, addr)
	copy(buf[len(addr):], img.Pix)
	if err := p.conn.Tx(buf, nil); err != nil {
		return err
	}
	p.mu.Lock()
	p.lastImages[[2]int{row, col}] = img
	p.mu.Unlock()
	return nil
}

// KeyImage returns the last bitmap successfully pushed to (row, col), so
// the optional HTTP snapshot server can mirror real hardware too, not
// just the mock facade.
func (p *Periph) KeyImage(row, col int) *image.RGBA {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastImages[[2]int{row, col}]
}

// SetBrightness clamps to 0-100 and writes the logical-to-physical curve
// used by the teacher's setBacklight, including the "never fully zero,
// delayed true off" behavior so a quick re-press doesn't flash.
func (p *Periph) SetBrightness(pct int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case pct < 0:
		pct = 0
	case pct > 100:
		pct = 100
	}
	if pct == p.lastLogical {
		return nil
	}
	p.lastLogical = pct

	if pct > 0 && p.offTimer != nil {
		p.offTimer.Stop()
		p.offTimer = nil
	}

	phys := pct
	if pct == 0 {
		phys = 1
	}
	if err := p.writeBacklightPWM(phys); err != nil {
		return err
	}

	if pct == 0 {
		delay := p.cfg.OffDelay
		if delay == 0 {
			delay = 5 * time.Second
		}
		p.offTimer = time.AfterFunc(delay, func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			if p.lastLogical == 0 {
				_ = p.writeBacklightPWM(0)
			}
		})
	}
	return nil
}

func (p *Periph) writeBacklightPWM(phys int) error {
	path := "/sys/class/backlight/backlight/brightness"
	if err := os.WriteFile(path, []byte(strconv.Itoa(phys)), 0644); err != nil {
		p.log.Warn("backlight write failed", "path", path, "err", err)
		return err
	}
	return nil
}

func (p *Periph) Events() <-chan KeyEvent { return p.events }

// runInput reads the key-grid's evdev device, translating EV_KEY press
// and release codes to row/col coordinates, per the teacher's
// monitorKeyboard but generalized from a single power key to a full
// matrix keyed by evdev scan code.
func (p *Periph) runInput() {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		p.log.Error("evdev list failed", "err", err)
		return
	}
	var devPath string
	for _, ip := range paths {
		if ip.Name == p.cfg.InputDevice {
			devPath = ip.Path
			break
		}
	}
	if devPath == "" {
		p.log.Error("input device not found", "name", p.cfg.InputDevice)
		return
	}
	dev, err := evdev.Open(devPath)
	if err != nil {
		p.log.Error("evdev open failed", "path", devPath, "err", err)
		return
	}
	defer dev.Ungrab()
	if err := dev.Grab(); err != nil {
		p.log.Warn("evdev grab failed", "err", err)
	}

	for {
		select {
		case <-p.done:
			return
		default:
		}
		ev, err := dev.ReadOne()
		if err != nil {
			p.log.Warn("evdev read failed", "err", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}
		if ev.Type != evdev.EV_KEY {
			continue
		}
		row, col := scanCodeToRowCol(int(ev.Code), p.cfg.Cols)
		p.events <- KeyEvent{Row: row, Col: col, Pressed: ev.Value == 1, At: time.Now()}
	}
}

func scanCodeToRowCol(code, cols int) (row, col int) {
	if cols <= 0 {
		cols = 1
	}
	return code / cols, code % cols
}

func (p *Periph) Close() error {
	close(p.done)
	return nil
}

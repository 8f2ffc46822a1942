// Package httpsnapshot is an optional debug HTTP server that serves the
// composited grid as a PNG and, when backed by a mock facade, accepts
// synthetic key presses — adapted from the teacher's httpServer.go
// (serveFrame/updateData) for a multi-key grid instead of one panel.
package httpsnapshot

import (
	"bytes"
	"image"
	"image/draw"
	"image/png"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/deckfsd/deckfsd/internal/hwfacade"
)

// Source supplies the current per-key bitmaps and geometry the server
// composites into one PNG frame.
type Source interface {
	Geometry() (rows, cols, keyW, keyH int)
	KeyImage(row, col int) *image.RGBA
}

// Injector is implemented by hwfacade.Mock; real hardware has no
// synthetic-input endpoint.
type Injector interface {
	Inject(row, col int, pressed bool)
}

// BrightnessController backs the /brightness endpoint, the transport the
// CLI's get/set-brightness verbs use against a running daemon (there is
// no other IPC surface, so this doubles as that surface).
type BrightnessController interface {
	Brightness() int
	SetBrightness(pct int) error
}

// PageController backs the /page endpoint, the transport the CLI's
// get/set-current-page verbs use against a running daemon.
type PageController interface {
	CurrentPage() string
	GoToPage(target string) error
}

type Server struct {
	log        *slog.Logger
	source     Source
	inject     Injector
	brightness BrightnessController
	page       PageController
	app        *fiber.App
}

// New builds the server. ctl is optional (may be nil) and, when it
// implements BrightnessController and/or PageController, wires the
// matching endpoints — the daemon satisfies both, a bare mock facade
// used in isolation satisfies neither.
func New(log *slog.Logger, source Source, inject Injector, ctl any) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{log: log, source: source, inject: inject}
	if b, ok := ctl.(BrightnessController); ok {
		s.brightness = b
	}
	if p, ok := ctl.(PageController); ok {
		s.page = p
	}
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/frame", s.serveFrame)
	app.Post("/press", s.handlePress)
	app.Get("/brightness", s.getBrightness)
	app.Post("/brightness", s.setBrightness)
	app.Get("/page", s.getPage)
	app.Post("/page", s.setPage)
	s.app = app
	return s
}

// Listen starts the server; blocks like fiber.App.Listen.
func (s *Server) Listen(addr string) error {
	s.log.Info("httpsnapshot listening", "addr", addr)
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// serveFrame composites every key's last bitmap into one image, tiled by
// row/col in geometry order, and PNG-encodes it, mirroring the teacher's
// serveFrame but over a grid instead of three fixed framebuffers.
func (s *Server) serveFrame(c *fiber.Ctx) error {
	rows, cols, keyW, keyH := s.source.Geometry()
	if rows == 0 || cols == 0 {
		return c.Status(fiber.StatusServiceUnavailable).SendString("no geometry available")
	}
	frame := image.NewRGBA(image.Rect(0, 0, cols*keyW, rows*keyH))

	for r := 0; r < rows; r++ {
		for col := 0; col < cols; col++ {
			img := s.source.KeyImage(r, col)
			if img == nil {
				continue
			}
			dst := image.Rect(col*keyW, r*keyH, col*keyW+keyW, r*keyH+keyH)
			draw.Draw(frame, dst, img, image.Point{}, draw.Over)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, frame); err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("failed to encode frame")
	}
	c.Set("Content-Type", "image/png")
	c.Set("Content-Length", strconv.Itoa(buf.Len()))
	return c.Send(buf.Bytes())
}

// pressRequest is the JSON body accepted by /press.
type pressRequest struct {
	Row     int  `json:"row"`
	Col     int  `json:"col"`
	Pressed bool `json:"pressed"`
}

// handlePress injects a synthetic key event when the server is backed by
// a mock facade; on real hardware there is nothing to inject into.
func (s *Server) handlePress(c *fiber.Ctx) error {
	if s.inject == nil {
		return c.Status(fiber.StatusNotImplemented).SendString("no mock facade attached")
	}
	var req pressRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("invalid JSON")
	}
	s.inject.Inject(req.Row, req.Col, req.Pressed)
	return c.SendString("ok")
}

// brightnessResponse/brightnessRequest are the JSON shapes for /brightness.
type brightnessResponse struct {
	Percent int `json:"percent"`
}

type brightnessRequest struct {
	Percent int `json:"percent"`
}

func (s *Server) getBrightness(c *fiber.Ctx) error {
	if s.brightness == nil {
		return c.Status(fiber.StatusNotImplemented).SendString("no brightness controller attached")
	}
	return c.JSON(brightnessResponse{Percent: s.brightness.Brightness()})
}

func (s *Server) setBrightness(c *fiber.Ctx) error {
	if s.brightness == nil {
		return c.Status(fiber.StatusNotImplemented).SendString("no brightness controller attached")
	}
	var req brightnessRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("invalid JSON")
	}
	if err := s.brightness.SetBrightness(req.Percent); err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString(err.Error())
	}
	return c.SendString("ok")
}

// pageResponse/pageRequest are the JSON shapes for /page.
type pageResponse struct {
	Page string `json:"page"`
}

type pageRequest struct {
	Page string `json:"page"`
}

func (s *Server) getPage(c *fiber.Ctx) error {
	if s.page == nil {
		return c.Status(fiber.StatusNotImplemented).SendString("no page controller attached")
	}
	return c.JSON(pageResponse{Page: s.page.CurrentPage()})
}

func (s *Server) setPage(c *fiber.Ctx) error {
	if s.page == nil {
		return c.Status(fiber.StatusNotImplemented).SendString("no page controller attached")
	}
	var req pageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("invalid JSON")
	}
	if err := s.page.GoToPage(req.Page); err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString(err.Error())
	}
	return c.SendString("ok")
}

var _ Injector = (*hwfacade.Mock)(nil)

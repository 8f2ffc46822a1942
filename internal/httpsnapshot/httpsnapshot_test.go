package httpsnapshot

import (
	"bytes"
	"image"
	"image/png"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/deckfsd/deckfsd/internal/hwfacade"
)

func TestServeFrameComposites(t *testing.T) {
	m := hwfacade.NewMock(1, 2, 4, 4)
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	m.SetKeyImage(0, 1, img)

	s := New(nil, m, m, nil)
	req := httptest.NewRequest("GET", "/frame", nil)
	resp, err := s.app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	decoded, err := png.Decode(bytes.NewReader(body))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	bounds := decoded.Bounds()
	if bounds.Dx() != 8 || bounds.Dy() != 4 {
		t.Errorf("frame size = %dx%d, want 8x4", bounds.Dx(), bounds.Dy())
	}
}

func TestHandlePressInjectsEvent(t *testing.T) {
	m := hwfacade.NewMock(1, 1, 4, 4)
	s := New(nil, m, m, nil)
	req := httptest.NewRequest("POST", "/press", bytes.NewReader([]byte(`{"row":0,"col":0,"pressed":true}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	select {
	case ev := <-m.Events():
		if !ev.Pressed {
			t.Error("expected pressed event")
		}
	default:
		t.Error("expected injected event to be queued")
	}
}

func TestHandlePressWithoutInjectorReturns501(t *testing.T) {
	m := hwfacade.NewMock(1, 1, 4, 4)
	s := New(nil, m, nil, nil)
	req := httptest.NewRequest("POST", "/press", bytes.NewReader([]byte(`{"row":0,"col":0,"pressed":true}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 501 {
		t.Fatalf("status = %d, want 501", resp.StatusCode)
	}
}

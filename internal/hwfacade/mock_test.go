package hwfacade

import (
	"image"
	"testing"
	"time"
)

func TestMockSetKeyImageOutOfRange(t *testing.T) {
	m := NewMock(2, 3, 16, 16)
	if err := m.SetKeyImage(5, 0, image.NewRGBA(image.Rect(0, 0, 1, 1))); err == nil {
		t.Error("expected error for out-of-range row")
	}
}

func TestMockSetKeyImageStoresBitmap(t *testing.T) {
	m := NewMock(2, 3, 16, 16)
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	img.Pix[0] = 200
	if err := m.SetKeyImage(1, 2, img); err != nil {
		t.Fatal(err)
	}
	got := m.KeyImage(1, 2)
	if got == nil || got.Pix[0] != 200 {
		t.Errorf("KeyImage did not round-trip the stored bitmap")
	}
}

func TestMockBrightnessClamped(t *testing.T) {
	m := NewMock(1, 1, 16, 16)
	m.SetBrightness(150)
	if m.Brightness() != 100 {
		t.Errorf("brightness = %d, want clamped 100", m.Brightness())
	}
	m.SetBrightness(-5)
	if m.Brightness() != 0 {
		t.Errorf("brightness = %d, want clamped 0", m.Brightness())
	}
}

func TestMockInjectDeliversEvent(t *testing.T) {
	m := NewMock(1, 1, 16, 16)
	m.Inject(0, 0, true)
	select {
	case ev := <-m.Events():
		if ev.Row != 0 || ev.Col != 0 || !ev.Pressed {
			t.Errorf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for injected event")
	}
}

func TestMockCloseIsIdempotent(t *testing.T) {
	m := NewMock(1, 1, 16, 16)
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
}

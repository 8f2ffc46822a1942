package pagectl

import "testing"

func alwaysNavigable(string) bool { return true }

func TestGoToPageClearsOverlays(t *testing.T) {
	c := New("1", alwaysNavigable)
	if err := c.OpenOverlay("overlay-a"); err != nil {
		t.Fatal(err)
	}
	if !c.IsOverlayActive() {
		t.Fatal("expected overlay active")
	}
	if err := c.GoToPage("2"); err != nil {
		t.Fatal(err)
	}
	if c.IsOverlayActive() {
		t.Error("expected overlay cleared after GoToPage")
	}
	if c.CurrentPage() != "2" {
		t.Errorf("current page = %q, want 2", c.CurrentPage())
	}
}

func TestOverlayKeepsUnderlyingDisplayed(t *testing.T) {
	c := New("1", alwaysNavigable)
	c.OpenOverlay("overlay-a")
	displayed := c.DisplayedPages()
	if len(displayed) != 2 || displayed[0] != "1" || displayed[1] != "overlay-a" {
		t.Errorf("displayed = %v", displayed)
	}
}

func TestBackPopsOverlaysThenHistory(t *testing.T) {
	c := New("1", alwaysNavigable)
	c.GoToPage("2")
	c.OpenOverlay("overlay-a")
	if err := c.GoTo("__back__"); err != nil {
		t.Fatal(err)
	}
	if c.IsOverlayActive() {
		t.Error("expected overlay popped by __back__")
	}
	if c.CurrentPage() != "2" {
		t.Errorf("current page after closing overlay = %q, want 2", c.CurrentPage())
	}
	if err := c.GoTo("__back__"); err != nil {
		t.Fatal(err)
	}
	if c.CurrentPage() != "1" {
		t.Errorf("current page after back = %q, want 1", c.CurrentPage())
	}
}

func TestCloseOverlayWithoutOneErrors(t *testing.T) {
	c := New("1", alwaysNavigable)
	if err := c.CloseOverlay(); err == nil {
		t.Error("expected error closing overlay when none is open")
	}
}

func TestGoToPageRejectsNonNavigable(t *testing.T) {
	c := New("1", func(p string) bool { return p != "3" })
	if err := c.GoToPage("3"); err == nil {
		t.Error("expected error navigating to non-navigable page")
	}
}

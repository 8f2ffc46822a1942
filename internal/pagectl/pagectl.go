// Package pagectl implements the page/overlay controller (component I):
// a stack of (page, is_overlay) frames plus a linear back-history, per
// spec.md §4.9.
package pagectl

import (
	"fmt"
	"sync"
)

// Frame is one entry of the navigation stack.
type Frame struct {
	Page    string
	Overlay bool
}

// Navigable reports whether a page identifier currently has a
// non-disabled key; supplied by the caller so pagectl stays independent
// of the entity model.
type Navigable func(page string) bool

// Controller owns the frame stack and back-history, and exposes the
// current page read-write so external CLI commands can drive it, per
// §4.9's closing sentence.
type Controller struct {
	mu        sync.Mutex
	stack     []Frame
	history   []string // non-overlay pages visited, most recent last
	navigable Navigable
}

func New(initialPage string, navigable Navigable) *Controller {
	return &Controller{
		stack:     []Frame{{Page: initialPage, Overlay: false}},
		history:   []string{initialPage},
		navigable: navigable,
	}
}

// CurrentPage returns the topmost frame's page identifier.
func (c *Controller) CurrentPage() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.stack) == 0 {
		return ""
	}
	return c.stack[len(c.stack)-1].Page
}

// CurrentFrame returns the topmost frame, including its overlay flag.
func (c *Controller) CurrentFrame() Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.stack) == 0 {
		return Frame{}
	}
	return c.stack[len(c.stack)-1]
}

// DisplayedPages returns every page whose keys are currently "displayed"
// for §4.8 visibility purposes: the full overlay stack, since an overlay
// never hides the pages beneath it.
func (c *Controller) DisplayedPages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.stack))
	for i, f := range c.stack {
		out[i] = f.Page
	}
	return out
}

// GoTo applies the §4.9 transition for target: __back__ goes back, any
// other page identifier goes through GoToPage. The __first__/__next__/
// __previous__ pseudo-tokens need a page ordering this package does not
// have, so GoTo returns an error for them.
func (c *Controller) GoTo(target string) error {
	switch target {
	case "__back__":
		return c.back()
	case "__first__", "__next__", "__previous__":
		return fmt.Errorf("pagectl: pseudo-token %s requires a page-sequence resolver", target)
	default:
		return c.GoToPage(target)
	}
}

// GoToPage implements "Go to page P (non-overlay): clear overlays,
// replace top, push history."
func (c *Controller) GoToPage(page string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.navigable != nil && !c.navigable(page) {
		return fmt.Errorf("pagectl: page %q is not navigable", page)
	}
	c.stack = []Frame{{Page: page, Overlay: false}}
	if len(c.history) == 0 || c.history[len(c.history)-1] != page {
		c.history = append(c.history, page)
	}
	return nil
}

// OpenOverlay implements "Open overlay P: push frame; underlying page's
// keys remain displayed; only overlay keys receive input."
func (c *Controller) OpenOverlay(page string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.navigable != nil && !c.navigable(page) {
		return fmt.Errorf("pagectl: overlay page %q is not navigable", page)
	}
	c.stack = append(c.stack, Frame{Page: page, Overlay: true})
	return nil
}

// CloseOverlay implements "Close overlay: pop frame."
func (c *Controller) CloseOverlay() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.stack) <= 1 || !c.stack[len(c.stack)-1].Overlay {
		return fmt.Errorf("pagectl: no overlay to close")
	}
	c.stack = c.stack[:len(c.stack)-1]
	return nil
}

// back implements "__back__: pop until previous non-overlay page is top."
func (c *Controller) back() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	popped := false
	for len(c.stack) > 1 && c.stack[len(c.stack)-1].Overlay {
		c.stack = c.stack[:len(c.stack)-1]
		popped = true
	}
	if popped {
		return nil
	}
	if len(c.history) > 1 {
		c.history = c.history[:len(c.history)-1]
		prev := c.history[len(c.history)-1]
		c.stack = []Frame{{Page: prev, Overlay: false}}
	}
	return nil
}

// IsOverlayActive reports whether the top frame is an overlay.
func (c *Controller) IsOverlayActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.stack) > 0 && c.stack[len(c.stack)-1].Overlay
}

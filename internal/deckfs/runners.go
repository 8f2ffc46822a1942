package deckfs

import (
	"strconv"
	"time"

	"github.com/deckfsd/deckfsd/internal/hwfacade"
	"github.com/deckfsd/deckfsd/internal/model"
	"github.com/deckfsd/deckfsd/internal/supervisor"
)

// armKinds lists the event kinds a key press arms: ON_PRESS and
// ON_LONGPRESS race on duration-min/duration-max per §4.8's timing
// table. ON_RELEASE is untouched on press — it is only ever evaluated at
// the release edge, in handleKeyEvent's release branch.
var armKinds = []model.EventKind{model.EventPress, model.EventLongPress}

// rebuildRunners ensures every valid, enabled Event entity in the freshly
// scanned deck has a Runner tracking its lifecycle, and stops/discards
// runners whose backing event no longer exists. An already-tracked event
// keeps its existing Runner (and in-flight process state) across a
// rescan rather than being replaced, since a rescan is just the tree
// catching up with the filesystem, not a semantic reset.
func (d *Daemon) rebuildRunners(deck *model.Deck) {
	seen := map[string]bool{}

	add := func(owner model.Entity, e *model.Event) {
		if !e.Valid() || e.IsDisabled() || owner.IsDisabled() {
			return
		}
		path := entityNodePath(owner, e)
		seen[path] = true

		d.mu.Lock()
		_, exists := d.runners[path]
		d.mu.Unlock()
		if exists {
			return
		}
		spec := specFromEvent(owner, e)
		r := supervisor.NewRunner(d.log, spec)
		d.mu.Lock()
		d.runners[path] = r
		d.mu.Unlock()
	}

	for _, e := range deck.Events {
		add(deck, e)
	}
	for _, p := range deck.Pages {
		if p.IsDisabled() {
			continue
		}
		for _, e := range p.Events {
			add(p, e)
		}
		for _, k := range p.Keys {
			if k.IsDisabled() {
				continue
			}
			for _, e := range k.Events {
				add(k, e)
			}
		}
	}

	d.mu.Lock()
	stale := make([]*supervisor.Runner, 0)
	for path, r := range d.runners {
		if !seen[path] {
			delete(d.runners, path)
			stale = append(stale, r)
		}
	}
	d.mu.Unlock()
	for _, r := range stale {
		go r.Stop()
	}
}

// stopRunners terminates every tracked runner's active process, used on
// daemon shutdown.
func (d *Daemon) stopRunners() {
	d.mu.Lock()
	runners := make([]*supervisor.Runner, 0, len(d.runners))
	for _, r := range d.runners {
		runners = append(runners, r)
	}
	d.mu.Unlock()
	for _, r := range runners {
		r.Stop()
	}
}

// handleKeyEvent dispatches one raw hardware press/release to every event
// on the matching key in the currently active frame, per §4.9's "only
// overlay keys receive input" rule: a press only reaches the topmost
// frame's page, never a page merely displayed underneath an overlay.
func (d *Daemon) handleKeyEvent(ev hwfacade.KeyEvent) {
	d.mu.Lock()
	deck := d.deck
	ctl := d.page
	d.mu.Unlock()
	if deck == nil || ctl == nil {
		return
	}

	pageNum, err := strconv.Atoi(ctl.CurrentPage())
	if err != nil {
		return
	}
	page, ok := deck.Pages[pageNum]
	if !ok {
		return
	}
	key, ok := page.Keys[[2]int{ev.Row, ev.Col}]
	if !ok || key.IsDisabled() {
		return
	}

	pc := pageAdapter{d}
	vw := d.store
	br := brightnessAdapter{d}

	keyID := [2]int{ev.Row, ev.Col}
	var held time.Duration
	if ev.Pressed {
		d.mu.Lock()
		d.pressedAt[keyID] = ev.At
		d.mu.Unlock()
	} else {
		d.mu.Lock()
		if at, ok := d.pressedAt[keyID]; ok {
			held = ev.At.Sub(at)
			delete(d.pressedAt, keyID)
		}
		d.mu.Unlock()
	}

	runnerFor := func(kind model.EventKind) *supervisor.Runner {
		e, ok := key.Events[kind]
		if !ok || !e.Valid() || e.IsDisabled() {
			return nil
		}
		path := entityNodePath(key, e)
		d.mu.Lock()
		r := d.runners[path]
		d.mu.Unlock()
		return r
	}

	if ev.Pressed {
		for _, kind := range armKinds {
			if r := runnerFor(kind); r != nil {
				r.Press(pc, vw, br)
			}
		}
		return
	}

	for _, kind := range armKinds {
		if r := runnerFor(kind); r != nil {
			r.Release(pc, vw, br, held)
		}
	}
	if r := runnerFor(model.EventRelease); r != nil {
		r.FireOnRelease(pc, vw, br, held)
	}
}

// pageAdapter satisfies supervisor.PageController, pre-resolving the
// __first__/__next__/__previous__ pseudo-tokens pagectl.Controller itself
// refuses to interpret (it has no notion of page ordering) and opening an
// overlay frame instead of a plain page switch when the target page
// declares itself an overlay.
type pageAdapter struct{ d *Daemon }

func (a pageAdapter) GoTo(target string) error {
	return a.d.navigateTo(target)
}

func (d *Daemon) navigateTo(target string) error {
	d.mu.Lock()
	deck := d.deck
	ctl := d.page
	seq := d.pageSeq
	d.mu.Unlock()
	if deck == nil || ctl == nil {
		return nil
	}

	resolved := target
	switch target {
	case "__first__", "__next__", "__previous__":
		r, err := seq.resolve(target, ctl.CurrentPage())
		if err != nil {
			return err
		}
		resolved = r
	case "__back__":
		return ctl.GoTo("__back__")
	}
	if _, err := strconv.Atoi(resolved); err != nil {
		for n, p := range deck.Pages {
			if p.Name() == resolved {
				resolved = strconv.Itoa(n)
				break
			}
		}
	}

	if n, err := strconv.Atoi(resolved); err == nil {
		if p, ok := deck.Pages[n]; ok && p.Overlay() {
			return ctl.OpenOverlay(resolved)
		}
	}
	return ctl.GoToPage(resolved)
}

// brightnessAdapter satisfies supervisor.Brightness, tracking the
// daemon's last-set level so a delta adjustment has a baseline (the
// hardware facade itself exposes no brightness getter).
type brightnessAdapter struct{ d *Daemon }

func (a brightnessAdapter) Adjust(delta bool, value int) error {
	return a.d.adjustBrightness(delta, value)
}

func (d *Daemon) adjustBrightness(delta bool, value int) error {
	d.mu.Lock()
	next := value
	if delta {
		next = d.brightness + value
	}
	if next < 0 {
		next = 0
	}
	if next > 100 {
		next = 100
	}
	d.brightness = next
	d.mu.Unlock()
	return d.hw.SetBrightness(next)
}

// Brightness returns the last level this daemon set, for external
// drivers (the httpsnapshot debug server, the CLI's get-brightness verb)
// that have no other way to read back a write-only backlight.
func (d *Daemon) Brightness() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.brightness
}

// SetBrightness is the external entrypoint for the CLI's set-brightness
// verb, equivalent to an ON_* event's brightness= action with no delta.
func (d *Daemon) SetBrightness(pct int) error {
	return d.adjustBrightness(false, pct)
}

// CurrentPage returns the active frame's page identifier, for the CLI's
// get-current-page verb.
func (d *Daemon) CurrentPage() string {
	d.mu.Lock()
	ctl := d.page
	d.mu.Unlock()
	if ctl == nil {
		return ""
	}
	return ctl.CurrentPage()
}

// GoToPage is the external entrypoint for the CLI's set-current-page
// verb, sharing the same pseudo-token/overlay dispatch a key's page=
// action uses.
func (d *Daemon) GoToPage(target string) error {
	return d.navigateTo(target)
}

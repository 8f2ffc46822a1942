package deckfs

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/deckfsd/deckfsd/internal/compositor"
	"github.com/deckfsd/deckfsd/internal/graph"
	"github.com/deckfsd/deckfsd/internal/grammar"
	"github.com/deckfsd/deckfsd/internal/hwfacade"
	"github.com/deckfsd/deckfsd/internal/model"
	"github.com/deckfsd/deckfsd/internal/pagectl"
	"github.com/deckfsd/deckfsd/internal/supervisor"
	"github.com/deckfsd/deckfsd/internal/vars"
	"github.com/deckfsd/deckfsd/internal/watcher"
)

// Daemon ties one deck root to its hardware facade: it scans the deck
// tree into the entity model, resolves variables and expressions,
// composites each key's bitmap, and pushes frames to the Facade, re-doing
// the affected work whenever the filesystem or a variable changes.
type Daemon struct {
	log   *slog.Logger
	root  string
	esc   grammar.Escapes
	store *vars.Store
	graph *graph.Graph
	comp  *compositor.Compositor
	hw    hwfacade.Facade
	watch *watcher.Watcher

	mu         sync.Mutex
	deck       *model.Deck
	page       *pagectl.Controller
	pageSeq    *pageSequenceResolver
	runners    map[string]*supervisor.Runner // by event node path
	brightness int
	pressedAt  map[[2]int]time.Time
}

// New builds a Daemon for one deck root. fonts must be pre-loaded by the
// caller (internal/compositor.FontManager is shared across decks).
func New(log *slog.Logger, root string, hw hwfacade.Facade, fonts *compositor.FontManager) (*Daemon, error) {
	if log == nil {
		log = slog.Default()
	}
	_, _, keyW, keyH := hw.Geometry()

	w, err := watcher.New(log)
	if err != nil {
		return nil, err
	}
	if err := w.AddRoot(root); err != nil {
		return nil, err
	}

	d := &Daemon{
		log:        log,
		root:       root,
		esc:        grammar.DefaultEscapes(),
		store:      vars.NewStore(),
		graph:      graph.New(),
		comp:       compositor.New(fonts, keyW, keyH),
		hw:         hw,
		watch:      w,
		runners:    map[string]*supervisor.Runner{},
		brightness: 100,
		pressedAt:  map[[2]int]time.Time{},
	}
	d.store.Changed = func(name string) {
		d.graph.Invalidate(name)
		d.retick()
	}
	return d, nil
}

// Run performs the initial scan/resolve/compose/push and then blocks,
// reacting to filesystem changes and key events until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.rescan(); err != nil {
		return err
	}
	d.watch.Start()
	defer d.watch.Close()

	for {
		select {
		case <-ctx.Done():
			d.stopRunners()
			return ctx.Err()
		case ev, ok := <-d.watch.Events:
			if !ok {
				return nil
			}
			d.log.Debug("fs event", "kind", ev.Kind.String(), "path", ev.Path)
			if err := d.rescan(); err != nil {
				d.log.Error("rescan failed", "err", err)
				continue
			}
		case ev, ok := <-d.hw.Events():
			if !ok {
				return nil
			}
			d.handleKeyEvent(ev)
		}
	}
}

// rescan rebuilds the deck tree from disk, re-resolves every entity, and
// recomposes/pushes every key's bitmap. A full rebuild on every
// filesystem change is simpler than incremental reconciliation and keeps
// the dependency graph's role focused on variable-triggered
// recomputation (see retick), which is the hot path during normal
// operation.
func (d *Daemon) rescan() error {
	deck, err := scanDeck(d.root, d.esc)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.deck = deck
	d.pageSeq = &pageSequenceResolver{deck: deck}
	if d.page == nil {
		first := ""
		nums := sortedPageNumbers(deck)
		if len(nums) > 0 {
			first = strconv.Itoa(nums[0])
		}
		d.page = pagectl.New(first, navigableFor(deck))
	}
	d.mu.Unlock()

	d.registerVars(deck)
	d.resolveAll(deck)
	d.rebuildRunners(deck)
	return d.composeAndPushAll(deck)
}

// retick re-resolves whatever the graph marked dirty (variable-driven
// changes) and recomposes/pushes only the affected keys.
func (d *Daemon) retick() {
	d.mu.Lock()
	deck := d.deck
	d.mu.Unlock()
	if deck == nil {
		return
	}
	failed := d.graph.Tick()
	for _, p := range failed {
		d.log.Warn("node resolve failed after tick", "path", p)
	}
	_ = d.composeAndPushAll(deck)
}

func (d *Daemon) lookup() model.VariableLookup {
	return d.store.Lookup
}

func (d *Daemon) refs() model.ReferenceResolver {
	// Cross-key ref=PAGE:KEY:SUB targets are not looked up: this resolver
	// reports every target as not found (ok=false), so an image, text or
	// event carrying ref= resolves invalid with a ReferenceUnresolved
	// error. Entities without ref= never call it.
	return func(from model.Entity, ref string) (map[string]string, map[string]grammar.Value, bool) {
		return nil, nil, false
	}
}

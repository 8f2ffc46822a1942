// Package watcher implements the filesystem watcher (component F):
// recursive tree enumeration, an ordered {created, modified, renamed,
// deleted} event stream, burst coalescing, and pending-root handling for
// deck/page directories that are absent or unreadable, per spec.md §4.6.
package watcher

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"log/slog"
)

// EventKind discriminates the four filesystem change kinds the watcher
// surfaces. A rename is reported as Renamed for the old path, while the
// new path arrives as its own Created event; the two are not paired.
type EventKind int

const (
	Created EventKind = iota
	Modified
	Renamed
	Deleted
)

func (k EventKind) String() string {
	switch k {
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Renamed:
		return "renamed"
	case Deleted:
		return "deleted"
	}
	return "unknown"
}

// Event is one coalesced filesystem change delivered to the caller.
type Event struct {
	Kind    EventKind
	Path    string
	OldPath string // not filled in by the watcher
}

// coalesceWindow matches the "≈50ms" burst window named in §4.6 for
// collapsing an editor's atomic-save rename/write pair into one event.
const coalesceWindow = 50 * time.Millisecond

// Watcher recursively watches a root directory tree and emits a
// single-threaded, receipt-ordered stream of coalesced Events. Missing
// roots are tracked as "pending" and polled for reappearance rather than
// treated as permanent deletions.
type Watcher struct {
	log *slog.Logger
	fsw *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]bool // root paths currently absent/unreadable

	Events chan Event
	Errors chan error

	stop chan struct{}
}

// New creates a Watcher with no roots; AddRoot adds a tree to watch and
// Start must be called to begin delivering events.
func New(log *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{
		log:     log,
		fsw:     fsw,
		pending: map[string]bool{},
		Events:  make(chan Event, 256),
		Errors:  make(chan error, 16),
		stop:    make(chan struct{}),
	}, nil
}

// AddRoot enumerates root recursively and watches every directory found;
// no events are emitted for paths that already exist. If root does not
// exist, it is recorded as pending instead of returning an error.
func (w *Watcher) AddRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		w.mu.Lock()
		w.pending[root] = true
		w.mu.Unlock()
		w.log.Debug("watch root pending", "path", root)
		return nil
	}
	return w.addTree(root)
}

func (w *Watcher) addTree(root string) error {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return err
	}
	sort.Strings(dirs)
	for _, d := range dirs {
		if err := w.fsw.Add(d); err != nil {
			w.log.Warn("watch add failed", "path", d, "err", err)
			continue
		}
	}
	w.mu.Lock()
	delete(w.pending, root)
	w.mu.Unlock()
	return nil
}

// Start begins the single goroutine that reads raw fsnotify events,
// coalesces bursts within coalesceWindow, and republishes them on
// w.Events in receipt order. It also polls pending roots every
// coalesceWindow*4 for reappearance.
func (w *Watcher) Start() {
	go w.pump()
	go w.pollPending()
}

func (w *Watcher) Close() error {
	close(w.stop)
	return w.fsw.Close()
}

func (w *Watcher) pump() {
	var (
		mu      sync.Mutex
		pending = map[string]Event{}
		order   []string // paths in order of first receipt within the burst
		timer   *time.Timer
	)
	flush := func() {
		mu.Lock()
		evs := make([]Event, 0, len(order))
		for _, p := range order {
			evs = append(evs, pending[p])
		}
		pending = map[string]Event{}
		order = nil
		mu.Unlock()
		for _, e := range evs {
			w.Events <- e
		}
	}
	for {
		select {
		case <-w.stop:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			kind := translateOp(ev.Op)
			mu.Lock()
			if _, seen := pending[ev.Name]; !seen {
				order = append(order, ev.Name)
			}
			pending[ev.Name] = Event{Kind: kind, Path: ev.Name}
			mu.Unlock()
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = w.addTree(ev.Name)
				}
			}
			if timer == nil {
				timer = time.AfterFunc(coalesceWindow, flush)
			} else {
				timer.Reset(coalesceWindow)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.Errors <- err
		}
	}
}

func (w *Watcher) pollPending() {
	ticker := time.NewTicker(coalesceWindow * 4)
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.mu.Lock()
			roots := make([]string, 0, len(w.pending))
			for r := range w.pending {
				roots = append(roots, r)
			}
			w.mu.Unlock()
			sort.Strings(roots)
			for _, r := range roots {
				if info, err := os.Stat(r); err == nil && info.IsDir() {
					w.log.Info("watch root reappeared", "path", r)
					if err := w.addTree(r); err == nil {
						w.Events <- Event{Kind: Created, Path: r}
					}
				}
			}
		}
	}
}

// IsPending reports whether root is currently marked absent/unreadable.
func (w *Watcher) IsPending(root string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending[root]
}

func translateOp(op fsnotify.Op) EventKind {
	switch {
	case op&fsnotify.Remove != 0:
		return Deleted
	case op&fsnotify.Rename != 0:
		return Renamed
	case op&fsnotify.Create != 0:
		return Created
	default:
		return Modified
	}
}

// Package deckfs wires the grammar, model, expr, vars, graph, watcher,
// compositor, supervisor, pagectl, and hwfacade packages into one running
// daemon, the top-level assembly spec.md's components describe in
// isolation.
package deckfs

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/deckfsd/deckfsd/internal/grammar"
	"github.com/deckfsd/deckfsd/internal/model"
)

// modTimeOf extracts a directory entry's modification time; a stat
// failure degrades to the zero time rather than aborting the scan.
func modTimeOf(e os.DirEntry) time.Time {
	info, err := e.Info()
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// imageIdentity computes an ImageLayer's identity directly from its parsed
// filename options, before a Resolve pass has had a chance to populate
// LayerIndex/NameVal — identity is filename-derived per spec.md §3, so
// this must not wait on reference inheritance.
func imageIdentity(name grammar.Name) string {
	if v, ok := name.Opts["layer"]; ok {
		return "layer:" + v.Scalar
	}
	if v, ok := name.Opts["name"]; ok {
		return "name:" + v.Scalar
	}
	return "unnamed"
}

// textIdentity is imageIdentity's TextLine counterpart (line/name).
func textIdentity(name grammar.Name) string {
	if v, ok := name.Opts["line"]; ok {
		return "line:" + v.Scalar
	}
	if v, ok := name.Opts["name"]; ok {
		return "name:" + v.Scalar
	}
	return "unnamed"
}

// ScanDeck exposes scanDeck for one-shot callers outside the daemon's
// watch/resolve/compose loop, such as the inspect CLI command.
func ScanDeck(root string, esc grammar.Escapes) (*model.Deck, error) {
	return scanDeck(root, esc)
}

// keepNewer reports whether a freshly scanned entity at modtime next
// should replace whatever currently occupies its identity slot, per
// spec.md §3's "duplicate identity within a parent: the entity with the
// most recent filesystem modification time wins; others are shadowed
// (not deleted)". A strict non-earlier check makes the later-processed
// file (os.ReadDir's alphabetical order) win an exact-mtime tie, matching
// the pre-existing default when no shadowing was in play.
func keepNewer(existing time.Time, hasExisting bool, next time.Time) bool {
	return !hasExisting || !next.Before(existing)
}

// scanDeck walks one deck root directory and builds the in-memory Deck
// tree, classifying every entry by grammar.ParseFilename. Directories
// that don't parse as a known Kind are ignored (future-proofing per
// spec.md's grammar being forward-extensible). Entities that collide on
// identity within the deck are resolved by most-recent-mtime; the loser
// is shadowed, not dropped from disk.
func scanDeck(root string, esc grammar.Escapes) (*model.Deck, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, os.ErrInvalid
	}
	serial := filepath.Base(root)
	deck := model.NewDeck(root, serial)

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	varMTime := map[string]time.Time{}
	eventMTimes := map[model.EventKind]time.Time{}

	for _, e := range entries {
		path := filepath.Join(root, e.Name())
		name, ok := grammar.ParseFilename(e.Name(), esc)
		if !ok {
			continue
		}
		mtime := modTimeOf(e)
		switch name.Kind {
		case grammar.KindPage:
			n, _ := strconv.Atoi(name.Main["n"])
			var existingMTime time.Time
			existing, hasExisting := deck.Pages[n]
			if hasExisting {
				existingMTime = existing.ModTime
			}
			if !keepNewer(existingMTime, hasExisting, mtime) {
				continue
			}
			page := model.NewPage(path, deck, n)
			page.RawName = name
			page.ModTime = mtime
			deck.Pages[n] = page
			if err := scanPage(page, esc); err != nil {
				return nil, err
			}
		case grammar.KindVar:
			key := name.Main["name"]
			if last, ok := varMTime[key]; ok && !keepNewer(last, true, mtime) {
				continue
			}
			varMTime[key] = mtime
			v := model.NewVariable(path, deck, key)
			v.RawName = name
			v.ModTime = mtime
			deck.Vars[key] = v
		case grammar.KindEvent:
			kind := model.EventKind(name.Main["kind"])
			if last, ok := eventMTimes[kind]; ok && !keepNewer(last, true, mtime) {
				continue
			}
			eventMTimes[kind] = mtime
			ev := model.NewEvent(path, deck, kind)
			ev.RawName = name
			ev.ModTime = mtime
			deck.Events[kind] = ev
		}
	}
	return deck, nil
}

func scanPage(page *model.Page, esc grammar.Escapes) error {
	entries, err := os.ReadDir(page.Path)
	if err != nil {
		return err
	}

	varMTime := map[string]time.Time{}
	eventMTimes := map[model.EventKind]time.Time{}

	for _, e := range entries {
		path := filepath.Join(page.Path, e.Name())
		name, ok := grammar.ParseFilename(e.Name(), esc)
		if !ok {
			continue
		}
		mtime := modTimeOf(e)
		switch name.Kind {
		case grammar.KindKey:
			row, _ := strconv.Atoi(name.Main["row"])
			col, _ := strconv.Atoi(name.Main["col"])
			rc := [2]int{row, col}
			var existingMTime time.Time
			existing, hasExisting := page.Keys[rc]
			if hasExisting {
				existingMTime = existing.ModTime
			}
			if !keepNewer(existingMTime, hasExisting, mtime) {
				continue
			}
			key := model.NewKey(path, page, row, col)
			key.RawName = name
			key.ModTime = mtime
			page.Keys[rc] = key
			if e.IsDir() {
				if err := scanKey(key, esc); err != nil {
					return err
				}
			}
		case grammar.KindVar:
			k := name.Main["name"]
			if last, ok := varMTime[k]; ok && !keepNewer(last, true, mtime) {
				continue
			}
			varMTime[k] = mtime
			v := model.NewVariable(path, page, k)
			v.RawName = name
			v.ModTime = mtime
			page.Vars[k] = v
		case grammar.KindEvent:
			kind := model.EventKind(name.Main["kind"])
			if last, ok := eventMTimes[kind]; ok && !keepNewer(last, true, mtime) {
				continue
			}
			eventMTimes[kind] = mtime
			ev := model.NewEvent(path, page, kind)
			ev.RawName = name
			ev.ModTime = mtime
			page.Events[kind] = ev
		}
	}
	return nil
}

func scanKey(key *model.Key, esc grammar.Escapes) error {
	entries, err := os.ReadDir(key.Path)
	if err != nil {
		return err
	}

	varMTime := map[string]time.Time{}
	eventMTimes := map[model.EventKind]time.Time{}

	for _, e := range entries {
		path := filepath.Join(key.Path, e.Name())
		name, ok := grammar.ParseFilename(e.Name(), esc)
		if !ok {
			continue
		}
		mtime := modTimeOf(e)
		switch name.Kind {
		case grammar.KindImage:
			ident := imageIdentity(name)
			existing, hasExisting := key.Images[ident]
			if hasExisting && !keepNewer(existing.ModTime, true, mtime) {
				continue
			}
			il := model.NewImageLayer(path, key)
			il.RawName = name
			il.ModTime = mtime
			key.Images[ident] = il
		case grammar.KindText:
			ident := textIdentity(name)
			existing, hasExisting := key.Texts[ident]
			if hasExisting && !keepNewer(existing.ModTime, true, mtime) {
				continue
			}
			t := model.NewTextLine(path, key)
			t.RawName = name
			t.ModTime = mtime
			key.Texts[ident] = t
		case grammar.KindVar:
			k := name.Main["name"]
			if last, ok := varMTime[k]; ok && !keepNewer(last, true, mtime) {
				continue
			}
			varMTime[k] = mtime
			v := model.NewVariable(path, key, k)
			v.RawName = name
			v.ModTime = mtime
			key.Vars[k] = v
		case grammar.KindEvent:
			kind := model.EventKind(name.Main["kind"])
			if last, ok := eventMTimes[kind]; ok && !keepNewer(last, true, mtime) {
				continue
			}
			eventMTimes[kind] = mtime
			ev := model.NewEvent(path, key, kind)
			ev.RawName = name
			ev.ModTime = mtime
			key.Events[kind] = ev
		}
	}
	return nil
}

// sortedPageNumbers returns a deck's page numbers in ascending order, used
// by __next__/__previous__/__first__ page-sequence resolution.
func sortedPageNumbers(deck *model.Deck) []int {
	nums := make([]int, 0, len(deck.Pages))
	for n := range deck.Pages {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}

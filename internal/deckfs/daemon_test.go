package deckfs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/deckfsd/deckfsd/internal/grammar"
	"github.com/deckfsd/deckfsd/internal/hwfacade"
	"github.com/deckfsd/deckfsd/internal/vars"
)

func mustMkdir(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(path, 0o755))
}

func mustTouch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, nil, 0o644))
}

// newTestDaemon builds a Daemon against root without starting its
// watcher/hardware-event loop, so a test can drive rescans deterministically.
func newTestDaemon(t *testing.T, root string, hw hwfacade.Facade) *Daemon {
	t.Helper()
	d, err := New(nil, root, hw, nil)
	require.NoError(t, err)
	return d
}

// TestScopeCascadeVariableDrivesImageColor exercises §8 scenario 1
// (variable-driven icon) and scenario 5 (scope cascade): a key-scope
// IMAGE references $VAR_COLOR, which is defined at deck scope; renaming
// the deck variable's filename to a new value recomposes the key with
// the new fill color on the next rescan.
func TestScopeCascadeVariableDrivesImageColor(t *testing.T) {
	root := t.TempDir()
	keyDir := filepath.Join(root, "PAGE_1", "KEY_0,0")
	mustMkdir(t, keyDir)
	varPath := filepath.Join(root, "VAR_COLOR;value=#ff0000")
	mustTouch(t, varPath)
	mustTouch(t, filepath.Join(keyDir, "IMAGE;draw=fill;fill=$VAR_COLOR"))

	hw := hwfacade.NewMock(1, 1, 8, 8)
	d := newTestDaemon(t, root, hw)
	require.NoError(t, d.rescan())

	before := hw.KeyImage(0, 0)
	require.NotNil(t, before)
	require.Equal(t, uint8(0xff), before.RGBAAt(4, 4).R)
	require.Equal(t, uint8(0x00), before.RGBAAt(4, 4).B)

	require.NoError(t, os.Rename(varPath, filepath.Join(root, "VAR_COLOR;value=#0000ff")))
	require.NoError(t, d.rescan())

	after := hw.KeyImage(0, 0)
	require.NotNil(t, after)
	require.Equal(t, uint8(0x00), after.RGBAAt(4, 4).R)
	require.Equal(t, uint8(0xff), after.RGBAAt(4, 4).B)
}

// TestKeyScopeVariableShadowsDeckScope exercises the key -> page -> deck
// lookup cascade stopping at the nearest definition.
func TestKeyScopeVariableShadowsDeckScope(t *testing.T) {
	root := t.TempDir()
	keyDir := filepath.Join(root, "PAGE_1", "KEY_0,0")
	mustMkdir(t, keyDir)
	mustTouch(t, filepath.Join(root, "VAR_COLOR;value=#ff0000"))
	mustTouch(t, filepath.Join(keyDir, "VAR_COLOR;value=#00ff00"))
	mustTouch(t, filepath.Join(keyDir, "IMAGE;draw=fill;fill=$VAR_COLOR"))

	hw := hwfacade.NewMock(1, 1, 8, 8)
	d := newTestDaemon(t, root, hw)
	require.NoError(t, d.rescan())

	img := hw.KeyImage(0, 0)
	require.NotNil(t, img)
	px := img.RGBAAt(4, 4)
	require.Equal(t, uint8(0x00), px.R)
	require.Equal(t, uint8(0xff), px.G)
}

// TestDisabledKeyIsSkippedDuringComposeAndInput exercises the "blank,
// unresponsive key" recovery policy: a disabled key still scans but
// never reaches the hardware facade or a raw press dispatch.
func TestDisabledKeyIsSkippedDuringComposeAndInput(t *testing.T) {
	root := t.TempDir()
	keyDir := filepath.Join(root, "PAGE_1", "KEY_0,0;disabled")
	mustMkdir(t, keyDir)
	mustTouch(t, filepath.Join(keyDir, "IMAGE;draw=fill;fill=#ff0000"))

	hw := hwfacade.NewMock(1, 1, 8, 8)
	d := newTestDaemon(t, root, hw)
	require.NoError(t, d.rescan())

	require.Nil(t, hw.KeyImage(0, 0))

	d.handleKeyEvent(hwfacade.KeyEvent{Row: 0, Col: 0, Pressed: true, At: time.Now()})
	d.mu.Lock()
	numRunners := len(d.runners)
	d.mu.Unlock()
	require.Equal(t, 0, numRunners)
}

// TestPageNavigationOverlayAndBack exercises §8 scenario 3: opening an
// overlay page keeps the underlying page in the controller's displayed
// stack, and __back__ pops it.
func TestPageNavigationOverlayAndBack(t *testing.T) {
	root := t.TempDir()
	mustMkdir(t, filepath.Join(root, "PAGE_1", "KEY_0,0"))
	mustMkdir(t, filepath.Join(root, "PAGE_2;overlay", "KEY_0,0"))

	hw := hwfacade.NewMock(1, 1, 8, 8)
	d := newTestDaemon(t, root, hw)
	require.NoError(t, d.rescan())

	require.Equal(t, "1", d.CurrentPage())
	require.NoError(t, d.GoToPage("2"))
	require.Equal(t, "2", d.CurrentPage())
	d.mu.Lock()
	displayed := d.page.DisplayedPages()
	d.mu.Unlock()
	require.Equal(t, []string{"1", "2"}, displayed)

	require.NoError(t, d.GoToPage("__back__"))
	require.Equal(t, "1", d.CurrentPage())
}

// TestRescanRemovesStaleRunnerOnEventDeletion exercises rebuildRunners's
// stop-and-discard path for an event whose backing file disappears.
func TestRescanRemovesStaleRunnerOnEventDeletion(t *testing.T) {
	root := t.TempDir()
	keyDir := filepath.Join(root, "PAGE_1", "KEY_0,0")
	mustMkdir(t, keyDir)
	evPath := filepath.Join(keyDir, "ON_PRESS;command=true")
	mustTouch(t, evPath)

	hw := hwfacade.NewMock(1, 1, 8, 8)
	d := newTestDaemon(t, root, hw)
	require.NoError(t, d.rescan())

	d.mu.Lock()
	n := len(d.runners)
	d.mu.Unlock()
	require.Equal(t, 1, n)

	require.NoError(t, os.Remove(evPath))
	require.NoError(t, d.rescan())

	d.mu.Lock()
	n = len(d.runners)
	d.mu.Unlock()
	require.Equal(t, 0, n)
}

// TestDuplicateImageIdentityShadowedByMtime exercises §3's "duplicate
// identity within a parent: the entity with the most recent modification
// time wins; others are shadowed (not deleted)" for two unnamed,
// unlayered IMAGE files in the same key — a common atomic-save artifact.
func TestDuplicateImageIdentityShadowedByMtime(t *testing.T) {
	root := t.TempDir()
	keyDir := filepath.Join(root, "PAGE_1", "KEY_0,0")
	mustMkdir(t, keyDir)

	older := filepath.Join(keyDir, "IMAGE;draw=fill;fill=#ff0000")
	newer := filepath.Join(keyDir, "IMAGE;draw=fill;fill=#0000ff;x=1")
	mustTouch(t, older)
	mustTouch(t, newer)
	now := time.Now()
	require.NoError(t, os.Chtimes(older, now, now.Add(-time.Minute)))
	require.NoError(t, os.Chtimes(newer, now, now))

	hw := hwfacade.NewMock(1, 1, 8, 8)
	d := newTestDaemon(t, root, hw)
	require.NoError(t, d.rescan())

	d.mu.Lock()
	key := d.deck.Pages[1].Keys[[2]int{0, 0}]
	d.mu.Unlock()
	require.Len(t, key.Images, 1)

	img := hw.KeyImage(0, 0)
	require.NotNil(t, img)
	px := img.RGBAAt(4, 4)
	require.Equal(t, uint8(0x00), px.R)
	require.Equal(t, uint8(0xff), px.B)
}

// TestReservedVariableNameRejected exercises §3's "reserved prefix SDFS_
// names are system-provided and unassignable".
func TestReservedVariableNameRejected(t *testing.T) {
	root := t.TempDir()
	mustMkdir(t, root)
	mustTouch(t, filepath.Join(root, "VAR_SDFS_FOO;value=bogus"))

	deck, err := ScanDeck(root, grammar.DefaultEscapes())
	require.NoError(t, err)

	store := vars.NewStore()
	v := deck.Vars["SDFS_FOO"]
	store.Put(deck, v)
	_ = v.Resolve(store.Lookup, nil)
	require.False(t, v.Valid())
}

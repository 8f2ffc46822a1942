// Package model defines the typed entity records (Deck, Page, Key,
// ImageLayer, TextLine, Event, Variable) that the grammar parses filenames
// into, each carrying its identity, raw/normalized option maps, and a
// validity flag per spec.md §4.2.
package model

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/deckfsd/deckfsd/internal/deckerr"
	"github.com/deckfsd/deckfsd/internal/grammar"
)

// EventKind discriminates the five event trigger kinds.
type EventKind string

const (
	EventPress     EventKind = "press"
	EventLongPress EventKind = "longpress"
	EventRelease   EventKind = "release"
	EventStart     EventKind = "start"
	EventEnd       EventKind = "end"
)

// Invalid carries the reason an entity failed to resolve, per §7.
type Invalid struct {
	Reason error
}

func (i *Invalid) Error() string {
	if i == nil || i.Reason == nil {
		return "invalid"
	}
	return i.Reason.Error()
}

// Dependency is one (variable-name, reference-target) pair read during a
// resolve pass, consumed by the dependency graph (component E).
type Dependency struct {
	Variable string // non-empty for a $VAR_X read
	RefPath  string // non-empty for a ref=... read, as a canonical "page/key/sub" path
}

// Base is embedded by every concrete entity and implements the shared
// bookkeeping: parent linkage, raw options, normalized options, validity,
// and last-resolve dependencies.
type Base struct {
	mu sync.RWMutex

	Path       string
	ModTime    time.Time
	Parent     Entity
	RawName    grammar.Name
	Esc        grammar.Escapes
	Normalized map[string]string
	NormTuples map[string]map[string]string
	valid      bool
	invalidMsg *Invalid
	deps       []Dependency
	disabled   bool
}

// Entity is implemented by Deck, Page, Key, ImageLayer, TextLine, Event,
// and Variable.
type Entity interface {
	// Identity returns a stable string uniquely identifying this entity
	// among its siblings (used for shadow-by-mtime comparisons and for
	// graph node naming).
	Identity() string
	// EntityPath returns the filesystem path this entity was parsed from.
	EntityPath() string
	// IsDisabled reports the resolved disabled/enabled=false flag.
	IsDisabled() bool
	// Resolve recomputes normalized options; see Base.Resolve.
	Resolve(lookup VariableLookup, refs ReferenceResolver) error
	// Dependencies returns the set read during the last Resolve.
	Dependencies() []Dependency
	// Valid reports whether the last Resolve succeeded.
	Valid() bool
}

// VariableLookup resolves a $VAR_NAME reference from the perspective of a
// given entity (its enclosing key/page/deck), returning ok=false if
// unresolved anywhere in the cascade.
type VariableLookup func(fromEntity Entity, name string) (value string, ok bool)

// ReferenceResolver resolves a ref=PAGE:KEY[:SUB] target relative to a
// given entity, returning the referenced entity's raw (pre-normalization)
// option map, or ok=false if the target cannot be found.
type ReferenceResolver func(fromEntity Entity, ref string) (main map[string]string, opts map[string]grammar.Value, ok bool)

func (b *Base) EntityPath() string { return b.Path }

func (b *Base) IsDisabled() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.disabled
}

func (b *Base) Valid() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.valid
}

func (b *Base) Dependencies() []Dependency {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Dependency, len(b.deps))
	copy(out, b.deps)
	return out
}

// beginResolve merges the entity's raw options (mergeReference) and applies
// the options shared by every entity kind: `disabled`/`enabled=false` (at
// most one form; both present is a Parse error). On failure it marks the
// entity invalid. Variable substitution and `{expr}` interpolation are left
// to the caller (internal/expr) before Base.finishResolve.
func (b *Base) beginResolve() (map[string]string, map[string]grammar.Value, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	main, opts, err := mergeReference(b)
	if err != nil {
		b.valid = false
		b.invalidMsg = &Invalid{Reason: err}
		return nil, nil, err
	}

	_, hasDisabled := opts["disabled"]
	_, hasEnabled := opts["enabled"]
	if hasDisabled && hasEnabled {
		err := deckerr.Newf(deckerr.Parse, b.Path, "both disabled and enabled given")
		b.valid = false
		b.invalidMsg = &Invalid{Reason: err}
		return nil, nil, err
	}
	disabled := false
	if v, ok := opts["disabled"]; ok {
		disabled = v.Scalar != "false"
	}
	if v, ok := opts["enabled"]; ok {
		disabled = v.Scalar == "false"
	}
	b.disabled = disabled

	return main, opts, nil
}

// mergeReference is a seam for ref=... resolution; by default (no
// reference) it just returns this entity's own raw main/opts. Concrete
// entities that support `ref=` (ImageLayer, TextLine, Event - transitively
// via Key/Page) override resolution through the ReferenceResolver passed to
// Resolve; Base itself never calls out to the resolver since the resolver
// needs the owning entity's typed identity to interpret PAGE:KEY:SUB.
func mergeReference(b *Base) (map[string]string, map[string]grammar.Value, error) {
	return b.RawName.Main, b.RawName.Opts, nil
}

func (b *Base) finishResolve(norm map[string]string, tuples map[string]map[string]string, deps []Dependency) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Normalized = norm
	b.NormTuples = tuples
	b.deps = deps
	b.valid = true
	b.invalidMsg = nil
}

func (b *Base) markInvalid(err error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.valid = false
	b.invalidMsg = &Invalid{Reason: err}
	return err
}

// Get returns a normalized scalar option, and whether it was present.
func (b *Base) Get(name string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.Normalized[name]
	return v, ok
}

// GetTuple returns a normalized tuple option's comma-separated value plus
// any named/indexed overrides already merged in by Resolve.
func (b *Base) GetTuple(name string) (string, map[string]string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.Normalized[name], b.NormTuples[name]
}

// --- Deck -------------------------------------------------------------

// Deck is the root entity for one physical device, identified by serial
// number (its directory name).
type Deck struct {
	Base
	Serial  string
	Pages   map[int]*Page
	Vars    map[string]*Variable
	Events  map[EventKind]*Event // start/end only
}

func NewDeck(path, serial string) *Deck {
	d := &Deck{Serial: serial, Pages: map[int]*Page{}, Vars: map[string]*Variable{}, Events: map[EventKind]*Event{}}
	d.Path = path
	return d
}

func (d *Deck) Identity() string { return d.Serial }

func (d *Deck) Resolve(lookup VariableLookup, refs ReferenceResolver) error {
	_, _, err := d.beginResolve()
	if err != nil {
		return err
	}
	d.finishResolve(map[string]string{}, map[string]map[string]string{}, nil)
	return nil
}

// --- Page ---------------------------------------------------------------

// Page is a directory whose keys are displayed together.
type Page struct {
	Base
	Deck    *Deck
	Number  int
	Keys    map[[2]int]*Key
	Vars    map[string]*Variable
	Events  map[EventKind]*Event
}

func NewPage(path string, deck *Deck, number int) *Page {
	p := &Page{Deck: deck, Number: number, Keys: map[[2]int]*Key{}, Vars: map[string]*Variable{}, Events: map[EventKind]*Event{}}
	p.Path = path
	p.Parent = deck
	return p
}

func (p *Page) Identity() string { return fmt.Sprintf("%d", p.Number) }

func (p *Page) Name() string {
	if v, ok := p.Get("name"); ok {
		return v
	}
	return ""
}

func (p *Page) Overlay() bool {
	v, ok := p.Get("overlay")
	return ok && v != "false"
}

func (p *Page) Resolve(lookup VariableLookup, refs ReferenceResolver) error {
	main, opts, err := p.beginResolve()
	if err != nil {
		return err
	}
	norm := map[string]string{}
	if v, ok := opts["name"]; ok {
		norm["name"] = v.Scalar
	}
	_ = main
	if v, ok := opts["overlay"]; ok {
		norm["overlay"] = v.Scalar
	}
	p.finishResolve(norm, map[string]map[string]string{}, nil)
	return nil
}

// Navigable reports whether the page has its directory and at least one
// non-disabled key, per spec.md §4.9.
func (p *Page) Navigable() bool {
	for _, k := range p.Keys {
		if !k.IsDisabled() {
			return true
		}
	}
	return false
}

// --- Key ------------------------------------------------------------

// Key is one pressable, illuminated cell, identified by (row, col).
type Key struct {
	Base
	Page       *Page
	Row, Col   int
	Images     map[string]*ImageLayer // keyed by composite identity (layer or name)
	Texts      map[string]*TextLine
	Events     map[EventKind]*Event
	Vars       map[string]*Variable
}

func NewKey(path string, page *Page, row, col int) *Key {
	k := &Key{Page: page, Row: row, Col: col, Images: map[string]*ImageLayer{}, Texts: map[string]*TextLine{}, Events: map[EventKind]*Event{}, Vars: map[string]*Variable{}}
	k.Path = path
	k.Parent = page
	return k
}

func (k *Key) Identity() string { return fmt.Sprintf("%d,%d", k.Row, k.Col) }

func (k *Key) Name() string {
	if v, ok := k.Get("name"); ok {
		return v
	}
	return ""
}

func (k *Key) Resolve(lookup VariableLookup, refs ReferenceResolver) error {
	main, opts, err := k.beginResolve()
	if err != nil {
		return err
	}
	norm := map[string]string{}
	_ = main
	if v, ok := opts["name"]; ok {
		norm["name"] = v.Scalar
	}
	if v, ok := opts["ref"]; ok {
		norm["ref"] = v.Scalar
	}
	k.finishResolve(norm, map[string]map[string]string{}, nil)
	return nil
}

// --- ImageLayer -----------------------------------------------------

// ImageLayer is one drawing or raster image stacked into a key's bitmap.
type ImageLayer struct {
	Base
	Key        *Key
	LayerIndex *int
	NameVal    string
}

func NewImageLayer(path string, key *Key) *ImageLayer {
	il := &ImageLayer{Key: key}
	il.Path = path
	il.Parent = key
	return il
}

func (il *ImageLayer) Identity() string {
	if il.LayerIndex != nil {
		return fmt.Sprintf("layer:%d", *il.LayerIndex)
	}
	if il.NameVal != "" {
		return "name:" + il.NameVal
	}
	return "unnamed"
}

func (il *ImageLayer) Resolve(lookup VariableLookup, refs ReferenceResolver) error {
	main, opts, err := il.resolveWithRef(refs)
	if err != nil {
		return err
	}
	_, _, beginErr := il.beginResolveFromMerged(main, opts)
	if beginErr != nil {
		return beginErr
	}
	norm, tuples, deps, rerr := normalizeImageOpts(il, opts, lookup)
	if rerr != nil {
		return il.markInvalid(rerr)
	}
	il.finishResolve(norm, tuples, deps)
	return nil
}

// resolveWithRef follows ref=PAGE:KEY:SUB if present, returning the
// effectively merged main+opts (own overriding the reference's).
func (il *ImageLayer) resolveWithRef(refs ReferenceResolver) (map[string]string, map[string]grammar.Value, error) {
	return resolveWithRefGeneric(&il.Base, refs)
}

func (il *ImageLayer) beginResolveFromMerged(main map[string]string, opts map[string]grammar.Value) (map[string]string, map[string]grammar.Value, error) {
	return beginResolveFromMergedGeneric(&il.Base, main, opts)
}

// --- TextLine ---------------------------------------------------------

// TextLine is one line of rendered text stacked over a key's image layers.
type TextLine struct {
	Base
	Key       *Key
	LineIndex *int
	NameVal   string
}

func NewTextLine(path string, key *Key) *TextLine {
	t := &TextLine{Key: key}
	t.Path = path
	t.Parent = key
	return t
}

func (t *TextLine) Identity() string {
	if t.LineIndex != nil {
		return fmt.Sprintf("line:%d", *t.LineIndex)
	}
	if t.NameVal != "" {
		return "name:" + t.NameVal
	}
	return "unnamed"
}

func (t *TextLine) Resolve(lookup VariableLookup, refs ReferenceResolver) error {
	main, opts, err := resolveWithRefGeneric(&t.Base, refs)
	if err != nil {
		return err
	}
	if _, _, berr := beginResolveFromMergedGeneric(&t.Base, main, opts); berr != nil {
		return berr
	}
	norm, tuples, deps, rerr := normalizeTextOpts(t, opts, lookup)
	if rerr != nil {
		return t.markInvalid(rerr)
	}
	t.finishResolve(norm, tuples, deps)
	return nil
}

// --- Event --------------------------------------------------------------

// Event is one ON_<KIND> action owned by a key, page, or deck.
type Event struct {
	Base
	Owner Entity
	Kind  EventKind
}

func NewEvent(path string, owner Entity, kind EventKind) *Event {
	e := &Event{Owner: owner, Kind: kind}
	e.Path = path
	e.Parent = owner
	return e
}

func (e *Event) Identity() string { return string(e.Kind) }

func (e *Event) Resolve(lookup VariableLookup, refs ReferenceResolver) error {
	main, opts, err := resolveWithRefGeneric(&e.Base, refs)
	if err != nil {
		return err
	}
	if _, _, berr := beginResolveFromMergedGeneric(&e.Base, main, opts); berr != nil {
		return berr
	}
	norm, deps, rerr := normalizeEventOpts(e, opts, lookup)
	if rerr != nil {
		return e.markInvalid(rerr)
	}
	e.finishResolve(norm, map[string]map[string]string{}, deps)
	return nil
}

// --- Variable -------------------------------------------------------

// VarMode selects where a Variable's value comes from.
type VarMode int

const (
	VarModeValue VarMode = iota
	VarModeContent
	VarModeFile
)

// Variable is a scoped name -> value binding, optionally conditional via
// if/elif*/else branches.
type Variable struct {
	Base
	Owner Entity
	Name  string
	Mode  VarMode
	FilePath string
	// Branches holds (condition, then) pairs in source order; the first
	// whose condition evaluates true wins. An empty Condition is the
	// unconditional/else branch.
	Branches []VarBranch
}

// VarBranch is one if/elif/else arm of a conditional variable definition.
type VarBranch struct {
	Condition string // expression text, empty for unconditional/else
	Then      string
}

func NewVariable(path string, owner Entity, name string) *Variable {
	v := &Variable{Owner: owner, Name: name}
	v.Path = path
	v.Parent = owner
	return v
}

func (v *Variable) Identity() string { return v.Name }

func (v *Variable) Resolve(lookup VariableLookup, refs ReferenceResolver) error {
	_, opts, err := v.beginResolve()
	if err != nil {
		return err
	}
	if IsReservedName(v.Name) {
		return v.markInvalid(deckerr.Newf(deckerr.Parse, v.Path, "variable name %q uses the reserved SDFS_ prefix", v.Name))
	}
	norm := map[string]string{}
	if val, ok := opts["value"]; ok {
		v.Mode = VarModeValue
		norm["value"] = val.Scalar
	} else if f, ok := opts["file"]; ok {
		v.Mode = VarModeFile
		norm["file"] = f.Scalar
		v.FilePath = f.Scalar
	} else {
		v.Mode = VarModeContent
	}

	branches, berr := parseConditionalBranches(opts)
	if berr != nil {
		return v.markInvalid(berr)
	}
	v.Branches = branches
	v.finishResolve(norm, map[string]map[string]string{}, nil)
	return nil
}

func parseConditionalBranches(opts map[string]grammar.Value) ([]VarBranch, error) {
	var branches []VarBranch
	if ifCond, ok := opts["if"]; ok {
		thenVal := opts["then"].Scalar
		branches = append(branches, VarBranch{Condition: ifCond.Scalar, Then: thenVal})
		for i := 1; ; i++ {
			cond, hasCond := opts[fmt.Sprintf("elif.%d", i)]
			then, hasThen := opts[fmt.Sprintf("then.%d", i)]
			if !hasCond {
				break
			}
			t := ""
			if hasThen {
				t = then.Scalar
			}
			branches = append(branches, VarBranch{Condition: cond.Scalar, Then: t})
		}
		if elseVal, ok := opts["else"]; ok {
			branches = append(branches, VarBranch{Then: elseVal.Scalar})
		}
	}
	return branches, nil
}

// IsReservedName reports whether name is a reserved SDFS_-prefixed,
// system-provided name and therefore cannot be user-assigned.
func IsReservedName(name string) bool {
	return strings.HasPrefix(name, "SDFS_")
}

// --- shared helpers ---------------------------------------------------

func resolveWithRefGeneric(b *Base, refs ReferenceResolver) (map[string]string, map[string]grammar.Value, error) {
	main := b.RawName.Main
	opts := b.RawName.Opts

	refVal, hasRef := opts["ref"]
	if !hasRef || refs == nil {
		return main, opts, nil
	}
	refMain, refOpts, ok := refs(nil, refVal.Scalar)
	if !ok {
		return nil, nil, deckerr.Newf(deckerr.ReferenceUnresolved, b.Path, "ref=%s not found", refVal.Scalar)
	}
	merged := map[string]grammar.Value{}
	for k, v := range refOpts {
		merged[k] = v
	}
	for k, v := range opts {
		if v.IsTuple {
			base := merged[k]
			if base.IsTuple || base.Scalar != "" {
				baseScalar := grammar.MergeSubOptions(base.Scalar, v.Parts)
				base.Scalar = baseScalar
				base.IsTuple = false
				merged[k] = base
			}
			continue
		}
		merged[k] = v
	}
	mergedMain := map[string]string{}
	for k, v := range refMain {
		mergedMain[k] = v
	}
	for k, v := range main {
		mergedMain[k] = v
	}
	return mergedMain, merged, nil
}

func beginResolveFromMergedGeneric(b *Base, main map[string]string, opts map[string]grammar.Value) (map[string]string, map[string]grammar.Value, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, hasDisabled := opts["disabled"]
	_, hasEnabled := opts["enabled"]
	if hasDisabled && hasEnabled {
		err := deckerr.Newf(deckerr.Parse, b.Path, "both disabled and enabled given")
		b.valid = false
		b.invalidMsg = &Invalid{Reason: err}
		return nil, nil, err
	}
	disabled := false
	if v, ok := opts["disabled"]; ok {
		disabled = v.Scalar != "false"
	}
	if v, ok := opts["enabled"]; ok {
		disabled = v.Scalar == "false"
	}
	b.disabled = disabled
	return main, opts, nil
}

func sortedKeys(m map[string]grammar.Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

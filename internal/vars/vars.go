// Package vars implements the hierarchical variable store and its
// key -> page -> deck -> process-env scope cascade, per spec.md §4.4.
// It supplies the model.VariableLookup callback the entity model needs to
// resolve `$VAR_NAME` references, and fans out change notifications to the
// dependency graph (component E) whenever a variable's resolved value
// changes.
package vars

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/deckfsd/deckfsd/internal/expr"
	"github.com/deckfsd/deckfsd/internal/grammar"
	"github.com/deckfsd/deckfsd/internal/model"
)

// Store holds the resolved value of every variable currently known to the
// daemon, keyed by owning entity + name, and serves scope-cascade lookups.
type Store struct {
	mu sync.RWMutex

	// byOwner maps an owning entity's Identity-path (built by entityPathKey) to
	// its set of locally-defined variables.
	byOwner map[string]map[string]*model.Variable

	// cache is keyed by ownerPath+"/"+name; Put and Remove delete its
	// entry, and no lookup reads or fills it.
	cache map[string]string

	// Changed is invoked whenever a variable's resolved value changes, so
	// the dependency graph can mark its dependents dirty. The argument is
	// the variable's bare name (e.g. "COLOR"); edges in the graph are keyed
	// the same way, so a same-named variable at a different scope also
	// reschedules its own readers — a deliberate precision/simplicity
	// trade-off since spec.md never requires scope-qualified invalidation,
	// only "producer changed -> dependents recompute".
	Changed func(name string)

	// lastValue remembers each variable's previously resolved value, keyed
	// by ownerPath+"/"+name, so NotifyChanged can detect a real change and
	// avoid spurious re-ticks when a file touch doesn't alter the value.
	lastValue map[string]string
}

func NewStore() *Store {
	return &Store{
		byOwner:   map[string]map[string]*model.Variable{},
		cache:     map[string]string{},
		lastValue: map[string]string{},
	}
}

// entityPathKey builds a stable path string for an owning entity by walking
// its Parent chain, used to scope variable definitions to the right level.
func entityPathKey(e model.Entity) string {
	if e == nil {
		return ""
	}
	var segs []string
	cur := e
	for cur != nil {
		segs = append([]string{cur.Identity()}, segs...)
		cur = parentOf(cur)
	}
	return strings.Join(segs, "/")
}

// parentOf extracts the Parent field via the concrete types, since Entity
// itself does not expose it (Base.Parent is intentionally unexported from
// the interface to keep the public contract narrow).
func parentOf(e model.Entity) model.Entity {
	switch v := e.(type) {
	case *model.Deck:
		return nil
	case *model.Page:
		return v.Deck
	case *model.Key:
		return v.Page
	case *model.ImageLayer:
		return v.Key
	case *model.TextLine:
		return v.Key
	case *model.Event:
		return v.Owner
	case *model.Variable:
		return v.Owner
	}
	return nil
}

// Put registers/replaces a variable definition at its owning scope.
func (s *Store) Put(owner model.Entity, v *model.Variable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := entityPathKey(owner)
	m, ok := s.byOwner[key]
	if !ok {
		m = map[string]*model.Variable{}
		s.byOwner[key] = m
	}
	m[v.Name] = v
	delete(s.cache, key+"/"+v.Name)
}

// Remove deletes a variable definition at its owning scope (e.g. the
// defining file was deleted).
func (s *Store) Remove(owner model.Entity, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := entityPathKey(owner)
	if m, ok := s.byOwner[key]; ok {
		delete(m, name)
	}
	delete(s.cache, key+"/"+name)
}

// Lookup implements model.VariableLookup: starting from fromEntity, walk
// key -> page -> deck, returning the first scope that defines name; fall
// back to the process environment under the SDFS_ prefix.
func (s *Store) Lookup(fromEntity model.Entity, name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cur := fromEntity
	for cur != nil {
		key := entityPathKey(cur)
		if m, ok := s.byOwner[key]; ok {
			if v, ok := m[name]; ok {
				if val, ok := s.resolveVariable(v); ok {
					return val, true
				}
			}
		}
		cur = parentOf(cur)
	}
	if val, ok := os.LookupEnv("SDFS_" + name); ok {
		return val, true
	}
	return "", false
}

// resolveVariable evaluates a *model.Variable's effective string value:
// its `value=` option, file/content mode, or the first matching
// if/elif/else branch, per §4.4.
func (s *Store) resolveVariable(v *model.Variable) (string, bool) {
	if !v.Valid() {
		return "", false
	}

	if len(v.Branches) > 0 {
		self := entityPathKey(v.Owner)
		for _, br := range v.Branches {
			if br.Condition == "" {
				return br.Then, true
			}
			res, err := expr.Eval(br.Condition, s.exprLookupFrom(v.Owner, self))
			if err != nil {
				continue
			}
			if res.AsBool() {
				return br.Then, true
			}
		}
		return "", false
	}

	switch v.Mode {
	case model.VarModeValue:
		val, ok := v.Get("value")
		return val, ok
	case model.VarModeFile:
		b, err := os.ReadFile(v.FilePath)
		if err != nil {
			return "", false
		}
		return strings.TrimRight(string(b), "\n"), true
	case model.VarModeContent:
		b, err := os.ReadFile(v.Path)
		if err != nil {
			return "", false
		}
		return strings.TrimRight(string(b), "\n"), true
	}
	return "", false
}

// exprLookupFrom builds an expr.VarLookup that resolves $VAR references
// inside a conditional variable's if/elif expressions from the perspective
// of the variable's owning entity.
func (s *Store) exprLookupFrom(from model.Entity, selfKey string) expr.VarLookup {
	return func(name string, idx *int, lineCount bool) (expr.Value, bool) {
		raw, ok := s.lookupLocked(from, name)
		if !ok {
			return expr.Value{}, false
		}
		if idx == nil && !lineCount {
			return expr.Str(raw), true
		}
		lines := strings.Split(raw, "\n")
		if lineCount {
			return expr.Int(int64(len(lines))), true
		}
		i := *idx
		if i < 0 {
			i = len(lines) + i
		}
		if i < 0 || i >= len(lines) {
			return expr.Value{}, false
		}
		return expr.Str(lines[i]), true
	}
}

// lookupLocked is Lookup's body without re-acquiring s.mu, for use from
// resolveVariable which already holds the read lock.
func (s *Store) lookupLocked(fromEntity model.Entity, name string) (string, bool) {
	cur := fromEntity
	for cur != nil {
		key := entityPathKey(cur)
		if m, ok := s.byOwner[key]; ok {
			if v, ok := m[name]; ok {
				if val, ok := s.resolveVariable(v); ok {
					return val, true
				}
			}
		}
		cur = parentOf(cur)
	}
	if val, ok := os.LookupEnv("SDFS_" + name); ok {
		return val, true
	}
	return "", false
}

// EnvBundle builds an SDFS_* environment variable slice for a supervised
// process (component H): every variable in scope of from as
// SDFS_VAR_<NAME>, nearest definition first, plus each extra entry as
// SDFS_<KEY>. Device, page/key and event details come only from extra.
func (s *Store) EnvBundle(from model.Entity, extra map[string]string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := map[string]bool{}
	var out []string
	cur := from
	for cur != nil {
		key := entityPathKey(cur)
		if m, ok := s.byOwner[key]; ok {
			for name, v := range m {
				if seen[name] {
					continue
				}
				seen[name] = true
				if val, ok := s.resolveVariable(v); ok {
					out = append(out, fmt.Sprintf("SDFS_VAR_%s=%s", name, val))
				}
			}
		}
		cur = parentOf(cur)
	}
	for k, v := range extra {
		out = append(out, fmt.Sprintf("SDFS_%s=%s", k, v))
	}
	return out
}

// WriteVar implements the supervisor's SetVar action by writing the
// filesystem the event targets: a VAR_<name>;value=<value> filename for
// `=` assignment, or a VAR_<name> file whose content is value for `<=`,
// both under dir. The watcher observes the write and triggers a normal
// re-resolve, so WriteVar never touches the in-memory Store directly.
func (s *Store) WriteVar(scope, dir, name, value string, toFile bool) error {
	esc := grammar.DefaultEscapes()
	if toFile {
		filename := grammar.ComposeFilename(grammar.Name{
			Kind: grammar.KindVar,
			Main: map[string]string{"name": name},
		}, esc)
		return os.WriteFile(filepath.Join(dir, filename), []byte(value), 0o644)
	}
	filename := grammar.ComposeFilename(grammar.Name{
		Kind: grammar.KindVar,
		Main: map[string]string{"name": name},
		Opts: map[string]grammar.Value{"value": {Scalar: value}},
	}, esc)
	return os.WriteFile(filepath.Join(dir, filename), nil, 0o644)
}

// NotifyChanged is called by the resolve pipeline after a Variable entity
// re-resolves. It compares the freshly resolved value against the last one
// observed at this scope and fires Changed(name) only on an actual change,
// so an unrelated file touch in the same directory doesn't trigger a
// needless re-tick of every consumer of that name.
func (s *Store) NotifyChanged(owner model.Entity, name string) {
	s.mu.Lock()
	key := entityPathKey(owner) + "/" + name
	var val string
	var ok bool
	if m, exists := s.byOwner[entityPathKey(owner)]; exists {
		if v, exists := m[name]; exists {
			val, ok = s.resolveVariable(v)
		}
	}
	prev, hadPrev := s.lastValue[key]
	changed := !hadPrev || prev != val
	if ok {
		s.lastValue[key] = val
	} else {
		delete(s.lastValue, key)
	}
	s.mu.Unlock()

	if changed && s.Changed != nil {
		s.Changed(name)
	}
}

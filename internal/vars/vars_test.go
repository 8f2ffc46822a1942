package vars

import (
	"os"
	"testing"

	"github.com/deckfsd/deckfsd/internal/grammar"
	"github.com/deckfsd/deckfsd/internal/model"
)

// newValueVar builds a resolved, value-mode Variable via the normal
// RawName + Resolve path (no filename parsing involved) for use in
// store-level tests.
func newValueVar(t *testing.T, owner model.Entity, name, value string) *model.Variable {
	t.Helper()
	v := model.NewVariable("/test/VAR_"+name+";value="+value, owner, name)
	v.RawName = grammar.Name{
		Kind: grammar.KindVar,
		Opts: map[string]grammar.Value{"value": {Scalar: value}},
	}
	noVars := func(model.Entity, string) (string, bool) { return "", false }
	if err := v.Resolve(noVars, nil); err != nil {
		t.Fatalf("resolve %s: %v", name, err)
	}
	return v
}

func TestScopeCascade(t *testing.T) {
	deck := model.NewDeck("/decks/1", "1")
	page := model.NewPage("/decks/1/PAGE_1", deck, 1)
	key := model.NewKey("/decks/1/PAGE_1/KEY_0,0", page, 0, 0)
	otherKey := model.NewKey("/decks/1/PAGE_1/KEY_0,1", page, 0, 1)

	s := NewStore()
	s.Put(deck, newValueVar(t, deck, "COLOR", "red"))
	s.Put(key, newValueVar(t, key, "COLOR", "blue"))

	if val, ok := s.Lookup(key, "COLOR"); !ok || val != "blue" {
		t.Errorf("key lookup: got %q, %v", val, ok)
	}
	if val, ok := s.Lookup(otherKey, "COLOR"); !ok || val != "red" {
		t.Errorf("sibling key lookup: got %q, %v", val, ok)
	}
}

func TestEnvFallback(t *testing.T) {
	os.Setenv("SDFS_BRIGHTNESS", "80")
	defer os.Unsetenv("SDFS_BRIGHTNESS")

	deck := model.NewDeck("/decks/1", "1")
	s := NewStore()
	if val, ok := s.Lookup(deck, "BRIGHTNESS"); !ok || val != "80" {
		t.Errorf("env fallback: got %q, %v", val, ok)
	}
}

func TestConditionalVariable(t *testing.T) {
	deck := model.NewDeck("/decks/1", "1")
	mode := newValueVar(t, deck, "MODE", "night")

	v := model.NewVariable("/test/VAR_COLOR", deck, "COLOR")
	v.RawName = grammar.Name{
		Kind: grammar.KindVar,
		Opts: map[string]grammar.Value{
			"if":   {Scalar: "$MODE == \"night\""},
			"then": {Scalar: "dark-blue"},
			"else": {Scalar: "white"},
		},
	}
	if err := v.Resolve(func(model.Entity, string) (string, bool) { return "", false }, nil); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	s := NewStore()
	s.Put(deck, mode)
	s.Put(deck, v)

	if val, ok := s.Lookup(deck, "COLOR"); !ok || val != "dark-blue" {
		t.Errorf("conditional lookup: got %q, %v", val, ok)
	}
}

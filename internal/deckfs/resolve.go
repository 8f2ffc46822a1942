package deckfs

import (
	"image"

	"github.com/deckfsd/deckfsd/internal/compositor"
	"github.com/deckfsd/deckfsd/internal/graph"
	"github.com/deckfsd/deckfsd/internal/model"
)

// registerVars (re)populates the variable store from every Variable
// entity in the freshly scanned tree, at every scope.
func (d *Daemon) registerVars(deck *model.Deck) {
	for _, v := range deck.Vars {
		d.store.Put(deck, v)
	}
	for _, p := range deck.Pages {
		for _, v := range p.Vars {
			d.store.Put(p, v)
		}
		for _, k := range p.Keys {
			for _, v := range k.Vars {
				d.store.Put(k, v)
			}
		}
	}
}

// resolveAll runs Resolve top-down (deck, then pages, then keys, then
// leaves) so a parent's normalized state (e.g. disabled) is available
// before its children resolve, and registers a graph node per entity for
// later variable-triggered re-resolution.
func (d *Daemon) resolveAll(deck *model.Deck) {
	lookup := d.lookup()
	refs := d.refs()

	resolveAndRegister(d, "deck/"+deck.Identity(), deck, lookup, refs)
	for _, v := range deck.Vars {
		resolveAndRegister(d, entityNodePath(deck, v), v, lookup, refs)
	}
	for _, e := range deck.Events {
		resolveAndRegister(d, entityNodePath(deck, e), e, lookup, refs)
	}

	for _, p := range deck.Pages {
		resolveAndRegister(d, entityNodePath(deck, p), p, lookup, refs)
		for _, v := range p.Vars {
			resolveAndRegister(d, entityNodePath(p, v), v, lookup, refs)
		}
		for _, e := range p.Events {
			resolveAndRegister(d, entityNodePath(p, e), e, lookup, refs)
		}
		for _, k := range p.Keys {
			resolveAndRegister(d, entityNodePath(p, k), k, lookup, refs)
			for _, v := range k.Vars {
				resolveAndRegister(d, entityNodePath(k, v), v, lookup, refs)
			}
			for _, il := range k.Images {
				resolveAndRegister(d, entityNodePath(k, il), il, lookup, refs)
			}
			for _, t := range k.Texts {
				resolveAndRegister(d, entityNodePath(k, t), t, lookup, refs)
			}
			for _, e := range k.Events {
				resolveAndRegister(d, entityNodePath(k, e), e, lookup, refs)
			}
		}
	}
}

func entityNodePath(parent model.Entity, e model.Entity) string {
	return parent.EntityPath() + "#" + e.Identity()
}

// resolveAndRegister resolves an entity once and (re)registers its graph
// node, wiring its Resolve call as the node's re-resolve closure and its
// just-read Dependencies as outgoing edges, so a future variable change
// reschedules exactly this entity. If e is a Variable, it also notifies
// the store of a possible value change so any producer->consumer edge
// keyed on its name gets invalidated in the same pass.
func resolveAndRegister(d *Daemon, path string, e model.Entity, lookup model.VariableLookup, refs model.ReferenceResolver) {
	if err := e.Resolve(lookup, refs); err != nil {
		d.log.Debug("resolve failed", "path", path, "err", err)
	}
	d.graph.Register(&graph.Node{
		Path:   path,
		Entity: e,
		Resolve: func() error {
			return e.Resolve(lookup, refs)
		},
	})
	deps := e.Dependencies()
	keys := make([]string, 0, len(deps))
	for _, dep := range deps {
		if dep.Variable != "" {
			keys = append(keys, dep.Variable)
		}
	}
	d.graph.SetEdges(path, keys)

	if v, ok := e.(*model.Variable); ok {
		d.store.NotifyChanged(v.Owner, v.Name)
	}
}

// composeAndPushAll renders every key in the deck and writes the result
// to the hardware facade.
func (d *Daemon) composeAndPushAll(deck *model.Deck) error {
	for _, p := range deck.Pages {
		if p.IsDisabled() {
			continue
		}
		for _, k := range p.Keys {
			if k.IsDisabled() {
				continue
			}
			img, err := d.composeKey(k)
			if err != nil {
				d.log.Warn("compose failed", "key", k.Identity(), "err", err)
				continue
			}
			if err := d.hw.SetKeyImage(k.Row, k.Col, img); err != nil {
				d.log.Warn("push failed", "key", k.Identity(), "err", err)
			}
		}
	}
	return nil
}

func (d *Daemon) composeKey(k *model.Key) (*image.RGBA, error) {
	var layers []compositor.LayerSpec
	for _, il := range k.Images {
		if !il.Valid() || il.IsDisabled() {
			continue
		}
		layers = append(layers, compositor.LayerSpecFromEntity(il))
	}
	var texts []compositor.TextSpec
	for _, t := range k.Texts {
		if !t.Valid() || t.IsDisabled() {
			continue
		}
		texts = append(texts, compositor.TextSpecFromEntity(t))
	}
	return d.comp.Compose(layers, texts, 0)
}

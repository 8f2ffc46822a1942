// Package graph implements the reactive dependency graph (component E):
// nodes are entities and variable-definition sites, edges run
// consumer -> producer, and a producer change invalidates and schedules
// the transitive closure of its consumers for resolve on the next tick,
// per spec.md §4.5.
package graph

import (
	"sort"
	"sync"

	"github.com/deckfsd/deckfsd/internal/model"
)

// maxTickIterations bounds a single resolve tick so an accidental cycle
// stops after this many passes rather than looping forever. Nodes still
// dirty when the cap is hit stay dirty for the next Tick; they are not
// marked invalid.
const maxTickIterations = 64

// Node is one resolvable unit in the graph: an entity, identified by its
// producer path (the dotted identity chain used for tie-break ordering).
type Node struct {
	Path   string
	Entity model.Entity
	// Resolve recomputes this node's normalized state; it is the node's
	// own Entity.Resolve bound to the graph's current lookup/ref
	// resolvers by the caller that registers it.
	Resolve func() error
}

// Graph tracks consumer->producer edges and the dirty set awaiting the
// next resolve tick.
type Graph struct {
	mu sync.Mutex

	nodes map[string]*Node
	// producers maps a producer key (deckfs uses the bare variable name)
	// to the set of consumer node paths that read it during their last
	// resolve.
	producers map[string]map[string]bool
	dirty     map[string]bool
}

func New() *Graph {
	return &Graph{
		nodes:     map[string]*Node{},
		producers: map[string]map[string]bool{},
		dirty:     map[string]bool{},
	}
}

// Register adds or replaces a node.
func (g *Graph) Register(n *Node) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes[n.Path] = n
}

// Unregister removes a node and any edges it produced or consumed.
func (g *Graph) Unregister(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.nodes, path)
	delete(g.dirty, path)
	for prod, consumers := range g.producers {
		delete(consumers, path)
		if len(consumers) == 0 {
			delete(g.producers, prod)
		}
	}
}

// SetEdges replaces the full set of producers a consumer node currently
// reads, called after that node's Resolve ran and reported its
// model.Dependency list. producerKeys must match the keys later passed to
// Invalidate; deckfs uses bare variable names (Dependency.Variable), the
// same names the variable store's Changed callback reports.
func (g *Graph) SetEdges(consumerPath string, producerKeys []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for prod, consumers := range g.producers {
		delete(consumers, consumerPath)
		if len(consumers) == 0 {
			delete(g.producers, prod)
		}
	}
	for _, prod := range producerKeys {
		m, ok := g.producers[prod]
		if !ok {
			m = map[string]bool{}
			g.producers[prod] = m
		}
		m[consumerPath] = true
	}
}

// Invalidate marks every consumer of producerKey dirty, to be picked up by
// the next Tick. It does not resolve anything itself, matching the
// "invalidate() marks stale; a coalescing scheduler calls resolve() on the
// next tick" contract of §4.2/§4.5.
func (g *Graph) Invalidate(producerKey string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for consumer := range g.producers[producerKey] {
		g.dirty[consumer] = true
	}
}

// InvalidateNode marks a single node dirty directly (used when a file
// backing an entity itself changes, not just a variable it reads).
func (g *Graph) InvalidateNode(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dirty[path] = true
}

// Tick resolves every dirty node, in (producer-path, lexicographic) order
// per §4.5's tie-break rule, re-running newly-dirtied consumers until the
// dirty set drains or maxTickIterations is hit. It returns the paths that
// failed to resolve (and are therefore Invalid) on this tick.
func (g *Graph) Tick() []string {
	g.mu.Lock()
	dirty := g.snapshotDirty()
	g.mu.Unlock()

	var failed []string
	for iter := 0; len(dirty) > 0 && iter < maxTickIterations; iter++ {
		paths := make([]string, 0, len(dirty))
		for p := range dirty {
			paths = append(paths, p)
		}
		sort.Strings(paths)

		for _, p := range paths {
			g.mu.Lock()
			node := g.nodes[p]
			delete(g.dirty, p)
			g.mu.Unlock()
			if node == nil {
				continue
			}
			if err := node.Resolve(); err != nil {
				failed = append(failed, p)
			}
		}

		g.mu.Lock()
		dirty = g.snapshotDirty()
		g.mu.Unlock()
	}
	return failed
}

func (g *Graph) snapshotDirty() map[string]bool {
	out := make(map[string]bool, len(g.dirty))
	for k := range g.dirty {
		out[k] = true
	}
	return out
}

// DirtyCount reports how many nodes are currently awaiting resolution,
// useful for tests and for the watcher's coalescing scheduler to decide
// when a tick is worth running.
func (g *Graph) DirtyCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.dirty)
}

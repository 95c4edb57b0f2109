package model

import (
	"strconv"

	"github.com/mark3labs/swagger2client/internal/spec"
)

// Graph is the arena of type definitions for one run. It is built once by
// BuildTypes and read-only afterwards, so concurrent readers need no locking.
type Graph struct {
	defs   map[TypeID]Type
	order  []TypeID
	byKey  map[spec.RefKey]TypeID
	byName map[string]TypeID
}

func newGraph() *Graph {
	return &Graph{
		defs:   make(map[TypeID]Type),
		byKey:  make(map[spec.RefKey]TypeID),
		byName: make(map[string]TypeID),
	}
}

// Get returns the definition with id.
func (g *Graph) Get(id TypeID) (Type, bool) {
	t, ok := g.defs[id]
	return t, ok
}

// Types returns every definition in the order it was completed.
func (g *Graph) Types() []Type {
	out := make([]Type, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.defs[id])
	}
	return out
}

// Named returns the definitions that carry a name, in completion order.
func (g *Graph) Named() []Type {
	var out []Type
	for _, id := range g.order {
		if t := g.defs[id]; t.Info().Name != "" {
			out = append(out, t)
		}
	}
	return out
}

// ByKey returns the type modeled for the schema at key.
func (g *Graph) ByKey(key spec.RefKey) (TypeID, bool) {
	id, ok := g.byKey[key]
	return id, ok
}

// ByName returns the type with the given emitted name.
func (g *Graph) ByName(name string) (Type, bool) {
	id, ok := g.byName[name]
	if !ok {
		return nil, false
	}
	return g.Get(id)
}

func (g *Graph) Len() int { return len(g.defs) }

// builder mutates a Graph during BuildTypes only.
type builder struct {
	g        *Graph
	names    map[string]bool
	deferred map[TypeID]bool
}

func newBuilder() *builder {
	return &builder{g: newGraph(), names: make(map[string]bool), deferred: make(map[TypeID]bool)}
}

// claimName reserves a unique name derived from base.
func (b *builder) claimName(base string) string {
	if base == "" {
		base = "Type"
	}
	name := base
	for i := 2; b.names[name]; i++ {
		name = base + strconv.Itoa(i)
	}
	b.names[name] = true
	return name
}

func (b *builder) put(t Type) TypeID {
	id := t.ID()
	if _, exists := b.g.defs[id]; !exists {
		b.g.order = append(b.g.order, id)
	}
	b.g.defs[id] = t
	if n := t.Info().Name; n != "" {
		b.g.byName[n] = id
	}
	return id
}

func (b *builder) link(key spec.RefKey, id TypeID) { b.g.byKey[key] = id }

func (b *builder) get(id TypeID) (Type, bool) { return b.g.Get(id) }

// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package depgraph holds the inter-topic dependency graph built by the
// log scanner and the closure walk the replay engine drives off it.
package depgraph

import "github.com/emirpasic/gods/maps/linkedhashmap"

// Graph maps each observed topic to its declared parent edges, in the
// order the edges were first declared. It is not required to be
// acyclic; Closure tolerates cycles via its visited-set.
type Graph struct {
	topics *linkedhashmap.Map // topic -> *linkedhashmap.Map (parent topic -> keepTag bool)
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{topics: linkedhashmap.New()}
}

// Ensure registers topic in the graph if it is not already present,
// so that every observed topic (even one with no declared parents)
// appears as a key.
func (g *Graph) Ensure(topic string) {
	if _, ok := g.topics.Get(topic); ok {
		return
	}
	g.topics.Put(topic, linkedhashmap.New())
}

// AddEdge declares that topic depends on parent, with keepTag as the
// edge's tag-retention flag. Re-declaring the same (topic, parent)
// pair overwrites the flag, matching the source's own last-write-wins
// mapping semantics for a single topic's own edge list.
func (g *Graph) AddEdge(topic, parent string, keepTag bool) {
	g.Ensure(topic)
	edges, _ := g.topics.Get(topic)
	edges.(*linkedhashmap.Map).Put(parent, keepTag)
}

// Parents returns the declared parent edges of topic, in declaration
// order, or nil if topic is unknown.
func (g *Graph) Parents(topic string) []Edge {
	v, ok := g.topics.Get(topic)
	if !ok {
		return nil
	}
	edges := v.(*linkedhashmap.Map)
	out := make([]Edge, 0, edges.Size())
	it := edges.Iterator()
	for it.Next() {
		out = append(out, Edge{Topic: it.Key().(string), KeepTag: it.Value().(bool)})
	}
	return out
}

// Has reports whether topic was ever observed (even with no edges).
func (g *Graph) Has(topic string) bool {
	_, ok := g.topics.Get(topic)
	return ok
}

// Edge is one declared dependency edge out of a topic.
type Edge struct {
	Topic   string
	KeepTag bool
}

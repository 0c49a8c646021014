// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package depgraph

import "github.com/emirpasic/gods/maps/linkedhashmap"

// MissingParent is a declared edge whose target topic was never
// observed in the scanned range; the Orchestrator warns about these,
// the closure simply excludes them.
type MissingParent struct {
	// From is the topic that declared the dependency.
	From string
	// Topic is the undeclared parent that was never seen.
	Topic string
}

// Closure computes the transitive dependency closure of seedTopic,
// depth-first, with first-arrival-wins keepTag semantics and
// cycle-safe termination via the visited set. The seed itself is
// always included with keepTag=seedKeepTag.
func Closure(g *Graph, seedTopic string, seedKeepTag bool) (*linkedhashmap.Map, []MissingParent) {
	visited := linkedhashmap.New()
	var missing []MissingParent
	var visit func(topic string, keepTag bool)
	visit = func(topic string, keepTag bool) {
		if _, ok := visited.Get(topic); ok {
			return
		}
		visited.Put(topic, keepTag)
		for _, edge := range g.Parents(topic) {
			if !g.Has(edge.Topic) {
				missing = append(missing, MissingParent{From: topic, Topic: edge.Topic})
				continue
			}
			visit(edge.Topic, edge.KeepTag)
		}
	}
	visit(seedTopic, seedKeepTag)
	return visited, missing
}

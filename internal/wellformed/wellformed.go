// Copyright 2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package wellformed enforces that every node produced by unification
// satisfies its type's appropriateness constraints, in two passes:
//
//   - delta-expansion happens once, at grammar load time: each type's own
//     local constraint dag is unified with its immediate supertypes'
//     already-expanded constraints, in parent-before-child order, so every
//     type ends up with a constraint dag that reflects its entire ancestry.
//   - full-expansion happens during unification itself: whenever a node's
//     type changes to t, the node is unified against t's (fully expanded,
//     cached) constraint dag.
//
// Grounded on original_source/cheap/dag-tomabechi.cpp's dag_make_wellformed
// and cached_constraint_of/fresh_constraint_of.
package wellformed

import (
	"fmt"

	"github.com/vellum-lang/unify/dag"
	"github.com/vellum-lang/unify/typesys"
)

// Unify1 is the unifier's core recursive step, injected to avoid an import
// cycle between this package and unifier (dag_make_wellformed and
// dag_unify1 are mutually recursive in the source engine).
type Unify1 func(a, b *dag.Node) (*dag.Node, error)

type cached struct {
	gen dag.Generation
	dag *dag.Node
}

// Store holds each type's fully delta-expanded constraint dag and a
// per-generation cache of temporary copies ready to be unified against.
type Store struct {
	Hierarchy *typesys.Hierarchy
	TypeDags  []*dag.Node // indexed by TypeId; nil entries have no constraint

	cache map[typesys.TypeId]cached
}

// NewStore wraps a set of raw, not-yet-delta-expanded per-type constraint
// dags. Call [Store.DeltaExpand] before using [Store.MakeWellformed].
func NewStore(h *typesys.Hierarchy, typeDags []*dag.Node) *Store {
	return &Store{Hierarchy: h, TypeDags: typeDags, cache: map[typesys.TypeId]cached{}}
}

// DeltaExpand computes each type's fully inherited constraint dag in the
// given parent-before-child order (as produced by the hierarchy's
// topological sort over ImmediateSupertypes), replacing s.TypeDags in
// place. A type with no local constraint and no expanded-parent constraint
// keeps a nil entry.
func (s *Store) DeltaExpand(order []typesys.TypeId, unify1 Unify1) error {
	expanded := make([]*dag.Node, len(s.TypeDags))
	for _, t := range order {
		own := s.TypeDags[t]
		var acc *dag.Node
		if own != nil {
			acc = FullCopy(own)
		}
		for _, sup := range s.Hierarchy.ImmediateSupertypes(t) {
			parent := expanded[sup]
			if parent == nil {
				continue
			}
			if acc == nil {
				acc = FullCopy(parent)
				continue
			}
			merged, err := unify1(acc, FullCopy(parent))
			if err != nil {
				return fmt.Errorf("wellformed: type %s's own constraint is incompatible with supertype %s's: %w", t, sup, err)
			}
			acc = merged
		}
		expanded[t] = acc
	}
	s.TypeDags = expanded
	return nil
}

// ConstraintOf returns a fresh, temporary-generation copy of t's fully
// expanded constraint dag, memoized for the lifetime of gen so repeated
// lookups within one unification don't keep re-copying it.
func (s *Store) ConstraintOf(gen dag.Generation, t typesys.TypeId) *dag.Node {
	if int(t) < 0 || int(t) >= len(s.TypeDags) || s.TypeDags[t] == nil {
		return nil
	}
	if c, ok := s.cache[t]; ok && c.gen == gen {
		return c.dag
	}
	fresh := FullCopy(s.TypeDags[t])
	s.cache[t] = cached{gen: gen, dag: fresh}
	return fresh
}

// MakeWellformed enforces newType's constraint on node if node's type
// actually changed to newType and newType carries a constraint, mirroring
// dag_make_wellformed's skip conditions: nothing to do if the node already
// had this type and the constraint dag was already satisfied by it (oldType
// == newType), or if newType has no constraint dag at all.
func (s *Store) MakeWellformed(gen dag.Generation, node *dag.Node, oldType, newType typesys.TypeId, unify1 Unify1) error {
	if oldType == newType {
		return nil
	}
	constraint := s.ConstraintOf(gen, newType)
	if constraint == nil {
		return nil
	}
	_, err := unify1(node, constraint)
	return err
}

// FullCopy deep-copies a permanent dag into a fresh, non-permanent one,
// preserving structure sharing (a node reachable via two different paths is
// copied once). Cycles are not expected in constraint dags; FullCopy does
// not guard against them, matching the source engine's dag_full_copy, which
// assumes acyclic constraint trees.
func FullCopy(src *dag.Node) *dag.Node {
	seen := make(map[*dag.Node]*dag.Node)
	var walk func(n *dag.Node) *dag.Node
	walk = func(n *dag.Node) *dag.Node {
		if n == nil {
			return nil
		}
		if out, ok := seen[n]; ok {
			return out
		}
		out := dag.New(n.GetType())
		seen[n] = out
		var arcs []*dag.Arc
		for a := n.Arcs; a != nil; a = a.Next {
			arcs = append(arcs, a)
		}
		for i := len(arcs) - 1; i >= 0; i-- {
			out.AddArc(arcs[i].Attr, walk(arcs[i].Target))
		}
		return out
	}
	return walk(src)
}

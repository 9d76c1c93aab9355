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

// Package subsumption checks, for two dags a and b, whether a is at least
// as general as b (forward) and/or b is at least as general as a
// (backward), without mutating either structure beyond the bookkeeping
// fields a fresh generation gives it for free.
//
// Grounded on original_source/cheap/dag-tomabechi.cpp's dag_subsumes1,
// which tracks corefences in both directions at once using the node's
// forward slot (for a's side) and copy slot (for b's side) -- here, the
// same two generation-protected slots unification itself uses, since a
// subsumption check always runs under its own fresh generation and never
// overlaps with live unification state.
package subsumption

import (
	"github.com/vellum-lang/unify/dag"
	"github.com/vellum-lang/unify/internal/wellformed"
	"github.com/vellum-lang/unify/typesys"
)

// Checker runs subsumption checks against one type hierarchy, optionally
// comparing against a type's constraint dag when one side has no arcs of
// its own -- "partial expansion", so that an unfilled feature is compared
// against what its type would eventually require.
type Checker struct {
	Hierarchy  *typesys.Hierarchy
	Wellformed *wellformed.Store // nil disables partial expansion
}

// Subsumes reports, for a and b, whether a subsumes b (forward: a is at
// least as general) and whether b subsumes a (backward). Both may be true
// (the dags are equivalent), both false (neither generalizes the other),
// or exactly one true.
func (c *Checker) Subsumes(gen dag.Generation, a, b *dag.Node) (forward, backward bool) {
	forward, backward = true, true
	c.subsumes1(gen, a, b, &forward, &backward)
	return forward, backward
}

func (c *Checker) subsumes1(gen dag.Generation, d1, d2 *dag.Node, forward, backward *bool) bool {
	c1 := d1.Forward(gen)
	c2 := d2.CopyTo(gen)

	if *forward {
		switch {
		case c1 == nil:
			d1.SetForward(gen, d2)
		case c1 != d2:
			*forward = false
		}
	}
	if *backward {
		switch {
		case c2 == nil:
			d2.SetCopyTo(gen, d1)
		case c2 != d1:
			*backward = false
		}
	}
	if !*forward && !*backward {
		return false
	}

	if d1.GetType() != d2.GetType() {
		st12, st21 := c.Hierarchy.SubtypeBidir(d1.GetType(), d2.GetType())
		if !st12 {
			*backward = false
		}
		if !st21 {
			*forward = false
		}
		if !*forward && !*backward {
			return false
		}
	}

	if d1.Arcs == nil && d2.Arcs == nil {
		return true
	}

	t1, t2 := d1, d2
	if d1.Arcs == nil && c.Wellformed != nil {
		if expanded := c.Wellformed.ConstraintOf(gen, d1.GetType()); expanded != nil {
			t1 = expanded
		}
	}
	if d2.Arcs == nil && c.Wellformed != nil {
		if expanded := c.Wellformed.ConstraintOf(gen, d2.GetType()); expanded != nil {
			t2 = expanded
		}
	}

	for arc1 := t1.Arcs; arc1 != nil; arc1 = arc1.Next {
		target2 := t2.FindArc(arc1.Attr)
		if target2 == nil {
			continue
		}
		if !c.subsumes1(gen, arc1.Target, target2, forward, backward) {
			return false
		}
	}
	return true
}

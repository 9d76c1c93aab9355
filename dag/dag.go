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

// Package dag implements the typed feature-structure graph: a node carries
// a permanent type and an ordered arc list, plus a handful of fields that
// are only meaningful during the current unification generation.
//
// The generation-protection discipline is Tomabechi's: a node's "live" type,
// extension arcs, forwarding pointer, and copy/visit state are all guarded
// by comparing the node's stored generation against a generation value the
// caller threads through every call (normally [unifier.Context]'s current
// generation). A node whose stored generation doesn't match sees the
// unprotected defaults — its permanent Type and an empty arc extension —
// regardless of what was written into it during some earlier, now-discarded
// generation. Advancing the generation counter is therefore a zero-cost bulk
// invalidation of every in-flight mutation across every node touched so far.
package dag

import (
	"fmt"

	"github.com/vellum-lang/unify/internal/dbg"
	"github.com/vellum-lang/unify/typesys"
)

// Generation identifies a unification attempt. A freshly allocated node's
// generation field is zero, so under the zero Generation a fresh node
// already counts as touched; unifier.Context.NewGeneration hands out
// generations starting at 1, under which a fresh node reports its
// unprotected defaults until explicitly touched.
type Generation int64

// VisitState replaces the source engine's overloaded "copy == INSIDE"
// sentinel (spec.md §9) with an explicit tag: a node is either untouched by
// the current traversal, currently on the recursion stack (a cycle is
// detected by finding a node in this state again), or finished.
type VisitState uint8

const (
	Unvisited VisitState = iota
	OnStack
	Done
)

func (v VisitState) String() string {
	switch v {
	case Unvisited:
		return "unvisited"
	case OnStack:
		return "on-stack"
	case Done:
		return "done"
	default:
		return "invalid"
	}
}

// Library resolves type and attribute ids to names for permanent nodes, so
// that printers do not need a [typesys.Hierarchy] threaded through every
// call. Mirrors hyperpb's Type.Library back-pointer.
type Library struct {
	Hierarchy  *typesys.Hierarchy
	AttrName   func(typesys.AttrId) string
	AppType    func(typesys.AttrId) typesys.TypeId // introducing type
	MaxAppType func(typesys.AttrId) typesys.TypeId // maximal appropriate type
}

// Node is a feature-structure node: a permanent type plus an ordered arc
// list, plus the generation-protected extension fields unification needs.
//
// No two arcs out of one node may share an attribute; this is left to the
// callers of [Node.AddArc] and to the unifier's arc-merge step, which looks
// for an existing arc before adding one, never to a runtime check on the
// arc list itself (permanent dags are trusted to already satisfy it,
// exactly as the source engine trusts grammar-compiled dags).
type Node struct {
	Type typesys.TypeId
	Arcs *Arc

	// Permanent is true for nodes living in the permanent arena (grammar
	// dags, cached constraint dags); such nodes are never shareable during
	// partial copy (spec.md §4.4) because copying is how a result is
	// promoted out of the temporary arena in the first place.
	Permanent bool
	Library   *Library

	generation Generation
	newType    typesys.TypeId
	compArcs   *Arc
	forward    *Node
	visit      VisitState
	copyTo     *Node
}

// Arc is (attr, target) plus a next pointer, forming a singly linked list in
// reverse-insertion order.
type Arc struct {
	Attr   typesys.AttrId
	Target *Node
	Next   *Arc
}

// New returns a fresh, non-permanent node of the given type.
func New(t typesys.TypeId) *Node {
	return &Node{Type: t}
}

// NewPermanent returns a fresh permanent node of the given type.
func NewPermanent(t typesys.TypeId, lib *Library) *Node {
	return &Node{Type: t, Permanent: true, Library: lib}
}

// GetType returns the node's permanent type, ignoring any in-progress
// unification. Grammar loading and printing outside a generation use this.
func (n *Node) GetType() typesys.TypeId { return n.Type }

// SetType overwrites the node's permanent type. Only meaningful before a
// node is published (e.g. while the grammar loader is still building it);
// during unification, types are changed via [Node.SetNewType].
func (n *Node) SetType(t typesys.TypeId) { n.Type = t }

// AddArc conses a new arc onto the permanent arc list. The caller is
// responsible for the no-duplicate-attribute invariant.
func (n *Node) AddArc(attr typesys.AttrId, target *Node) {
	n.Arcs = &Arc{Attr: attr, Target: target, Next: n.Arcs}
}

// FindArc returns the target of the permanent arc with the given attribute,
// or nil. It does not consult compArcs; use [Node.FindArcGen] during
// unification.
func (n *Node) FindArc(attr typesys.AttrId) *Node {
	for a := n.Arcs; a != nil; a = a.Next {
		if a.Attr == attr {
			return a.Target
		}
	}
	return nil
}

// RemoveArcs replaces n's permanent arc list with a new list from which
// every arc whose attribute satisfies del is dropped. Order of the
// surviving arcs is preserved.
func (n *Node) RemoveArcs(del func(typesys.AttrId) bool) {
	var head, tail *Arc
	var kept []*Arc
	for a := n.Arcs; a != nil; a = a.Next {
		if !del(a.Attr) {
			kept = append(kept, a)
		}
	}
	for i := 0; i < len(kept); i++ {
		cp := &Arc{Attr: kept[i].Attr, Target: kept[i].Target}
		if head == nil {
			head, tail = cp, cp
		} else {
			tail.Next = cp
			tail = cp
		}
	}
	n.Arcs = head
}

// touch transitions n into generation g if it is not already there,
// resetting every other generation-protected field to its default the way
// the source engine's dag_set_* accessors do: whichever field is not being
// written gets the value it would have outside any generation.
func (n *Node) touch(g Generation) {
	if n.generation == g {
		return
	}
	n.generation = g
	n.newType = n.Type
	n.compArcs = nil
	n.forward = nil
	n.visit = Unvisited
	n.copyTo = nil
}

// NewType returns the node's current type under generation g: the
// generation-protected newType if g is live, else the permanent type.
func (n *Node) NewType(g Generation) typesys.TypeId {
	if n.generation == g {
		return n.newType
	}
	return n.Type
}

// SetNewType writes t into the generation-protected newType slot.
func (n *Node) SetNewType(g Generation, t typesys.TypeId) {
	n.touch(g)
	n.newType = t
}

// CompArcs returns the arcs added to n under generation g, or nil.
func (n *Node) CompArcs(g Generation) *Arc {
	if n.generation == g {
		return n.compArcs
	}
	return nil
}

// SetCompArcs overwrites the generation-protected extension arc list.
func (n *Node) SetCompArcs(g Generation, a *Arc) {
	n.touch(g)
	n.compArcs = a
}

// PrependCompArc conses a new extension arc onto n's compArcs under g.
func (n *Node) PrependCompArc(g Generation, attr typesys.AttrId, target *Node) {
	n.SetCompArcs(g, &Arc{Attr: attr, Target: target, Next: n.CompArcs(g)})
}

// Forward returns n's forwarding pointer under generation g, or nil if n is
// not forwarded in this generation.
func (n *Node) Forward(g Generation) *Node {
	if n.generation == g {
		return n.forward
	}
	return nil
}

// SetForward points n at its representative under generation g.
func (n *Node) SetForward(g Generation, to *Node) {
	n.touch(g)
	n.forward = to
}

// Visit returns n's traversal state under generation g.
func (n *Node) Visit(g Generation) VisitState {
	if n.generation == g {
		return n.visit
	}
	return Unvisited
}

// SetVisit marks n's traversal state under generation g.
func (n *Node) SetVisit(g Generation, v VisitState) {
	n.touch(g)
	n.visit = v
}

// CopyTo returns the node n was copied to under generation g during a
// partial copy, or nil if n has not yet been copied in this pass.
func (n *Node) CopyTo(g Generation) *Node {
	if n.generation == g {
		return n.copyTo
	}
	return nil
}

// SetCopyTo records the copy destination for n under generation g.
func (n *Node) SetCopyTo(g Generation, to *Node) {
	n.touch(g)
	n.copyTo = to
}

// Deref follows n's forward chain under generation g to a fixed point. The
// forward chain is required to form a forest during unification (spec.md
// §3's invariant); a node is forwarded to at most one representative.
func Deref(n *Node, g Generation) *Node {
	for {
		f := n.Forward(g)
		if f == nil {
			return n
		}
		n = f
	}
}

// FindArcGen returns the target of the arc with the given attribute,
// consulting both the permanent arc list and the generation-protected
// extension arcs, extension arcs taking priority since they are the more
// recently written value for this generation.
func FindArcGen(n *Node, g Generation, attr typesys.AttrId) *Node {
	for a := n.CompArcs(g); a != nil; a = a.Next {
		if a.Attr == attr {
			return a.Target
		}
	}
	return n.FindArc(attr)
}

// Format implements [fmt.Formatter], printing a node's permanent view.
func (n *Node) Format(s fmt.State, verb rune) {
	name := n.Type.String()
	if n.Library != nil && n.Library.Hierarchy != nil {
		name = n.Library.Hierarchy.Name(n.Type)
	}
	dbg.Dict(
		dbg.Fprintf("%p", n),
		"type", name,
		"permanent", n.Permanent,
	).Format(s, verb)
}

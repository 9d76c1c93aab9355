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

package typesys

import (
	"fmt"
	"iter"

	"github.com/vellum-lang/unify/internal/debug"
	"github.com/vellum-lang/unify/internal/scc"
	"github.com/vellum-lang/unify/internal/swiss"
)

// TypePair is a glb-cache key. Ordering is canonical (numerically smaller
// id first) so that Glb(a, b) and Glb(b, a) hit the same cache slot; this is
// the "symmetric, normalize" cache discipline, using type id order rather
// than subtype order since subtype order is not total over proper types and
// computing it defeats the purpose of the cache.
type TypePair struct {
	A, B TypeId
}

func normalizedPair(a, b TypeId) TypePair {
	if a > b {
		a, b = b, a
	}
	return TypePair{a, b}
}

// Data is the raw input to [NewHierarchy], as read from a grammar file's
// SYMTAB/HIERARCHY/SUPERTYPES sections.
type Data struct {
	// Names and PrintNames are indexed by TypeId over [0, len(Names)), which
	// must equal NStaticTypes. PrintNames may be nil if the grammar file
	// carries no PRINTNAMES section.
	Names      []string
	PrintNames []string
	Status     []uint16

	FirstLeafType TypeId
	NStaticTypes  TypeId

	// Bitcodes holds one entry per proper type, i.e. len(Bitcodes) ==
	// FirstLeafType, all of the same width.
	Bitcodes []Bitcode

	// LeafParent holds one entry per static leaf type, indexed by
	// t - FirstLeafType.
	LeafParent []TypeId

	// ImmediateSupers holds one entry per proper type, the list of its
	// immediate parents as loaded from the SUPERTYPES section. TOP has no
	// entry (nil slice).
	ImmediateSupers [][]TypeId

	// StringType is the built-in STRING type that all dynamic leaves are
	// registered under.
	StringType TypeId
}

// Hierarchy is a loaded, immutable (except for its caches and dynamic-type
// table) type hierarchy.
type Hierarchy struct {
	names      []string
	printNames []string
	status     []uint16

	firstLeaf  TypeId
	nStatic    TypeId
	nextDyn    TypeId
	stringType TypeId

	bitcodes     []Bitcode
	bitcodeIndex *swiss.Table[string, TypeId]

	leafParent      []TypeId
	immediateSupers [][]TypeId
	allSupers       [][]TypeId

	glbCache     *swiss.Table[TypePair, TypeId]
	dynamicNames *swiss.Table[string, TypeId]

	properOrder []TypeId // proper types, parent before child
}

// NewHierarchy builds a [Hierarchy] from loaded grammar data, validating
// that the proper-type parent graph is acyclic and precomputing the
// transitive supertype sets used by [Hierarchy.AllSupertypes].
//
// The proper-type closure under intersection (adding synthetic glb types
// until the bitcode set is closed) is a property of an already-compiled
// grammar file; it is not recomputed here. That computation belongs to the
// TDL grammar compiler, which is out of scope for this engine (spec.md §1).
func NewHierarchy(d Data) (*Hierarchy, error) {
	h := &Hierarchy{
		names:           d.Names,
		printNames:      d.PrintNames,
		status:          d.Status,
		firstLeaf:       d.FirstLeafType,
		nStatic:         d.NStaticTypes,
		nextDyn:         d.NStaticTypes,
		stringType:      d.StringType,
		bitcodes:        d.Bitcodes,
		leafParent:      d.LeafParent,
		immediateSupers: d.ImmediateSupers,
		bitcodeIndex:    new(swiss.Table[string, TypeId]),
		glbCache:        new(swiss.Table[TypePair, TypeId]),
		dynamicNames:    new(swiss.Table[string, TypeId]),
	}

	for t, bc := range h.bitcodes {
		h.bitcodeIndex.Insert(bc.Key(), TypeId(t))
	}

	order, err := h.topologicalProperTypes()
	if err != nil {
		return nil, err
	}
	h.properOrder = order

	h.allSupers = make([][]TypeId, len(h.bitcodes))
	for _, t := range order {
		var all []TypeId
		seen := make(map[TypeId]bool)
		for _, p := range h.immediateSupers[t] {
			if !seen[p] {
				seen[p] = true
				all = append(all, p)
			}
			for _, pp := range h.allSupers[p] {
				if !seen[pp] {
					seen[pp] = true
					all = append(all, pp)
				}
			}
		}
		h.allSupers[t] = all
	}

	return h, nil
}

// topologicalProperTypes returns proper types ordered so that every type
// precedes its children, i.e. TOP first. It is computed by running Tarjan's
// algorithm over the "is-child-of" graph rooted at TOP (every proper type is
// reachable from TOP by construction) and reversing the component order,
// since [scc.DAG.Topological] yields dependencies (here: children) before
// dependents (here: TOP).
func (h *Hierarchy) topologicalProperTypes() ([]TypeId, error) {
	children := make([][]TypeId, len(h.bitcodes))
	for t, parents := range h.immediateSupers {
		for _, p := range parents {
			children[p] = append(children[p], TypeId(t))
		}
	}

	deps := func(t TypeId) iter.Seq[TypeId] {
		return func(yield func(TypeId) bool) {
			for _, c := range children[t] {
				if !yield(c) {
					return
				}
			}
		}
	}

	dag := scc.Sort(TOP, deps)
	var reversed []TypeId
	for c := range dag.Topological() {
		if c.Cyclic() {
			return nil, fmt.Errorf("typesys: cyclic is-parent-of relation at type %s", c.Members()[0])
		}
		reversed = append(reversed, c.Members()[0])
	}

	order := make([]TypeId, len(reversed))
	for i, t := range reversed {
		order[len(order)-1-i] = t
	}
	if len(order) != len(h.bitcodes) {
		return nil, fmt.Errorf("typesys: %d proper types unreachable from TOP", len(h.bitcodes)-len(order))
	}
	return order, nil
}

// TopologicalTypes returns every static type id (proper and leaf) in an
// order where a type always follows its immediate supertypes, the order
// [internal/wellformed.Store.DeltaExpand] needs to delta-expand constraint
// dags. Proper types come first, in the order computed from the "is-parent-
// of" SCC at load time; static leaf types follow in increasing TypeId
// order, which requires the grammar file to number leaf types so that a
// leaf's parent always has a strictly smaller id -- true of every grammar
// original_source's compiler emits, since it numbers types in a single
// parent-before-child pass over the whole hierarchy.
func (h *Hierarchy) TopologicalTypes() []TypeId {
	order := make([]TypeId, 0, int(h.nStatic))
	order = append(order, h.properOrder...)
	for t := h.firstLeaf; t < h.nStatic; t++ {
		order = append(order, t)
	}
	return order
}

// Kind classifies t.
func (h *Hierarchy) Kind(t TypeId) Kind {
	switch {
	case t >= h.nStatic:
		return KindDynamicLeaf
	case t >= h.firstLeaf:
		return KindStaticLeaf
	default:
		return KindProper
	}
}

// IsLeaf reports whether t is a static or dynamic leaf type.
func (h *Hierarchy) IsLeaf(t TypeId) bool {
	return t >= h.firstLeaf
}

// IsDynamicType reports whether t was registered by
// [Hierarchy.RetrieveStringType].
func (h *Hierarchy) IsDynamicType(t TypeId) bool {
	return t >= h.nStatic
}

// IsStringInstance reports whether t is a proper subtype of STRING, i.e. a
// dynamic string literal type.
func (h *Hierarchy) IsStringInstance(t TypeId) bool {
	return t != h.stringType && h.Subtype(t, h.stringType)
}

// Name returns the internal name of t.
func (h *Hierarchy) Name(t TypeId) string {
	if t == BOTTOM {
		return "*bottom*"
	}
	if int(t) < len(h.names) {
		return h.names[t]
	}
	return t.String()
}

// PrintName returns the print name of t, falling back to its internal name
// if the grammar carries no PRINTNAMES section.
func (h *Hierarchy) PrintName(t TypeId) string {
	if int(t) < len(h.printNames) && h.printNames[t] != "" {
		return h.printNames[t]
	}
	return h.Name(t)
}

// Status returns the status code of t.
func (h *Hierarchy) Status(t TypeId) uint16 {
	if int(t) < len(h.status) {
		return h.status[t]
	}
	return 0
}

// Subtype reports whether a is a subtype of b (a ≤ b).
func (h *Hierarchy) Subtype(a, b TypeId) bool {
	switch {
	case a == b:
		return true
	case a == BOTTOM:
		return true
	case b == BOTTOM:
		return false
	case b == TOP:
		return true
	case a == TOP:
		return false
	}

	if h.IsDynamicType(a) {
		return h.Subtype(h.stringType, b)
	}

	if h.IsLeaf(a) {
		p := a
		for h.IsLeaf(p) {
			if p == b {
				return true
			}
			p = h.leafParent[p-h.firstLeaf]
		}
		if p == b {
			return true
		}
		a = p
	}

	if h.IsLeaf(b) {
		return false
	}

	return h.bitcodes[a].Subset(h.bitcodes[b])
}

// SubtypeBidir computes Subtype(a, b) and Subtype(b, a) in a single pass
// when both types are proper, reusing one bitcode comparison loop.
func (h *Hierarchy) SubtypeBidir(a, b TypeId) (forward, backward bool) {
	if a == b {
		return true, true
	}
	if a != BOTTOM && b != BOTTOM && h.Kind(a) == KindProper && h.Kind(b) == KindProper {
		ba, bb := h.bitcodes[a], h.bitcodes[b]
		forward, backward = true, true
		for i := range ba {
			if ba[i]&^bb[i] != 0 {
				forward = false
			}
			if bb[i]&^ba[i] != 0 {
				backward = false
			}
			if !forward && !backward {
				break
			}
		}
		return forward, backward
	}
	return h.Subtype(a, b), h.Subtype(b, a)
}

// Glb computes the greatest lower bound of a and b, or [BOTTOM] if none
// exists.
func (h *Hierarchy) Glb(a, b TypeId) TypeId {
	switch {
	case a == TOP:
		return b
	case b == TOP:
		return a
	case a == BOTTOM || b == BOTTOM:
		return BOTTOM
	case a == b:
		return a
	}

	if h.IsDynamicType(a) && h.IsDynamicType(b) {
		return BOTTOM
	}
	if h.IsDynamicType(a) {
		if h.Subtype(h.stringType, b) {
			return a
		}
		return BOTTOM
	}
	if h.IsDynamicType(b) {
		return h.Glb(b, a)
	}

	if h.IsLeaf(a) || h.IsLeaf(b) {
		if h.Subtype(a, b) {
			return a
		}
		if h.Subtype(b, a) {
			return b
		}
		return BOTTOM
	}

	key := normalizedPair(a, b)
	if cached := h.glbCache.Lookup(key); cached != nil {
		return *cached
	}

	tmp := h.bitcodes[a].Clone().Intersect(h.bitcodes[b])
	result := BOTTOM
	if id := h.bitcodeIndex.Lookup(tmp.Key()); id != nil {
		result = *id
	}
	h.glbCache.Insert(key, result)
	debug.Log(nil, "typesys.Glb", "%s ^ %s = %s", a, b, result)
	return result
}

// ImmediateSupertypes returns the immediate supertypes of t.
func (h *Hierarchy) ImmediateSupertypes(t TypeId) []TypeId {
	switch h.Kind(t) {
	case KindProper:
		return h.immediateSupers[t]
	case KindStaticLeaf:
		return []TypeId{h.leafParent[t-h.firstLeaf]}
	default: // dynamic leaf
		return []TypeId{h.stringType}
	}
}

// AllSupertypes returns every proper ancestor of t (not including t itself),
// in no particular order.
func (h *Hierarchy) AllSupertypes(t TypeId) []TypeId {
	switch h.Kind(t) {
	case KindProper:
		return h.allSupers[t]
	case KindStaticLeaf:
		p := h.leafParent[t-h.firstLeaf]
		return append([]TypeId{p}, h.AllSupertypes(p)...)
	default: // dynamic leaf
		return append([]TypeId{h.stringType}, h.AllSupertypes(h.stringType)...)
	}
}

// RetrieveStringType registers s as a dynamic leaf type under STRING,
// returning its existing id if s was already registered.
func (h *Hierarchy) RetrieveStringType(s string) TypeId {
	if id := h.dynamicNames.Lookup(s); id != nil {
		return *id
	}
	id := h.nextDyn
	h.nextDyn++
	h.dynamicNames.Insert(s, id)
	h.names = append(h.names, s)
	debug.Log(nil, "typesys.RetrieveStringType", "%s -> %s", s, id)
	return id
}

// ClearDynamicTypes drops every type registered by
// [Hierarchy.RetrieveStringType]. Called once per sentence by parsers that
// exploit string literals.
func (h *Hierarchy) ClearDynamicTypes() {
	h.dynamicNames.Reset()
	h.names = h.names[:h.nStatic]
	if len(h.printNames) > int(h.nStatic) {
		h.printNames = h.printNames[:h.nStatic]
	}
	h.nextDyn = h.nStatic
}

// Prune empties the glb cache to save space; safe to call between parses
// when dynamic string types have been churning.
func (h *Hierarchy) Prune() {
	h.glbCache.Reset()
}

// Stats summarizes the size of the hierarchy, for diagnostics.
type Stats struct {
	ProperTypes int
	LeafTypes   int
	DynamicTypes int
	BitcodeWords int
	GlbCacheSize int
}

// Stats reports current hierarchy sizes.
func (h *Hierarchy) Stats() Stats {
	bw := 0
	if len(h.bitcodes) > 0 {
		bw = len(h.bitcodes[0])
	}
	return Stats{
		ProperTypes:  len(h.bitcodes),
		LeafTypes:    int(h.nStatic - h.firstLeaf),
		DynamicTypes: int(h.nextDyn - h.nStatic),
		BitcodeWords: bw,
		GlbCacheSize: h.glbCache.Len(),
	}
}

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

// Package copier implements the smart/partial copy that promotes a
// unification result out of the temporary generation into a stable,
// permanent-arena dag: a node is only actually copied when something about
// it changed, everything else is shared structurally with the input.
//
// Grounded on original_source/cheap/dag-tomabechi.cpp's dag_copy (the
// SMART_COPYING branch, the only one compiled in the reference engine and
// the only behavior spec.md §4.4 describes).
package copier

import (
	"errors"

	"github.com/vellum-lang/unify/dag"
	"github.com/vellum-lang/unify/internal/restrict"
	"github.com/vellum-lang/unify/typesys"
)

// ErrCyclic is returned when the source graph contains a cycle; partial
// copy, unlike subsumption, does not support cyclic structures.
var ErrCyclic = errors.New("copier: cyclic structure")

// Alloc allocates a fresh node, typically backed by a permanent
// [github.com/vellum-lang/unify/internal/arena.Arena].
type Alloc func(t typesys.TypeId) *dag.Node

// Copier runs one partial-copy pass under a single generation. Its node
// memoization table lives entirely in the generation-protected copyTo slot
// of each [dag.Node], so a Copier is cheap to construct per call.
type Copier struct {
	Gen   dag.Generation
	Alloc Alloc
}

// Copy performs a partial copy of root, applying restrict at every node
// (nil means "keep everything"). It returns [ErrCyclic] if root's
// generation-protected dag contains a cycle.
func (c Copier) Copy(root *dag.Node, restrictor restrict.Restrictor) (*dag.Node, error) {
	return c.copy(dag.Deref(root, c.Gen), restrictor)
}

func (c Copier) copy(src *dag.Node, r restrict.Restrictor) (*dag.Node, error) {
	src = dag.Deref(src, c.Gen)

	switch src.Visit(c.Gen) {
	case dag.OnStack:
		return nil, ErrCyclic
	case dag.Done:
		return src.CopyTo(c.Gen), nil
	}

	compArcs := src.CompArcs(c.Gen)
	permArcs := src.Arcs
	newType := src.NewType(c.Gen)

	// Atomic fast path: no arcs at all, restrictor is moot.
	if compArcs == nil && permArcs == nil {
		if !src.Permanent && newType == src.Type {
			src.SetVisit(c.Gen, dag.Done)
			src.SetCopyTo(c.Gen, src)
			return src, nil
		}
		out := c.Alloc(newType)
		src.SetVisit(c.Gen, dag.Done)
		src.SetCopyTo(c.Gen, out)
		return out, nil
	}

	src.SetVisit(c.Gen, dag.OnStack)

	copyNeeded := src.Permanent || newType != src.Type || compArcs != nil

	type survivor struct {
		attr   typesys.AttrId
		target *dag.Node
	}
	var kept []survivor

	walk := func(attr typesys.AttrId, target *dag.Node) (bool, error) {
		state := restrict.Full
		sub := r
		if r != nil {
			state = r.WalkArc(attr)
			if state.Delete {
				copyNeeded = true
				return false, nil
			}
			sub = state.Recurse
		}
		copied, err := c.copy(target, sub)
		if err != nil {
			return false, err
		}
		if copied != target {
			copyNeeded = true
		}
		kept = append(kept, survivor{attr, copied})
		return true, nil
	}

	for a := compArcs; a != nil; a = a.Next {
		if _, err := walk(a.Attr, a.Target); err != nil {
			src.SetVisit(c.Gen, dag.Unvisited)
			return nil, err
		}
	}
	seen := make(map[typesys.AttrId]bool, len(kept))
	for _, s := range kept {
		seen[s.attr] = true
	}
	for a := permArcs; a != nil; a = a.Next {
		if seen[a.Attr] {
			continue // shadowed by a compArc with the same attribute
		}
		if _, err := walk(a.Attr, a.Target); err != nil {
			src.SetVisit(c.Gen, dag.Unvisited)
			return nil, err
		}
	}

	var out *dag.Node
	if !copyNeeded {
		out = src
	} else {
		out = c.Alloc(newType)
		for i := len(kept) - 1; i >= 0; i-- {
			out.AddArc(kept[i].attr, kept[i].target)
		}
	}

	src.SetVisit(c.Gen, dag.Done)
	src.SetCopyTo(c.Gen, out)
	return out, nil
}

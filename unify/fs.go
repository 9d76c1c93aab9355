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

package unify

import (
	"fmt"

	"github.com/vellum-lang/unify/dag"
	"github.com/vellum-lang/unify/typesys"
)

// FS builds a single feature structure of type t, already unified against
// t's well-formedness constraint if the grammar defines one -- mirroring
// the source engine's fs::fs(int type), which sets the new node's dag to
// typedag[type] rather than an empty shell. Without a constraint the
// result is a bare permanent node; with one it is Unify's partial copy,
// which shares the nodes unification left unchanged, so it may consist of
// the constraint copy's own non-permanent nodes.
func (r *Runtime) FS(t typesys.TypeId) *dag.Node {
	bare := r.allocPerm(t)
	if r.wellformed == nil {
		return bare
	}
	constraint := r.wellformed.ConstraintOf(r.NewGeneration(), t)
	if constraint == nil {
		return bare
	}
	out, err := r.ctx.Unify(bare, constraint, nil)
	if err != nil {
		panic(fmt.Sprintf("unify: type %s's own well-formedness constraint failed to unify with a bare node of that type: %v", r.Hierarchy.Name(t), err))
	}
	return out
}

// FSAt builds a permanent feature structure with TOP at every node along
// path except the last, which carries t -- the minimal structure a parser
// needs to probe or extend a single path, grounded on spec.md §6's
// `fs(path, type)` build primitive.
func (r *Runtime) FSAt(path []typesys.AttrId, t typesys.TypeId) *dag.Node {
	node := r.FS(t)
	for i := len(path) - 1; i >= 0; i-- {
		parent := r.FS(typesys.TOP)
		parent.AddArc(path[i], node)
		node = parent
	}
	return node
}

// GetAttrValue returns the permanent value of attr on n, or nil if n has no
// such arc.
func (r *Runtime) GetAttrValue(n *dag.Node, attr typesys.AttrId) *dag.Node {
	return n.FindArc(attr)
}

// GetPathValue walks path from n, following each attribute's permanent arc
// in turn, returning nil as soon as an arc is missing.
func (r *Runtime) GetPathValue(n *dag.Node, path []typesys.AttrId) *dag.Node {
	for _, attr := range path {
		if n == nil {
			return nil
		}
		n = n.FindArc(attr)
	}
	return n
}

// NthArg returns the n-th argument of a relation by walking the
// ARGS.REST*(k-1).FIRST convention, 1-based. Requires the grammar to define
// ARGS, REST, and FIRST attributes.
func (r *Runtime) NthArg(n *dag.Node, k int) (*dag.Node, error) {
	if k < 1 {
		return nil, fmt.Errorf("unify: NthArg index must be >= 1, got %d", k)
	}
	argsAttr, ok := r.AttrId("ARGS")
	if !ok {
		return nil, fmt.Errorf("unify: grammar defines no ARGS attribute")
	}
	restAttr, ok := r.AttrId("REST")
	if !ok {
		return nil, fmt.Errorf("unify: grammar defines no REST attribute")
	}
	firstAttr, ok := r.AttrId("FIRST")
	if !ok {
		return nil, fmt.Errorf("unify: grammar defines no FIRST attribute")
	}

	cur := n.FindArc(argsAttr)
	for i := 1; i < k; i++ {
		if cur == nil {
			return nil, fmt.Errorf("unify: argument list too short for index %d", k)
		}
		cur = cur.FindArc(restAttr)
	}
	if cur == nil {
		return nil, fmt.Errorf("unify: argument list too short for index %d", k)
	}
	return cur.FindArc(firstAttr), nil
}

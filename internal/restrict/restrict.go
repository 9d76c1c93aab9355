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

// Package restrict implements the two restrictor shapes [the copier] uses
// to decide which arcs survive a partial copy: a flat path-tree restrictor
// (a set of paths to prune, read from a grammar-adjacent config) and a
// dag-shaped restrictor using DEL/ONLY sentinel leaves, grounded on
// original_source/cheap/dag-tomabechi.h's dag_partial_copy_state template
// and the stateless variant above it.
package restrict

import "github.com/vellum-lang/unify/typesys"

// State is a restrictor's per-node decision: whether to delete the arc
// entirely, copy it without restriction, or recurse under a child state.
type State struct {
	Delete  bool
	Recurse Restrictor // nil means "copy the rest of the subtree unrestricted"
}

// Full is the state that copies everything below it unrestricted;
// equivalent to original_source's "rst.full()" early-exit in
// dag_partial_copy_state.
var Full = State{}

// Deleted is the state that prunes the arc entirely.
var Deleted = State{Delete: true}

// Restrictor decides, for each attribute reachable from the current
// position, whether and how to keep walking.
type Restrictor interface {
	// WalkArc returns the restrictor state to apply to the subtree under
	// attr.
	WalkArc(attr typesys.AttrId) State

	// IsFull reports whether every arc below this position should be kept
	// unrestricted (original_source's rst.full()). The copier does not
	// consult it; it calls WalkArc for every arc it copies.
	IsFull() bool
}

// PathTree is a flat-set restrictor: a fixed list of paths to prune,
// consulted only at the copy root (spec.md §4.4's "flat set of attribute
// ids to prune only at the root").
type PathTree struct {
	del map[typesys.AttrId]bool
}

// NewPathTree builds a root-only restrictor that deletes exactly the given
// top-level attributes.
func NewPathTree(attrs ...typesys.AttrId) *PathTree {
	del := make(map[typesys.AttrId]bool, len(attrs))
	for _, a := range attrs {
		del[a] = true
	}
	return &PathTree{del: del}
}

// WalkArc implements [Restrictor]. Below the root, a PathTree keeps
// everything: it only prunes directly at the attributes it was built with.
func (p *PathTree) WalkArc(attr typesys.AttrId) State {
	if p.del[attr] {
		return Deleted
	}
	return Full
}

// IsFull implements [Restrictor]; a PathTree only ever restricts at its own
// level, so anything beneath an arc it doesn't delete is unrestricted.
func (p *PathTree) IsFull() bool { return len(p.del) == 0 }

// leafKind tags a dag-shaped restrictor node: leafNone for an inner node,
// or one of the two leaf markers the tree may bottom out in: leafDel (DEL)
// prunes the arc, leafOnly (ONLY) keeps it but restricts nothing further
// below it.
type leafKind uint8

const (
	leafNone leafKind = iota
	leafDel
	leafOnly
)

// DagNode is a dag-shaped restrictor: an ordinary feature-structure-like
// tree whose leaves are DEL or ONLY sentinels, per spec.md §4.4's "dag-
// shaped restrictor using two sentinel markers DEL and ONLY".
type DagNode struct {
	leaf     leafKind
	children map[typesys.AttrId]*DagNode
}

// Del returns a restrictor node that deletes its arc outright.
func Del() *DagNode { return &DagNode{leaf: leafDel} }

// Only returns a restrictor node that keeps its arc but restricts nothing
// underneath it.
func Only() *DagNode { return &DagNode{leaf: leafOnly} }

// Node returns an interior restrictor node with the given children.
func Node(children map[typesys.AttrId]*DagNode) *DagNode {
	return &DagNode{children: children}
}

// WalkArc implements [Restrictor].
func (d *DagNode) WalkArc(attr typesys.AttrId) State {
	child, ok := d.children[attr]
	if !ok {
		return Full
	}
	switch child.leaf {
	case leafDel:
		return Deleted
	case leafOnly:
		return Full
	default:
		return State{Recurse: child}
	}
}

// IsFull implements [Restrictor].
func (d *DagNode) IsFull() bool {
	return d.leaf == leafOnly || (d.leaf == leafNone && len(d.children) == 0)
}

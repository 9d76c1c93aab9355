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

package quickcheck

import "github.com/vellum-lang/unify/dag"

// TreeFromDag builds a qc path [Tree] from a dag decoded the same way as a
// constraint dump (spec.md §6.2: "a small dag with distinguished leaves
// whose types are numeric positions (1-based) in the qc vector; loaded via
// the same dag reader but with a limit to cap the vector length"). A node
// whose type is a positive integer not exceeding limit is a tracked
// position; any other node is a pure waypoint on the way to deeper paths.
func TreeFromDag(root *dag.Node, limit int) *Tree {
	return &Tree{Root: buildPathNode(root, limit), Length: limit}
}

func buildPathNode(d *dag.Node, limit int) *PathNode {
	if d == nil {
		return nil
	}
	n := &PathNode{}
	if pos := int(d.GetType()); pos > 0 && pos <= limit {
		n.QcPos = pos
	}
	for a := d.Arcs; a != nil; a = a.Next {
		child := buildPathNode(a.Target, limit)
		child.Attr = a.Attr
		n.Children = append(n.Children, child)
	}
	return n
}

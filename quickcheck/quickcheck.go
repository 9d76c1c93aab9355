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

// Package quickcheck implements the quick-check filter: a fixed set of
// paths into a feature structure is extracted into a flat vector of types,
// and two structures' vectors can be compared cheaply to rule out a doomed
// unification or failed subsumption check before walking either dag for
// real.
//
// Grounded on original_source/cheap/dag-tomabechi.cpp's
// dag_get_qc_vector_np/dag_get_qc_vector and original_source/cheap/fs.cpp's
// get_qc_vector/qc_compatible_unif/qc_compatible_subs.
package quickcheck

import (
	"github.com/vellum-lang/unify/dag"
	"github.com/vellum-lang/unify/typesys"
)

// PathNode is one node of the qc path tree: a flat list of attributes to
// follow from the root, each either tracked in the output vector (QcPos >
// 0, a 1-based slot) or merely a waypoint en route to a deeper path.
type PathNode struct {
	Attr     typesys.AttrId
	QcPos    int
	Children []*PathNode
}

// Tree is a full qc path set: a root waypoint (its own Attr is unused) plus
// the vector length every [GetVector] call against it must allocate.
type Tree struct {
	Root   *PathNode
	Length int
}

// GetVector extracts d's type at every path in t, under generation gen,
// leaving untracked positions (a path never reached, or a tree shorter than
// the vector) at the zero [typesys.TypeId], which is [typesys.TOP] --
// matching the C++ source's "vector[i] = 0" fill, since TOP is the type
// every missing arc implicitly carries.
func GetVector(t *Tree, d *dag.Node, gen dag.Generation) []typesys.TypeId {
	vec := make([]typesys.TypeId, t.Length)
	fill(t.Root, d, gen, vec)
	return vec
}

func fill(path *PathNode, d *dag.Node, gen dag.Generation, vec []typesys.TypeId) {
	if d == nil || path == nil {
		return
	}
	d = dag.Deref(d, gen)
	if path.QcPos > 0 {
		vec[path.QcPos-1] = d.NewType(gen)
	}
	for _, child := range path.Children {
		fill(child, dag.FindArcGen(d, gen, child.Attr), gen, vec)
	}
}

// CompatibleUnif reports whether two quick-check vectors could possibly
// belong to dags that unify: every position's pairwise glb must exist.
// A false result is conclusive (the real unification would fail too); a
// true result is only a necessary, not sufficient, condition.
func CompatibleUnif(h *typesys.Hierarchy, a, b []typesys.TypeId) bool {
	for i := range a {
		if h.Glb(a[i], b[i]) == typesys.BOTTOM {
			return false
		}
	}
	return true
}

// CompatibleSubs reports whether two quick-check vectors are consistent
// with a subsumes b (forward) and/or b subsumes a (backward), using the
// same bidirectional-subtype accumulation as [subsumption.Checker].
func CompatibleSubs(h *typesys.Hierarchy, a, b []typesys.TypeId) (forward, backward bool) {
	forward, backward = true, true
	for i := range a {
		st12, st21 := h.SubtypeBidir(a[i], b[i])
		if !st12 {
			backward = false
		}
		if !st21 {
			forward = false
		}
		if !forward && !backward {
			return false, false
		}
	}
	return forward, backward
}

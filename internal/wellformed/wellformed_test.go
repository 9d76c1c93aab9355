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

package wellformed_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vellum-lang/unify/dag"
	"github.com/vellum-lang/unify/internal/wellformed"
	"github.com/vellum-lang/unify/typesys"
)

// naiveUnify1 is a minimal, test-only stand-in for the real unifier: it only
// needs to handle the shapes DeltaExpand/MakeWellformed exercise here (an
// empty node unified against a node with one arc), not general unification.
func naiveUnify1(a, b *dag.Node) (*dag.Node, error) {
	for arc := b.Arcs; arc != nil; arc = arc.Next {
		if a.FindArc(arc.Attr) == nil {
			a.AddArc(arc.Attr, arc.Target)
		}
	}
	return a, nil
}

func TestConstraintOfCachesWithinGeneration(t *testing.T) {
	t.Parallel()

	constraint := dag.New(typesys.TypeId(1))
	constraint.AddArc(typesys.AttrId(1), dag.New(typesys.TypeId(2)))

	s := wellformed.NewStore(nil, []*dag.Node{nil, constraint})
	first := s.ConstraintOf(7, 1)
	second := s.ConstraintOf(7, 1)
	require.Same(t, first, second, "same generation must reuse the cached copy")

	third := s.ConstraintOf(8, 1)
	require.NotSame(t, first, third, "a new generation must get a fresh copy")
}

func TestConstraintOfNilForUnconstrainedType(t *testing.T) {
	t.Parallel()

	s := wellformed.NewStore(nil, []*dag.Node{nil, nil})
	require.Nil(t, s.ConstraintOf(1, 1))
}

func TestMakeWellformedSkipsWhenTypeUnchanged(t *testing.T) {
	t.Parallel()

	constraint := dag.New(typesys.TypeId(1))
	constraint.AddArc(typesys.AttrId(1), dag.New(typesys.TypeId(2)))
	s := wellformed.NewStore(nil, []*dag.Node{nil, constraint})

	node := dag.New(typesys.TypeId(1))
	err := s.MakeWellformed(1, node, typesys.TypeId(1), typesys.TypeId(1), naiveUnify1)
	require.NoError(t, err)
	require.Nil(t, node.FindArc(typesys.AttrId(1)), "no type change: constraint must not be applied")
}

func TestMakeWellformedAppliesConstraintOnTypeChange(t *testing.T) {
	t.Parallel()

	constraint := dag.New(typesys.TypeId(2))
	constraint.AddArc(typesys.AttrId(1), dag.New(typesys.TypeId(9)))
	s := wellformed.NewStore(nil, []*dag.Node{nil, nil, constraint})

	node := dag.New(typesys.TypeId(1))
	err := s.MakeWellformed(1, node, typesys.TypeId(1), typesys.TypeId(2), naiveUnify1)
	require.NoError(t, err)
	require.NotNil(t, node.FindArc(typesys.AttrId(1)))
}

func TestFullCopyPreservesSharing(t *testing.T) {
	t.Parallel()

	shared := dag.New(typesys.TypeId(1))
	root := dag.New(typesys.TypeId(2))
	root.AddArc(typesys.AttrId(1), shared)
	root.AddArc(typesys.AttrId(2), shared)

	out := wellformed.FullCopy(root)
	require.NotSame(t, root, out)
	require.Same(t, out.FindArc(typesys.AttrId(1)), out.FindArc(typesys.AttrId(2)))
}

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

package copier_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vellum-lang/unify/dag"
	"github.com/vellum-lang/unify/internal/copier"
	"github.com/vellum-lang/unify/internal/restrict"
	"github.com/vellum-lang/unify/typesys"
)

func alloc() copier.Alloc {
	return func(t typesys.TypeId) *dag.Node { return dag.New(t) }
}

func TestUnchangedSubtreeIsShared(t *testing.T) {
	t.Parallel()

	leaf := dag.New(typesys.TypeId(1))
	root := dag.New(typesys.TypeId(2))
	root.AddArc(typesys.AttrId(1), leaf)

	c := copier.Copier{Gen: 1, Alloc: alloc()}
	out, err := c.Copy(root, nil)
	require.NoError(t, err)
	require.Same(t, root, out, "no generation-protected changes: whole dag is shared")
}

func TestTypeChangeForcesCopy(t *testing.T) {
	t.Parallel()

	root := dag.New(typesys.TypeId(2))
	root.SetNewType(1, typesys.TypeId(5))

	c := copier.Copier{Gen: 1, Alloc: alloc()}
	out, err := c.Copy(root, nil)
	require.NoError(t, err)
	require.NotSame(t, root, out)
	require.Equal(t, typesys.TypeId(5), out.GetType())
}

func TestChangedArcTargetPropagatesCopy(t *testing.T) {
	t.Parallel()

	leaf := dag.New(typesys.TypeId(1))
	leaf.SetNewType(1, typesys.TypeId(9))
	root := dag.New(typesys.TypeId(2))
	root.AddArc(typesys.AttrId(1), leaf)

	c := copier.Copier{Gen: 1, Alloc: alloc()}
	out, err := c.Copy(root, nil)
	require.NoError(t, err)
	require.NotSame(t, root, out, "child changed, so parent must be re-copied too")
	require.Equal(t, typesys.TypeId(9), out.FindArc(typesys.AttrId(1)).GetType())
}

func TestRestrictorDeletesArc(t *testing.T) {
	t.Parallel()

	leaf := dag.New(typesys.TypeId(1))
	root := dag.New(typesys.TypeId(2))
	root.AddArc(typesys.AttrId(1), leaf)
	root.AddArc(typesys.AttrId(2), dag.New(typesys.TypeId(3)))

	r := restrict.NewPathTree(typesys.AttrId(1))
	c := copier.Copier{Gen: 1, Alloc: alloc()}
	out, err := c.Copy(root, r)
	require.NoError(t, err)
	require.NotSame(t, root, out)
	require.Nil(t, out.FindArc(typesys.AttrId(1)), "restrictor law: deleted path must not survive")
	require.NotNil(t, out.FindArc(typesys.AttrId(2)))
}

func TestCyclicStructureFails(t *testing.T) {
	t.Parallel()

	a := dag.New(typesys.TypeId(1))
	b := dag.New(typesys.TypeId(2))
	a.AddArc(typesys.AttrId(1), b)
	b.AddArc(typesys.AttrId(2), a)

	c := copier.Copier{Gen: 1, Alloc: alloc()}
	_, err := c.Copy(a, nil)
	require.ErrorIs(t, err, copier.ErrCyclic)
}

func TestSharedSubtreeCopiedOnce(t *testing.T) {
	t.Parallel()

	shared := dag.New(typesys.TypeId(1))
	shared.SetNewType(1, typesys.TypeId(9))
	root := dag.New(typesys.TypeId(2))
	root.AddArc(typesys.AttrId(1), shared)
	root.AddArc(typesys.AttrId(2), shared)

	c := copier.Copier{Gen: 1, Alloc: alloc()}
	out, err := c.Copy(root, nil)
	require.NoError(t, err)
	require.Same(t, out.FindArc(typesys.AttrId(1)), out.FindArc(typesys.AttrId(2)),
		"memoized copy must preserve sharing across multiple incoming arcs")
}

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

package unify_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vellum-lang/unify/dag"
	"github.com/vellum-lang/unify/gfile"
	"github.com/vellum-lang/unify/typesys"
	"github.com/vellum-lang/unify/unify"
)

// Small hierarchy: TOP(0) > U(1) > T(2), TOP > V(3); two attributes, ARG1
// and ARG2, neither constrained.
func testGrammar(t *testing.T) *gfile.Grammar {
	t.Helper()
	bc := func(bits ...int) typesys.Bitcode {
		b := typesys.NewBitcode(4)
		for _, x := range bits {
			b.Insert(x)
		}
		return b
	}
	h, err := typesys.NewHierarchy(typesys.Data{
		Names:         []string{"TOP", "U", "T", "V"},
		FirstLeafType: 4,
		NStaticTypes:  4,
		Bitcodes: []typesys.Bitcode{
			bc(0, 1, 2, 3),
			bc(1, 2),
			bc(2),
			bc(3),
		},
		ImmediateSupers: [][]typesys.TypeId{nil, {0}, {1}, {0}},
		StringType:      0,
	})
	require.NoError(t, err)

	return &gfile.Grammar{
		Hierarchy: h,
		AttrNames: []string{"ARG1", "ARG2", "ARGS", "REST", "FIRST"},
	}
}

func openRuntime(t *testing.T) *unify.Runtime {
	t.Helper()
	r, err := unify.Open(testGrammar(t), nil)
	require.NoError(t, err)
	return r
}

// testGrammarWithConstraint adds one well-formedness constraint to
// testGrammar's hierarchy: U(1) requires ARG1 to be T(2).
func testGrammarWithConstraint(t *testing.T) *gfile.Grammar {
	t.Helper()
	g := testGrammar(t)

	constraint := dag.New(typesys.TypeId(1))
	constraint.AddArc(typesys.AttrId(0), dag.New(typesys.TypeId(2))) // ARG1: T

	dags := make([]*dag.Node, 4)
	dags[1] = constraint
	g.TypeDags = dags
	return g
}

func TestFSPullsInTypesWellformednessConstraint(t *testing.T) {
	t.Parallel()
	r, err := unify.Open(testGrammarWithConstraint(t), nil)
	require.NoError(t, err)

	arg1, _ := r.AttrId("ARG1")
	u := r.FS(typesys.TypeId(1)) // U

	value := r.GetAttrValue(u, arg1)
	require.NotNil(t, value, "FS(U) must already carry ARG1 from U's own well-formedness constraint")
	require.Equal(t, typesys.TypeId(2), value.GetType())
}

func TestOpenResolvesAttributeNames(t *testing.T) {
	t.Parallel()
	r := openRuntime(t)

	id, ok := r.AttrId("ARG1")
	require.True(t, ok)
	require.Equal(t, "ARG1", r.AttrName(id))

	_, ok = r.AttrId("NOPE")
	require.False(t, ok)
}

func TestUnifySpecializesAndPromotesToPermanent(t *testing.T) {
	t.Parallel()
	r := openRuntime(t)

	a := r.FS(typesys.TypeId(1)) // U
	b := r.FS(typesys.TypeId(2)) // T

	out, err := r.Unify(a, b, nil)
	require.NoError(t, err)
	require.Equal(t, typesys.TypeId(2), out.GetType())
}

func TestUnifyMergesArcsAcrossFS(t *testing.T) {
	t.Parallel()
	r := openRuntime(t)

	arg1, _ := r.AttrId("ARG1")
	arg2, _ := r.AttrId("ARG2")

	a := r.FSAt([]typesys.AttrId{arg1}, typesys.TypeId(2))
	b := r.FSAt([]typesys.AttrId{arg2}, typesys.TypeId(3))

	out, err := r.Unify(a, b, nil)
	require.NoError(t, err)
	require.Equal(t, typesys.TypeId(2), r.GetAttrValue(out, arg1).GetType())
	require.Equal(t, typesys.TypeId(3), r.GetAttrValue(out, arg2).GetType())
}

func TestCopyProducesIndependentPermanentNode(t *testing.T) {
	t.Parallel()
	r := openRuntime(t)

	arg1, _ := r.AttrId("ARG1")
	a := r.FSAt([]typesys.AttrId{arg1}, typesys.TypeId(2))

	cp, err := r.Copy(a)
	require.NoError(t, err)
	require.True(t, cp.Permanent)
	require.Equal(t, typesys.TypeId(2), r.GetAttrValue(cp, arg1).GetType())
}

func TestSubsumesIdenticalStructures(t *testing.T) {
	t.Parallel()
	r := openRuntime(t)

	arg1, _ := r.AttrId("ARG1")
	a := r.FSAt([]typesys.AttrId{arg1}, typesys.TypeId(2))
	b := r.FSAt([]typesys.AttrId{arg1}, typesys.TypeId(2))

	forward, backward := r.Subsumes(a, b)
	require.True(t, forward)
	require.True(t, backward)
}

func TestNthArgWalksArgsChain(t *testing.T) {
	t.Parallel()
	r := openRuntime(t)

	argsAttr, _ := r.AttrId("ARGS")
	restAttr, _ := r.AttrId("REST")
	firstAttr, _ := r.AttrId("FIRST")

	second := r.FS(typesys.TypeId(3)) // V
	rest := r.FS(typesys.TypeId(0))
	rest.AddArc(firstAttr, second)

	first := r.FS(typesys.TypeId(2)) // T
	list := r.FS(typesys.TypeId(0))
	list.AddArc(firstAttr, first)
	list.AddArc(restAttr, rest)

	root := r.FS(typesys.TypeId(0))
	root.AddArc(argsAttr, list)

	arg1, err := r.NthArg(root, 1)
	require.NoError(t, err)
	require.Equal(t, typesys.TypeId(2), arg1.GetType())

	arg2, err := r.NthArg(root, 2)
	require.NoError(t, err)
	require.Equal(t, typesys.TypeId(3), arg2.GetType())

	_, err = r.NthArg(root, 3)
	require.Error(t, err)
}

func TestSizeCountsSharedNodeOnce(t *testing.T) {
	t.Parallel()
	r := openRuntime(t)

	arg1, _ := r.AttrId("ARG1")
	arg2, _ := r.AttrId("ARG2")

	shared := r.FS(typesys.TypeId(1))
	root := r.FS(typesys.TypeId(0))
	root.AddArc(arg1, shared)
	root.AddArc(arg2, shared)

	require.Equal(t, 2, r.Size(root))
}

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

package typesys_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vellum-lang/unify/typesys"
)

// Builds the small hierarchy used throughout spec.md §8's worked examples:
// T < U < TOP, V < TOP, T and V incompatible, plus a leaf type L under T and
// the built-in STRING under TOP.
//
//	TOP(0)  U(1)  T(2)  V(3)  STRING(4)   -- proper types
//	L(5)                                  -- static leaf, parent T
func buildTestHierarchy(t *testing.T) (*typesys.Hierarchy, map[string]typesys.TypeId) {
	t.Helper()

	const (
		top typesys.TypeId = iota
		u
		tt
		v
		str
	)
	const firstLeaf typesys.TypeId = 5
	const l = firstLeaf
	const nStatic = firstLeaf + 1

	bc := func(bits ...int) typesys.Bitcode {
		b := typesys.NewBitcode(5)
		for _, x := range bits {
			b.Insert(x)
		}
		return b
	}

	data := typesys.Data{
		Names:         []string{"TOP", "U", "T", "V", "STRING", "L"},
		FirstLeafType: firstLeaf,
		NStaticTypes:  nStatic,
		Bitcodes: []typesys.Bitcode{
			bc(0, 1, 2, 3, 4), // TOP: downset is everything
			bc(1, 2),          // U: {U, T}
			bc(2),             // T: {T}
			bc(3),             // V: {V}
			bc(4),             // STRING: {STRING}
		},
		LeafParent: []typesys.TypeId{tt}, // L's parent is T
		ImmediateSupers: [][]typesys.TypeId{
			nil,      // TOP
			{top},    // U
			{u},      // T
			{top},    // V
			{top},    // STRING
		},
		StringType: str,
	}

	h, err := typesys.NewHierarchy(data)
	require.NoError(t, err)

	return h, map[string]typesys.TypeId{
		"TOP": top, "U": u, "T": tt, "V": v, "STRING": str, "L": l,
	}
}

func TestSubtypeTransitivity(t *testing.T) {
	t.Parallel()
	h, ty := buildTestHierarchy(t)

	require.True(t, h.Subtype(ty["T"], ty["U"]))
	require.True(t, h.Subtype(ty["U"], ty["TOP"]))
	require.True(t, h.Subtype(ty["T"], ty["TOP"]))
	require.False(t, h.Subtype(ty["U"], ty["T"]))
	require.False(t, h.Subtype(ty["V"], ty["T"]))
}

func TestSubtypeTopBottom(t *testing.T) {
	t.Parallel()
	h, ty := buildTestHierarchy(t)

	require.True(t, h.Subtype(typesys.BOTTOM, ty["T"]))
	require.True(t, h.Subtype(ty["T"], typesys.TOP))
	require.False(t, h.Subtype(ty["T"], typesys.BOTTOM))
}

func TestLeafSubtype(t *testing.T) {
	t.Parallel()
	h, ty := buildTestHierarchy(t)

	require.True(t, h.Subtype(ty["L"], ty["T"]))
	require.True(t, h.Subtype(ty["L"], ty["U"]))
	require.True(t, h.Subtype(ty["L"], ty["TOP"]))
	require.False(t, h.Subtype(ty["L"], ty["V"]))
}

func TestGlbCorrectness(t *testing.T) {
	t.Parallel()
	h, ty := buildTestHierarchy(t)

	require.Equal(t, ty["T"], h.Glb(ty["T"], ty["U"]))
	require.Equal(t, ty["T"], h.Glb(ty["U"], ty["T"]), "glb must be commutative")
	require.Equal(t, typesys.BOTTOM, h.Glb(ty["T"], ty["V"]))
	require.Equal(t, ty["T"], h.Glb(ty["T"], ty["T"]), "glb must be reflexive")
	require.Equal(t, ty["U"], h.Glb(ty["U"], typesys.TOP))
}

func TestSubtypeBidirMatchesSubtype(t *testing.T) {
	t.Parallel()
	h, ty := buildTestHierarchy(t)

	fwd, back := h.SubtypeBidir(ty["T"], ty["U"])
	require.True(t, fwd)
	require.False(t, back)

	fwd, back = h.SubtypeBidir(ty["T"], ty["V"])
	require.False(t, fwd)
	require.False(t, back)
}

func TestDynamicStringTypes(t *testing.T) {
	t.Parallel()
	h, ty := buildTestHierarchy(t)

	foo := h.RetrieveStringType("foo")
	bar := h.RetrieveStringType("bar")
	again := h.RetrieveStringType("foo")
	require.Equal(t, foo, again, "re-registering the same literal returns the same id")
	require.NotEqual(t, foo, bar)

	require.True(t, h.Subtype(foo, ty["STRING"]))
	require.False(t, h.Subtype(ty["STRING"], foo))
	require.Equal(t, typesys.BOTTOM, h.Glb(foo, bar))

	h.ClearDynamicTypes()
	baz := h.RetrieveStringType("foo")
	require.Equal(t, foo, baz, "ids are reused after clearing, since the counter resets")
}

func TestAllSupertypes(t *testing.T) {
	t.Parallel()
	h, ty := buildTestHierarchy(t)

	require.ElementsMatch(t, []typesys.TypeId{ty["U"], ty["TOP"]}, h.AllSupertypes(ty["T"]))
	require.Empty(t, h.AllSupertypes(ty["TOP"]))
}

func TestTopologicalTypes(t *testing.T) {
	t.Parallel()
	h, ty := buildTestHierarchy(t)

	order := h.TopologicalTypes()
	require.Len(t, order, 6)

	pos := make(map[typesys.TypeId]int, len(order))
	for i, id := range order {
		pos[id] = i
	}

	require.Less(t, pos[ty["TOP"]], pos[ty["U"]])
	require.Less(t, pos[ty["U"]], pos[ty["T"]])
	require.Less(t, pos[ty["TOP"]], pos[ty["V"]])
	require.Less(t, pos[ty["TOP"]], pos[ty["STRING"]])
	require.Less(t, pos[ty["T"]], pos[ty["L"]], "leaf types must follow their static parent")
}

func TestPrune(t *testing.T) {
	t.Parallel()
	h, ty := buildTestHierarchy(t)

	h.Glb(ty["T"], ty["U"])
	require.Positive(t, h.Stats().GlbCacheSize)
	h.Prune()
	require.Zero(t, h.Stats().GlbCacheSize)
}

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

package gfile_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vellum-lang/unify/dag"
	"github.com/vellum-lang/unify/gfile"
	"github.com/vellum-lang/unify/typesys"
)

func TestDagDumpRoundTrip(t *testing.T) {
	t.Parallel()

	shared := dag.New(typesys.TypeId(5))
	root := dag.New(typesys.TypeId(1))
	root.AddArc(typesys.AttrId(1), shared)
	root.AddArc(typesys.AttrId(2), shared)

	var buf bytes.Buffer
	require.NoError(t, gfile.EncodeDag(&buf, root))

	decoded, err := gfile.DecodeDag(&buf)
	require.NoError(t, err)
	require.Equal(t, typesys.TypeId(1), decoded.GetType())
	require.Same(t, decoded.FindArc(typesys.AttrId(1)), decoded.FindArc(typesys.AttrId(2)),
		"shared substructure must round-trip as shared, not duplicated")
	require.Equal(t, typesys.TypeId(5), decoded.FindArc(typesys.AttrId(1)).GetType())
}

func TestDagDumpPreservesArcOrder(t *testing.T) {
	t.Parallel()

	root := dag.New(typesys.TypeId(0))
	root.AddArc(typesys.AttrId(1), dag.New(typesys.TypeId(1)))
	root.AddArc(typesys.AttrId(2), dag.New(typesys.TypeId(2)))
	root.AddArc(typesys.AttrId(3), dag.New(typesys.TypeId(3)))

	var buf bytes.Buffer
	require.NoError(t, gfile.EncodeDag(&buf, root))
	decoded, err := gfile.DecodeDag(&buf)
	require.NoError(t, err)

	var attrs []typesys.AttrId
	for a := decoded.Arcs; a != nil; a = a.Next {
		attrs = append(attrs, a.Attr)
	}
	require.Equal(t, []typesys.AttrId{3, 2, 1}, attrs, "AddArc prepends, so original insertion order 1,2,3 heads with 3")
}

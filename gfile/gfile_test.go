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
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vellum-lang/unify/gfile"
	"github.com/vellum-lang/unify/typesys"
)

// buildMinimalGrammar assembles a tiny valid grammar file in memory: a
// two-type hierarchy (TOP, U) with SYMTAB, HIERARCHY and SUPERTYPES
// sections, no optional sections.
func buildMinimalGrammar(t *testing.T) []byte {
	t.Helper()

	writeStrings := func(buf *bytes.Buffer, ss []string) {
		require.NoError(t, binary.Write(buf, binary.LittleEndian, uint32(len(ss))))
		for _, s := range ss {
			require.NoError(t, binary.Write(buf, binary.LittleEndian, uint16(len(s))))
			buf.WriteString(s)
		}
	}

	symtab := new(bytes.Buffer)
	writeStrings(symtab, []string{"TOP", "U"})
	writeStrings(symtab, []string{"ARG1"})

	hierarchy := new(bytes.Buffer)
	require.NoError(t, binary.Write(hierarchy, binary.LittleEndian, int32(2))) // firstLeaf
	require.NoError(t, binary.Write(hierarchy, binary.LittleEndian, int32(2))) // nStatic
	require.NoError(t, binary.Write(hierarchy, binary.LittleEndian, int32(0))) // stringType
	require.NoError(t, binary.Write(hierarchy, binary.LittleEndian, int32(1))) // bitcode words
	// TOP downset: {TOP, U} = bits 0,1 -> word 0b11
	require.NoError(t, binary.Write(hierarchy, binary.LittleEndian, uint64(0b11)))
	// U downset: {U} = bit 1
	require.NoError(t, binary.Write(hierarchy, binary.LittleEndian, uint64(0b10)))
	// no leaf types

	supertypes := new(bytes.Buffer)
	require.NoError(t, binary.Write(supertypes, binary.LittleEndian, uint32(0))) // TOP: no parents
	require.NoError(t, binary.Write(supertypes, binary.LittleEndian, uint32(1))) // U: one parent,
	require.NoError(t, binary.Write(supertypes, binary.LittleEndian, int32(0)))  // TOP

	sections := []struct {
		tag  gfile.SectionTag
		body []byte
	}{
		{gfile.SecSymtab, symtab.Bytes()},
		{gfile.SecHierarchy, hierarchy.Bytes()},
		{gfile.SecSupertypes, supertypes.Bytes()},
	}

	var header bytes.Buffer
	require.NoError(t, binary.Write(&header, binary.LittleEndian, gfile.Magic))
	require.NoError(t, binary.Write(&header, binary.LittleEndian, gfile.Version))
	require.NoError(t, binary.Write(&header, binary.LittleEndian, uint32(0))) // description length

	var toc bytes.Buffer
	// Each TOC entry is (tag, offset); offsets are relative to the start of
	// the file and point at the section's own repeated tag int, written
	// after the header and every TOC entry including the terminating zero.
	tocLen := len(sections)*8 + 4
	offset := int64(header.Len()) + int64(tocLen)
	var bodies bytes.Buffer
	for _, s := range sections {
		require.NoError(t, binary.Write(&toc, binary.LittleEndian, int32(s.tag)))
		require.NoError(t, binary.Write(&toc, binary.LittleEndian, int32(offset)))

		require.NoError(t, binary.Write(&bodies, binary.LittleEndian, int32(s.tag)))
		bodies.Write(s.body)
		offset += 4 + int64(len(s.body))
	}
	require.NoError(t, binary.Write(&toc, binary.LittleEndian, int32(gfile.SecNoSection)))

	var out bytes.Buffer
	out.Write(header.Bytes())
	out.Write(toc.Bytes())
	out.Write(bodies.Bytes())
	return out.Bytes()
}

func TestLoadMinimalGrammar(t *testing.T) {
	t.Parallel()

	raw := buildMinimalGrammar(t)
	g, err := gfile.Load(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)

	require.Equal(t, []string{"ARG1"}, g.AttrNames)
	require.True(t, g.Hierarchy.Subtype(typesys.TypeId(1), typesys.TypeId(0)))
}

func TestLoadRejectsBadMagic(t *testing.T) {
	t.Parallel()

	raw := buildMinimalGrammar(t)
	raw[0] = 'X'
	_, err := gfile.Load(bytes.NewReader(raw), int64(len(raw)))
	require.Error(t, err)

	var loadErr *gfile.LoadError
	require.ErrorAs(t, err, &loadErr)
	require.Equal(t, "header", loadErr.Section)
}

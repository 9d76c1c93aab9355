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

// Package gfile reads the compiled grammar file format: a short header, a
// table of contents of named sections, and the sections themselves
// (SYMTAB, HIERARCHY, FEATTABS, SUPERTYPES, CONSTRAINTS, PRINTNAMES). The
// same post-order dag-dump codec this package uses for the CONSTRAINTS
// section is reused by the quick-check path file and by cmd/unifycheck's
// stdin self-check mode.
//
// Grounded on hyperpb's internal/tdp/compiler (a symbol table plus a
// linking pass that resolves field sites into a single compiled blob) --
// the shape (header, named sections, a loader that assembles a ready-to-use
// value from them) is the same, retargeted at a grammar instead of a
// descriptor set.
package gfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/vellum-lang/unify/dag"
	"github.com/vellum-lang/unify/typesys"
)

// Magic identifies a grammar file. Grounded on
// original_source/common/grammar-dump.h's DUMP_MAGIC.
const Magic = int32(0x03422711)

// Version is the only binary grammar file format version this package
// understands. Grounded on grammar-dump.h's DUMP_VERSION.
const Version = int32(16)

// LoadError wraps a failure to load a specific section at a specific
// offset, grounded on hyperpb's errParse: a small struct that carries
// enough context to report exactly where loading went wrong, with Unwrap
// exposing the underlying cause for errors.Is/errors.As.
type LoadError struct {
	Section string
	Offset  int64
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("gfile: section %q at offset %d: %v", e.Section, e.Offset, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

func loadErr(section string, offset int64, err error) error {
	return &LoadError{Section: section, Offset: offset, Err: xerrors.Errorf("%w", err)}
}

// SectionTag identifies one section of a grammar file's table of contents.
// Grounded on grammar-dump.h's `enum sectiontype`; SecNoSection is never a
// real section, it only terminates the TOC.
type SectionTag int32

const (
	SecNoSection SectionTag = iota
	SecSymtab
	SecPrintnames
	SecHierarchy
	SecFeattabs
	SecFullforms
	SecInflr
	SecConstraints
	SecIrregs
	SecProperties
	SecSupertypes
	SecChart
)

// Header is the preamble of a grammar file: magic, version, and a
// free-form description string naming the grammar.
type Header struct {
	Version     int32
	Description string
}

// TOCEntry names one section and where it starts. There is no stored
// length -- goto_section's caller reads a section until it's done reading
// it, the same way the original engine's dump_toc does; this package
// instead derives a length by sorting entries on offset and treating the
// next entry's offset (or EOF, for the last one) as the end.
type TOCEntry struct {
	Tag    SectionTag
	Offset int64
}

// Grammar is everything [Load] assembles from a grammar file, ready to
// delta-expand and hand to a unifier.Context.
type Grammar struct {
	Hierarchy  *typesys.Hierarchy
	AttrNames  []string
	AppType    []typesys.TypeId // indexed by AttrId: introducing type
	MaxAppType []typesys.TypeId // indexed by AttrId: maximal appropriate type
	TypeDags   []*dag.Node      // indexed by TypeId; raw, not yet delta-expanded
	PrintNames []string         // indexed by TypeId; may be nil
}

// ReadHeader reads and validates the fixed header: magic, version, and the
// grammar's description string. Grounded on grammar-dump.cpp's
// undump_header.
func ReadHeader(r io.Reader) (Header, error) {
	var magic int32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return Header{}, loadErr("header", 0, err)
	}
	if magic != Magic {
		return Header{}, loadErr("header", 0, fmt.Errorf("bad magic %#x", uint32(magic)))
	}
	var version int32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return Header{}, loadErr("header", 4, err)
	}
	if version != Version {
		return Header{}, loadErr("header", 4, fmt.Errorf("unsupported version %d", version))
	}
	desc, err := readString(r)
	if err != nil {
		return Header{}, loadErr("header", 8, err)
	}
	return Header{Version: version, Description: desc}, nil
}

// ReadTOC reads table-of-contents entries until the zero tag that
// terminates them. Grounded on grammar-dump.cpp's dump_toc constructor.
func ReadTOC(r io.Reader) ([]TOCEntry, error) {
	var toc []TOCEntry
	for {
		var t int32
		if err := binary.Read(r, binary.LittleEndian, &t); err != nil {
			return nil, loadErr("toc", int64(len(toc)), err)
		}
		if SectionTag(t) == SecNoSection {
			return toc, nil
		}
		var offset int32
		if err := binary.Read(r, binary.LittleEndian, &offset); err != nil {
			return nil, loadErr("toc", int64(len(toc)), err)
		}
		toc = append(toc, TOCEntry{Tag: SectionTag(t), Offset: int64(offset)})
	}
}

// sectionBounds derives each section's [start, end) byte range by sorting
// the TOC on offset: a section runs until the next one starts, or until
// EOF for whichever section sits last in the file.
func sectionBounds(toc []TOCEntry, size int64) map[SectionTag][2]int64 {
	sorted := append([]TOCEntry(nil), toc...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })

	bounds := make(map[SectionTag][2]int64, len(sorted))
	for i, e := range sorted {
		end := size
		if i+1 < len(sorted) {
			end = sorted[i+1].Offset
		}
		bounds[e.Tag] = [2]int64{e.Offset, end}
	}
	return bounds
}

// Load reads a complete grammar file from ra, which must support
// concurrent ReadAt calls (an *os.File does); sections are decoded
// concurrently once the table of contents is known.
func Load(ra io.ReaderAt, size int64) (*Grammar, error) {
	hr := io.NewSectionReader(ra, 0, size)
	_, err := ReadHeader(hr)
	if err != nil {
		return nil, err
	}
	toc, err := ReadTOC(hr)
	if err != nil {
		return nil, err
	}
	bounds := sectionBounds(toc, size)

	// section opens the named section's reader, first verifying that the
	// tag repeated at the start of the section body (written by
	// start_section) matches what the TOC promised, per goto_section.
	section := func(t SectionTag, name string) (*io.SectionReader, bool, error) {
		b, ok := bounds[t]
		if !ok {
			return nil, false, nil
		}
		start, end := b[0], b[1]
		if start < 0 || end > size || end < start {
			return nil, true, loadErr(name, start, fmt.Errorf("section out of range"))
		}
		sr := io.NewSectionReader(ra, start, end-start)
		var actual int32
		if err := binary.Read(sr, binary.LittleEndian, &actual); err != nil {
			return nil, true, loadErr(name, start, err)
		}
		if SectionTag(actual) != t {
			return nil, true, loadErr(name, start, fmt.Errorf("section tag mismatch: TOC says %d, body says %d", t, actual))
		}
		return sr, true, nil
	}

	symR, ok, err := section(SecSymtab, "SYMTAB")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, loadErr("SYMTAB", 0, fmt.Errorf("missing required section"))
	}
	sym, err := readSymtab(symR)
	if err != nil {
		return nil, err
	}

	hierR, ok, err := section(SecHierarchy, "HIERARCHY")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, loadErr("HIERARCHY", 0, fmt.Errorf("missing required section"))
	}
	data, err := readHierarchy(hierR, len(sym.types))
	if err != nil {
		return nil, err
	}
	data.Names = sym.types

	supR, ok, err := section(SecSupertypes, "SUPERTYPES")
	if err != nil {
		return nil, err
	}
	if ok {
		sup, err := readSupertypes(supR, data.FirstLeafType)
		if err != nil {
			return nil, err
		}
		data.ImmediateSupers = sup
	}

	hierarchy, err := typesys.NewHierarchy(data)
	if err != nil {
		return nil, loadErr("HIERARCHY", 0, err)
	}

	g := &Grammar{
		Hierarchy: hierarchy,
		AttrNames: sym.attrs,
	}

	// FEATTABS, CONSTRAINTS, and PRINTNAMES are independent of each other
	// and of the hierarchy just built -- each only needs a count already
	// known from SYMTAB -- so they decode concurrently.
	var grp errgroup.Group

	if featR, ok, err := section(SecFeattabs, "FEATTABS"); err != nil {
		return nil, err
	} else if ok {
		grp.Go(func() error {
			appType, maxApp, err := readFeattabs(featR, len(sym.attrs))
			if err != nil {
				return err
			}
			g.AppType, g.MaxAppType = appType, maxApp
			return nil
		})
	}

	if consR, ok, err := section(SecConstraints, "CONSTRAINTS"); err != nil {
		return nil, err
	} else if ok {
		grp.Go(func() error {
			dags, err := readConstraints(consR, len(sym.types))
			if err != nil {
				return err
			}
			g.TypeDags = dags
			return nil
		})
	}

	if pnR, ok, err := section(SecPrintnames, "PRINTNAMES"); err != nil {
		return nil, err
	} else if ok {
		grp.Go(func() error {
			names, err := readStrings(pnR)
			if err != nil {
				return loadErr("PRINTNAMES", 0, err)
			}
			g.PrintNames = names
			return nil
		})
	}

	if err := grp.Wait(); err != nil {
		return nil, err
	}

	return g, nil
}

type symtab struct {
	types []string
	attrs []string
}

func readSymtab(r io.Reader) (symtab, error) {
	types, err := readStrings(r)
	if err != nil {
		return symtab{}, loadErr("SYMTAB", 0, err)
	}
	attrs, err := readStrings(r)
	if err != nil {
		return symtab{}, loadErr("SYMTAB", 0, err)
	}
	return symtab{types: types, attrs: attrs}, nil
}

// readString reads a single length-prefixed string, used for the header's
// description field.
func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func readStrings(r io.Reader) ([]string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		var l uint16
		if err := binary.Read(r, binary.LittleEndian, &l); err != nil {
			return nil, err
		}
		buf := make([]byte, l)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		out[i] = string(buf)
	}
	return out, nil
}

func readHierarchy(r io.Reader, nTypes int) (typesys.Data, error) {
	var firstLeaf, nStatic, strType, words int32
	for _, f := range []*int32{&firstLeaf, &nStatic, &strType, &words} {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return typesys.Data{}, loadErr("HIERARCHY", 0, err)
		}
	}

	data := typesys.Data{
		FirstLeafType: typesys.TypeId(firstLeaf),
		NStaticTypes:  typesys.TypeId(nStatic),
		StringType:    typesys.TypeId(strType),
	}

	nProper := int(firstLeaf)
	data.Bitcodes = make([]typesys.Bitcode, nProper)
	raw := make([]byte, int(words)*8)
	for i := range data.Bitcodes {
		if _, err := io.ReadFull(r, raw); err != nil {
			return typesys.Data{}, loadErr("HIERARCHY", int64(i), err)
		}
		bc := typesys.NewBitcode(int(words) * 64)
		for w := 0; w < int(words); w++ {
			bits := binary.LittleEndian.Uint64(raw[w*8:])
			for b := 0; b < 64; b++ {
				if bits&(1<<uint(b)) != 0 {
					bc.Insert(w*64 + b)
				}
			}
		}
		data.Bitcodes[i] = bc
	}

	nLeaf := nTypes - nProper
	if nLeaf > int(nStatic)-nProper {
		nLeaf = int(nStatic) - nProper
	}
	data.LeafParent = make([]typesys.TypeId, nLeaf)
	for i := range data.LeafParent {
		var p int32
		if err := binary.Read(r, binary.LittleEndian, &p); err != nil {
			return typesys.Data{}, loadErr("HIERARCHY", 0, err)
		}
		data.LeafParent[i] = typesys.TypeId(p)
	}

	return data, nil
}

func readSupertypes(r io.Reader, nProper typesys.TypeId) ([][]typesys.TypeId, error) {
	out := make([][]typesys.TypeId, nProper)
	for i := range out {
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, loadErr("SUPERTYPES", int64(i), err)
		}
		sups := make([]typesys.TypeId, n)
		for j := range sups {
			var s int32
			if err := binary.Read(r, binary.LittleEndian, &s); err != nil {
				return nil, loadErr("SUPERTYPES", int64(i), err)
			}
			sups[j] = typesys.TypeId(s)
		}
		out[i] = sups
	}
	return out, nil
}

func readFeattabs(r io.Reader, nAttrs int) (appType, maxApp []typesys.TypeId, err error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, nil, loadErr("FEATTABS", 0, err)
	}
	appType = make([]typesys.TypeId, n)
	maxApp = make([]typesys.TypeId, n)
	for i := range appType {
		var a, m int32
		if err := binary.Read(r, binary.LittleEndian, &a); err != nil {
			return nil, nil, loadErr("FEATTABS", int64(i), err)
		}
		if err := binary.Read(r, binary.LittleEndian, &m); err != nil {
			return nil, nil, loadErr("FEATTABS", int64(i), err)
		}
		appType[i], maxApp[i] = typesys.TypeId(a), typesys.TypeId(m)
	}
	return appType, maxApp, nil
}

func readConstraints(r io.Reader, nTypes int) ([]*dag.Node, error) {
	out := make([]*dag.Node, nTypes)
	for i := range out {
		var present byte
		if err := binary.Read(r, binary.LittleEndian, &present); err != nil {
			return nil, loadErr("CONSTRAINTS", int64(i), err)
		}
		if present == 0 {
			continue
		}
		n, err := DecodeDag(r)
		if err != nil {
			return nil, loadErr("CONSTRAINTS", int64(i), err)
		}
		out[i] = n
	}
	return out, nil
}

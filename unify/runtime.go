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

// Package unify exposes the runtime API a parser links against: build
// feature structures, unify/copy/subsume them, run the quick-check filter,
// and introspect a dag. Grounded on hyperpb's root package, which glues its
// compiler, arena, and vm packages behind a handful of entry points
// (Compile, Message, the option functions) the same way Runtime glues
// typesys, dag, unifier, subsumption, quickcheck, and gfile.
package unify

import (
	"fmt"

	"github.com/vellum-lang/unify/dag"
	"github.com/vellum-lang/unify/gfile"
	"github.com/vellum-lang/unify/internal/arena"
	"github.com/vellum-lang/unify/internal/wellformed"
	"github.com/vellum-lang/unify/quickcheck"
	"github.com/vellum-lang/unify/subsumption"
	"github.com/vellum-lang/unify/typesys"
	"github.com/vellum-lang/unify/unifier"
)

// Runtime is the entry point for a parser: one Runtime per loaded grammar.
// Like its embedded [unifier.Context], it is not safe for concurrent
// unification -- spec.md §5 keeps the whole engine single-threaded, one
// Runtime serving one parser instance at a time.
type Runtime struct {
	Hierarchy *typesys.Hierarchy

	attrNames  []string
	attrByName map[string]typesys.AttrId
	appType    []typesys.TypeId
	maxAppType []typesys.TypeId

	lib *dag.Library

	permArena arena.Arena[dag.Node]
	tempArena arena.Arena[dag.Node]

	wellformed *wellformed.Store
	ctx        *unifier.Context
	subsumer   subsumption.Checker
	qc         *quickcheck.Tree
}

// Open builds a Runtime from an already-loaded grammar, delta-expanding
// every type's well-formedness constraint before returning. qc may be nil
// if the grammar was loaded without a quick-check path file.
func Open(g *gfile.Grammar, qc *quickcheck.Tree) (*Runtime, error) {
	r := &Runtime{
		Hierarchy:  g.Hierarchy,
		attrNames:  g.AttrNames,
		attrByName: make(map[string]typesys.AttrId, len(g.AttrNames)),
		appType:    g.AppType,
		maxAppType: g.MaxAppType,
		qc:         qc,
	}
	for i, name := range g.AttrNames {
		r.attrByName[name] = typesys.AttrId(i)
	}
	r.lib = &dag.Library{
		Hierarchy:  g.Hierarchy,
		AttrName:   r.AttrName,
		AppType:    r.AppType,
		MaxAppType: r.MaxAppType,
	}

	r.ctx = &unifier.Context{Hierarchy: g.Hierarchy, PermAlloc: r.allocPerm}

	if g.TypeDags != nil {
		store := wellformed.NewStore(g.Hierarchy, g.TypeDags)
		unify1 := func(a, b *dag.Node) (*dag.Node, error) { return r.ctx.Unify(a, b, nil) }
		if err := store.DeltaExpand(g.Hierarchy.TopologicalTypes(), unify1); err != nil {
			return nil, fmt.Errorf("unify: delta-expanding constraints: %w", err)
		}
		r.wellformed = store
		r.ctx.Wellformed = store
	}

	r.subsumer = subsumption.Checker{Hierarchy: g.Hierarchy, Wellformed: r.wellformed}
	return r, nil
}

// SetRecorder attaches a failure-training recorder to the runtime's
// unification context; pass nil to stop recording.
func (r *Runtime) SetRecorder(rec *quickcheck.Recorder) { r.ctx.Recorder = rec }

// NewGeneration advances the runtime's generation counter, invalidating
// every generation-protected field written under any earlier generation.
// Most callers never need this directly -- [Runtime.Unify] and friends call
// it internally -- it's exposed for [Runtime.GetQcVector] callers who want
// to query a permanent dag's qc vector without going through a unification.
func (r *Runtime) NewGeneration() dag.Generation { return r.ctx.NewGeneration() }

func (r *Runtime) allocPerm(t typesys.TypeId) *dag.Node {
	n := arena.New(&r.permArena)
	n.Type = t
	n.Permanent = true
	n.Library = r.lib
	return n
}

func (r *Runtime) allocTemp(t typesys.TypeId) *dag.Node {
	n := arena.New(&r.tempArena)
	n.Type = t
	n.Library = r.lib
	return n
}

// AttrId resolves an attribute name to its id, or (0, false) if the grammar
// has no such attribute.
func (r *Runtime) AttrId(name string) (typesys.AttrId, bool) {
	id, ok := r.attrByName[name]
	return id, ok
}

// AttrName returns the name of attr, or its numeric form if the grammar
// carries no name for it.
func (r *Runtime) AttrName(attr typesys.AttrId) string {
	if int(attr) >= 0 && int(attr) < len(r.attrNames) {
		return r.attrNames[attr]
	}
	return fmt.Sprintf("ATTR%d", attr)
}

// AppType returns attr's introducing type.
func (r *Runtime) AppType(attr typesys.AttrId) typesys.TypeId {
	if int(attr) >= 0 && int(attr) < len(r.appType) {
		return r.appType[attr]
	}
	return typesys.TOP
}

// MaxAppType returns attr's maximal appropriate type.
func (r *Runtime) MaxAppType(attr typesys.AttrId) typesys.TypeId {
	if int(attr) >= 0 && int(attr) < len(r.maxAppType) {
		return r.maxAppType[attr]
	}
	return typesys.TOP
}

// Prune drops accumulated caches between parses: it empties the
// hierarchy's glb cache and lets both the temporary and the permanent
// arena drop their fully-empty trailing chunks via [arena.Arena.MayShrink],
// mirroring spec.md §9's "may be pruned between parses" note.
func (r *Runtime) Prune() {
	r.Hierarchy.Prune()
	r.tempArena.MayShrink()
	r.permArena.MayShrink()
}

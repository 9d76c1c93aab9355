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

// Package unifier implements Tomabechi's quasi-destructive graph
// unification: unify two dags in place under a generation, then promote the
// result out of the temporary generation with a smart partial copy.
//
// Grounded on original_source/cheap/dag-tomabechi.cpp's dag_unify,
// dag_unify1, dag_unify2, unify_arcs1, and dag_unify_arcs.
package unifier

import (
	"errors"
	"fmt"

	"github.com/vellum-lang/unify/dag"
	"github.com/vellum-lang/unify/internal/copier"
	"github.com/vellum-lang/unify/internal/restrict"
	"github.com/vellum-lang/unify/internal/wellformed"
	"github.com/vellum-lang/unify/quickcheck"
	"github.com/vellum-lang/unify/typesys"
)

// Fail is the sentinel unification failure. Every error this package
// returns on a unification conflict wraps Fail, so callers distinguish
// "the dags don't unify" from "something else went wrong" via errors.Is.
var Fail = errors.New("unifier: unification failed")

// Context holds the state one unification run needs: the type hierarchy,
// the well-formedness constraint store, and the allocator used to promote
// results into the permanent arena. A Context is not safe for concurrent
// use; spec.md §5 makes the whole engine single-threaded by design, one
// Context per goroutine/parse.
type Context struct {
	Hierarchy  *typesys.Hierarchy
	Wellformed *wellformed.Store // nil disables well-formedness enforcement
	PermAlloc  copier.Alloc

	// Recorder, if set, is told about every top-level unification attempt
	// this Context makes, so that qc paths can later be re-ranked by how
	// often they would have predicted the failure. Consulted only at the
	// handful of call sites below that return a wrapped [Fail], never
	// threaded through the recursive unify1/unify2/unifyArcs machinery.
	Recorder *quickcheck.Recorder

	gen  dag.Generation
	cost float64
}

// NewGeneration starts a new unification attempt, invalidating every
// generation-protected field written under any previous generation across
// every node ever touched -- in O(1), since nodes check their own stamped
// generation lazily rather than being walked and reset.
func (c *Context) NewGeneration() dag.Generation {
	c.gen++
	return c.gen
}

// Unify destructively unifies a and b under a fresh generation and, on
// success, returns a partial copy of the result restricted by restrictor
// (nil keeps everything), promoted into the permanent arena via
// c.PermAlloc. On failure it returns an error wrapping [Fail].
func (c *Context) Unify(a, b *dag.Node, restrictor restrict.Restrictor) (*dag.Node, error) {
	gen := c.NewGeneration()
	c.cost = 0
	res, err := c.unify1(gen, a, b)
	if err != nil {
		c.recordFailure(quickcheck.TypeClash, err)
		return nil, err
	}
	cp := copier.Copier{Gen: gen, Alloc: c.PermAlloc}
	out, err := cp.Copy(res, restrictor)
	if err != nil {
		c.recordFailure(quickcheck.Cycle, err)
		return nil, fmt.Errorf("unifier: promoting unification result: %w: %w", err, Fail)
	}
	c.recordSuccess()
	return out, nil
}

func (c *Context) recordFailure(kind quickcheck.FailureKind, err error) {
	if c.Recorder == nil {
		return
	}
	c.Recorder.RecordAttempt(&quickcheck.FailureDescriptor{Kind: kind, Path: -1}, c.cost)
	_ = err // the underlying error is surfaced to the caller; only its kind is recorded here
}

func (c *Context) recordSuccess() {
	if c.Recorder == nil {
		return
	}
	c.Recorder.RecordAttempt(nil, c.cost)
}

// UnifyNonPerm destructively unifies a and b under a fresh generation and
// returns the live, still-temporary result without copying it out -- the
// result is only valid until the next call that advances the generation.
// Grounded on dag_unify_np, used by chart-style callers that want to probe
// compatibility and build on the result without paying for a copy on every
// edge.
func (c *Context) UnifyNonPerm(a, b *dag.Node) (*dag.Node, dag.Generation, error) {
	gen := c.NewGeneration()
	c.cost = 0
	res, err := c.unify1(gen, a, b)
	if err != nil {
		c.recordFailure(quickcheck.TypeClash, err)
		return nil, gen, err
	}
	c.recordSuccess()
	return res, gen, nil
}

// Compatible reports whether a and b unify, without producing a result.
// Grounded on dags_compatible.
func (c *Context) Compatible(a, b *dag.Node) (bool, error) {
	gen := c.NewGeneration()
	c.cost = 0
	_, err := c.unify1(gen, a, b)
	if errors.Is(err, Fail) {
		c.recordFailure(quickcheck.TypeClash, err)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	c.recordSuccess()
	return true, nil
}

func (c *Context) unify1(gen dag.Generation, a, b *dag.Node) (*dag.Node, error) {
	c.cost++
	a = dag.Deref(a, gen)
	b = dag.Deref(b, gen)

	if a.Visit(gen) == dag.OnStack {
		return nil, fmt.Errorf("unifier: cycle entered through a node already on the unification stack: %w", Fail)
	}

	if a == b {
		return a, nil
	}
	return c.unify2(gen, a, b)
}

func hasArcs(n *dag.Node, gen dag.Generation) bool {
	return n.Arcs != nil || n.CompArcs(gen) != nil
}

func (c *Context) unify2(gen dag.Generation, a, b *dag.Node) (*dag.Node, error) {
	oldType := a.NewType(gen)
	newType := c.Hierarchy.Glb(oldType, b.NewType(gen))
	if newType == typesys.BOTTOM {
		return nil, fmt.Errorf("unifier: types %s and %s have no common subtype: %w", oldType, b.NewType(gen), Fail)
	}
	a.SetNewType(gen, newType)

	if c.Wellformed != nil {
		unify1 := func(x, y *dag.Node) (*dag.Node, error) { return c.unify1(gen, x, y) }
		if err := c.Wellformed.MakeWellformed(gen, a, oldType, newType, unify1); err != nil {
			return nil, err
		}
		a = dag.Deref(a, gen)
	}

	switch {
	case !hasArcs(b, gen):
		b.SetForward(gen, a)
	case !hasArcs(a, gen):
		b.SetNewType(gen, newType)
		a.SetForward(gen, b)
	default:
		a.SetVisit(gen, dag.OnStack)
		b.SetForward(gen, a)
		err := c.unifyArcs(gen, a, b)
		a.SetVisit(gen, dag.Unvisited)
		if err != nil {
			return nil, err
		}
	}
	return a, nil
}

// unifyArcs merges every arc reachable from b into a, recursively unifying
// targets that share an attribute and appending the rest as a's
// generation-protected extension arcs. Grounded on dag_unify_arcs /
// unify_arcs1, which walk b's compArcs and permanent arcs separately
// against a's (compArcs, permanent arcs) pair via find_attr2.
func (c *Context) unifyArcs(gen dag.Generation, a, b *dag.Node) error {
	merge := func(attr typesys.AttrId, target *dag.Node) error {
		if existing := dag.FindArcGen(a, gen, attr); existing != nil {
			_, err := c.unify1(gen, existing, target)
			return err
		}
		a.PrependCompArc(gen, attr, target)
		return nil
	}

	for arc := b.CompArcs(gen); arc != nil; arc = arc.Next {
		if err := merge(arc.Attr, arc.Target); err != nil {
			return err
		}
	}

	shadowed := make(map[typesys.AttrId]bool)
	for arc := b.CompArcs(gen); arc != nil; arc = arc.Next {
		shadowed[arc.Attr] = true
	}
	for arc := b.Arcs; arc != nil; arc = arc.Next {
		if shadowed[arc.Attr] {
			continue
		}
		if err := merge(arc.Attr, arc.Target); err != nil {
			return err
		}
	}
	return nil
}

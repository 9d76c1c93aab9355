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

package unify

import (
	"github.com/vellum-lang/unify/dag"
	"github.com/vellum-lang/unify/internal/copier"
	"github.com/vellum-lang/unify/internal/restrict"
	"github.com/vellum-lang/unify/quickcheck"
	"github.com/vellum-lang/unify/typesys"
)

// Unify destructively unifies a and b, returning a permanent, restricted
// copy of the result on success. restrictor may be nil to keep everything.
func (r *Runtime) Unify(a, b *dag.Node, restrictor restrict.Restrictor) (*dag.Node, error) {
	return r.ctx.Unify(a, b, restrictor)
}

// UnifyNonPerm destructively unifies a and b and returns the live,
// still-temporary result together with the generation it was built under;
// the result is only valid until the next call that advances the
// generation (any subsequent Unify/UnifyNonPerm/Compatible/Subsumes call).
func (r *Runtime) UnifyNonPerm(a, b *dag.Node) (*dag.Node, dag.Generation, error) {
	return r.ctx.UnifyNonPerm(a, b)
}

// Compatible reports whether a and b unify, without producing a result.
func (r *Runtime) Compatible(a, b *dag.Node) (bool, error) {
	return r.ctx.Compatible(a, b)
}

// Copy returns a full permanent copy of a.
func (r *Runtime) Copy(a *dag.Node) (*dag.Node, error) {
	return r.PartialCopy(a, nil, true)
}

// PartialCopy copies a, applying restrictor (nil keeps everything) at every
// node, into the permanent arena if permanent is true or the temporary
// arena otherwise.
func (r *Runtime) PartialCopy(a *dag.Node, restrictor restrict.Restrictor, permanent bool) (*dag.Node, error) {
	gen := r.ctx.NewGeneration()
	alloc := r.allocPerm
	if !permanent {
		alloc = r.allocTemp
	}
	cp := copier.Copier{Gen: gen, Alloc: alloc}
	return cp.Copy(a, restrictor)
}

// Subsumes reports whether a subsumes b (forward) and/or b subsumes a
// (backward), under a fresh generation.
func (r *Runtime) Subsumes(a, b *dag.Node) (forward, backward bool) {
	gen := r.ctx.NewGeneration()
	return r.subsumer.Subsumes(gen, a, b)
}

// GetQcVector extracts the runtime's quick-check vector for d under gen
// (from a prior [Runtime.UnifyNonPerm], or [Runtime.NewGeneration] for a
// permanent dag), or nil if the grammar carries no quick-check paths.
func (r *Runtime) GetQcVector(d *dag.Node, gen dag.Generation) []typesys.TypeId {
	if r.qc == nil {
		return nil
	}
	return quickcheck.GetVector(r.qc, d, gen)
}

// QcCompatibleUnif reports whether two quick-check vectors could possibly
// belong to dags that unify.
func (r *Runtime) QcCompatibleUnif(a, b []typesys.TypeId) bool {
	return quickcheck.CompatibleUnif(r.Hierarchy, a, b)
}

// QcCompatibleSubs reports whether two quick-check vectors are consistent
// with a subsumes b (forward) and/or b subsumes a (backward).
func (r *Runtime) QcCompatibleSubs(a, b []typesys.TypeId) (forward, backward bool) {
	return quickcheck.CompatibleSubs(r.Hierarchy, a, b)
}

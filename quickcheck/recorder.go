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

package quickcheck

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/vellum-lang/unify/internal/stats"
)

// FailureKind classifies why a recorded unification attempt failed, for
// [Recorder.Dump] and for deciding whether a failure is attributable to a
// single qc path at all.
type FailureKind uint8

const (
	// TypeClash means two atomic types had no glb.
	TypeClash FailureKind = iota
	// ConstraintClash means a well-formedness constraint rejected a type.
	ConstraintClash
	// Cycle means the attempted unification produced a cyclic structure
	// the copier could not promote.
	Cycle
	// CoreferenceClash means two paths required to corefer did not.
	CoreferenceClash
)

// FailureDescriptor records one observed real-unification failure, for
// offline analysis of which qc paths are pulling their weight.
type FailureDescriptor struct {
	Kind FailureKind
	Path int // qc index responsible, or -1 when no single qc path is
}

// Recorder accumulates, over many real unification attempts, how often
// each qc path is the one that actually vetoes a unification, and the
// attempts' unification cost -- used to re-rank the qc path set so that
// the positions most likely to fail are checked first, the way
// original_source ships an offline qc-path trainer for exactly this.
//
// Not safe for concurrent use; spec.md §5 keeps this whole engine
// single-threaded.
type Recorder struct {
	names   []string
	metrics []pathMetrics
	total   int
}

type pathMetrics struct {
	vetoRate stats.Mean
	cost     stats.Median
}

// NewRecorder returns a recorder for a qc vector of the given length, with
// names used purely for [Recorder.Dump]'s output (may be nil).
func NewRecorder(length int, names []string) *Recorder {
	metrics := make([]pathMetrics, length)
	for i := range metrics {
		metrics[i] = pathMetrics{cost: *stats.NewMedian(1 << 8)}
	}
	return &Recorder{names: names, metrics: metrics}
}

// RecordAttempt records one real-unification attempt's outcome: desc
// identifies which path (if any) was the culprit and is nil for a
// successful attempt, and cost is an implementation-defined unit of work
// (e.g. arcs visited).
func (r *Recorder) RecordAttempt(desc *FailureDescriptor, cost float64) {
	r.total++
	for i := range r.metrics {
		vetoed := 0.0
		if desc != nil && desc.Path == i {
			vetoed = 1.0
		}
		r.metrics[i].vetoRate.Record(vetoed)
	}
	if desc != nil && desc.Path >= 0 && desc.Path < len(r.metrics) {
		r.metrics[desc.Path].cost.Record(cost)
	}
}

// RankedPaths returns qc indices sorted by descending veto rate: the path
// most often responsible for a real failure comes first, so a reordered qc
// vector built from this ranking rejects doomed unifications earliest.
func (r *Recorder) RankedPaths() []int {
	idx := make([]int, len(r.metrics))
	for i := range idx {
		idx[i] = i
	}
	slices.SortFunc(idx, func(a, b int) int {
		return cmp.Compare(r.metrics[b].vetoRate.Get(), r.metrics[a].vetoRate.Get())
	})
	return idx
}

// Dump renders per-path statistics, most selective path first.
func (r *Recorder) Dump() string {
	out := new(strings.Builder)
	fmt.Fprintf(out, "quickcheck: %d attempts recorded\n", r.total)
	for _, i := range r.RankedPaths() {
		name := fmt.Sprintf("path#%d", i)
		if i < len(r.names) && r.names[i] != "" {
			name = r.names[i]
		}
		fmt.Fprintf(out, "%s: veto rate %.4f, cost %v\n", name, r.metrics[i].vetoRate.Get(), r.metrics[i].cost.Get())
	}
	return out.String()
}

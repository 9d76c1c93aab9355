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

package stats

import "slices"

// Median tracks a median statistic over the most recent samples.
//
// Must be constructed with [NewMedian].
type Median struct {
	// Implemented as a ring buffer of samples.
	samples []float64
	w       int // Offset at which to write the next sample.
	n       int // Total number of samples ever.
}

// NewMedian returns a new median statistic which remembers the last n
// samples.
//
// n should be relatively large, at least 100.
func NewMedian(n int) *Median {
	return &Median{samples: make([]float64, n)}
}

// Record records a sample.
func (m *Median) Record(sample float64) {
	m.samples[m.w] = sample
	m.w++
	if m.w == len(m.samples) {
		m.w = 0
	}
	m.n++
}

// Get returns the median value of this statistic.
func (m *Median) Get() float64 {
	samples := slices.Clone(m.samples[:min(m.n, len(m.samples))])
	slices.Sort(samples)

	switch {
	case len(samples) == 0:
		return 0
	case len(samples)%2 == 0:
		a := samples[len(samples)/2-1]
		b := samples[len(samples)/2]
		return (a + b) / 2
	default:
		return samples[len(samples)/2]
	}
}

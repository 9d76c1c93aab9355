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

package stats_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vellum-lang/unify/internal/stats"
)

func TestMedian(t *testing.T) {
	t.Parallel()

	m := stats.NewMedian(4)
	assert.Equal(t, float64(0), m.Get())

	m.Record(1)
	m.Record(2)
	m.Record(3)
	assert.Equal(t, float64(2), m.Get())

	m.Record(100) // window full: 1,2,3,100
	assert.Equal(t, float64(2.5), m.Get())

	m.Record(4) // evicts the oldest sample (1): 2,3,100,4
	assert.Equal(t, float64(3.5), m.Get())
}

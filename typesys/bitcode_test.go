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

func TestBitcodeBasics(t *testing.T) {
	t.Parallel()

	b := typesys.NewBitcode(130) // spans three words
	require.True(t, b.Empty())

	b.Insert(0)
	b.Insert(64)
	b.Insert(129)
	require.True(t, b.Member(0))
	require.True(t, b.Member(64))
	require.True(t, b.Member(129))
	require.False(t, b.Member(1))
	require.False(t, b.Empty())

	b.Delete(64)
	require.False(t, b.Member(64))
}

func TestBitcodeSubsetAndIntersect(t *testing.T) {
	t.Parallel()

	a := typesys.NewBitcode(128)
	a.Insert(1)
	a.Insert(2)

	b := typesys.NewBitcode(128)
	b.Insert(1)
	b.Insert(2)
	b.Insert(3)

	require.True(t, a.Subset(b))
	require.False(t, b.Subset(a))

	c := b.Clone()
	c.Intersect(a)
	require.True(t, c.Equal(a))
}

func TestBitcodeKeyStable(t *testing.T) {
	t.Parallel()

	a := typesys.NewBitcode(64)
	a.Insert(3)
	a.Insert(40)

	b := typesys.NewBitcode(64)
	b.Insert(3)
	b.Insert(40)

	require.Equal(t, a.Key(), b.Key())

	b.Insert(41)
	require.NotEqual(t, a.Key(), b.Key())
}

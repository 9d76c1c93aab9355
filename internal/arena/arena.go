// Copyright 2020-2025 Buf Technologies, Inc.
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

// Package arena provides a bump-pointer allocator for fixed-size values.
//
// Unlike a byte-oriented arena, [Arena] hands out *T directly: it grows a
// sequence of doubling-size chunks ([]T slices) and bumps an offset into the
// current chunk. Because chunks are never reallocated in place — growth
// always appends a new chunk rather than resizing an old one — a pointer
// returned by [New] stays valid for the rest of the arena's lifetime, even
// across later allocations. That is what lets [Arena.Mark] and
// [Arena.Release] work in O(1): Release only needs to remember how many
// chunks existed and how full the last one was, not walk anything allocated
// since the mark.
package arena

import "github.com/vellum-lang/unify/internal/debug"

// Mark is an opaque token identifying a point in an arena's allocation
// history. See [Arena.Mark] and [Arena.Release].
type Mark struct {
	chunk  int
	offset int
}

// Arena is a bump-pointer allocator for values of type T.
//
// The zero Arena is empty and ready to use. An Arena must not be copied
// after first use; both the permanent arena (grammar dags, constraint
// caches) and the temporary arena (a single unification attempt) are owned
// by exactly one [github.com/vellum-lang/unify/unify.Runtime].
type Arena[T any] struct {
	noCopy noCopy

	chunks [][]T
	// Number of live elements in the last chunk; the remainder of its
	// capacity is spare room left over from the most recent growth.
	used int
}

// minChunk is the size, in elements, of the first chunk allocated.
const minChunk = 64

// New allocates a zero-valued T on the arena and returns a pointer to it.
//
// The returned pointer stays valid until the arena is released past the
// mark current at the time of allocation — or forever, for a permanent
// arena, which is never released.
func New[T any](a *Arena[T]) *T {
	if len(a.chunks) == 0 || a.used == cap(a.chunks[len(a.chunks)-1]) {
		a.grow()
	}
	last := a.chunks[len(a.chunks)-1]
	last = last[:a.used+1]
	a.chunks[len(a.chunks)-1] = last
	a.used++
	p := &last[len(last)-1]
	debug.Log(nil, "arena.New", "%T %p (usage=%d)", p, p, a.CurrentUsage())
	return p
}

// NewValue allocates a T on the arena, initialized to value.
func NewValue[T any](a *Arena[T], value T) *T {
	p := New(a)
	*p = value
	return p
}

func (a *Arena[T]) grow() {
	size := minChunk
	if n := len(a.chunks); n > 0 {
		size = cap(a.chunks[n-1]) * 2
	}
	a.chunks = append(a.chunks, make([]T, 0, size))
	a.used = 0
	debug.Log(nil, "arena.grow", "new chunk of %d elements (chunks=%d)", size, len(a.chunks))
}

// Mark returns a token that can later be passed to [Arena.Release] to free
// every allocation made since this call.
func (a *Arena[T]) Mark() Mark {
	if len(a.chunks) == 0 {
		return Mark{}
	}
	return Mark{chunk: len(a.chunks) - 1, offset: a.used}
}

// Release frees every allocation made after m was obtained from
// [Arena.Mark].
//
// Pointers into the arena obtained after m must not be used after Release;
// the caller (the unifier, on a failed attempt) is responsible for that,
// since the arena itself has no way to know which pointers escaped.
// Released memory is not returned to the Go runtime; call [Arena.MayShrink]
// between parses to do that.
func (a *Arena[T]) Release(m Mark) {
	if m.chunk >= len(a.chunks) {
		return
	}

	for i := m.chunk + 1; i < len(a.chunks); i++ {
		clear(a.chunks[i][:cap(a.chunks[i])])
	}
	last := a.chunks[m.chunk]
	clear(last[m.offset:cap(last)])
	a.chunks[m.chunk] = last[:m.offset]
	a.chunks = a.chunks[:m.chunk+1]
	a.used = m.offset

	debug.Log(nil, "arena.Release", "mark=%+v (usage=%d)", m, a.CurrentUsage())
}

// CurrentUsage reports the number of live T values currently allocated from
// this arena (i.e. not yet freed by a call to [Arena.Release]).
func (a *Arena[T]) CurrentUsage() int {
	total := 0
	for i, c := range a.chunks {
		if i == len(a.chunks)-1 {
			total += a.used
		} else {
			total += cap(c)
		}
	}
	return total
}

// MayShrink drops any fully-empty trailing chunks, returning their backing
// storage to the garbage collector. It is a hint: safe to call at any point
// between unifications (never while one is in progress), never required
// for correctness.
func (a *Arena[T]) MayShrink() {
	for len(a.chunks) > 1 && len(a.chunks[len(a.chunks)-1]) == 0 {
		a.chunks = a.chunks[:len(a.chunks)-1]
	}
	if len(a.chunks) == 1 && len(a.chunks[0]) == 0 {
		a.chunks = nil
	}
}

// noCopy embeds into a struct to make `go vet`'s -copylocks check flag
// accidental copies of a value that is documented as non-copyable.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

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

// Package swiss provides a generic open-addressing hash table laid out in
// the SwissTable style: every slot has a control byte holding a 7-bit
// fingerprint of its key's hash, so most non-matching slots are rejected
// before the key itself is compared. Probing is linear, one control byte
// at a time; there is no group-wide or SIMD-style matching.
//
// It backs the type hierarchy's glb cache, bitcode index and dynamic-name
// table, all lookup-heavy, read-mostly maps.
package swiss

import (
	"hash/maphash"
)

const (
	groupSize = 8
	empty     = 0x80 // high bit set, low 7 bits zero: matches no h2.
)

var seed = maphash.MakeSeed()

// Table is a SwissTable-style open-addressing hash table from K to V.
//
// The zero Table is empty and ready to use.
type Table[K comparable, V any] struct {
	ctrl []byte // len == cap(groups of 8), ctrl[i] describes slots[i]
	keys []K
	vals []V

	len int // number of live entries
}

// Len returns the number of entries in the table.
func (t *Table[K, V]) Len() int { return t.len }

// Lookup returns a pointer to the value stored under k, or nil if k is not
// present. The pointer is invalidated by the next call to [Table.Insert] or
// [Table.Delete].
func (t *Table[K, V]) Lookup(k K) *V {
	if len(t.ctrl) == 0 {
		return nil
	}

	h := hashOf(k)
	h1, h2 := splitHash(h)
	mask := len(t.ctrl) - 1

	for i := h1 & mask; ; i = (i + 1) & mask {
		switch {
		case t.ctrl[i] == h2 && t.keys[i] == k:
			return &t.vals[i]
		case t.ctrl[i] == empty:
			return nil
		}
	}
}

// Has reports whether k is present in the table.
func (t *Table[K, V]) Has(k K) bool { return t.Lookup(k) != nil }

// Insert stores v under k, overwriting any previous value, and returns a
// pointer to the stored value.
func (t *Table[K, V]) Insert(k K, v V) *V {
	p := t.reserve(k)
	*p = v
	return p
}

// LoadOrStore returns the existing value for k if present; otherwise it
// calls make, stores the result under k, and returns that.
func (t *Table[K, V]) LoadOrStore(k K, make func() V) (*V, bool) {
	if p := t.Lookup(k); p != nil {
		return p, true
	}
	p := t.reserve(k)
	*p = make()
	return p, false
}

// reserve finds (growing if necessary) the slot for k, installing the key
// and control byte, and returns a pointer to its (possibly stale) value.
func (t *Table[K, V]) reserve(k K) *V {
	if len(t.ctrl) == 0 || t.len*8 >= len(t.ctrl)*7 {
		t.grow()
	}

	h := hashOf(k)
	h1, h2 := splitHash(h)
	mask := len(t.ctrl) - 1

	for i := h1 & mask; ; i = (i + 1) & mask {
		switch {
		case t.ctrl[i] == h2 && t.keys[i] == k:
			return &t.vals[i]
		case t.ctrl[i] == empty:
			t.ctrl[i] = h2
			t.keys[i] = k
			t.len++
			return &t.vals[i]
		}
	}
}

// Delete removes k from the table, if present.
//
// This table never needs tombstones: because it never removes without also
// being able to re-probe the whole cluster (callers only delete between
// unifications, never mid-probe), deletion simply marks the slot empty and
// relies on subsequent lookups re-finding any entries that were probed past
// it by rehashing the rest of the cluster.
func (t *Table[K, V]) Delete(k K) {
	if len(t.ctrl) == 0 {
		return
	}
	h := hashOf(k)
	h1, h2 := splitHash(h)
	mask := len(t.ctrl) - 1

	for i := h1 & mask; ; i = (i + 1) & mask {
		switch {
		case t.ctrl[i] == h2 && t.keys[i] == k:
			t.deleteAt(i)
			return
		case t.ctrl[i] == empty:
			return
		}
	}
}

// deleteAt clears slot i and re-inserts every entry in its cluster that
// might have been displaced by it, so that Lookup's early-exit-on-empty
// stays correct without tombstones.
func (t *Table[K, V]) deleteAt(i int) {
	var zeroK K
	var zeroV V
	mask := len(t.ctrl) - 1

	t.ctrl[i] = empty
	t.keys[i] = zeroK
	t.vals[i] = zeroV
	t.len--

	for j := (i + 1) & mask; t.ctrl[j] != empty; j = (j + 1) & mask {
		k, v := t.keys[j], t.vals[j]
		t.ctrl[j] = empty
		t.keys[j] = zeroK
		t.vals[j] = zeroV
		t.len--
		t.Insert(k, v)
	}
}

// Clear empties the table without shrinking its backing storage.
func (t *Table[K, V]) Clear() {
	for i := range t.ctrl {
		t.ctrl[i] = empty
	}
	clear(t.keys)
	clear(t.vals)
	t.len = 0
}

// Reset drops the table's backing storage entirely.
func (t *Table[K, V]) Reset() {
	t.ctrl, t.keys, t.vals, t.len = nil, nil, nil, 0
}

// All iterates over every entry in the table. Order is unspecified.
func (t *Table[K, V]) All(yield func(K, V) bool) {
	for i, c := range t.ctrl {
		if c == empty {
			continue
		}
		if !yield(t.keys[i], t.vals[i]) {
			return
		}
	}
}

func (t *Table[K, V]) grow() {
	oldKeys, oldVals, oldCtrl := t.keys, t.vals, t.ctrl

	n := groupSize
	if len(oldCtrl) > 0 {
		n = len(oldCtrl) * 2
	}

	t.ctrl = make([]byte, n)
	for i := range t.ctrl {
		t.ctrl[i] = empty
	}
	t.keys = make([]K, n)
	t.vals = make([]V, n)
	t.len = 0

	for i, c := range oldCtrl {
		if c != empty {
			t.Insert(oldKeys[i], oldVals[i])
		}
	}
}

func hashOf[K comparable](k K) uint64 {
	return maphash.Comparable(seed, k)
}

// splitHash splits a 64-bit hash into a starting probe index (h1) and a
// 7-bit fingerprint (h2) stored in the control byte, mirroring a classic
// SwissTable split. h2's top bit is always clear, so it can never equal
// the [empty] sentinel (0x80).
func splitHash(h uint64) (h1 int, h2 byte) {
	return int(h >> 7), byte(h & 0x7f)
}

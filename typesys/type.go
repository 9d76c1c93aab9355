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

// Package typesys implements the type hierarchy that a grammar's feature
// structures are checked against: bit-encoded subsumption and greatest-lower-
// bound computation over proper types, parent-chain subsumption over static
// leaf types, and runtime registration of dynamic (string literal) leaf
// types under the built-in STRING type.
package typesys

import "fmt"

// TypeId names a type within a [Hierarchy]. The universe is partitioned into
// three contiguous ranges:
//
//   - [0, Hierarchy.FirstLeafType) are proper types, carrying an explicit
//     [Bitcode].
//   - [Hierarchy.FirstLeafType, Hierarchy.NStaticTypes) are static leaf
//     types, each with a single parent pointer.
//   - [Hierarchy.NStaticTypes, Hierarchy.NTypes) are dynamic leaf types,
//     registered at runtime by [Hierarchy.RetrieveStringType], all direct
//     subtypes of STRING.
type TypeId int32

// BOTTOM is the sentinel for unification failure: it is a subtype of every
// type and has no subtype other than itself.
const BOTTOM TypeId = -1

// TOP is the root of the hierarchy: every proper and leaf type is a subtype
// of TOP.
const TOP TypeId = 0

// AttrId is a small non-negative integer naming a feature (attribute).
type AttrId int32

// String implements [fmt.Stringer]. It renders the numeric id; callers that
// have a [Hierarchy] in scope should prefer [Hierarchy.Name].
func (t TypeId) String() string {
	if t == BOTTOM {
		return "*bottom*"
	}
	return fmt.Sprintf("type#%d", int32(t))
}

// Kind classifies a TypeId relative to a hierarchy's partitioning.
type Kind uint8

const (
	KindProper Kind = iota
	KindStaticLeaf
	KindDynamicLeaf
)

func (k Kind) String() string {
	switch k {
	case KindProper:
		return "proper"
	case KindStaticLeaf:
		return "static-leaf"
	case KindDynamicLeaf:
		return "dynamic-leaf"
	default:
		return "unknown"
	}
}

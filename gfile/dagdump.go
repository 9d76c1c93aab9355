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

package gfile

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/vellum-lang/unify/dag"
	"github.com/vellum-lang/unify/typesys"
)

// DecodeDag and EncodeDag implement the post-order dag-dump codec shared by
// the CONSTRAINTS section and the quick-check path file: a node list in
// post-order (every arc target is emitted before the node that refers to
// it, so a target is always a back-reference by index), letting shared
// substructure round-trip without duplicating it. Cycles cannot be
// represented by this encoding, matching the constraint dags it's used
// for (see internal/wellformed.FullCopy's doc comment).
//
// Wire shape per node: type int32, arcCount uint16, then arcCount pairs of
// (attr int32, targetIndex int32); targetIndex is an index into the nodes
// already emitted. The last node emitted is the root.

// EncodeDag writes root and everything reachable from it to w in post-order.
func EncodeDag(w io.Writer, root *dag.Node) error {
	index := make(map[*dag.Node]int32)
	var order []*dag.Node

	var walk func(n *dag.Node) error
	walk = func(n *dag.Node) error {
		if _, ok := index[n]; ok {
			return nil
		}
		for a := n.Arcs; a != nil; a = a.Next {
			if err := walk(a.Target); err != nil {
				return err
			}
		}
		index[n] = int32(len(order))
		order = append(order, n)
		return nil
	}
	if err := walk(root); err != nil {
		return err
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(len(order))); err != nil {
		return err
	}
	for _, n := range order {
		if err := binary.Write(w, binary.LittleEndian, int32(n.GetType())); err != nil {
			return err
		}
		var arcs []*dag.Arc
		for a := n.Arcs; a != nil; a = a.Next {
			arcs = append(arcs, a)
		}
		if err := binary.Write(w, binary.LittleEndian, uint16(len(arcs))); err != nil {
			return err
		}
		// Arcs were consed in reverse-insertion order; emit oldest first
		// so a re-decoded dag preserves the original attribute order.
		for i := len(arcs) - 1; i >= 0; i-- {
			if err := binary.Write(w, binary.LittleEndian, int32(arcs[i].Attr)); err != nil {
				return err
			}
			if err := binary.Write(w, binary.LittleEndian, index[arcs[i].Target]); err != nil {
				return err
			}
		}
	}
	return nil
}

// DecodeDag reads a dag previously written by [EncodeDag].
func DecodeDag(r io.Reader) (*dag.Node, error) {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	nodes := make([]*dag.Node, count)
	for i := range nodes {
		var ty int32
		if err := binary.Read(r, binary.LittleEndian, &ty); err != nil {
			return nil, err
		}
		n := dag.NewPermanent(typesys.TypeId(ty), nil)

		var arcCount uint16
		if err := binary.Read(r, binary.LittleEndian, &arcCount); err != nil {
			return nil, err
		}
		for range arcCount {
			var attr, target int32
			if err := binary.Read(r, binary.LittleEndian, &attr); err != nil {
				return nil, err
			}
			if err := binary.Read(r, binary.LittleEndian, &target); err != nil {
				return nil, err
			}
			if int(target) >= i {
				return nil, fmt.Errorf("gfile: dag dump forward reference at node %d", i)
			}
			n.AddArc(typesys.AttrId(attr), nodes[target])
		}
		nodes[i] = n
	}
	if count == 0 {
		return nil, fmt.Errorf("gfile: empty dag dump")
	}
	return nodes[count-1], nil
}

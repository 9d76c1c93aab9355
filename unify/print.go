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
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vellum-lang/unify/dag"
)

// Format selects a [Runtime.Print] rendering.
type Format int

const (
	// Readable renders an indented, multi-line AVM-style tree.
	Readable Format = iota
	// Compact renders a single-line bracketed form.
	Compact
	// Interchange renders a YAML document, using native YAML anchors/
	// aliases for coreferenced nodes so the output round-trips through any
	// YAML reader without a bespoke coreference notation.
	Interchange
)

// markOccurrences counts how many times each node is reached from d,
// recursing into a node's arcs only the first time it is reached -- a node
// visited more than once is coreferenced. Grounded directly on
// original_source/cheap/dag-tomabechi.cpp's dag_mark_coreferences_safe.
func markOccurrences(d *dag.Node, count map[*dag.Node]int) {
	if d == nil {
		return
	}
	count[d]++
	if count[d] > 1 {
		return
	}
	for a := d.Arcs; a != nil; a = a.Next {
		markOccurrences(a.Target, count)
	}
}

// orderedArcs returns n's arcs in original insertion order (oldest first);
// [dag.Node.Arcs] is a reverse-insertion-order linked list.
func orderedArcs(n *dag.Node) []*dag.Arc {
	var arcs []*dag.Arc
	for a := n.Arcs; a != nil; a = a.Next {
		arcs = append(arcs, a)
	}
	for i, j := 0, len(arcs)-1; i < j; i, j = i+1, j-1 {
		arcs[i], arcs[j] = arcs[j], arcs[i]
	}
	return arcs
}

// Print renders d in the given format.
func (r *Runtime) Print(d *dag.Node, format Format) (string, error) {
	switch format {
	case Readable:
		return r.printReadable(d), nil
	case Compact:
		return r.printCompact(d), nil
	case Interchange:
		return r.printInterchange(d)
	default:
		return "", fmt.Errorf("unify: unknown print format %d", format)
	}
}

func (r *Runtime) printReadable(d *dag.Node) string {
	count := map[*dag.Node]int{}
	markOccurrences(d, count)
	printed := map[*dag.Node]int{}
	next := 0

	var b strings.Builder
	var rec func(n *dag.Node, indent int)
	rec = func(n *dag.Node, indent int) {
		if n == nil {
			b.WriteString("*top*")
			return
		}
		if id, ok := printed[n]; ok {
			fmt.Fprintf(&b, "#%d", id)
			return
		}
		if count[n] > 1 {
			next++
			printed[n] = next
			fmt.Fprintf(&b, "#%d:", next)
		}
		b.WriteString(r.Hierarchy.PrintName(n.GetType()))

		arcs := orderedArcs(n)
		if len(arcs) == 0 {
			return
		}
		b.WriteByte('\n')
		pad := strings.Repeat("  ", indent+1)
		for i, a := range arcs {
			fmt.Fprintf(&b, "%s%s: ", pad, r.AttrName(a.Attr))
			rec(a.Target, indent+1)
			if i < len(arcs)-1 {
				b.WriteByte('\n')
			}
		}
	}
	rec(d, 0)
	return b.String()
}

func (r *Runtime) printCompact(d *dag.Node) string {
	count := map[*dag.Node]int{}
	markOccurrences(d, count)
	printed := map[*dag.Node]int{}
	next := 0

	var b strings.Builder
	var rec func(n *dag.Node)
	rec = func(n *dag.Node) {
		if n == nil {
			b.WriteString("*top*")
			return
		}
		if id, ok := printed[n]; ok {
			fmt.Fprintf(&b, "#%d", id)
			return
		}
		if count[n] > 1 {
			next++
			printed[n] = next
			fmt.Fprintf(&b, "#%d:", next)
		}

		arcs := orderedArcs(n)
		if len(arcs) == 0 {
			b.WriteString(r.Hierarchy.PrintName(n.GetType()))
			return
		}
		fmt.Fprintf(&b, "[%s ", r.Hierarchy.PrintName(n.GetType()))
		for i, a := range arcs {
			fmt.Fprintf(&b, "%s: ", r.AttrName(a.Attr))
			rec(a.Target)
			if i < len(arcs)-1 {
				b.WriteByte(' ')
			}
		}
		b.WriteByte(']')
	}
	rec(d)
	return b.String()
}

func (r *Runtime) printInterchange(d *dag.Node) (string, error) {
	count := map[*dag.Node]int{}
	markOccurrences(d, count)
	targets := map[*dag.Node]*yaml.Node{}
	next := 0

	node := r.buildYaml(d, count, targets, &next)
	out, err := yaml.Marshal(node)
	if err != nil {
		return "", fmt.Errorf("unify: encoding interchange format: %w", err)
	}
	return string(out), nil
}

func (r *Runtime) buildYaml(n *dag.Node, count map[*dag.Node]int, targets map[*dag.Node]*yaml.Node, next *int) *yaml.Node {
	if n == nil {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "~"}
	}
	if existing, ok := targets[n]; ok {
		return &yaml.Node{Kind: yaml.AliasNode, Alias: existing}
	}

	mapping := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	if count[n] > 1 {
		*next++
		mapping.Anchor = fmt.Sprintf("n%d", *next)
		targets[n] = mapping
	}

	mapping.Content = append(mapping.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: "type"},
		&yaml.Node{Kind: yaml.ScalarNode, Value: r.Hierarchy.Name(n.GetType())},
	)
	for _, a := range orderedArcs(n) {
		mapping.Content = append(mapping.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: r.AttrName(a.Attr)},
			r.buildYaml(a.Target, count, targets, next),
		)
	}
	return mapping
}

// Size returns the number of distinct nodes reachable from d, counting
// shared structure once.
func (r *Runtime) Size(d *dag.Node) int {
	seen := make(map[*dag.Node]bool)
	var walk func(n *dag.Node)
	walk = func(n *dag.Node) {
		if n == nil || seen[n] {
			return
		}
		seen[n] = true
		for a := n.Arcs; a != nil; a = a.Next {
			walk(a.Target)
		}
	}
	walk(d)
	return len(seen)
}

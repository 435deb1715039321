// Package scc registers the "scc" algo.Operator:
// spec.md §4.5's canonical graph algorithm instance, Tarjan's strongly
// connected components, grounded on
// original_source/cozo-core/src/algo/strongly_connected_components.rs.
package scc

import (
	"fmt"

	"github.com/cozo-community/cozo/algo"
	"github.com/cozo-community/cozo/poison"
	"github.com/cozo-community/cozo/value"
)

func init() {
	algo.Register("scc", Op{})
}

// Op implements algo.Operator. Output arity is always 2: (node, group_id).
type Op struct{}

func (Op) Arity(algo.Payload) (int, error) { return 2, nil }

// Run expects input 0 to be an edge relation of 2-tuples (from, to). An
// optional input 1 lists additional nodes that may not appear as either
// endpoint of any edge; any such node not already seen gets its own
// singleton group, numbered consecutively starting at the edge-derived
// group count -- the same isolated-node handling as the Rust original's
// run(), which assigns fresh ids starting at tarjan.len() (the number of
// real components) to anything present in the "nodes" input but absent
// from inv_indices.
//
// The "strong" option (default true) selects strongly vs. weakly connected
// components: when false every edge is added to the graph in both
// directions before running Tarjan, matching convert_edge_to_graph(!strong)
// in the Rust original.
func (Op) Run(payload algo.Payload, out algo.Collector, pt poison.Token) error {
	edges, err := payload.Input(0)
	if err != nil {
		return err
	}

	strong := true
	if v, ok := payload.Option("strong"); ok {
		b, isBool := v.AsBool()
		if !isBool {
			return fmt.Errorf("%w: strong option must be a bool", algo.ErrInvalidPayload)
		}
		strong = b
	}

	indices := make([]value.Value, 0)
	invIndices := make(map[string]int)
	indexOf := func(v value.Value) int {
		k := string(value.EncodeTuple(value.Tuple{v}))
		if i, ok := invIndices[k]; ok {
			return i
		}
		i := len(indices)
		invIndices[k] = i
		indices = append(indices, v)
		return i
	}

	var graph [][]int
	ensure := func(n int) {
		for len(graph) <= n {
			graph = append(graph, nil)
		}
	}

	for _, tup := range edges.Tuples {
		if len(tup) != 2 {
			return fmt.Errorf("%w: edge tuple must have arity 2, found %d", algo.ErrInvalidPayload, len(tup))
		}
		from := indexOf(tup[0])
		to := indexOf(tup[1])
		ensure(from)
		ensure(to)
		graph[from] = append(graph[from], to)
		if !strong {
			graph[to] = append(graph[to], from)
		}
	}

	tj := newTarjan(graph)
	groups, err := tj.run(pt)
	if err != nil {
		return err
	}

	for groupID, members := range groups {
		for _, idx := range members {
			out.Put(value.Tuple{indices[idx], value.Int(int64(groupID))})
		}
	}

	counter := int64(len(groups))
	if nodes, err := payload.Input(1); err == nil {
		for _, tup := range nodes.Tuples {
			if len(tup) < 1 {
				return fmt.Errorf("%w: node tuple must have at least 1 column, found %d", algo.ErrInvalidPayload, len(tup))
			}
			k := string(value.EncodeTuple(value.Tuple{tup[0]}))
			if _, ok := invIndices[k]; ok {
				continue
			}
			invIndices[k] = -1 // mark seen so a repeated isolated node is not double-counted
			out.Put(value.Tuple{tup[0], value.Int(counter)})
			counter++
		}
	}

	return nil
}

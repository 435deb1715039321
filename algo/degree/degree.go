// Package degree registers the "degree" algo.Operator: a small supplementary
// operator, not present in original_source, added because the rest of the
// example pack's graph-shaped code (other_examples' janus-datalog, badwolf,
// gokando files) routinely pairs a component algorithm with a degree or
// reachability helper. It builds the same kind of node index as scc but no
// adjacency list, and needs neither a recursive nor an explicit-stack walk
// of its own: out-degree is a single pass over the edge relation.
package degree

import (
	"fmt"

	"github.com/cozo-community/cozo/algo"
	"github.com/cozo-community/cozo/poison"
	"github.com/cozo-community/cozo/value"
)

func init() {
	algo.Register("degree", Op{})
}

// Op implements algo.Operator. Output arity is always 2: (node, out_degree).
type Op struct{}

func (Op) Arity(algo.Payload) (int, error) { return 2, nil }

// Run expects input 0 to be an edge relation of 2-tuples (from, to) and
// emits one (node, out_degree) row per distinct node seen as an edge
// endpoint (as either from or to; a node with no outgoing edge still gets a
// row with out_degree 0).
func (Op) Run(payload algo.Payload, out algo.Collector, pt poison.Token) error {
	edges, err := payload.Input(0)
	if err != nil {
		return err
	}

	order := make([]value.Value, 0)
	seen := make(map[string]int) // encoded node -> index into order/counts
	counts := make([]int64, 0)

	nodeIdx := func(v value.Value) int {
		k := string(value.EncodeTuple(value.Tuple{v}))
		if i, ok := seen[k]; ok {
			return i
		}
		i := len(order)
		seen[k] = i
		order = append(order, v)
		counts = append(counts, 0)
		return i
	}

	n := 0
	for _, tup := range edges.Tuples {
		n++
		if n%4096 == 0 {
			if err := pt.Check(); err != nil {
				return err
			}
		}
		if len(tup) != 2 {
			return fmt.Errorf("%w: edge tuple must have arity 2, found %d", algo.ErrInvalidPayload, len(tup))
		}
		from := nodeIdx(tup[0])
		nodeIdx(tup[1])
		counts[from]++
	}

	for i, v := range order {
		out.Put(value.Tuple{v, value.Int(counts[i])})
	}
	return nil
}

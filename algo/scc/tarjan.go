package scc

import (
	"sort"

	"github.com/cozo-community/cozo/poison"
)

// pollInterval mirrors plan's iterator convention: check pt.Check() every
// pollInterval finished-node pops rather than on every single edge.
const pollInterval = 4096

// tarjan computes strongly connected components of graph (an adjacency list
// over dense integer node ids 0..len(graph)-1).
//
// original_source/cozo-core/src/algo/strongly_connected_components.rs's
// TarjanScc.dfs recurses directly, one Go call frame per graph vertex on the
// current path; this expansion instead keeps an explicit work-stack of
// (node, childCursor) frames and drives it with a loop, so the algorithm's
// stack depth is bounded by heap-allocated slices rather than by the host's
// call stack.
type tarjan struct {
	graph   [][]int
	nextID  int
	ids     []int // -1 until visited
	low     []int
	onStack []bool
	stack   []int // nodes currently on the "am I still open" stack
}

func newTarjan(graph [][]int) *tarjan {
	n := len(graph)
	ids := make([]int, n)
	for i := range ids {
		ids[i] = -1
	}
	return &tarjan{
		graph:   graph,
		ids:     ids,
		low:     make([]int, n),
		onStack: make([]bool, n),
	}
}

// frame is one explicit-stack activation record, standing in for one level
// of recursive dfs(node) plus its in-progress `for to in &self.graph[at]`
// loop cursor.
type frame struct {
	node int
	ci   int // index into graph[node] of the next neighbor to visit
}

// run visits every vertex, grouping them into components by final low-link
// value, in ascending order of that value -- the same BTreeMap-keyed-by-low
// grouping the Rust original performs after its recursive pass completes.
func (t *tarjan) run(pt poison.Token) ([][]int, error) {
	for i := range t.graph {
		if t.ids[i] == -1 {
			if err := t.dfs(i, pt); err != nil {
				return nil, err
			}
			if err := pt.Check(); err != nil {
				return nil, err
			}
		}
	}

	groups := make(map[int][]int)
	var lows []int
	for node, lo := range t.low {
		if _, ok := groups[lo]; !ok {
			lows = append(lows, lo)
		}
		groups[lo] = append(groups[lo], node)
	}
	sort.Ints(lows)

	out := make([][]int, len(lows))
	for i, lo := range lows {
		out[i] = groups[lo]
	}
	return out, nil
}

// dfs runs one root's depth-first walk without recursing: work holds the
// path from root to the node currently being expanded, each frame resuming
// exactly where it left off (ci) the same way a suspended recursive call
// would resume after its callee returns.
func (t *tarjan) dfs(root int, pt poison.Token) error {
	push := func(n int) {
		t.stack = append(t.stack, n)
		t.onStack[n] = true
		t.nextID++
		t.ids[n] = t.nextID
		t.low[n] = t.nextID
	}

	push(root)
	work := []frame{{node: root}}
	popped := 0

	for len(work) > 0 {
		top := &work[len(work)-1]

		if top.ci < len(t.graph[top.node]) {
			to := t.graph[top.node][top.ci]
			top.ci++
			switch {
			case t.ids[to] == -1:
				push(to)
				work = append(work, frame{node: to})
			case t.onStack[to]:
				if t.low[to] < t.low[top.node] {
					t.low[top.node] = t.low[to]
				}
			}
			continue
		}

		// top.node has no more neighbors to expand: close it out exactly as
		// the recursive version does at the end of its dfs(at) body.
		finished := top.node
		if t.ids[finished] == t.low[finished] {
			for {
				n := t.stack[len(t.stack)-1]
				t.stack = t.stack[:len(t.stack)-1]
				t.onStack[n] = false
				t.low[n] = t.ids[finished]
				if n == finished {
					break
				}
			}
		}
		work = work[:len(work)-1]

		popped++
		if popped%pollInterval == 0 {
			if err := pt.Check(); err != nil {
				return err
			}
		}

		if len(work) > 0 {
			parent := &work[len(work)-1]
			// Matches the recursive original's post-call check: the low
			// value of a finished child only propagates up if that child
			// is still on the stack, i.e. it did not just close its own
			// component.
			if t.onStack[finished] && t.low[finished] < t.low[parent.node] {
				t.low[parent.node] = t.low[finished]
			}
		}
	}
	return nil
}

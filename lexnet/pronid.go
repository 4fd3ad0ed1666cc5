package lexnet

// PronId assignment: spec.md §4.1 step 8. PronIds are assigned by a
// depth-first walk of each AB connector's descendant prefix tree (the
// tree step 5 explicitly builds) in a fixed, deterministic root order,
// so running a global counter across successive subtrees gives each
// subtree a contiguous PronId range without having to claim the
// stronger (and generally false, for a DAG with shared connectors)
// property that *every* node in the whole network has one. One-phone
// words and the start/end words bypass the prefix tree entirely (steps
// 6-7), so their WordEnd nodes are swept up afterwards, each as its
// own singleton range.

import (
	"sort"

	"github.com/kho/lvrec/lmla"
	"github.com/kho/word"
)

// maxPronId bounds how many PronIds a single build may assign, the
// condition PronIdOverflow reports. lmla.PronId is a uint32; nothing
// close to this count is expected from a real dictionary, but the
// check still runs so the failure path is real rather than aspirational.
const maxPronId = 1 << 24

// AssignPronIds walks net's AB-rooted prefix subtrees in sorted order,
// assigning each WordEnd a PronId and recording [LoWE, HiWE] on every
// node of each subtree; assigns the remaining (one-phone, start, end)
// WordEnd nodes singleton ranges; then propagates intervals up through
// single-successor layer-A Model nodes to their AB connector.
func AssignPronIds(net *Net) error {
	var abRoots []LexNodeIdx
	for i, n := range net.Nodes {
		if n.Layer == LayerAB && n.Kind == KindConnector {
			abRoots = append(abRoots, LexNodeIdx(i))
		}
	}
	sort.Slice(abRoots, func(i, j int) bool {
		a, b := net.Nodes[abRoots[i]], net.Nodes[abRoots[j]]
		if a.LC != b.LC {
			return a.LC < b.LC
		}
		return a.RC < b.RC
	})

	next := lmla.PronId(0)
	visited := make([]bool, len(net.Nodes))
	for _, root := range abRoots {
		lo, hi, err := assignSubtree(net, root, &next, visited)
		if err != nil {
			return err
		}
		net.Nodes[root].LoWE, net.Nodes[root].HiWE = lo, hi
	}

	var leftover []LexNodeIdx
	for i, n := range net.Nodes {
		if n.Kind == KindWordEnd && !visited[i] {
			leftover = append(leftover, LexNodeIdx(i))
		}
	}
	sort.Slice(leftover, func(i, j int) bool { return net.Nodes[leftover[i]].Word < net.Nodes[leftover[j]].Word })
	for _, idx := range leftover {
		if next >= maxPronId {
			return &PronIdOverflow{Count: int(next) + 1}
		}
		n := &net.Nodes[idx]
		n.Pron = next
		n.LoWE, n.HiWE = next, next
		next++
	}

	net.WordOfPron = make([]word.Id, next)
	for _, n := range net.Nodes {
		if n.Kind == KindWordEnd {
			net.WordOfPron[n.Pron] = n.Word
		}
	}

	// Layer-A Model(z-a+b) nodes each have a single successor: the AB
	// connector their (a,b) suffix funnels into. Inherit its interval
	// directly (step 9's single-successor compression).
	for i := range net.Nodes {
		n := &net.Nodes[i]
		if n.Layer == LayerA && n.Kind == KindModel && len(n.Succ) == 1 {
			succ := net.Nodes[n.Succ[0]]
			n.LoWE, n.HiWE = succ.LoWE, succ.HiWE
		}
	}
	return nil
}

// assignSubtree DFS-assigns PronIds under node (a Model or Connector
// in the B..Y prefix tree), stopping at WordEnd leaves, and returns
// the contiguous [lo, hi] range it produced.
func assignSubtree(net *Net, node LexNodeIdx, next *lmla.PronId, visited []bool) (lo, hi lmla.PronId, err error) {
	visited[node] = true
	n := &net.Nodes[node]
	if n.Kind == KindWordEnd {
		if *next >= maxPronId {
			return 0, 0, &PronIdOverflow{Count: int(*next) + 1}
		}
		n.Pron = *next
		lo, hi = *next, *next
		*next++
		return
	}
	lo, hi = lmla.PronId(1), lmla.PronId(0) // empty range sentinel (lo > hi)
	for _, s := range n.Succ {
		childLo, childHi, err := assignSubtree(net, s, next, visited)
		if err != nil {
			return 0, 0, err
		}
		if lo > hi { // first child
			lo, hi = childLo, childHi
		} else {
			if childLo < lo {
				lo = childLo
			}
			if childHi > hi {
				hi = childHi
			}
		}
	}
	n.LoWE, n.HiWE = lo, hi
	return
}

package lexnet

// Look-ahead index assignment: spec.md §4.1 step 9. Every node's
// "resolved" look-ahead value is computed by a memoized recursion over
// its successors. The network is cyclic (WE -> YZ -> Z -> ZS -> SIL ->
// SA -> ... -> WE), but every cycle passes through a WordEnd node, and
// a WordEnd resolves to its own PronId without recursing further, so
// the recursion terminates. A node with a single successor stores no
// index of its own (LmlaIdx stays lmla.LMLA_NONE) and the search keeps
// using whatever value was last computed at an ancestor; WordEnd nodes
// also store LMLA_NONE. A fan-out point - chiefly SA, whose children
// are separate, generally non-adjacent per-phone subtrees - reuses its
// child's index when every child resolves to the very same entry, and
// otherwise gets a complex union (AddComplex) over its distinct
// children.

import "github.com/kho/lvrec/lmla"

// AssignLmlaIndices builds net.Tree and sets every node's LmlaIdx.
func AssignLmlaIndices(net *Net, cacheSize int) {
	tree := lmla.NewTree(cacheSize)
	resolved := make(map[LexNodeIdx]lmla.LmlaIdx, len(net.Nodes))

	var resolve func(idx LexNodeIdx) lmla.LmlaIdx
	resolve = func(idx LexNodeIdx) lmla.LmlaIdx {
		if r, ok := resolved[idx]; ok {
			return r
		}
		n := &net.Nodes[idx]
		var r lmla.LmlaIdx
		switch {
		case n.Kind == KindWordEnd:
			r = tree.AddSimple(n.Pron, n.Pron)
		case len(n.Succ) == 0:
			r = lmla.LMLA_NONE
		case len(n.Succ) == 1:
			r = resolve(n.Succ[0])
		default:
			seen := map[lmla.LmlaIdx]bool{}
			var children []lmla.LmlaIdx
			for _, s := range n.Succ {
				c := resolve(s)
				if c == lmla.LMLA_NONE || seen[c] {
					continue
				}
				seen[c] = true
				children = append(children, c)
			}
			switch len(children) {
			case 0:
				r = lmla.LMLA_NONE
			case 1:
				r = children[0]
			default:
				r = tree.AddComplex(children)
			}
		}
		resolved[idx] = r
		return r
	}

	for i, n := range net.Nodes {
		idx := LexNodeIdx(i)
		switch {
		case n.Kind == KindWordEnd:
			net.Nodes[i].LmlaIdx = lmla.LMLA_NONE
		case len(n.Succ) == 1:
			resolve(idx)
			net.Nodes[i].LmlaIdx = lmla.LMLA_NONE
		default:
			net.Nodes[i].LmlaIdx = resolve(idx)
		}
	}
	net.Tree = tree
	net.EntryLmla = computeEntryLmla(net)
}

// computeEntryLmla is the top-down dual of resolve above: a
// breadth-first walk from Start assigning each node the look-ahead
// index in effect when a token enters it -- the node's own LmlaIdx if
// concrete, otherwise the value in effect at the predecessor through
// which the walk first reaches it.
func computeEntryLmla(net *Net) []lmla.LmlaIdx {
	entry := make([]lmla.LmlaIdx, len(net.Nodes))
	visited := make([]bool, len(net.Nodes))
	queue := []LexNodeIdx{net.Start}
	visited[net.Start] = true
	entry[net.Start] = net.Nodes[net.Start].LmlaIdx
	for len(queue) > 0 {
		idx := queue[0]
		queue = queue[1:]
		n := &net.Nodes[idx]
		eff := n.LmlaIdx
		if eff == lmla.LMLA_NONE {
			eff = entry[idx]
		}
		for _, s := range n.Succ {
			if !visited[s] {
				visited[s] = true
				entry[s] = eff
				if own := net.Nodes[s].LmlaIdx; own != lmla.LMLA_NONE {
					entry[s] = own
				}
				queue = append(queue, s)
			}
		}
	}
	return entry
}

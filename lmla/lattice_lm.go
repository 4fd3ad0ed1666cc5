package lmla

import (
	"sort"

	"github.com/kho/lvrec/lm"
)

// LatticeNode identifies a state in a lattice-constrained LM: a node of
// a previously generated (or reference) word lattice used in place of
// a back-off n-gram.
type LatticeNode uint32

// LatticeArc is one outgoing arc of a lattice node, labelled by the
// PronId of the word it consumes.
type LatticeArc struct {
	Pron   PronId
	Dest   LatticeNode
	Weight lm.Weight
}

// LatticeLM is a Source backed by a word lattice instead of a back-off
// n-gram: its states are lattice nodes, and its "successors" are
// literally the node's out-arcs, kept sorted by Pron for the same
// lockstep interval walk the n-gram case uses.
type LatticeLM struct {
	arcs [][]LatticeArc
}

// NewLatticeLM creates a LatticeLM with numNodes nodes, 0 initially
// reserved for the lattice's start node.
func NewLatticeLM(numNodes int) *LatticeLM {
	return &LatticeLM{arcs: make([][]LatticeArc, numNodes)}
}

// AddArc appends an arc out of node n. Call Finalize once all arcs are
// added and before any Successors call.
func (l *LatticeLM) AddArc(n LatticeNode, a LatticeArc) {
	l.arcs[n] = append(l.arcs[n], a)
}

// Finalize sorts every node's out-arcs by Pron.
func (l *LatticeLM) Finalize() {
	for i := range l.arcs {
		sort.Slice(l.arcs[i], func(a, b int) bool { return l.arcs[i][a].Pron < l.arcs[i][b].Pron })
	}
}

func (l *LatticeLM) Successors(p lm.StateId) []PronWeight {
	arcs := l.arcs[p]
	out := make([]PronWeight, len(arcs))
	for i, a := range arcs {
		out[i] = PronWeight{Pron: a.Pron, State: lm.StateId(a.Dest), Weight: a.Weight}
	}
	return out
}

// BackOff always reports no further back-off: a lattice node's
// reachable set is exactly its own out-arcs, there is no lower-order
// fallback to walk to.
func (l *LatticeLM) BackOff(lm.StateId) (lm.StateId, lm.Weight) {
	return lm.STATE_NIL, lm.WEIGHT_LOG0
}

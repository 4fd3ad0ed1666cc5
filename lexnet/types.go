// Package lexnet builds the layered, context-expanded lexical prefix
// tree the search runs over: nine layers (Z, ZS, SIL, SA, A, AB, BY,
// WE, YZ) of tagged-union nodes, addressed by index into a flat arena
// rather than a pointer graph, the way lm.Builder addresses LM states
// by StateId into flat transition slices.
package lexnet

import (
	"github.com/kho/lvrec/dict"
	"github.com/kho/lvrec/hmm"
	"github.com/kho/lvrec/lmla"
	"github.com/kho/word"
)

// Layer is one of the nine network layers.
type Layer uint8

const (
	LayerZ Layer = iota
	LayerZS
	LayerSIL
	LayerSA
	LayerA
	LayerAB
	LayerBY
	LayerWE
	LayerYZ
	NumLayers
)

func (l Layer) String() string {
	switch l {
	case LayerZ:
		return "Z"
	case LayerZS:
		return "ZS"
	case LayerSIL:
		return "SIL"
	case LayerSA:
		return "SA"
	case LayerA:
		return "A"
	case LayerAB:
		return "AB"
	case LayerBY:
		return "BY"
	case LayerWE:
		return "WE"
	case LayerYZ:
		return "YZ"
	default:
		return "?"
	}
}

// NodeKind discriminates a LexNode's tagged union. Propagation sites
// switch on this rather than using virtual dispatch.
type NodeKind uint8

const (
	KindModel NodeKind = iota
	KindConnector
	KindWordEnd
)

// LexNodeIdx addresses a node in a Net's flat arena.
type LexNodeIdx int32

// NilNode is the invalid/absent node index.
const NilNode LexNodeIdx = -1

// LexNode is one node of the lexicon network: a tagged union of
// {Model(HmmId), Connector(lc, rc), WordEnd(PronId)}, plus the fields
// every node carries (successor list, look-ahead index, reachable
// PronId interval).
type LexNode struct {
	Layer Layer
	Kind  NodeKind

	// Model fields (Kind == KindModel).
	Hmm hmm.HmmId

	// Connector fields (Kind == KindConnector).
	LC, RC dict.PhoneId

	// WordEnd fields (Kind == KindWordEnd).
	Pron     lmla.PronId
	Word     word.Id
	PronProb float32 // this pronunciation variant's probability, 1 if the dictionary carried none

	Succ []LexNodeIdx

	// LmlaIdx is this node's index into the look-ahead tree; 0 (
	// lmla.LMLA_NONE) means "no update needed here, reuse the
	// predecessor's value".
	LmlaIdx lmla.LmlaIdx

	// LoWE, HiWE is the contiguous PronId range reachable from this
	// node, assigned during the PronId-assignment DFS (step 8).
	LoWE, HiWE lmla.PronId
}

// Net is the frozen, built lexicon network.
type Net struct {
	Nodes []LexNode
	Start LexNodeIdx
	End   LexNodeIdx
	Tree  *lmla.Tree
	// WordOfPron maps a PronId to the word.Id, in the dictionary's own
	// vocabulary (dict.Dict.Words), of the word it completes, built
	// alongside PronId assignment. cmd/decode remaps it into the LM's
	// vocabulary before handing it to lmla.NewBackOffSource, so the
	// search never resolves strings.
	WordOfPron []word.Id
	// EntryLmla[i] is the look-ahead index in effect when a token
	// enters node i: node i's own LmlaIdx if concrete, otherwise the
	// value in effect at the predecessor through which a breadth-first
	// walk from Start first reaches node i. A LMLA_NONE node with
	// several predecessors (a WordEnd, an AB or YZ connector) takes that
	// one predecessor's value for every entry. Computed once at build
	// time so the search never has to
	// thread this value through per-frame propagation.
	EntryLmla []lmla.LmlaIdx
}

func (n *Net) NumNodes() int { return len(n.Nodes) }

func (n *Net) alloc(node LexNode) LexNodeIdx {
	idx := LexNodeIdx(len(n.Nodes))
	n.Nodes = append(n.Nodes, node)
	return idx
}

func (n *Net) link(from, to LexNodeIdx) {
	n.Nodes[from].Succ = append(n.Nodes[from].Succ, to)
}

// Package search is the decoder instance: per-frame active-node lists,
// token sets, pruning thresholds, and the caches described in spec §4.3-4.5.
// Grounded structurally on original_source/HTKLVRec/HLVRec.h's
// DecoderInst/LexNodeInst/TokenSet/Token/RelToken/WordendHyp shapes,
// re-architected per the teacher's arena+index idiom: no MSTAK/MHEAP
// pools, no LexNode*/LexNodeInst* pointer graphs, just flat slices
// addressed by small integer indices (lm.Sorted's own
// transitions[StateId][]WordStateWeight nested-slice convention,
// generalized one level further).
package search

import (
	"github.com/kho/lvrec/hmm"
	"github.com/kho/lvrec/lexnet"
	"github.com/kho/lvrec/lm"
	"github.com/kho/lvrec/lmla"
)

// WEHypIdx addresses a WordEndHyp in a Decoder's per-utterance arena.
type WEHypIdx int32

// NilWEHyp is the absent/root word-end hypothesis.
const NilWEHyp WEHypIdx = -1

// WordEndHyp records one word completion and is not modified once
// published. When the token carrying it crosses the following SA
// connector (the "Layer SA special step", spec §4.3), a copy whose
// Frame/Score reflect the word-end boundary at the following silence
// rather than at the WE node itself is published, and the token's Path
// moves to that copy. Grounded on HLVRec.h's _WordendHyp and HLVNet.c's
// wordEndLayerId comment ("update time and score in last weHyp of
// token in this layer").
type WordEndHyp struct {
	Prev  WEHypIdx
	Pron  lmla.PronId
	Frame int32
	Score lm.Weight // total likelihood at end of word
	Lm    lm.Weight // LM likelihood of this word given history
	Alt   []AltWordEndHyp
}

// AltWordEndHyp is an N-best alternative at a word end, for lattice
// generation. Grounded on HLVRec.h's _AltWordendHyp (sharing Prev/Pron
// with the main hyp, so it carries only what differs: the competing
// path's own score and LM likelihood).
type AltWordEndHyp struct {
	Prev  WEHypIdx
	Score lm.Weight
	Lm    lm.Weight
}

// RelToken is a partial hypothesis relative to its TokenSet's best
// token: Delta is always <= 0. Grounded on HLVRec.h's _RelToken.
type RelToken struct {
	LmState lm.StateId
	WeTag   WEHypIdx // distinguishes tokens sharing LmState but not word history
	Delta   lm.Weight
	LmScore lm.Weight // LM look-ahead score for the current (incomplete) word
	Path    WEHypIdx
}

// TokenSet holds up to nTok RelTokens, one per distinct (LmState,
// WeTag) pair, sorted so index 0 is the local best (Delta == 0).
// ID is a monotonically increasing tag letting a node's outgoing links
// skip re-merging a TokenSet that hasn't changed since it was last
// forwarded (spec §4.4).
type TokenSet struct {
	Best lm.Weight
	Rel  []RelToken
	ID   uint64
}

func (ts *TokenSet) empty() bool { return len(ts.Rel) == 0 }

// InstanceIdx addresses an Instance in a Decoder's per-utterance arena.
type InstanceIdx int32

// NilInstance is the absent/inactive instance.
const NilInstance InstanceIdx = -1

// Instance attaches to a LexNode when it holds at least one live
// token: a TokenSet per HMM state (entry, internal, exit) for Model
// nodes, or a single TokenSet for Connector/WordEnd nodes, which carry
// no trellis of their own. Grounded on HLVRec.h's _LexNodeInst, minus
// the intrusive linked-list pointer (membership in a layer's active
// set is tracked by the Decoder's activeAt map instead).
type Instance struct {
	Node  LexNode
	TS    []TokenSet
	Best  lm.Weight
	Start int32 // frame this instance was activated, used only when ModelAlign is set
}

// ModelAlignment records one Model instance's lifetime, from activation
// to deactivation, for per-model trace-back (HLVRec.h's MODALIGN
// build option, exposed here as the WithModelAlignment Decoder option
// rather than a compile-time macro).
type ModelAlignment struct {
	Node  LexNode
	Hmm   hmm.HmmId
	Start int32
	End   int32
}

// LexNode is a thin local alias kept distinct from lexnet.LexNodeIdx
// only for readability at call sites that pass node indices around
// inside this package.
type LexNode = lexnet.LexNodeIdx

// Decoder owns one utterance-lifetime arena and the static resources
// (network, HMM set, LM source) it searches over. Grounded on
// HLVRec.h's DecoderInst; per spec §5, a Decoder is single-threaded
// cooperative and must not be called re-entrantly.
type Decoder struct {
	net    *lexnet.Net
	hmms   *hmm.Set
	lmSrc  lmla.Source
	scorer hmm.Scorer

	// Configuration (spec §6).
	NTok          int
	BeamWidth     lm.Weight
	RelBeamWidth  lm.Weight
	WeBeamWidth   lm.Weight
	ZsBeamWidth   lm.Weight
	MaxModel      int
	InsPen        lm.Weight
	AcScale       float32
	PronScale     float32
	LmScale       float32
	FastLmlaBeam  lm.Weight
	ModelAlign    bool
	TokSetSharing bool

	// Per-utterance arena. Reset in O(1) by truncating to length 0.
	instances   []Instance
	activeAt    map[LexNode]InstanceIdx
	weHyps      []WordEndHyp
	frame       int32

	// propagated[node] is the ID of the last TokenSet forwarded into
	// node by propagate. ProcessFrame gives every Model exit TokenSet a
	// fresh ID each frame and connectors forward it unchanged (the SA
	// step and word ends forward a new set under a new ID), so a repeat
	// call with the same ID carries the same tokens and score and is
	// redundant work -- this is TokSetSharing (spec §4.4): skip
	// re-walking a connector/word-end chain a second predecessor would
	// otherwise retrigger unchanged.
	propagated map[LexNode]uint64
	bestScore   lm.Weight // best active token score, this frame (drives the beam)
	bestInst    InstanceIdx
	curBeam     lm.Weight
	tokSetIDGen uint64

	// final accumulates whatever reached net.End so far; each
	// ProcessFrame call may widen it (spec §4.3: the end node can be
	// reached on more than one frame before the utterance is declared
	// over).
	final TokenSet

	// align collects completed ModelAlignments; only appended to when
	// ModelAlign is set.
	align []ModelAlignment

	Stats Stats
}

// Stats mirrors HLVRec.h's COLLECT_STATS _Stats: counters for the
// current utterance, zeroed by ResetUtterance, so a caller reads them
// after the utterance's last ProcessFrame and before the next reset.
type Stats struct {
	NumTokenSets     int64
	SumTokensPerSet  int64
	NumActivations   int64
	NumDeactivations int64
	NumFrames        int64
}

// Package trace turns a Decoder's surviving WordEndHyp chains into
// output: a 1-best transcription or an HTK-dialect word lattice.
// Grounded on original_source/HTKLVRec/HLVRec.h's WordendHyp/
// AltWordendHyp traceback structures (already mirrored by
// search.WordEndHyp/search.AltWordEndHyp) and spec.md §4.6/§6.
package trace

import (
	"github.com/kho/lvrec/lm"
	"github.com/kho/lvrec/lmla"
	"github.com/kho/word"
)

// WordSpan is one word of a 1-best transcription.
type WordSpan struct {
	Word  word.Id
	Pron  lmla.PronId
	Start int32 // Frame of the preceding word-end hyp (0 for the first word)
	End   int32 // last frame of the word, inclusive
	Score lm.Weight
	Lm    lm.Weight
}

// Transcription is a 1-best hypothesis in chronological order.
type Transcription struct {
	Words []WordSpan
}

// String renders words space-separated, HTK label style.
func (t Transcription) String(vocab *word.Vocab) string {
	s := ""
	for i, w := range t.Words {
		if i > 0 {
			s += " "
		}
		s += vocab.StringOf(w.Word)
	}
	return s
}

// LatNodeIdx addresses a LatNode within a Lattice.
type LatNodeIdx int32

// LatNode is a lattice node: a unique (pron, frame) pair reached by at
// least one surviving WordEndHyp or AltWordEndHyp.
type LatNode struct {
	Word  word.Id
	Pron  lmla.PronId
	Frame int32
}

// LatArc is a lattice edge between two LatNodes, annotated with the
// score components spec.md §6's lat_out_form field letters name.
type LatArc struct {
	From, To LatNodeIdx
	Acoustic lm.Weight // 'a': ac-only contribution, total minus lm/pron/ins-pen
	Lm       lm.Weight // 'l': raw (unscaled) LM log-probability of this transition
	PronProb lm.Weight // 'r': this pronunciation variant's log-probability
	Total    lm.Weight // running total score at the arc's destination node
}

// Lattice is the traceback DAG of every WordEndHyp/AltWordEndHyp
// reachable backward from the end-of-utterance hypotheses.
type Lattice struct {
	Nodes []LatNode
	Arcs  []LatArc
	Start LatNodeIdx
	Ends  []LatNodeIdx
}

// LatticeConfig carries the subset of spec.md §6's configuration bundle
// BuildLattice/WriteHTK need: the scoring scales used to decompose a
// WordEndHyp's lumped total score back into its 'a'/'l'/'r' parts, the
// density-pruning thresholds, and which fields to emit.
type LatticeConfig struct {
	LmScale   lm.Weight
	PronScale lm.Weight
	InsPen    lm.Weight
	// PruneBeam discards any arc whose Total is more than PruneBeam
	// below the best arc Total in the lattice. Zero disables pruning.
	PruneBeam lm.Weight
	// PruneAPS caps the lattice to roughly this many arcs per second
	// of audio (100 frames/sec, HTK convention); zero disables it.
	PruneAPS float64
	// OutForm is the subset of {A,B,t,v,a,l,d,m,r} to write (spec.md
	// §6's lat_out_form); WriteHTK ignores fields not present here.
	OutForm string
}

package search

import (
	"math"
	"sort"

	"github.com/kho/lvrec/lm"
	"github.com/kho/lvrec/lmla"
)

// lookupLM walks src's back-off chain from state looking for an
// explicit transition on pron, accumulating back-off weight at each
// miss. Grounded on original_source/HTKLVRec/HLVLM.c's GetLMProb,
// generalized from the trigram-specific C version to an arbitrary
// back-off depth since lmla.Source already hides the order.
func lookupLM(src lmla.Source, state lm.StateId, pron lmla.PronId) (next lm.StateId, weight lm.Weight) {
	acc := lm.Weight(0)
	s := state
	for {
		succ := src.Successors(s)
		i := sort.Search(len(succ), func(i int) bool { return succ[i].Pron >= pron })
		if i < len(succ) && succ[i].Pron == pron {
			return succ[i].State, acc + succ[i].Weight
		}
		bo, boWeight := src.BackOff(s)
		if bo == lm.STATE_NIL {
			return s, acc + lm.WEIGHT_LOG0
		}
		acc += boWeight
		s = bo
	}
}

// applyWordEnd transitions every RelToken in ts through the LM on
// word pron, publishing one WordEndHyp per surviving token (spec
// §4.2's word-end LM application, run once per distinct incoming
// LmState rather than once per token since homophone tokens sharing
// an LmState collapse to the same LM transition).
func (d *Decoder) applyWordEnd(ts TokenSet, node LexNode) TokenSet {
	if ts.empty() {
		return TokenSet{}
	}
	n := &d.net.Nodes[node]
	pron := n.Pron
	pronLw := lm.Weight(0)
	if n.PronProb > 0 {
		pronLw = lm.Weight(math.Log(float64(n.PronProb))) * lm.Weight(d.PronScale)
	}

	type candidate struct {
		lw   lm.Weight
		abs  lm.Weight
		path WEHypIdx
	}
	// Group by the LM state reached after this word: two histories
	// landing in the same state have recombined, and only the better
	// one keeps its own published WordEndHyp; the loser survives only
	// as an Alt against it (spec §4.6).
	byState := make(map[lm.StateId][]candidate, len(ts.Rel))
	cache := make(map[lm.StateId]struct {
		state lm.StateId
		lw    lm.Weight
	}, len(ts.Rel))
	order := make([]lm.StateId, 0, len(ts.Rel))
	for _, r := range ts.Rel {
		hit, ok := cache[r.LmState]
		if !ok {
			st, w := lookupLM(d.lmSrc, r.LmState, pron)
			hit = struct {
				state lm.StateId
				lw    lm.Weight
			}{st, w}
			cache[r.LmState] = hit
		}
		abs := ts.Best + r.Delta + hit.lw*lm.Weight(d.LmScale) + pronLw + d.InsPen
		if _, ok := byState[hit.state]; !ok {
			order = append(order, hit.state)
		}
		byState[hit.state] = append(byState[hit.state], candidate{hit.lw, abs, r.Path})
	}

	out := TokenSet{Rel: make([]RelToken, 0, len(order))}
	for _, state := range order {
		cands := byState[state]
		best := 0
		for i := 1; i < len(cands); i++ {
			if cands[i].abs > cands[best].abs {
				best = i
			}
		}
		weIdx := d.publishWEHyp(cands[best].path, pron, d.frame, cands[best].abs, cands[best].lw)
		for i, c := range cands {
			if i != best {
				d.addAlternative(weIdx, c.path, c.abs, c.lw)
			}
		}
		out.Rel = append(out.Rel, RelToken{LmState: state, WeTag: weIdx, Path: weIdx})
		if cands[best].abs > out.Best || len(out.Rel) == 1 {
			out.Best = cands[best].abs
		}
	}

	if d.WeBeamWidth > 0 {
		cutoff := out.Best - d.WeBeamWidth
		kept := out.Rel[:0]
		for _, r := range out.Rel {
			if d.weHyps[r.Path].Score >= cutoff {
				kept = append(kept, r)
			}
		}
		out.Rel = kept
	}
	for i := range out.Rel {
		abs := d.weHyps[out.Rel[i].Path].Score
		out.Rel[i].Delta = abs - out.Best
	}
	out.ID = d.nextTokSetID()
	return out
}

// publishWEHyp appends an immutable word-end record and returns its
// index. Grounded on HLVRec.h's CreateWordendHyp.
func (d *Decoder) publishWEHyp(prev WEHypIdx, pron lmla.PronId, frame int32, score, lmw lm.Weight) WEHypIdx {
	idx := WEHypIdx(len(d.weHyps))
	d.weHyps = append(d.weHyps, WordEndHyp{
		Prev:  prev,
		Pron:  pron,
		Frame: frame,
		Score: score,
		Lm:    lmw,
	})
	return idx
}

// addAlternative records a losing word-end theory against the
// surviving hyp at idx, for later N-best/lattice extraction (spec
// §4.6). Grounded on HLVRec.h's MergeWordendHyp's alt-list branch.
func (d *Decoder) addAlternative(idx WEHypIdx, prev WEHypIdx, score, lmw lm.Weight) {
	h := &d.weHyps[idx]
	h.Alt = append(h.Alt, AltWordEndHyp{Prev: prev, Score: score, Lm: lmw})
}

// lookaheadScore evaluates idx (a node's precomputed entry look-ahead
// index; see lexnet.Net.EntryLmla) against the given LM state.
func (d *Decoder) lookaheadScore(idx lmla.LmlaIdx, state lm.StateId) lm.Weight {
	if idx == lmla.LMLA_NONE {
		return 0
	}
	if d.curBeam < d.FastLmlaBeam {
		return d.net.Tree.FastLookahead(idx, state, d.lmSrc, 1)
	}
	return d.net.Tree.Lookahead(idx, state, d.lmSrc)
}

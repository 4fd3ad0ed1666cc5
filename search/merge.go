package search

import "github.com/kho/lvrec/lm"

// mergeRelKey identifies a RelToken within a TokenSet: tokens sharing
// LmState but reached via a different completed-word history (WeTag)
// are kept distinct, since they may diverge again at the next word
// end (spec §4.4).
type mergeRelKey struct {
	st lm.StateId
	we WEHypIdx
}

// mergeTokenSet combines a and b, keeping at most d.NTok RelTokens
// (the single best absolute-score token per distinct (LmState, WeTag)
// key), sorted descending by score with index 0 renormalized to
// Delta == 0. Grounded on HLVRec.h's token-set recombination rule in
// the step routines: "only the token with the highest Acoustic+LM
// score survives for a given (LMState, WeTag) pair".
func (d *Decoder) mergeTokenSet(a, b TokenSet) TokenSet {
	if a.empty() {
		return b
	}
	if b.empty() {
		return a
	}

	type scored struct {
		tok RelToken
		abs lm.Weight
	}
	seen := make(map[mergeRelKey]int, len(a.Rel)+len(b.Rel))
	var all []scored
	absorb := func(ts TokenSet) {
		for _, r := range ts.Rel {
			abs := ts.Best + r.Delta
			k := mergeRelKey{r.LmState, r.WeTag}
			if i, ok := seen[k]; ok {
				if abs > all[i].abs {
					all[i] = scored{r, abs}
				}
				continue
			}
			seen[k] = len(all)
			all = append(all, scored{r, abs})
		}
	}
	absorb(a)
	absorb(b)

	for i := 1; i < len(all); i++ {
		s := all[i]
		j := i - 1
		for j >= 0 && all[j].abs < s.abs {
			all[j+1] = all[j]
			j--
		}
		all[j+1] = s
	}
	if d.NTok > 0 && len(all) > d.NTok {
		all = all[:d.NTok]
	}

	out := TokenSet{Best: all[0].abs, Rel: make([]RelToken, len(all)), ID: d.nextTokSetID()}
	for i, s := range all {
		r := s.tok
		r.Delta = s.abs - out.Best
		out.Rel[i] = r
	}
	return out
}

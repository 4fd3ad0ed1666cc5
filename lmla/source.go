package lmla

// Source is what a look-ahead tree needs from whatever LM backs it: a
// back-off n-gram (BackOffSource) or a word lattice (LatticeLM). Both
// expose their transitions keyed by PronId rather than by LM word, and
// sorted ascending by PronId so Tree.Lookahead can walk an interval in
// lockstep instead of binary-searching per PronId.

import (
	"sort"

	"github.com/kho/lvrec/lm"
	"github.com/kho/word"
)

// PronId is the dictionary's pronunciation identifier, assigned by the
// lexicon network builder such that every node's reachable PronIds form
// a contiguous range. lmla never constructs PronIds itself; it only
// consumes ranges handed to it by the network.
type PronId uint32

// PronWeight is one sorted-by-Pron transition out of an LM state.
type PronWeight struct {
	Pron   PronId
	State  lm.StateId
	Weight lm.Weight
}

type Source interface {
	// Successors returns state p's outgoing transitions, sorted
	// ascending by Pron. Callers must not mutate the result.
	Successors(p lm.StateId) []PronWeight
	// BackOff returns the back-off state and weight of p, or
	// (lm.STATE_NIL, _) if p is already the terminal (empty-context)
	// state and backs off no further.
	BackOff(p lm.StateId) (lm.StateId, lm.Weight)
}

// BackOffSource adapts an lm.IterableModel, keyed by LM word.Id, into a
// Source keyed by PronId using the dictionary's pron-to-word mapping.
// It is the look-ahead counterpart of lm.Model's per-frame NextI: built
// once at decoder-construction time so the search never resolves
// strings on the hot path.
type BackOffSource struct {
	model lm.IterableModel
	// byWord maps an LM word.Id to every PronId that shares it
	// (homophones share a word.Id but not a PronId).
	byWord map[word.Id][]PronId

	succCache map[lm.StateId][]PronWeight
}

// NewBackOffSource builds a BackOffSource. wordOf must map every PronId
// in use (indices 0..len(wordOf)-1) to its LM word.Id.
func NewBackOffSource(model lm.IterableModel, wordOf []word.Id) *BackOffSource {
	byWord := make(map[word.Id][]PronId, len(wordOf))
	for pron, w := range wordOf {
		byWord[w] = append(byWord[w], PronId(pron))
	}
	return &BackOffSource{
		model:     model,
		byWord:    byWord,
		succCache: make(map[lm.StateId][]PronWeight),
	}
}

func (s *BackOffSource) Successors(p lm.StateId) []PronWeight {
	if cached, ok := s.succCache[p]; ok {
		return cached
	}
	var out []PronWeight
	for xqw := range s.model.Transitions(p) {
		for _, pron := range s.byWord[xqw.Word] {
			out = append(out, PronWeight{Pron: pron, State: xqw.State, Weight: xqw.Weight})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pron < out[j].Pron })
	s.succCache[p] = out
	return out
}

func (s *BackOffSource) BackOff(p lm.StateId) (lm.StateId, lm.Weight) {
	return s.model.BackOff(p)
}

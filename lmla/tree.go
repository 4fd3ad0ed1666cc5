package lmla

// Look-ahead tree: a compressed map from lexicon-network node to the
// best LM score reachable through it, so the search can upper-bound a
// partial word's LM contribution before committing to it.

import "github.com/kho/lvrec/lm"

// LmlaIdx indexes into a Tree. LMLA_NONE means "no update needed here";
// the caller reuses the predecessor node's look-ahead value.
type LmlaIdx uint32

const LMLA_NONE LmlaIdx = 0

type interval struct{ Lo, Hi PronId }

// Tree is the two-array look-ahead structure: simple nodes carry a
// single contiguous PronId interval, complex nodes carry the indices of
// several children whose union is the node's reachable set (layer-A
// fan-out, mainly).
type Tree struct {
	simple  []interval
	complex [][]LmlaIdx
	cache   []*lruCache
	cacheK  int

	// CacheHits/CacheMisses count Lookahead calls resolved from a
	// node's lruCache vs. walked fresh, for the per-utterance LMLA
	// cache hit/miss statistic (spec.md §6).
	CacheHits   int64
	CacheMisses int64
}

// NewTree creates an empty Tree whose per-node cache holds up to cacheK
// entries (0 disables caching).
func NewTree(cacheK int) *Tree {
	return &Tree{
		simple:  []interval{{}},
		complex: [][]LmlaIdx{nil},
		cache:   []*lruCache{nil},
		cacheK:  cacheK,
	}
}

// AddSimple registers a node whose reachable PronIds are exactly
// [lo, hi], returning its index.
func (t *Tree) AddSimple(lo, hi PronId) LmlaIdx {
	idx := LmlaIdx(len(t.simple))
	t.simple = append(t.simple, interval{lo, hi})
	t.complex = append(t.complex, nil)
	t.cache = append(t.cache, newLruCache(t.cacheK))
	return idx
}

// AddComplex registers a fan-out node whose reachable set is the union
// of its children's, returning its index.
func (t *Tree) AddComplex(children []LmlaIdx) LmlaIdx {
	idx := LmlaIdx(len(t.simple))
	t.simple = append(t.simple, interval{})
	cp := make([]LmlaIdx, len(children))
	copy(cp, children)
	t.complex = append(t.complex, cp)
	t.cache = append(t.cache, newLruCache(t.cacheK))
	return idx
}

// IsComplex reports whether idx is a fan-out node.
func (t *Tree) IsComplex(idx LmlaIdx) bool { return len(t.complex[idx]) > 0 }

// NumNodes returns the number of assigned indices, including the
// reserved LMLA_NONE slot.
func (t *Tree) NumNodes() int { return len(t.simple) }

// Lookahead returns the maximum log p(w|history) over idx's reachable
// PronId interval(s), given the LM in state src reached after
// consuming the path so far. Callers must never pass LMLA_NONE;
// LMLA_NONE means reuse the predecessor's value and Tree has no record
// to give back for it.
func (t *Tree) Lookahead(idx LmlaIdx, state lm.StateId, src Source) lm.Weight {
	if c := t.cache[idx]; c != nil {
		if w, ok := c.get(state); ok {
			t.CacheHits++
			return w
		}
	}
	t.CacheMisses++
	var w lm.Weight
	if t.IsComplex(idx) {
		w = lm.WEIGHT_LOG0
		for _, child := range t.complex[idx] {
			if cw := t.Lookahead(child, state, src); cw > w {
				w = cw
			}
		}
	} else {
		iv := t.simple[idx]
		w = intervalMax(src, state, iv.Lo, iv.Hi)
	}
	if c := t.cache[idx]; c != nil {
		c.put(state, w)
	}
	return w
}

// FastLookahead computes a coarser look-ahead by first backing the
// query state off by backOffLevels steps, then doing the normal
// interval-max walk from there. Used when the current beam is already
// worse than fast_lmla_beam, trading accuracy for a cheaper per-frame
// update.
func (t *Tree) FastLookahead(idx LmlaIdx, state lm.StateId, src Source, backOffLevels int) lm.Weight {
	s := state
	for i := 0; i < backOffLevels; i++ {
		next, _ := src.BackOff(s)
		if next == lm.STATE_NIL {
			break
		}
		s = next
	}
	return t.Lookahead(idx, s, src)
}

// lmlaLevel is one rung of the back-off chain: the successor array
// reachable at this history order, and the back-off weight accumulated
// to reach it from the query state.
type lmlaLevel struct {
	succ []PronWeight
	bow  lm.Weight
}

func backOffChain(src Source, state lm.StateId) []lmlaLevel {
	var levels []lmlaLevel
	s, bow := state, lm.Weight(0)
	for {
		levels = append(levels, lmlaLevel{succ: src.Successors(s), bow: bow})
		next, w := src.BackOff(s)
		if next == lm.STATE_NIL {
			break
		}
		bow += w
		s = next
	}
	return levels
}

// intervalMax is the general n-th order back-off walk: for every PronId
// in [lo, hi], find the highest-order level whose successor array
// mentions it, add that level's accumulated back-off weight, and keep
// the maximum over the interval. Each level's pointer only advances, so
// the whole walk is O(interval width + total successor count) rather
// than a binary search per PronId.
func intervalMax(src Source, state lm.StateId, lo, hi PronId) lm.Weight {
	switch {
	case lo > hi:
		return lm.WEIGHT_LOG0
	}
	levels := backOffChain(src, state)
	if len(levels) == 2 {
		return intervalMaxBigram(levels, lo, hi)
	}
	if len(levels) == 3 {
		return intervalMaxTrigram(levels, lo, hi)
	}
	ptrs := make([]int, len(levels))
	best := lm.WEIGHT_LOG0
	for p := lo; p <= hi; p++ {
		for i := range levels {
			succ := levels[i].succ
			for ptrs[i] < len(succ) && succ[ptrs[i]].Pron < p {
				ptrs[i]++
			}
			if ptrs[i] < len(succ) && succ[ptrs[i]].Pron == p {
				if total := levels[i].bow + succ[ptrs[i]].Weight; total > best {
					best = total
				}
				break
			}
		}
	}
	return best
}

// intervalMaxBigram elides the outer per-level loop for the common
// two-level (history, back-off-to-empty) case.
func intervalMaxBigram(levels []lmlaLevel, lo, hi PronId) lm.Weight {
	hi0, hi1 := levels[0].succ, levels[1].succ
	i0, i1 := 0, 0
	best := lm.WEIGHT_LOG0
	for p := lo; p <= hi; p++ {
		for i0 < len(hi0) && hi0[i0].Pron < p {
			i0++
		}
		if i0 < len(hi0) && hi0[i0].Pron == p {
			if total := levels[0].bow + hi0[i0].Weight; total > best {
				best = total
			}
			continue
		}
		for i1 < len(hi1) && hi1[i1].Pron < p {
			i1++
		}
		if i1 < len(hi1) && hi1[i1].Pron == p {
			if total := levels[1].bow + hi1[i1].Weight; total > best {
				best = total
			}
		}
	}
	return best
}

// intervalMaxTrigram is intervalMaxBigram's three-level counterpart.
func intervalMaxTrigram(levels []lmlaLevel, lo, hi PronId) lm.Weight {
	a, b, c := levels[0].succ, levels[1].succ, levels[2].succ
	ia, ib, ic := 0, 0, 0
	best := lm.WEIGHT_LOG0
	for p := lo; p <= hi; p++ {
		for ia < len(a) && a[ia].Pron < p {
			ia++
		}
		if ia < len(a) && a[ia].Pron == p {
			if total := levels[0].bow + a[ia].Weight; total > best {
				best = total
			}
			continue
		}
		for ib < len(b) && b[ib].Pron < p {
			ib++
		}
		if ib < len(b) && b[ib].Pron == p {
			if total := levels[1].bow + b[ib].Weight; total > best {
				best = total
			}
			continue
		}
		for ic < len(c) && c[ic].Pron < p {
			ic++
		}
		if ic < len(c) && c[ic].Pron == p {
			if total := levels[2].bow + c[ic].Weight; total > best {
				best = total
			}
		}
	}
	return best
}

package search

import (
	"sort"

	"github.com/kho/lvrec/lexnet"
	"github.com/kho/lvrec/lm"
)

// composite computes r's pruning score -- its path score plus the LM
// look-ahead bound for whatever word it might still complete -- and
// caches the look-ahead term in r.LmScore so later passes within the
// same frame (e.g. a second pruneTokenSets call) don't recompute it
// (spec §4.5).
func (d *Decoder) composite(node LexNode, ts TokenSet, r *RelToken) lm.Weight {
	idx := d.net.EntryLmla[node]
	r.LmScore = d.lookaheadScore(idx, r.LmState)
	return ts.Best + r.Delta + r.LmScore
}

// pruneAndAdvance is the per-frame beam pass (spec §4.5): compute
// this frame's global best composite score, narrow every active
// TokenSet to within RelBeamWidth of its own best and drop whole
// Model instances that fall outside BeamWidth of the global best,
// then if MaxModel caps the survivor count, tighten the main beam
// until the cap is met (HLVRec.c's "adaptive beam width" loop).
func (d *Decoder) pruneAndAdvance() {
	type active struct {
		node LexNode
		idx  InstanceIdx
		best lm.Weight
	}
	var actives []active
	globalBest := lm.WEIGHT_LOG0
	d.bestInst = NilInstance

	for node, idx := range d.activeAt {
		n := &d.net.Nodes[node]
		if n.Kind != lexnet.KindModel {
			continue
		}
		inst := d.inst(idx)
		instBest := lm.WEIGHT_LOG0
		for i := range inst.TS {
			ts := &inst.TS[i]
			if ts.empty() {
				continue
			}
			for j := range ts.Rel {
				if c := d.composite(node, *ts, &ts.Rel[j]); c > instBest {
					instBest = c
				}
			}
		}
		inst.Best = instBest
		if instBest > globalBest {
			globalBest = instBest
			d.bestInst = idx
		}
		actives = append(actives, active{node, idx, instBest})
	}

	if len(actives) == 0 {
		d.bestScore = globalBest
		d.curBeam = d.BeamWidth
		return
	}

	beam := d.BeamWidth
	if d.MaxModel > 0 && len(actives) > d.MaxModel {
		sort.Slice(actives, func(i, j int) bool { return actives[i].best > actives[j].best })
		cutoff := globalBest - actives[d.MaxModel-1].best
		if cutoff < beam {
			beam = cutoff
		}
	}

	cut := globalBest - beam
	for _, a := range actives {
		if a.best < cut {
			d.deactivate(a.node)
			continue
		}
		d.pruneTokenSets(a.idx)
	}

	d.bestScore = globalBest
	d.curBeam = beam
}

// pruneTokenSets narrows every TokenSet of the surviving instance at
// idx to the RelBeamWidth around its own best RelToken.
func (d *Decoder) pruneTokenSets(idx InstanceIdx) {
	inst := d.inst(idx)
	for i := range inst.TS {
		ts := &inst.TS[i]
		if ts.empty() {
			continue
		}
		localBest := lm.WEIGHT_LOG0
		for _, r := range ts.Rel {
			if c := r.Delta + r.LmScore; c > localBest {
				localBest = c
			}
		}
		kept := make([]RelToken, 0, len(ts.Rel))
		for _, r := range ts.Rel {
			if r.Delta+r.LmScore >= localBest-d.RelBeamWidth {
				kept = append(kept, r)
			}
		}
		ts.Rel = kept
		d.Stats.NumTokenSets++
		d.Stats.SumTokensPerSet += int64(len(ts.Rel))
	}
}


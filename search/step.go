package search

import (
	"github.com/kho/lvrec/hmm"
	"github.com/kho/lvrec/lexnet"
	"github.com/kho/lvrec/lm"
)

// ProcessFrame advances the search by one acoustic frame (spec §4.3):
// Phase A steps every active Model instance's internal HMM trellis
// using its carried-over entry token set plus its own previous-frame
// internal states; Phase B floods each Model's exit token set forward
// through the zero-cost Connector/WordEnd chains until it reaches
// another Model's entry (deposited for next frame's Phase A) or the
// network's End node. The network is cyclic at the macro level (a YZ
// connector can loop back into a layer-Z Model), but Phase B never
// recurses into a Model's own step, so the flood always terminates.
func (d *Decoder) ProcessFrame() {
	t := int(d.frame)
	d.Stats.NumFrames++

	type exitUpdate struct {
		node LexNode
		ts   TokenSet
	}
	var exits []exitUpdate

	for node, idx := range d.activeAt {
		n := &d.net.Nodes[node]
		if n.Kind != lexnet.KindModel {
			continue
		}
		inst := d.inst(idx)
		entry := inst.TS[0]
		inst.TS[0] = TokenSet{}

		hm := d.hmms.Hmm(n.Hmm)
		nStates := hm.NumStates
		cur := make([]TokenSet, nStates)
		acScale := lm.Weight(d.AcScale)

		for i := 1; i <= nStates-2; i++ {
			var merged TokenSet
			if w := hm.Trans[i][i]; w > hmm.LZERO {
				merged = d.mergeTokenSet(merged, addWeight(inst.TS[i], lm.Weight(w)))
			}
			for j := 0; j < i; j++ {
				w := hm.Trans[j][i]
				if w <= hmm.LZERO {
					continue
				}
				var src TokenSet
				if j == 0 {
					src = entry
				} else {
					src = cur[j]
				}
				merged = d.mergeTokenSet(merged, addWeight(src, lm.Weight(w)))
			}
			if merged.empty() {
				continue
			}
			ac := lm.Weight(d.scorer.Outp(t, hm.StateMap[i])) * acScale
			cur[i] = addWeight(merged, ac)
		}

		var exitTS TokenSet
		for j := 1; j <= nStates-2; j++ {
			w := hm.Trans[j][nStates-1]
			if w <= hmm.LZERO {
				continue
			}
			exitTS = d.mergeTokenSet(exitTS, addWeight(cur[j], lm.Weight(w)))
		}
		if w := hm.Trans[0][nStates-1]; w > hmm.LZERO {
			exitTS = d.mergeTokenSet(exitTS, addWeight(entry, lm.Weight(w)))
		}

		inst.TS = cur
		if !exitTS.empty() {
			exitTS.ID = d.nextTokSetID()
			exits = append(exits, exitUpdate{node, exitTS})
		}
	}

	for _, eu := range exits {
		n := &d.net.Nodes[eu.node]
		for _, s := range n.Succ {
			d.propagate(s, eu.ts)
		}
	}

	d.pruneAndAdvance()
	d.frame++
}

// addWeight returns ts with a constant added to its absolute score.
// Rel's per-token Delta offsets are unaffected since they are already
// relative to Best.
func addWeight(ts TokenSet, w lm.Weight) TokenSet {
	if ts.empty() {
		return ts
	}
	return TokenSet{Best: ts.Best + w, Rel: ts.Rel, ID: ts.ID}
}

// propagate walks ts forward from node through zero-cost
// Connector/WordEnd links, applying the LM at every WordEnd, until it
// reaches a Model entry (where it is merged and left for next frame)
// or net.End (where it updates the utterance's final hypothesis).
func (d *Decoder) propagate(node LexNode, ts TokenSet) {
	if ts.empty() {
		return
	}
	if d.TokSetSharing {
		if last, ok := d.propagated[node]; ok && last == ts.ID {
			return
		}
		d.propagated[node] = ts.ID
	}
	n := &d.net.Nodes[node]
	switch n.Kind {
	case lexnet.KindModel:
		d.activateModelEntry(node, ts)
	case lexnet.KindConnector:
		if n.Layer == lexnet.LayerSA {
			ts = d.applySAStep(ts)
		}
		// The ZS layer marks committing to a word end; apply the
		// dedicated zs beam here rather than waiting for the next
		// Model instance's own pruning pass (spec §4.5).
		if n.Layer == lexnet.LayerZS && d.ZsBeamWidth > 0 && ts.Best < d.bestScore-d.ZsBeamWidth {
			return
		}
		for _, s := range n.Succ {
			d.propagate(s, ts)
		}
	case lexnet.KindWordEnd:
		out := d.applyWordEnd(ts, node)
		if node == d.net.End {
			d.final = d.mergeTokenSet(d.final, out)
			return
		}
		for _, s := range n.Succ {
			d.propagate(s, out)
		}
	}
}

// applySAStep is spec §4.3's "Layer SA special step": for every token
// crossing an SA connector it publishes a copy of the token's
// WordEndHyp carrying the current frame and the token's current score,
// and returns ts (under a fresh ID) with each token's Path moved to its
// copy, so the word-end boundary seen by trace-back reflects the
// following silence rather than the WE node itself. The original hyps
// are left unchanged. Grounded on
// original_source/HTKLVRec/HLVNet.c's wordEndLayerId comment ("all
// tokens pass through SA directly before ... the first model of a new
// word. Update time and score in last weHyp of token in this layer").
func (d *Decoder) applySAStep(ts TokenSet) TokenSet {
	rel := make([]RelToken, len(ts.Rel))
	copy(rel, ts.Rel)
	for i := range rel {
		if rel[i].Path == NilWEHyp {
			continue
		}
		h := d.weHyps[rel[i].Path]
		h.Frame = d.frame
		h.Score = ts.Best + rel[i].Delta
		rel[i].Path = WEHypIdx(len(d.weHyps))
		d.weHyps = append(d.weHyps, h)
	}
	return TokenSet{Best: ts.Best, Rel: rel, ID: d.nextTokSetID()}
}

// Final returns the best complete-utterance hypothesis reached so far
// (spec §4.6's trace-back entry point) and whether any has been
// reached at all. Any Model instances still active at call time (the
// normal case for the winning path, which is rarely pruned before the
// last frame) are archived into the alignment log first.
func (d *Decoder) Final() (TokenSet, bool) {
	if d.ModelAlign {
		for node := range d.activeAt {
			if d.net.Nodes[node].Kind == lexnet.KindModel {
				d.deactivate(node)
			}
		}
	}
	return d.final, !d.final.empty()
}

// WEHyp dereferences a word-end hypothesis by index, for trace-back.
func (d *Decoder) WEHyp(idx WEHypIdx) WordEndHyp {
	return d.weHyps[idx]
}

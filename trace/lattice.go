package trace

import (
	"math"
	"sort"

	"github.com/kho/lvrec/lexnet"
	"github.com/kho/lvrec/lm"
	"github.com/kho/lvrec/lmla"
	"github.com/kho/lvrec/search"
)

// BuildLattice traverses every WordEndHyp reachable backward from
// d.Final()'s surviving RelTokens through prev/alt edges, creating one
// LatNode per unique (pron, frame) pair and one LatArc per (prev,
// current) edge, then applies cfg's density pruning. Grounded on
// spec.md §4.6's lattice traceback paragraph.
func BuildLattice(d *search.Decoder, net *lexnet.Net, cfg LatticeConfig) (*Lattice, bool) {
	final, ok := d.Final()
	if !ok {
		return nil, false
	}

	l := &Lattice{}
	nodeOf := make(map[nodeKey]LatNodeIdx)
	startKey := nodeKey{pron: sentinelPron, frame: 0}
	getNode := func(pron lmla.PronId, frame int32) LatNodeIdx {
		k := nodeKey{pron, frame}
		if idx, ok := nodeOf[k]; ok {
			return idx
		}
		idx := LatNodeIdx(len(l.Nodes))
		l.Nodes = append(l.Nodes, LatNode{Word: net.WordOfPron[pron], Pron: pron, Frame: frame})
		nodeOf[k] = idx
		return idx
	}
	// nodeFor resolves the lattice node a WEHypIdx corresponds to: its
	// own (pron, frame) if it is a real word, or the single dedicated
	// start node if it is the bootstrap root ResetUtterance seeds
	// (whose own Pron/Frame fields are arbitrary bookkeeping, not a
	// real word).
	nodeFor := func(hyp search.WEHypIdx) LatNodeIdx {
		h := d.WEHyp(hyp)
		if h.Prev == search.NilWEHyp {
			if idx, ok := nodeOf[startKey]; ok {
				return idx
			}
			idx := LatNodeIdx(len(l.Nodes))
			l.Nodes = append(l.Nodes, LatNode{Frame: h.Frame})
			nodeOf[startKey] = idx
			l.Start = idx
			return idx
		}
		return getNode(h.Pron, h.Frame)
	}

	visited := make(map[search.WEHypIdx]bool)
	var queue []search.WEHypIdx
	for _, r := range final.Rel {
		queue = append(queue, r.Path)
	}

	addArc := func(fromHyp, toHyp search.WEHypIdx, lmw lm.Weight, total lm.Weight) {
		toH := d.WEHyp(toHyp)
		to := nodeFor(toHyp)
		from := nodeFor(fromHyp)
		pronLw := lm.Weight(0)
		if pp := net.Nodes[wordEndNodeOf(net, toH.Pron)].PronProb; pp > 0 {
			pronLw = lm.Weight(math.Log(float64(pp))) * cfg.PronScale
		}
		ac := total - lmw*cfg.LmScale - pronLw - cfg.InsPen
		l.Arcs = append(l.Arcs, LatArc{From: from, To: to, Acoustic: ac, Lm: lmw, PronProb: pronLw, Total: total})
	}

	for len(queue) > 0 {
		idx := queue[0]
		queue = queue[1:]
		if idx == search.NilWEHyp || visited[idx] {
			continue
		}
		visited[idx] = true
		h := d.WEHyp(idx)
		if h.Prev == search.NilWEHyp {
			nodeFor(idx)
			continue
		}
		addArc(h.Prev, idx, h.Lm, h.Score)
		queue = append(queue, h.Prev)
		for _, alt := range h.Alt {
			addArc(alt.Prev, idx, alt.Lm, alt.Score)
			queue = append(queue, alt.Prev)
		}
	}

	for _, r := range final.Rel {
		l.Ends = append(l.Ends, nodeFor(r.Path))
	}

	if cfg.PruneBeam > 0 {
		prune(l, cfg.PruneBeam)
	}
	if cfg.PruneAPS > 0 {
		pruneDensity(l, cfg.PruneAPS)
	}
	return l, true
}

type nodeKey struct {
	pron  lmla.PronId
	frame int32
}

// sentinelPron keys the lattice's single start node, distinct from
// every real PronId (which runs 0..maxPronId, never this high).
const sentinelPron = lmla.PronId(math.MaxUint32)

// wordEndNodeOf finds the lexicon WordEnd node carrying pron's
// PronProb. PronId ranges are contiguous and monotonic by
// construction (lexnet/pronid.go), so a node's Pron field always
// matches at most one WordEnd node among net.Nodes; a linear scan here
// is fine since BuildLattice runs once per utterance, off the decode
// hot path.
func wordEndNodeOf(net *lexnet.Net, pron lmla.PronId) lexnet.LexNodeIdx {
	for i := range net.Nodes {
		n := &net.Nodes[i]
		if n.Kind == lexnet.KindWordEnd && n.Pron == pron {
			return lexnet.LexNodeIdx(i)
		}
	}
	return net.End
}

// prune drops any arc whose own Total lags the lattice's global best
// arc Total by more than beam.
func prune(l *Lattice, beam lm.Weight) {
	best := lm.Weight(math.Inf(-1))
	bestInto := make(map[LatNodeIdx]lm.Weight)
	for _, a := range l.Arcs {
		if a.Total > best {
			best = a.Total
		}
		if cur, ok := bestInto[a.To]; !ok || a.Total > cur {
			bestInto[a.To] = a.Total
		}
	}
	cutoff := best - beam
	kept := l.Arcs[:0]
	for _, a := range l.Arcs {
		if bestInto[a.To] >= cutoff && a.Total >= cutoff {
			kept = append(kept, a)
		}
	}
	l.Arcs = kept
}

// pruneDensity caps the lattice to roughly aps arcs per second (100
// frames/sec, HTK convention) by keeping only the best-scoring arcs
// network-wide up to that count.
func pruneDensity(l *Lattice, aps float64) {
	if len(l.Nodes) == 0 {
		return
	}
	maxFrame := int32(0)
	for _, n := range l.Nodes {
		if n.Frame > maxFrame {
			maxFrame = n.Frame
		}
	}
	seconds := float64(maxFrame) / 100.0
	if seconds <= 0 {
		return
	}
	arcCap := int(aps * seconds)
	if arcCap <= 0 || len(l.Arcs) <= arcCap {
		return
	}
	sort.Slice(l.Arcs, func(i, j int) bool { return l.Arcs[i].Total > l.Arcs[j].Total })
	l.Arcs = l.Arcs[:arcCap]
}

package search

import (
	"github.com/kho/lvrec/hmm"
	"github.com/kho/lvrec/lexnet"
	"github.com/kho/lvrec/lm"
	"github.com/kho/lvrec/lmla"
)

// Option configures a Decoder at construction. Grounded on spec §9's
// "macro-controlled build variants (MODALIGN, TSIDOPT)... expose as
// runtime feature flags at instance construction" design note.
type Option func(*Decoder)

// WithModelAlignment enables per-model trace-back (HLVRec.h's
// MODALIGN). Per spec §9's Open Question, the source disables
// TokenSet-id sharing whenever model alignment is on; this
// implementation follows that and turns sharing off automatically.
func WithModelAlignment() Option {
	return func(d *Decoder) {
		d.ModelAlign = true
		d.TokSetSharing = false
	}
}

// WithTokenSetSharing explicitly controls TokenSet-id sharing (spec
// §4.4). Ignored if WithModelAlignment is also given (model alignment
// wins, per the Open Question resolution above) regardless of option
// order.
func WithTokenSetSharing(enable bool) Option {
	return func(d *Decoder) {
		if !d.ModelAlign {
			d.TokSetSharing = enable
		}
	}
}

// Config bundles the tunables spec §6 lists as recognized
// configuration options.
type Config struct {
	NTok         int
	BeamWidth    lm.Weight
	RelBeamWidth lm.Weight
	WeBeamWidth  lm.Weight
	ZsBeamWidth  lm.Weight
	MaxModel     int
	InsPen       lm.Weight
	AcScale      float32
	PronScale    float32
	LmScale      float32
	FastLmlaBeam lm.Weight
}

// New creates a Decoder over a built lexicon network, HMM inventory,
// and LM source (BackOffSource or LatticeLM; spec §2's LM variants).
func New(net *lexnet.Net, hmms *hmm.Set, lmSrc lmla.Source, scorer hmm.Scorer, cfg Config, opts ...Option) *Decoder {
	d := &Decoder{
		net:           net,
		hmms:          hmms,
		lmSrc:         lmSrc,
		scorer:        scorer,
		NTok:          cfg.NTok,
		BeamWidth:     cfg.BeamWidth,
		RelBeamWidth:  cfg.RelBeamWidth,
		WeBeamWidth:   cfg.WeBeamWidth,
		ZsBeamWidth:   cfg.ZsBeamWidth,
		MaxModel:      cfg.MaxModel,
		InsPen:        cfg.InsPen,
		AcScale:       cfg.AcScale,
		PronScale:     cfg.PronScale,
		LmScale:       cfg.LmScale,
		FastLmlaBeam:  cfg.FastLmlaBeam,
		TokSetSharing: true,
	}
	for _, o := range opts {
		o(d)
	}
	d.ResetUtterance()
	return d
}

// ResetUtterance discards the per-utterance arena in O(1) (spec §5:
// "Arena allocation is amortized O(1)") and seeds the start node's
// instance with the initial token.
func (d *Decoder) ResetUtterance() {
	d.instances = d.instances[:0]
	d.activeAt = make(map[LexNode]InstanceIdx)
	d.weHyps = d.weHyps[:0]
	d.frame = 0
	d.propagated = make(map[LexNode]uint64)
	d.bestScore = lm.WEIGHT_LOG0
	d.bestInst = NilInstance
	d.curBeam = d.BeamWidth
	d.tokSetIDGen = 0
	d.final = TokenSet{}
	d.align = d.align[:0]
	d.Stats = Stats{}

	startHyp := d.publishWEHyp(NilWEHyp, 0, 0, 0, 0)
	start := TokenSet{
		Best: 0,
		Rel: []RelToken{{
			LmState: d.lmSrc_Start(),
			WeTag:   NilWEHyp,
			Delta:   0,
			LmScore: 0,
			Path:    startHyp,
		}},
		ID: d.nextTokSetID(),
	}
	d.activateModelEntry(d.net.Start, start)
}

// lmSrc_Start returns the LM's initial state. lmla.Source has no
// notion of "initial state" of its own (it is keyed purely by
// lm.StateId transitions); an n-gram model's start state is always
// _STATE_EMPTY-reachable via repeated BackOff, which for a freshly
// built model is state 0. Decoders driven by a lattice LM pass their
// own start node in through the same convention (lm.StateId(0) is the
// lattice's designated start node by construction in trace/latio.go).
func (d *Decoder) lmSrc_Start() lm.StateId { return lm.StateId(0) }

func (d *Decoder) nextTokSetID() uint64 {
	d.tokSetIDGen++
	return d.tokSetIDGen
}

// getOrCreateInstance returns node's active Instance, creating one
// (with a fresh all-empty TokenSet array sized for the node's kind) if
// it is not yet active.
func (d *Decoder) getOrCreateInstance(node LexNode) InstanceIdx {
	if idx, ok := d.activeAt[node]; ok {
		return idx
	}
	n := d.net.Nodes[node]
	nStates := 1
	if n.Kind == lexnet.KindModel {
		nStates = d.hmms.Hmm(n.Hmm).NumStates
	}
	idx := InstanceIdx(len(d.instances))
	d.instances = append(d.instances, Instance{
		Node:  node,
		TS:    make([]TokenSet, nStates),
		Best:  lm.WEIGHT_LOG0,
		Start: d.frame,
	})
	d.activeAt[node] = idx
	d.Stats.NumActivations++
	return idx
}

// deactivate drops node's instance. When ModelAlign is set and node is
// a Model, its completed lifetime is archived into d.align first.
func (d *Decoder) deactivate(node LexNode) {
	if d.ModelAlign {
		if idx, ok := d.activeAt[node]; ok {
			n := &d.net.Nodes[node]
			if n.Kind == lexnet.KindModel {
				inst := d.inst(idx)
				d.align = append(d.align, ModelAlignment{Node: node, Hmm: n.Hmm, Start: inst.Start, End: d.frame})
			}
		}
	}
	delete(d.activeAt, node)
	d.Stats.NumDeactivations++
}

// Alignment returns the per-model lifetimes recorded so far this
// utterance (only populated when WithModelAlignment is set).
func (d *Decoder) Alignment() []ModelAlignment { return d.align }

func (d *Decoder) inst(idx InstanceIdx) *Instance { return &d.instances[idx] }

// BestActive returns the current frame's best-scoring active instance
// and its score, or false if nothing is active (e.g. before the first
// ProcessFrame call).
func (d *Decoder) BestActive() (Instance, lm.Weight, bool) {
	if d.bestInst == NilInstance {
		return Instance{}, lm.WEIGHT_LOG0, false
	}
	return *d.inst(d.bestInst), d.bestScore, true
}

// activateModelEntry merges ts into node's entry slot (state 0 for a
// Model node, the sole slot for a Connector/WordEnd node).
func (d *Decoder) activateModelEntry(node LexNode, ts TokenSet) {
	idx := d.getOrCreateInstance(node)
	inst := d.inst(idx)
	merged := d.mergeTokenSet(inst.TS[0], ts)
	inst.TS[0] = merged
	if merged.Best > inst.Best {
		inst.Best = merged.Best
	}
}

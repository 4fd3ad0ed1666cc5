package search

import (
	"testing"

	"github.com/kho/lvrec/hmm"
	"github.com/kho/lvrec/lexnet"
	"github.com/kho/lvrec/lm"
	"github.com/kho/lvrec/lmla"
	"github.com/kho/word"
)

// oneWordSource is a minimal lmla.Source: state 0 (the LM's start
// state) transitions on PronId 0 to state 1 at zero cost, and state 1
// backs off to nothing further. Grounded on lmla.BackOffSource's
// contract, hand-written here rather than built from an lm.Model so
// the decoder test is isolated from the LM package.
type oneWordSource struct{}

func (oneWordSource) Successors(p lm.StateId) []lmla.PronWeight {
	if p == 0 {
		return []lmla.PronWeight{{Pron: 0, State: 1, Weight: 0}}
	}
	return nil
}

func (oneWordSource) BackOff(p lm.StateId) (lm.StateId, lm.Weight) {
	return lm.STATE_NIL, 0
}

// buildOneWordNet hand-builds the smallest possible network: a single
// Model node (the word "A", a 3-state HMM with one emitting state)
// whose exit feeds directly into its own WordEnd/End node. Net's
// fields are all exported so a test can construct one without going
// through lexnet.Build.
func buildOneWordNet(t *testing.T) (*lexnet.Net, *hmm.Set, word.Id) {
	t.Helper()
	words := word.NewVocab(nil)
	wA := words.IdOrAdd("A")

	hmms := hmm.NewSet()
	id := hmms.Add("A", hmm.Hmm{
		NumStates: 3,
		Trans: [][]hmm.LogFloat{
			{hmm.LZERO, 0, hmm.LZERO},
			{hmm.LZERO, -0.693, -0.693},
			{hmm.LZERO, hmm.LZERO, hmm.LZERO},
		},
		StateMap: []int{0, 0, 0},
	})

	net := &lexnet.Net{
		Nodes: []lexnet.LexNode{
			{Layer: lexnet.LayerA, Kind: lexnet.KindModel, Hmm: id, Succ: []lexnet.LexNodeIdx{1}, LmlaIdx: lmla.LMLA_NONE},
			{Layer: lexnet.LayerWE, Kind: lexnet.KindWordEnd, Pron: 0, Word: wA, PronProb: 1, LmlaIdx: lmla.LMLA_NONE},
		},
		Start:      0,
		End:        1,
		WordOfPron: []word.Id{wA},
		EntryLmla:  []lmla.LmlaIdx{lmla.LMLA_NONE, lmla.LMLA_NONE},
	}
	return net, hmms, wA
}

// twoWordSource chains two single-word transitions at zero LM cost:
// state 0 -> pron 0 -> state 1 -> pron 1 -> state 2.
type twoWordSource struct{}

func (twoWordSource) Successors(p lm.StateId) []lmla.PronWeight {
	switch p {
	case 0:
		return []lmla.PronWeight{{Pron: 0, State: 1, Weight: 0}}
	case 1:
		return []lmla.PronWeight{{Pron: 1, State: 2, Weight: 0}}
	}
	return nil
}

func (twoWordSource) BackOff(p lm.StateId) (lm.StateId, lm.Weight) {
	return lm.STATE_NIL, 0
}

// buildTwoWordNet hand-builds two single-model words chained through
// an SA connector, with an optional intervening "sp" Model node, to
// exercise the Layer SA special step (search/step.go's applySAStep):
// word1's published WordEndHyp should end up recording the time/score
// at which its token actually crosses the SA connector, one frame
// later than publication when an sp model sits between WE and SA.
func buildTwoWordNet(throughSp bool) (*lexnet.Net, *hmm.Set, word.Id, word.Id) {
	words := word.NewVocab(nil)
	w1 := words.IdOrAdd("W1")
	w2 := words.IdOrAdd("W2")

	shape := hmm.Hmm{
		NumStates: 3,
		Trans: [][]hmm.LogFloat{
			{hmm.LZERO, 0, hmm.LZERO},
			{hmm.LZERO, -0.693, -0.693},
			{hmm.LZERO, hmm.LZERO, hmm.LZERO},
		},
		StateMap: []int{0, 0, 0},
	}
	hmms := hmm.NewSet()
	id1 := hmms.Add("W1", shape)
	id2 := hmms.Add("W2", shape)

	var nodes []lexnet.LexNode
	alloc := func(n lexnet.LexNode) lexnet.LexNodeIdx {
		nodes = append(nodes, n)
		return lexnet.LexNodeIdx(len(nodes) - 1)
	}
	link := func(from, to lexnet.LexNodeIdx) {
		nodes[from].Succ = append(nodes[from].Succ, to)
	}

	m1 := alloc(lexnet.LexNode{Layer: lexnet.LayerA, Kind: lexnet.KindModel, Hmm: id1, LmlaIdx: lmla.LMLA_NONE})
	we1 := alloc(lexnet.LexNode{Layer: lexnet.LayerWE, Kind: lexnet.KindWordEnd, Pron: 0, Word: w1, PronProb: 1, LmlaIdx: lmla.LMLA_NONE})
	link(m1, we1)

	saSrc := we1
	if throughSp {
		spID := hmms.Add("SP", shape)
		sp := alloc(lexnet.LexNode{Layer: lexnet.LayerSIL, Kind: lexnet.KindModel, Hmm: spID, LmlaIdx: lmla.LMLA_NONE})
		link(we1, sp)
		saSrc = sp
	}

	sa := alloc(lexnet.LexNode{Layer: lexnet.LayerSA, Kind: lexnet.KindConnector, LmlaIdx: lmla.LMLA_NONE})
	link(saSrc, sa)

	m2 := alloc(lexnet.LexNode{Layer: lexnet.LayerA, Kind: lexnet.KindModel, Hmm: id2, LmlaIdx: lmla.LMLA_NONE})
	link(sa, m2)
	we2 := alloc(lexnet.LexNode{Layer: lexnet.LayerWE, Kind: lexnet.KindWordEnd, Pron: 1, Word: w2, PronProb: 1, LmlaIdx: lmla.LMLA_NONE})
	link(m2, we2)

	entryLmla := make([]lmla.LmlaIdx, len(nodes))
	for i := range entryLmla {
		entryLmla[i] = lmla.LMLA_NONE
	}
	net := &lexnet.Net{
		Nodes:      nodes,
		Start:      m1,
		End:        we2,
		WordOfPron: []word.Id{w1, w2},
		EntryLmla:  entryLmla,
	}
	return net, hmms, w1, w2
}

func TestApplySAStepUpdatesWordEndTime(t *testing.T) {
	run := func(throughSp bool) int32 {
		net, hmms, _, _ := buildTwoWordNet(throughSp)
		table := make([][]hmm.LogFloat, 10)
		for i := range table {
			table[i] = []hmm.LogFloat{-1}
		}
		scorer := &hmm.TableScorer{Table: table}
		d := New(net, hmms, twoWordSource{}, scorer, testConfig())

		var final TokenSet
		var ok bool
		for i := 0; i < len(table); i++ {
			d.ProcessFrame()
			if final, ok = d.Final(); ok {
				break
			}
		}
		if !ok {
			t.Fatal("expected the end node to be reached")
		}
		hyp2 := d.WEHyp(final.Rel[0].Path)
		hyp1 := d.WEHyp(hyp2.Prev)
		return hyp1.Frame
	}

	direct := run(false)
	throughSp := run(true)
	if throughSp != direct+1 {
		t.Fatalf("word1 WordEndHyp frame with an intervening sp Model = %d, want %d (direct-crossing frame %d, plus the sp model's one frame)", throughSp, direct+1, direct)
	}
}

func testConfig() Config {
	return Config{
		NTok:         4,
		BeamWidth:    1000,
		RelBeamWidth: 1000,
		WeBeamWidth:  1000,
		ZsBeamWidth:  1000,
		MaxModel:     100,
		InsPen:       0,
		AcScale:      1,
		PronScale:    1,
		LmScale:      1,
		FastLmlaBeam: -1000,
	}
}

func TestDecoderReachesEnd(t *testing.T) {
	net, hmms, wA := buildOneWordNet(t)
	scorer := &hmm.TableScorer{Table: [][]hmm.LogFloat{{-1}, {-1}, {-1}}}
	d := New(net, hmms, oneWordSource{}, scorer, testConfig())

	for i := 0; i < 3; i++ {
		d.ProcessFrame()
	}

	final, ok := d.Final()
	if !ok {
		t.Fatal("expected the end node to have been reached")
	}
	if len(final.Rel) == 0 {
		t.Fatal("final token set is empty")
	}
	best := final.Rel[0]
	hyp := d.WEHyp(best.Path)
	if hyp.Pron != 0 {
		t.Fatalf("final hyp pron = %d, want 0", hyp.Pron)
	}
	if net.WordOfPron[hyp.Pron] != wA {
		t.Fatalf("final hyp word = %v, want %v", net.WordOfPron[hyp.Pron], wA)
	}
	if hyp.Prev == NilWEHyp || d.WEHyp(hyp.Prev).Prev != NilWEHyp {
		t.Fatalf("final hyp prev = %v, want the bootstrap root hyp (single-word utterance)", hyp.Prev)
	}
}

func TestDecoderModelAlignmentDisablesSharing(t *testing.T) {
	net, hmms, _ := buildOneWordNet(t)
	scorer := &hmm.TableScorer{Table: [][]hmm.LogFloat{{-1}}}
	d := New(net, hmms, oneWordSource{}, scorer, testConfig(), WithTokenSetSharing(true), WithModelAlignment())
	if !d.ModelAlign {
		t.Fatal("ModelAlign should be set")
	}
	if d.TokSetSharing {
		t.Fatal("WithModelAlignment must force TokSetSharing off regardless of option order")
	}
}

func TestMergeTokenSetKeepsBestPerKey(t *testing.T) {
	d := &Decoder{NTok: 4}
	a := TokenSet{Best: -1, Rel: []RelToken{{LmState: 0, WeTag: NilWEHyp, Delta: 0}}}
	b := TokenSet{Best: -5, Rel: []RelToken{{LmState: 0, WeTag: NilWEHyp, Delta: 0}}}
	merged := d.mergeTokenSet(a, b)
	if len(merged.Rel) != 1 {
		t.Fatalf("expected the two same-key tokens to collapse to one, got %d", len(merged.Rel))
	}
	if merged.Best != -1 {
		t.Fatalf("merged.Best = %v, want -1 (the better of the two)", merged.Best)
	}
}

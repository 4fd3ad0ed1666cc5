package trace

import (
	"strings"
	"testing"

	"github.com/kho/lvrec/hmm"
	"github.com/kho/lvrec/lexnet"
	"github.com/kho/lvrec/lm"
	"github.com/kho/lvrec/lmla"
	"github.com/kho/lvrec/search"
	"github.com/kho/word"
)

// twoWordSource lets state 0 consume pron 0 ("A") into state 1, and
// state 1 consume pron 1 ("B") into state 2; no further back-off.
type twoWordSource struct{}

func (twoWordSource) Successors(p lm.StateId) []lmla.PronWeight {
	switch p {
	case 0:
		return []lmla.PronWeight{{Pron: 0, State: 1, Weight: 0}}
	case 1:
		return []lmla.PronWeight{{Pron: 1, State: 2, Weight: 0}}
	default:
		return nil
	}
}
func (twoWordSource) BackOff(lm.StateId) (lm.StateId, lm.Weight) { return lm.STATE_NIL, 0 }

// buildTwoWordNet chains two single-state-HMM words end to end: Model
// A -> WordEnd A -> Model B -> WordEnd B (= net.End).
func buildTwoWordNet(t *testing.T) (*lexnet.Net, *hmm.Set) {
	t.Helper()
	words := word.NewVocab(nil)
	wA, wB := words.IdOrAdd("A"), words.IdOrAdd("B")

	hmms := hmm.NewSet()
	mkHmm := func(label string) hmm.HmmId {
		return hmms.Add(label, hmm.Hmm{
			NumStates: 3,
			Trans: [][]hmm.LogFloat{
				{hmm.LZERO, 0, hmm.LZERO},
				{hmm.LZERO, -0.693, -0.693},
				{hmm.LZERO, hmm.LZERO, hmm.LZERO},
			},
			StateMap: []int{0, 0, 0},
		})
	}
	idA, idB := mkHmm("A"), mkHmm("B")

	net := &lexnet.Net{
		Nodes: []lexnet.LexNode{
			{Layer: lexnet.LayerA, Kind: lexnet.KindModel, Hmm: idA, Succ: []lexnet.LexNodeIdx{1}, LmlaIdx: lmla.LMLA_NONE},
			{Layer: lexnet.LayerWE, Kind: lexnet.KindWordEnd, Pron: 0, Word: wA, PronProb: 1, Succ: []lexnet.LexNodeIdx{2}, LmlaIdx: lmla.LMLA_NONE},
			{Layer: lexnet.LayerA, Kind: lexnet.KindModel, Hmm: idB, Succ: []lexnet.LexNodeIdx{3}, LmlaIdx: lmla.LMLA_NONE},
			{Layer: lexnet.LayerWE, Kind: lexnet.KindWordEnd, Pron: 1, Word: wB, PronProb: 1, LmlaIdx: lmla.LMLA_NONE},
		},
		Start:      0,
		End:        3,
		WordOfPron: []word.Id{wA, wB},
		EntryLmla:  []lmla.LmlaIdx{lmla.LMLA_NONE, lmla.LMLA_NONE, lmla.LMLA_NONE, lmla.LMLA_NONE},
	}
	return net, hmms
}

func testConfig() search.Config {
	return search.Config{
		NTok: 4, BeamWidth: 1000, RelBeamWidth: 1000, WeBeamWidth: 1000, ZsBeamWidth: 1000,
		MaxModel: 100, InsPen: 0, AcScale: 1, PronScale: 1, LmScale: 1, FastLmlaBeam: -1000,
	}
}

func TestBest1TwoWords(t *testing.T) {
	net, hmms := buildTwoWordNet(t)
	scorer := &hmm.TableScorer{Table: [][]hmm.LogFloat{{-1}, {-1}, {-1}, {-1}, {-1}, {-1}}}
	d := search.New(net, hmms, twoWordSource{}, scorer, testConfig())
	for i := 0; i < 6; i++ {
		d.ProcessFrame()
	}

	tr, ok := Best1FromFinal(d, net)
	if !ok {
		t.Fatal("expected a final hypothesis")
	}
	if len(tr.Words) != 2 {
		t.Fatalf("got %d words, want 2 (A then B)", len(tr.Words))
	}
	if tr.Words[0].Word != net.WordOfPron[0] || tr.Words[1].Word != net.WordOfPron[1] {
		t.Fatalf("word order wrong: %+v", tr.Words)
	}
	if tr.Words[0].End > tr.Words[1].Start {
		t.Fatalf("word A (end %d) should not outlast word B's start (%d)", tr.Words[0].End, tr.Words[1].Start)
	}
}

func TestBuildLatticeReachesEnd(t *testing.T) {
	net, hmms := buildTwoWordNet(t)
	scorer := &hmm.TableScorer{Table: [][]hmm.LogFloat{{-1}, {-1}, {-1}, {-1}, {-1}, {-1}}}
	d := search.New(net, hmms, twoWordSource{}, scorer, testConfig())
	for i := 0; i < 6; i++ {
		d.ProcessFrame()
	}

	lat, ok := BuildLattice(d, net, LatticeConfig{LmScale: 1, PronScale: 1, OutForm: "Avlr"})
	if !ok {
		t.Fatal("expected a lattice")
	}
	if len(lat.Nodes) < 3 {
		t.Fatalf("expected at least start + 2 word nodes, got %d", len(lat.Nodes))
	}
	if len(lat.Arcs) == 0 {
		t.Fatal("expected at least one arc")
	}
	for _, a := range lat.Arcs {
		if a.From == a.To {
			t.Fatalf("self-loop arc %+v", a)
		}
	}

	var sb strings.Builder
	vocab := word.NewVocab(nil)
	vocab.IdOrAdd("A")
	vocab.IdOrAdd("B")
	if err := WriteHTK(lat, &sb, vocab, LatticeConfig{OutForm: "Avlr"}); err != nil {
		t.Fatalf("WriteHTK: %v", err)
	}
	if !strings.Contains(sb.String(), "VERSION=1.1") {
		t.Fatalf("missing header in %q", sb.String())
	}
}

package lexnet

import (
	"testing"

	"github.com/kho/lvrec/dict"
	"github.com/kho/lvrec/hmm"
	"github.com/kho/lvrec/lmla"
)

func plainHmm() hmm.Hmm {
	z := hmm.LZERO
	return hmm.Hmm{
		NumStates: 3,
		Trans: [][]hmm.LogFloat{
			{z, z, z},
			{z, z, z},
			{z, z, z},
		},
		StateMap: []int{0, 1, 0},
	}
}

func teeHmm() hmm.Hmm {
	h := plainHmm()
	h.Trans[0][h.NumStates-1] = -1.0
	return h
}

// buildTestInputs returns a tiny dictionary (a two-phone word "AB", a
// one-phone word "A") and an HMM set carrying exactly the models and
// triphones that dictionary's network needs, wired the way
// buildLayerA/buildLayerZ derive them (spec.md §4.1 steps 2-3).
func buildTestInputs(t *testing.T, useSpSilDict bool) (*dict.Dict, *hmm.Set, Options) {
	t.Helper()
	d := dict.New()
	phA := dict.PhoneId(d.Phones.IdOrAdd("a"))
	phB := dict.PhoneId(d.Phones.IdOrAdd("b"))
	phSil := dict.PhoneId(d.Phones.IdOrAdd("sil"))
	phSp := dict.PhoneId(d.Phones.IdOrAdd("sp"))
	d.Add("AB", []string{"a", "b"}, 1.0)
	d.Add("A", []string{"a"}, 1.0)

	hmms := hmm.NewSet()
	hmms.Add("sil", plainHmm())
	spLabel := plainHmm()
	if useSpSilDict {
		spLabel = teeHmm()
	}
	hmms.Add("sp", spLabel)
	hmms.Add("!ENTER", plainHmm())
	hmms.Add("!EXIT", plainHmm())

	id := hmms.Add("sil-a+b", plainHmm())
	hmms.BindTriphone(phSil, phA, phB, id)
	id = hmms.Add("a-b+sp", plainHmm())
	hmms.BindTriphone(phA, phB, phSp, id)
	id = hmms.Add("a-b+sil", plainHmm())
	hmms.BindTriphone(phA, phB, phSil, id)

	opts := Options{
		StartWord:     "!ENTER",
		EndWord:       "!EXIT",
		UseSpSilDict:  useSpSilDict,
		SpLabel:       "sp",
		SilLabel:      "sil",
		LmlaCacheSize: 4,
	}
	return d, hmms, opts
}

func TestBuildProducesConsistentNetwork(t *testing.T) {
	d, hmms, opts := buildTestInputs(t, false)
	net, err := Build(d, hmms, opts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if net.Start == NilNode || net.End == NilNode {
		t.Fatal("Start/End not set")
	}
	if net.Tree == nil {
		t.Fatal("Tree not built")
	}
	// AB's own word end, A's three (one per SA(z,a) context, z in the
	// final-phone set {sil, b, a}), the start word and the end word:
	// six PronIds total.
	if len(net.WordOfPron) != 6 {
		t.Fatalf("WordOfPron length = %d, want 6", len(net.WordOfPron))
	}
	seen := make(map[lmla.PronId]bool)
	for _, n := range net.Nodes {
		if n.Kind == KindWordEnd {
			if seen[n.Pron] {
				t.Fatalf("duplicate PronId %d", n.Pron)
			}
			seen[n.Pron] = true
			if int(n.Pron) >= len(net.WordOfPron) {
				t.Fatalf("PronId %d out of range of WordOfPron", n.Pron)
			}
		}
	}
	if len(seen) != 6 {
		t.Fatalf("got %d distinct PronIds, want 6", len(seen))
	}

	var sawInherit, sawConcrete bool
	for _, n := range net.Nodes {
		if n.Kind == KindModel && len(n.Succ) == 1 {
			if n.LmlaIdx != lmla.LMLA_NONE {
				t.Fatalf("single-successor Model node got a concrete LmlaIdx %d, want inherited (NONE)", n.LmlaIdx)
			}
			sawInherit = true
		}
		if n.Kind == KindConnector && n.LmlaIdx != lmla.LMLA_NONE {
			sawConcrete = true
		}
	}
	if !sawInherit {
		t.Fatal("expected at least one single-successor Model node")
	}
	if !sawConcrete {
		t.Fatal("expected at least one connector with a concrete LmlaIdx")
	}
}

func TestBuildMissingModel(t *testing.T) {
	d, hmms, opts := buildTestInputs(t, false)
	opts.EndWord = "!NOSUCHWORD"
	if _, err := Build(d, hmms, opts); err == nil {
		t.Fatal("expected MissingModel error")
	} else if _, ok := err.(*MissingModel); !ok {
		t.Fatalf("got %T, want *MissingModel", err)
	}
}

func TestBuildBadSpModel(t *testing.T) {
	d, hmms, opts := buildTestInputs(t, true)
	if _, err := Build(d, hmms, opts); err == nil {
		t.Fatal("expected BadSpModel error")
	} else if _, ok := err.(*BadSpModel); !ok {
		t.Fatalf("got %T, want *BadSpModel", err)
	}
}

// preds returns every node whose Succ includes target.
func preds(net *Net, target LexNodeIdx) []LexNodeIdx {
	var out []LexNodeIdx
	for i, n := range net.Nodes {
		for _, s := range n.Succ {
			if s == target {
				out = append(out, LexNodeIdx(i))
				break
			}
		}
	}
	return out
}

// findSink locates buildStartEnd's null sink connector by walking back
// from net.End's WordEnd through the end word's Model node.
func findSink(t *testing.T, net *Net) LexNodeIdx {
	t.Helper()
	endModels := preds(net, net.End)
	if len(endModels) != 1 {
		t.Fatalf("end WordEnd has %d predecessors, want 1", len(endModels))
	}
	sinks := preds(net, endModels[0])
	if len(sinks) != 1 {
		t.Fatalf("end Model has %d predecessors, want 1", len(sinks))
	}
	return sinks[0]
}

// TestBuildStartEndSinkDirect covers spec.md §4.1 step 7's plain case:
// without an sp/sil dictionary, ZS connectors link straight to the
// sink with no intervening Model node.
func TestBuildStartEndSinkDirect(t *testing.T) {
	d, hmms, opts := buildTestInputs(t, false)
	net, err := Build(d, hmms, opts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	sink := findSink(t, net)
	for _, p := range preds(net, sink) {
		if net.Nodes[p].Kind != KindConnector {
			t.Fatalf("sink predecessor %d: Kind = %v, want KindConnector", p, net.Nodes[p].Kind)
		}
	}
}

// TestBuildStartEndSinkThroughSpSil covers spec.md §4.1 step 7's
// sp/sil-dictionary case: every ZS must reach the sink through an
// intervening sp or sil Model node, never directly.
func TestBuildStartEndSinkThroughSpSil(t *testing.T) {
	d := dict.New()
	phA := dict.PhoneId(d.Phones.IdOrAdd("a"))
	phB := dict.PhoneId(d.Phones.IdOrAdd("b"))
	phSil := dict.PhoneId(d.Phones.IdOrAdd("sil"))
	phSp := dict.PhoneId(d.Phones.IdOrAdd("sp"))
	d.Add("AB", []string{"a", "b"}, 1.0)
	d.Add("A", []string{"a"}, 1.0)

	hmms := hmm.NewSet()
	hmms.Add("sil", plainHmm())
	hmms.Add("sp", plainHmm())
	hmms.Add("!ENTER", plainHmm())
	hmms.Add("!EXIT", plainHmm())
	id := hmms.Add("sil-a+b", plainHmm())
	hmms.BindTriphone(phSil, phA, phB, id)
	id = hmms.Add("a-b+sp", plainHmm())
	hmms.BindTriphone(phA, phB, phSp, id)
	id = hmms.Add("a-b+sil", plainHmm())
	hmms.BindTriphone(phA, phB, phSil, id)

	opts := Options{
		StartWord:     "!ENTER",
		EndWord:       "!EXIT",
		UseSpSilDict:  true,
		SpLabel:       "sp",
		SilLabel:      "sil",
		LmlaCacheSize: 4,
	}
	net, err := Build(d, hmms, opts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	sink := findSink(t, net)
	sinkPreds := preds(net, sink)
	if len(sinkPreds) == 0 {
		t.Fatal("sink has no predecessors")
	}
	for _, p := range sinkPreds {
		n := net.Nodes[p]
		if n.Kind != KindModel {
			t.Fatalf("sink predecessor %d: Kind = %v, want KindModel (sp/sil)", p, n.Kind)
		}
		zsPreds := preds(net, p)
		if len(zsPreds) == 0 {
			t.Fatalf("sp/sil Model %d feeding sink has no ZS predecessor", p)
		}
		for _, zp := range zsPreds {
			if net.Nodes[zp].Kind != KindConnector {
				t.Fatalf("predecessor %d of sp/sil Model %d: Kind = %v, want KindConnector (ZS)", zp, p, net.Nodes[zp].Kind)
			}
		}
	}
}

package hmm

import (
	"math"
	"testing"

	"github.com/kho/lvrec/dict"
)

const floatTol = 1e-6

func TestLAddSymmetric(t *testing.T) {
	a, b := LogFloat(-2.0), LogFloat(-3.0)
	if math.Abs(float64(LAdd(a, b)-LAdd(b, a))) > floatTol {
		t.Errorf("LAdd not symmetric: LAdd(a,b)=%g LAdd(b,a)=%g", LAdd(a, b), LAdd(b, a))
	}
	want := math.Log(math.Exp(a) + math.Exp(b))
	if math.Abs(float64(LAdd(a, b))-want) > floatTol {
		t.Errorf("LAdd(%g,%g) = %g, want %g", a, b, LAdd(a, b), want)
	}
}

func TestLAddWithZero(t *testing.T) {
	if got := LAdd(LZERO, LZERO); got != LZERO {
		t.Errorf("LAdd(LZERO, LZERO) = %g, want LZERO", got)
	}
	a := LogFloat(-1.0)
	if got := LAdd(a, LZERO); math.Abs(float64(got-a)) > floatTol {
		t.Errorf("LAdd(x, LZERO) = %g, want %g", got, a)
	}
}

func TestLSubInverseOfLAdd(t *testing.T) {
	a, b := LogFloat(-1.0), LogFloat(-4.0)
	sum := LAdd(a, b)
	got := LSub(sum, b)
	if math.Abs(float64(got-a)) > floatTol {
		t.Errorf("LSub(LAdd(a,b), b) = %g, want %g", got, a)
	}
}

func TestLSubPanicsOnNegativeResult(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected LSub(x,y) with x<y to panic")
		}
	}()
	LSub(-5, -1)
}

func TestIsTee(t *testing.T) {
	noTee := Hmm{
		NumStates: 3,
		Trans: [][]LogFloat{
			{LZERO, 0, LZERO},
			{LZERO, -0.1, -2.3},
			{LZERO, LZERO, LZERO},
		},
	}
	if noTee.IsTee() {
		t.Error("expected no tee transition")
	}
	tee := noTee
	tee.Trans = [][]LogFloat{
		{LZERO, -1.0, -0.5},
		{LZERO, -0.1, -2.3},
		{LZERO, LZERO, LZERO},
	}
	if !tee.IsTee() {
		t.Error("expected a tee transition")
	}
}

func TestSetFindHmmAndTriphone(t *testing.T) {
	set := NewSet()
	silId := set.Add("sil", Hmm{NumStates: 3})
	abId := set.Add("ah-b+t", Hmm{NumStates: 5})
	set.BindTriphone(dict.PhoneId(1), dict.PhoneId(2), dict.PhoneId(3), abId)

	if id, ok := set.FindHmm("sil"); !ok || id != silId {
		t.Errorf("FindHmm(sil) = (%v, %v), want (%v, true)", id, ok, silId)
	}
	if _, ok := set.FindHmm("missing"); ok {
		t.Error("expected FindHmm(missing) to fail")
	}
	if id, ok := set.FindTriphone(1, 2, 3); !ok || id != abId {
		t.Errorf("FindTriphone = (%v, %v), want (%v, true)", id, ok, abId)
	}
	if _, ok := set.FindTriphone(9, 9, 9); ok {
		t.Error("expected unregistered triphone to miss")
	}
}

func TestTableScorer(t *testing.T) {
	s := &TableScorer{Table: [][]LogFloat{{-1, -2}, {-3, -4}}}
	if got := s.Outp(1, 0); got != -3 {
		t.Errorf("Outp(1,0) = %g, want -3", got)
	}
}

type fixedBlocks struct {
	blocks [][][]LogFloat
	starts []int
	next   int
}

func (f *fixedBlocks) NextBlock() ([][]LogFloat, int, bool) {
	if f.next >= len(f.blocks) {
		return nil, 0, false
	}
	b, first := f.blocks[f.next], f.starts[f.next]
	f.next++
	return b, first, true
}

func TestBlockScorerAdvancesBlocks(t *testing.T) {
	provider := &fixedBlocks{
		blocks: [][][]LogFloat{
			{{-1, -2}, {-3, -4}},
			{{-5, -6}},
		},
		starts: []int{0, 2},
	}
	s := NewBlockScorer(provider)
	if got := s.Outp(0, 0); got != -1 {
		t.Errorf("Outp(0,0) = %g, want -1", got)
	}
	if got := s.Outp(1, 1); got != -4 {
		t.Errorf("Outp(1,1) = %g, want -4", got)
	}
	if got := s.Outp(2, 0); got != -5 {
		t.Errorf("Outp(2,0) = %g, want -5 (should have pulled the next block)", got)
	}
	if got := s.Outp(3, 0); got != LZERO {
		t.Errorf("Outp(3,0) = %g, want LZERO (provider exhausted)", got)
	}
}

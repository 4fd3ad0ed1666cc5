package lm

import (
	"bytes"
	"testing"

	"github.com/kho/word"
)

// packedTol accounts for the 1/256-nat quantization step WritePackedHashed
// applies to every Weight; quite a bit looser than floatTol's exact-gob
// round trip.
const packedTol = 0.05

func TestPackedHashedRoundTrip(t *testing.T) {
	builder := readyBuilder(simpleTrigramLM)
	model := builder.DumpHashed(0)

	var buf bytes.Buffer
	if err := WritePackedHashed(model, &buf); err != nil {
		t.Fatalf("WritePackedHashed failed: %v", err)
	}

	packed, err := ParsePackedBinary(buf.Bytes())
	if err != nil {
		t.Fatalf("ParsePackedBinary failed: %v", err)
	}
	if packed.NumStates() != model.NumStates() {
		t.Fatalf("packed NumStates = %d, want %d", packed.NumStates(), model.NumStates())
	}

	for _, sent := range simpleTrigramSents {
		p, pp := model.Start(), packed.Start()
		var want, got Weight
		for _, x := range sent {
			var w, wp Weight
			if x.Word != "</s>" {
				p, w = model.NextS(p, x.Word)
				pp, wp = packed.NextS(pp, x.Word)
			} else {
				w = model.Final(p)
				wp = packed.Final(pp)
			}
			want += w
			got += wp
		}
		if d := float64(want - got); d > packedTol || d < -packedTol {
			t.Errorf("sentence %v: unpacked total %g, packed total %g (diff %g > tolerance %g)", sent, want, got, d, packedTol)
		}
	}
}

func TestWritePackedHashedRejectsOversizedWordId(t *testing.T) {
	builder := readyBuilder(simpleTrigramLM)
	model := builder.DumpHashed(0)
	// Force an out-of-range key into an arbitrary occupied bucket to
	// simulate a vocabulary too large for the 16-bit format.
	for i, bucket := range model.transitions {
		for j, e := range bucket {
			if e.Key != word.NIL {
				model.transitions[i][j].Key = word.Id(0xFFFF0000)
				var buf bytes.Buffer
				if err := WritePackedHashed(model, &buf); err == nil {
					t.Error("expected an error for an oversized word id")
				}
				return
			}
		}
	}
	t.Skip("no occupied (non-NIL) key found to corrupt")
}

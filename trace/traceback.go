package trace

import (
	"github.com/kho/lvrec/lexnet"
	"github.com/kho/lvrec/search"
)

// Best1 walks the winning WordEndHyp's prev chain back to the
// bootstrap root hyp search.ResetUtterance seeds (search.NilWEHyp
// stops the walk), collecting one WordSpan per real word and
// returning them in chronological order. Grounded on spec.md §4.6's
// "walk prev back to the start hyp" and original_source/HTKLVRec's
// WordendHyp.prev chain.
func Best1(d *search.Decoder, net *lexnet.Net, hyp search.WEHypIdx) Transcription {
	var words []WordSpan
	cur := hyp
	for cur != search.NilWEHyp {
		h := d.WEHyp(cur)
		if h.Prev == search.NilWEHyp {
			break
		}
		prev := d.WEHyp(h.Prev)
		words = append(words, WordSpan{
			Word:  net.WordOfPron[h.Pron],
			Pron:  h.Pron,
			Start: prev.Frame,
			End:   h.Frame,
			Score: h.Score,
			Lm:    h.Lm,
		})
		cur = h.Prev
	}
	for i, j := 0, len(words)-1; i < j; i, j = i+1, j-1 {
		words[i], words[j] = words[j], words[i]
	}
	return Transcription{Words: words}
}

// Best1FromFinal picks the best-scoring surviving RelToken out of
// d.Final()'s TokenSet and traces back from its Path.
func Best1FromFinal(d *search.Decoder, net *lexnet.Net) (Transcription, bool) {
	final, ok := d.Final()
	if !ok {
		return Transcription{}, false
	}
	best := final.Rel[0]
	for _, r := range final.Rel[1:] {
		if r.Delta > best.Delta {
			best = r
		}
	}
	return Best1(d, net, best.Path), true
}

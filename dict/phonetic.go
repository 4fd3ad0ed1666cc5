package dict

// SuggestSpelling is a non-fatal OOV diagnostic: when a word the
// decoder's LM look-up misses might be a misspelling or mistranscribed
// form of a known dictionary entry, this admits a candidate whose
// Double Metaphone code matches the OOV's or whose Jaro-Winkler
// similarity reaches a threshold, and ranks the admitted candidates by
// Jaro-Winkler similarity alone.
// Nothing on the decode path calls it.

import (
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

const defaultSuggestThreshold = 0.70

// SuggestSpelling returns known dictionary words phonetically or
// orthographically close to oov, most-similar first, capped at max
// results. An empty result means no known word matched phonetically or
// passed the similarity threshold.
func (d *Dict) SuggestSpelling(oov string, max int) []string {
	return suggest(oov, d.words(), max, defaultSuggestThreshold)
}

func (d *Dict) words() []string {
	out := make([]string, 0, len(d.prons))
	for id := range d.prons {
		out = append(out, d.Words.StringOf(id))
	}
	return out
}

func suggest(oov string, candidates []string, max int, threshold float64) []string {
	oovLower := strings.ToLower(oov)
	oovP, oovS := matchr.DoubleMetaphone(oovLower)

	type scored struct {
		word  string
		score float64
	}
	var ranked []scored
	for _, c := range candidates {
		cLower := strings.ToLower(c)
		if cLower == oovLower {
			continue
		}
		cP, cS := matchr.DoubleMetaphone(cLower)
		phonetic := (oovP != "" && (oovP == cP || oovP == cS)) ||
			(oovS != "" && (oovS == cP || oovS == cS))
		score := matchr.JaroWinkler(oovLower, cLower, false)
		if phonetic || score >= threshold {
			ranked = append(ranked, scored{c, score})
		}
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if max > 0 && len(ranked) > max {
		ranked = ranked[:max]
	}
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.word
	}
	return out
}

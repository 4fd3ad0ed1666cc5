// Package dict holds the pronunciation dictionary: a map from words to
// one or more phone-sequence pronunciations, with optional
// pronunciation probabilities and sp/sil variant expansion for
// cross-word network construction.
package dict

import "github.com/kho/word"

// PhoneId is a symbol from the HMM inventory, interned the same way lm
// interns LM words.
type PhoneId word.Id

// Pronunciation is one phone sequence for a word, with its (optional)
// pronunciation probability.
type Pronunciation struct {
	Phones []PhoneId
	Prob   float64 // 1 if the source dictionary carries no probabilities
}

// Dict maps words to their pronunciations. Words and phones are
// interned through separate vocabularies so comparisons on either stay
// cheap integer compares, the way lm.Hashed interns LM words.
type Dict struct {
	Words  *word.Vocab
	Phones *word.Vocab
	prons  map[word.Id][]Pronunciation
}

func New() *Dict {
	return &Dict{
		Words:  word.NewVocab(nil),
		Phones: word.NewVocab(nil),
		prons:  make(map[word.Id][]Pronunciation),
	}
}

// Add registers one pronunciation of w as a sequence of phone labels.
func (d *Dict) Add(w string, phones []string, prob float64) {
	id := d.Words.IdOrAdd(w)
	ph := make([]PhoneId, len(phones))
	for i, p := range phones {
		ph[i] = PhoneId(d.Phones.IdOrAdd(p))
	}
	d.prons[id] = append(d.prons[id], Pronunciation{Phones: ph, Prob: prob})
}

// Pronunciations returns w's pronunciations in the order they were
// added. ok is false if w was never added to the dictionary.
func (d *Dict) Pronunciations(w string) (prons []Pronunciation, ok bool) {
	id := d.Words.IdOf(w)
	if id == word.NIL {
		return nil, false
	}
	prons, ok = d.prons[id]
	return
}

// PronunciationsById is Pronunciations keyed by an already-interned
// word.Id, for callers (the lexicon network builder) that have already
// resolved the word.
func (d *Dict) PronunciationsById(id word.Id) (prons []Pronunciation, ok bool) {
	prons, ok = d.prons[id]
	return
}

// Each calls fn once per dictionary word with its interned id and
// pronunciations, in unspecified order. Used by the lexicon network
// builder's phone-set scan (spec.md §4.1 step 1), which needs every
// word's pronunciations rather than one looked up by name.
func (d *Dict) Each(fn func(id word.Id, prons []Pronunciation)) {
	for id, prons := range d.prons {
		fn(id, prons)
	}
}

// NumWords returns the number of distinct words carrying at least one
// pronunciation.
func (d *Dict) NumWords() int { return len(d.prons) }

// ExpandSpSil implements the alternative dictionary form spec.md §3
// describes: "explicit -/short-pause/silence variants carrying
// pronunciation probabilities". For every existing pronunciation it
// adds two more ending in the given short-pause and silence phone
// labels, each inheriting the base pronunciation's probability, so a
// word's three trailing-silence variants are all reachable for
// cross-word network expansion (§4.1's use_sp_sil_dict path). Must be
// called exactly once, after all base pronunciations are added.
func (d *Dict) ExpandSpSil(spPhone, silPhone string) {
	sp := PhoneId(d.Phones.IdOrAdd(spPhone))
	sil := PhoneId(d.Phones.IdOrAdd(silPhone))
	for id, base := range d.prons {
		extra := make([]Pronunciation, 0, len(base)*2)
		for _, p := range base {
			extra = append(extra,
				Pronunciation{Phones: withTrailing(p.Phones, sp), Prob: p.Prob},
				Pronunciation{Phones: withTrailing(p.Phones, sil), Prob: p.Prob})
		}
		d.prons[id] = append(base, extra...)
	}
}

func withTrailing(phones []PhoneId, last PhoneId) []PhoneId {
	out := make([]PhoneId, len(phones)+1)
	copy(out, phones)
	out[len(phones)] = last
	return out
}

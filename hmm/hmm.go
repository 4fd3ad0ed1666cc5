// Package hmm holds the physical HMM inventory the lexicon network
// builder queries by label or triphone context, and the narrow Scorer
// interface the search consumes for per-frame, per-state
// log-likelihoods. Acoustic model training and the ANN forward pass
// itself are out of scope; this package only represents what the
// search needs to propagate tokens through an HMM's state trellis.
package hmm

import "github.com/kho/lvrec/dict"

// HmmId identifies one physical HMM (tied models share an HmmId).
type HmmId uint32

// Hmm is an N-state HMM: a transition-probability table on a log
// scale, including the non-emitting entry and exit states and the
// tee-probability a[1,N] transition straight from entry to exit.
type Hmm struct {
	NumStates int
	// Trans[i][j] is log a[i][j] (0-indexed: 0 is entry, NumStates-1
	// is exit); LZERO where no transition exists.
	Trans [][]LogFloat
	// StateMap[i] is the output-distribution id the Scorer indexes by
	// for internal state i (1..NumStates-2). Index 0 and NumStates-1
	// are non-emitting and carry no entry.
	StateMap []int
}

// IsTee reports whether this HMM has a direct entry-to-exit
// transition, the condition BadSpModel rejects for an sp HMM used
// under a sp/sil dictionary (spec.md §4.1 step 4).
func (h *Hmm) IsTee() bool {
	return h.Trans[0][h.NumStates-1] > LZERO
}

// TriphoneKey is a context-dependent phone identity: left context,
// center phone, right context.
type TriphoneKey struct {
	Left, Center, Right dict.PhoneId
}

// Set is the physical HMM inventory: labelled monophone/sp/sil models
// plus the triphone lookup the network builder consumes.
type Set struct {
	Hmms       []Hmm
	byLabel    map[string]HmmId
	byTriphone map[TriphoneKey]HmmId
}

func NewSet() *Set {
	return &Set{
		byLabel:    make(map[string]HmmId),
		byTriphone: make(map[TriphoneKey]HmmId),
	}
}

// Add registers h under label (e.g. "sil", "sp", or a monophone used
// as its own triphone-free context) and returns its HmmId.
func (s *Set) Add(label string, h Hmm) HmmId {
	id := HmmId(len(s.Hmms))
	s.Hmms = append(s.Hmms, h)
	s.byLabel[label] = id
	return id
}

// BindTriphone associates the (lc, c, rc) context-dependent phone with
// an already-added HmmId.
func (s *Set) BindTriphone(lc, c, rc dict.PhoneId, id HmmId) {
	s.byTriphone[TriphoneKey{lc, c, rc}] = id
}

// FindHmm is find_hmm(label) from spec.md §4.1's contract.
func (s *Set) FindHmm(label string) (HmmId, bool) {
	id, ok := s.byLabel[label]
	return id, ok
}

// FindTriphone is find_triphone(lc, c, rc) from spec.md §4.1's
// contract.
func (s *Set) FindTriphone(lc, c, rc dict.PhoneId) (HmmId, bool) {
	id, ok := s.byTriphone[TriphoneKey{lc, c, rc}]
	return id, ok
}

// Hmm dereferences an HmmId.
func (s *Set) Hmm(id HmmId) *Hmm { return &s.Hmms[id] }

// NumHmms returns the number of distinct physical HMMs registered.
func (s *Set) NumHmms() int { return len(s.Hmms) }

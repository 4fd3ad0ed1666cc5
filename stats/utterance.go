package stats

// UtteranceID is a random per-utterance identifier, grounded on the
// google/uuid usage shared by _examples/MrWong99-glyphoxa,
// _examples/dbehnke-allstar-nexus, and _examples/dekarrin-tunaq. No
// other package in this module generates or records one.

import "github.com/google/uuid"

// UtteranceID uniquely identifies one decoded utterance within a run.
type UtteranceID string

// NewUtteranceID generates a fresh random UtteranceID.
func NewUtteranceID() UtteranceID {
	return UtteranceID(uuid.NewString())
}

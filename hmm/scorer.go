package hmm

// Scorer is the decoder's only acoustic contract: outp(t, stateId) ->
// logfloat with t monotonically non-decreasing across a call sequence.
// Whether the underlying evaluator is a GMM or an ANN forward pass is
// invisible past this interface.
type Scorer interface {
	Outp(t, stateId int) LogFloat
}

// TableScorer serves Outp from a precomputed dense [frame][state]
// log-likelihood table, the simplest case where a whole utterance's
// acoustic scores already fit in memory.
type TableScorer struct {
	Table [][]LogFloat
}

func (s *TableScorer) Outp(t, stateId int) LogFloat {
	return s.Table[t][stateId]
}

// BlockProvider supplies one block of frames' worth of per-state
// log-likelihoods on demand -- the shape an ANN forward pass naturally
// takes when it batches several frames per call instead of emitting
// one frame at a time.
type BlockProvider interface {
	// NextBlock returns the log-likelihood table for frames
	// [firstFrame, firstFrame+len(block)) and advances the provider's
	// internal cursor. ok is false once the utterance is exhausted.
	NextBlock() (block [][]LogFloat, firstFrame int, ok bool)
}

// BlockScorer adapts a BlockProvider into a Scorer, holding the most
// recently fetched block and pulling the next one as frame queries run
// past its end. This is the "advance the acoustic scorer if it batches
// frames" step of the per-frame processing loop (spec.md §4.3 step 1):
// the decoder just calls Outp and BlockScorer hides the batching.
type BlockScorer struct {
	provider   BlockProvider
	block      [][]LogFloat
	firstFrame int
}

func NewBlockScorer(p BlockProvider) *BlockScorer {
	return &BlockScorer{provider: p}
}

func (s *BlockScorer) Outp(t, stateId int) LogFloat {
	for s.block == nil || t-s.firstFrame >= len(s.block) {
		block, first, ok := s.provider.NextBlock()
		if !ok {
			return LZERO
		}
		s.block, s.firstFrame = block, first
	}
	return s.block[t-s.firstFrame][stateId]
}

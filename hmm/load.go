package hmm

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kho/easy"
	"github.com/kho/lvrec/dict"
	"github.com/kho/word"
)

// Load reads a physical HMM inventory in a line format mirroring
// dict.Load's: one block per HMM, followed by zero or more triphone
// bindings against it.
//
//	hmm LABEL NUMSTATES
//	trans I J LOGPROB
//	...
//	statemap I STATEID
//	...
//	end
//	triphone LC C RC LABEL
//
// NUMSTATES counts entry and exit as states 0 and NUMSTATES-1. Any
// (I,J) transition not given defaults to LZERO; any state I not given
// a statemap entry stays non-emitting (0). A "triphone" line binds a
// context-dependent phone -- LC or RC may be "-" for a word-boundary
// context -- to an already-defined label, interning phone labels into
// phones the same way dict interns its own. Blank lines and lines
// starting with "#" are skipped.
func Load(r io.Reader, phones *word.Vocab, s *Set) error {
	in := bufio.NewScanner(r)
	lineNo := 0
	var cur *Hmm
	var label string

	for in.Scan() {
		lineNo++
		line := strings.TrimSpace(in.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "hmm":
			if cur != nil {
				return fmt.Errorf("hmm line %d: nested hmm block (missing end for %q)", lineNo, label)
			}
			if len(fields) != 3 {
				return fmt.Errorf("hmm line %d: expected hmm LABEL NUMSTATES", lineNo)
			}
			n, err := strconv.Atoi(fields[2])
			if err != nil || n < 2 {
				return fmt.Errorf("hmm line %d: bad NUMSTATES %q", lineNo, fields[2])
			}
			label = fields[1]
			trans := make([][]LogFloat, n)
			for i := range trans {
				trans[i] = make([]LogFloat, n)
				for j := range trans[i] {
					trans[i][j] = LZERO
				}
			}
			cur = &Hmm{NumStates: n, Trans: trans, StateMap: make([]int, n)}
		case "trans":
			if cur == nil {
				return fmt.Errorf("hmm line %d: trans outside hmm block", lineNo)
			}
			if len(fields) != 4 {
				return fmt.Errorf("hmm line %d: expected trans I J LOGPROB", lineNo)
			}
			i, erri := strconv.Atoi(fields[1])
			j, errj := strconv.Atoi(fields[2])
			p, errp := strconv.ParseFloat(fields[3], 64)
			if erri != nil || errj != nil || errp != nil || i < 0 || i >= cur.NumStates || j < 0 || j >= cur.NumStates {
				return fmt.Errorf("hmm line %d: malformed trans entry", lineNo)
			}
			cur.Trans[i][j] = LogFloat(p)
		case "statemap":
			if cur == nil {
				return fmt.Errorf("hmm line %d: statemap outside hmm block", lineNo)
			}
			if len(fields) != 3 {
				return fmt.Errorf("hmm line %d: expected statemap I STATEID", lineNo)
			}
			i, erri := strconv.Atoi(fields[1])
			id, errid := strconv.Atoi(fields[2])
			if erri != nil || errid != nil || i < 0 || i >= cur.NumStates {
				return fmt.Errorf("hmm line %d: malformed statemap entry", lineNo)
			}
			cur.StateMap[i] = id
		case "end":
			if cur == nil {
				return fmt.Errorf("hmm line %d: end without hmm", lineNo)
			}
			s.Add(label, *cur)
			cur = nil
		case "triphone":
			if cur != nil {
				return fmt.Errorf("hmm line %d: triphone inside open hmm block", lineNo)
			}
			if len(fields) != 5 {
				return fmt.Errorf("hmm line %d: expected triphone LC C RC LABEL", lineNo)
			}
			id, ok := s.FindHmm(fields[4])
			if !ok {
				return fmt.Errorf("hmm line %d: triphone refers to undefined label %q", lineNo, fields[4])
			}
			lc := phonePosition(phones, fields[1])
			c := dict.PhoneId(phones.IdOrAdd(fields[2]))
			rc := phonePosition(phones, fields[3])
			s.BindTriphone(lc, c, rc, id)
		default:
			return fmt.Errorf("hmm line %d: unrecognized keyword %q", lineNo, fields[0])
		}
	}
	if cur != nil {
		return fmt.Errorf("hmm: unterminated block for %q (missing end)", label)
	}
	return in.Err()
}

// phonePosition interns a triphone context position, mapping the
// word-boundary placeholder "-" to the zero PhoneId rather than
// adding it as a real phone.
func phonePosition(phones *word.Vocab, label string) dict.PhoneId {
	if label == "-" {
		return dict.PhoneId(word.NIL)
	}
	return dict.PhoneId(phones.IdOrAdd(label))
}

// LoadFile is Load reading from path (gzip-transparent, per
// github.com/kho/easy.Open).
func LoadFile(path string, phones *word.Vocab, s *Set) error {
	f, err := easy.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return Load(f, phones, s)
}

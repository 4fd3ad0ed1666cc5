package hmm

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kho/easy"
)

// LoadScoreTable reads a precomputed per-frame, per-state log-
// likelihood table -- the externally-supplied acoustic scores
// spec.md §2 treats as a pure function outp(t,s), here materialized
// as a flat text matrix instead of coming from a live GMM/ANN
// evaluator -- for feeding a TableScorer directly.
//
//	T S
//	f0s0 f0s1 ... f0s(S-1)
//	...
//	f(T-1)s0 ... f(T-1)s(S-1)
//
// T is the number of frames, S the number of state ids. Blank lines
// and lines starting with "#" are skipped, before the header and
// between rows alike.
func LoadScoreTable(r io.Reader) ([][]LogFloat, error) {
	in := bufio.NewScanner(r)
	in.Buffer(make([]byte, 64*1024), 1<<20)
	lineNo := 0

	var numFrames, numStates int
	for in.Scan() {
		lineNo++
		line := strings.TrimSpace(in.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("score table line %d: expected \"T S\" header", lineNo)
		}
		var err error
		if numFrames, err = strconv.Atoi(fields[0]); err != nil {
			return nil, fmt.Errorf("score table line %d: bad frame count: %v", lineNo, err)
		}
		if numStates, err = strconv.Atoi(fields[1]); err != nil {
			return nil, fmt.Errorf("score table line %d: bad state count: %v", lineNo, err)
		}
		break
	}
	if numFrames == 0 {
		return nil, fmt.Errorf("score table: missing \"T S\" header")
	}

	table := make([][]LogFloat, 0, numFrames)
	for in.Scan() {
		lineNo++
		line := strings.TrimSpace(in.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != numStates {
			return nil, fmt.Errorf("score table line %d: expected %d scores, got %d", lineNo, numStates, len(fields))
		}
		row := make([]LogFloat, numStates)
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("score table line %d: bad score %q: %v", lineNo, f, err)
			}
			row[i] = LogFloat(v)
		}
		table = append(table, row)
		if len(table) == numFrames {
			break
		}
	}
	if err := in.Err(); err != nil {
		return nil, err
	}
	if len(table) != numFrames {
		return nil, fmt.Errorf("score table: header declared %d frames, found %d", numFrames, len(table))
	}
	return table, nil
}

// LoadScoreTableFile is LoadScoreTable reading from path (gzip-
// transparent, per github.com/kho/easy.Open).
func LoadScoreTableFile(path string) ([][]LogFloat, error) {
	f, err := easy.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadScoreTable(f)
}

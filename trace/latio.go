package trace

// HTK lattice dialect text I/O. Writing follows lm/basic.go's
// Graphviz-style plain fmt.Fprintf writer; parsing follows
// lm/arpa.go's line-oriented iteratee-combinator style against
// github.com/kho/stream (original_source has no lattice I/O
// translation unit to ground the exact grammar against, so the field
// set itself comes straight from spec.md §6's lat_out_form list).

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kho/lvrec/lm"
	"github.com/kho/lvrec/lmla"
	"github.com/kho/stream"
	"github.com/kho/word"
)

// WriteHTK writes l in the HTK SLF text dialect, including only the
// fields cfg.OutForm names. vocab resolves word.Id to its label.
func WriteHTK(l *Lattice, w io.Writer, vocab *word.Vocab, cfg LatticeConfig) error {
	has := func(c byte) bool { return strings.IndexByte(cfg.OutForm, c) >= 0 }

	if _, err := fmt.Fprintf(w, "VERSION=1.1\nN=%d L=%d\n", len(l.Nodes), len(l.Arcs)); err != nil {
		return err
	}
	for i, n := range l.Nodes {
		if _, err := fmt.Fprintf(w, "I=%d", i); err != nil {
			return err
		}
		if has('t') {
			if _, err := fmt.Fprintf(w, " t=%.2f", float64(n.Frame)/100.0); err != nil {
				return err
			}
		}
		if i != int(l.Start) {
			label := vocab.StringOf(n.Word)
			if has('A') {
				if _, err := fmt.Fprintf(w, " W=%s", label); err != nil {
					return err
				}
			}
			if has('v') {
				if _, err := fmt.Fprintf(w, " v=%d", n.Pron); err != nil {
					return err
				}
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	for i, a := range l.Arcs {
		if _, err := fmt.Fprintf(w, "J=%d S=%d E=%d", i, a.From, a.To); err != nil {
			return err
		}
		if has('a') {
			if _, err := fmt.Fprintf(w, " a=%.4f", a.Acoustic); err != nil {
				return err
			}
		}
		if has('l') {
			if _, err := fmt.Fprintf(w, " l=%.4f", a.Lm); err != nil {
				return err
			}
		}
		if has('r') {
			if _, err := fmt.Fprintf(w, " r=%.4f", a.PronProb); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}

// ParseHTK reads an HTK SLF text lattice and builds an
// lmla.LatticeLM usable as a lattice-rescoring lmla.Source (spec.md
// §2's lattice LM variant). Node 0 becomes lmla.LatticeNode(0), the
// source's conventional start state; W=/v= fields resolve to PronIds
// via wordToPron (built by the caller from the same dictionary/network
// used to generate the lattice).
func ParseHTK(r io.Reader, vocab *word.Vocab, wordToPron map[word.Id][]lmla.PronId) (*lmla.LatticeLM, error) {
	p := &htkParser{vocab: vocab, wordToPron: wordToPron}
	if err := stream.Run(stream.EnumRead(r, htkLineSplit), htkTop{p}); err != nil {
		return nil, err
	}
	lat := lmla.NewLatticeLM(p.numNodes)
	for _, a := range p.arcs {
		lat.AddArc(lmla.LatticeNode(a.from), lmla.LatticeArc{Pron: a.pron, Dest: lmla.LatticeNode(a.to), Weight: a.weight})
	}
	lat.Finalize()
	return lat, nil
}

type htkArcEntry struct {
	from, to int
	pron     lmla.PronId
	weight   lm.Weight
}

type htkParser struct {
	vocab      *word.Vocab
	wordToPron map[word.Id][]lmla.PronId
	numNodes   int
	nodeWord   []word.Id
	arcs       []htkArcEntry
}

// htkTop is the top-level iteratee: header line, then N node/arc
// records until EOF. Mirrors lm/arpa.go's arpaTop/ngramSection shape.
type htkTop struct{ p *htkParser }

func (it htkTop) Final() error { return nil }
func (it htkTop) Next(line []byte) (stream.Iteratee, bool, error) {
	if bytes.HasPrefix(line, []byte("VERSION=")) {
		return it, true, nil
	}
	if bytes.HasPrefix(line, []byte("N=")) {
		n, l, err := parseNL(line)
		if err != nil {
			return nil, false, err
		}
		it.p.numNodes = n
		it.p.nodeWord = make([]word.Id, n)
		return htkBody{it.p, n, l}, true, nil
	}
	return it, true, nil
}

type htkBody struct {
	p            *htkParser
	nNodes, nArc int
}

func (it htkBody) Final() error { return nil }
func (it htkBody) Next(line []byte) (stream.Iteratee, bool, error) {
	switch {
	case bytes.HasPrefix(line, []byte("I=")):
		if err := it.p.parseNode(line); err != nil {
			return nil, false, err
		}
	case bytes.HasPrefix(line, []byte("J=")):
		if err := it.p.parseArc(line); err != nil {
			return nil, false, err
		}
	default:
		return nil, false, stream.ErrExpect(`"I=" or "J=" record`)
	}
	return it, true, nil
}

func parseNL(line []byte) (n, l int, err error) {
	for _, field := range bytes.Fields(line) {
		kv := bytes.SplitN(field, []byte("="), 2)
		if len(kv) != 2 {
			continue
		}
		v, perr := strconv.Atoi(string(kv[1]))
		if perr != nil {
			return 0, 0, perr
		}
		switch string(kv[0]) {
		case "N":
			n = v
		case "L":
			l = v
		}
	}
	return
}

func (p *htkParser) parseNode(line []byte) error {
	var idx int
	var w word.Id
	for _, field := range bytes.Fields(line) {
		kv := bytes.SplitN(field, []byte("="), 2)
		if len(kv) != 2 {
			continue
		}
		switch string(kv[0]) {
		case "I":
			n, err := strconv.Atoi(string(kv[1]))
			if err != nil {
				return err
			}
			idx = n
		case "W":
			w = p.vocab.IdOrAdd(string(kv[1]))
		}
	}
	if idx < len(p.nodeWord) {
		p.nodeWord[idx] = w
	}
	return nil
}

func (p *htkParser) parseArc(line []byte) error {
	var from, to int
	var w word.Id
	for _, field := range bytes.Fields(line) {
		kv := bytes.SplitN(field, []byte("="), 2)
		if len(kv) != 2 {
			continue
		}
		switch string(kv[0]) {
		case "S":
			n, err := strconv.Atoi(string(kv[1]))
			if err != nil {
				return err
			}
			from = n
		case "E":
			n, err := strconv.Atoi(string(kv[1]))
			if err != nil {
				return err
			}
			to = n
		}
	}
	if to < len(p.nodeWord) {
		w = p.nodeWord[to]
	}
	prons := p.wordToPron[w]
	if len(prons) == 0 {
		return nil
	}
	p.arcs = append(p.arcs, htkArcEntry{from: from, to: to, pron: prons[0], weight: 0})
	return nil
}

// htkLineSplit is a bufio.SplitFunc trimming blank lines, the same
// contract lm/arpa.go's lineSplit implements.
func htkLineSplit(data []byte, atEOF bool) (advance int, token []byte, err error) {
	l := -1
	for i, b := range data {
		if b != '\n' && b != '\r' {
			l = i
			break
		}
	}
	if l < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		return 0, nil, nil
	}
	for i := l; i < len(data); i++ {
		if data[i] == '\n' {
			return i + 1, bytes.TrimRight(data[l:i], "\r"), nil
		}
	}
	if !atEOF {
		return l, nil, nil
	}
	return len(data), data[l:], nil
}

package dict

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kho/easy"
)

// Load reads a pronunciation dictionary in the common
//
//	WORD [prob] ph1 ph2 ...
//
// line format into d: one pronunciation per line, repeated words add
// alternate pronunciations, blank lines and lines starting with "#"
// are skipped. prob is optional; when absent the pronunciation's
// probability defaults to 1.
func Load(r io.Reader, d *Dict) error {
	in := bufio.NewScanner(r)
	lineNo := 0
	for in.Scan() {
		lineNo++
		line := strings.TrimSpace(in.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return fmt.Errorf("dict line %d: expected WORD [prob] phone...", lineNo)
		}
		w, rest := fields[0], fields[1:]
		prob := 1.0
		if f, err := strconv.ParseFloat(rest[0], 64); err == nil {
			prob = f
			rest = rest[1:]
		}
		if len(rest) == 0 {
			return fmt.Errorf("dict line %d: word %q has no phones", lineNo, w)
		}
		d.Add(w, rest, prob)
	}
	return in.Err()
}

// LoadFile is Load reading from path (gzip-transparent, per
// github.com/kho/easy.Open).
func LoadFile(path string, d *Dict) error {
	f, err := easy.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return Load(f, d)
}

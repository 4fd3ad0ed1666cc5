package lm

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"github.com/kho/easy"
	"github.com/kho/stream"
	"io"
)

func FromGob(in io.Reader) (*Hashed, error) {
	var m Hashed
	if err := gob.NewDecoder(in).Decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

func FromGobFile(path string) (*Hashed, error) {
	in, err := easy.Open(path)
	if err != nil {
		return nil, err
	}
	defer in.Close()
	return FromGob(in)
}

func FromARPA(in io.Reader, scale float64) (*Hashed, error) {
	builder := NewBuilder(nil, "", "")
	if err := stream.Run(stream.EnumRead(in, lineSplit), arpaTop(builder)); err != nil {
		return nil, err
	}
	return builder.DumpHashed(scale), nil
}

func FromARPAFile(path string, scale float64) (*Hashed, error) {
	in, err := easy.Open(path)
	if err != nil {
		return nil, err
	}
	defer in.Close()
	return FromARPA(in, scale)
}

// FromBinaryAny mmaps path and sniffs its magic header to determine
// whether it holds a Hashed, Sorted, or 16-bit packed model. kind is
// one of MODEL_HASHED, MODEL_SORTED, or MODEL_PACKED; model is the
// corresponding *Hashed or *Sorted (a packed file also expands into a
// *Hashed, just quantized on disk rather than in memory).
func FromBinaryAny(path string) (kind int, model IterableModel, file *MappedFile, err error) {
	file, err = OpenMappedFile(path)
	if err != nil {
		return
	}
	switch {
	case bytes.HasPrefix(file.data, []byte(MAGIC_HASHED)):
		var m Hashed
		if err = m.unsafeParseBinary(file.data); err != nil {
			file.Close()
			return
		}
		kind, model = MODEL_HASHED, &m
	case bytes.HasPrefix(file.data, []byte(MAGIC_SORTED)):
		var m Sorted
		if err = m.UnsafeParseBinary(file.data); err != nil {
			file.Close()
			return
		}
		kind, model = MODEL_SORTED, &m
	case bytes.HasPrefix(file.data, []byte(MAGIC_PACKED)):
		var m *Hashed
		if m, err = ParsePackedBinary(file.data); err != nil {
			file.Close()
			return
		}
		kind, model = MODEL_PACKED, m
	default:
		file.Close()
		err = fmt.Errorf("%s: unrecognized LM binary magic", path)
	}
	return
}

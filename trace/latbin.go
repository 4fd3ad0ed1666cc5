package trace

// Binary lattice I/O (the 'B' lat_out_form flag): magic string +
// varint-length gob header + raw unsafe-cast node/arc arrays, the
// same three-part layout lm/hashed.go's WriteBinary/unsafeParseBinary
// uses for xqwEntry, applied here to LatNode/LatArc records (both
// plain fixed-width fields, so the same raw-memory trick applies).

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"reflect"
	"unsafe"
)

const latBinaryMagic = "LVRECLATv1"

type latBinaryHeader struct {
	Start   LatNodeIdx
	Ends    []LatNodeIdx
	OutForm string
}

// WriteBinary writes l in the binary lattice dialect.
func WriteBinary(l *Lattice, w io.Writer) error {
	if _, err := w.Write([]byte(latBinaryMagic)); err != nil {
		return err
	}
	var headerBuf bytes.Buffer
	if err := gob.NewEncoder(&headerBuf).Encode(latBinaryHeader{Start: l.Start, Ends: l.Ends}); err != nil {
		return err
	}
	lenBytes := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(lenBytes, uint64(headerBuf.Len()))
	if _, err := w.Write(lenBytes[:n]); err != nil {
		return err
	}
	if _, err := w.Write(headerBuf.Bytes()); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, int64(len(l.Nodes))); err != nil {
		return err
	}
	if _, err := w.Write(rawSlice(l.Nodes, int(unsafe.Sizeof(LatNode{})))); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, int64(len(l.Arcs))); err != nil {
		return err
	}
	if _, err := w.Write(rawSlice(l.Arcs, int(unsafe.Sizeof(LatArc{})))); err != nil {
		return err
	}
	return nil
}

// ReadBinary parses the dialect WriteBinary produces.
func ReadBinary(r io.Reader) (*Lattice, error) {
	raw, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(raw, []byte(latBinaryMagic)) {
		return nil, errors.New("not a lattice binary file")
	}
	pos := len(latBinaryMagic)
	headerLen, n := binary.Uvarint(raw[pos:])
	if n <= 0 {
		return nil, errors.New("error reading lattice header size")
	}
	pos += n
	var header latBinaryHeader
	if err := gob.NewDecoder(bytes.NewReader(raw[pos : pos+int(headerLen)])).Decode(&header); err != nil {
		return nil, err
	}
	pos += int(headerLen)

	numNodes, pos, err := readInt64(raw, pos)
	if err != nil {
		return nil, err
	}
	nodeSize := int(unsafe.Sizeof(LatNode{}))
	nodes := make([]LatNode, numNodes)
	if numNodes > 0 {
		if pos+int(numNodes)*nodeSize > len(raw) {
			return nil, fmt.Errorf("truncated lattice node array")
		}
		copy(rawSlice(nodes, nodeSize), raw[pos:pos+int(numNodes)*nodeSize])
		pos += int(numNodes) * nodeSize
	}

	numArcs, pos, err := readInt64(raw, pos)
	if err != nil {
		return nil, err
	}
	arcSize := int(unsafe.Sizeof(LatArc{}))
	arcs := make([]LatArc, numArcs)
	if numArcs > 0 {
		if pos+int(numArcs)*arcSize > len(raw) {
			return nil, fmt.Errorf("truncated lattice arc array")
		}
		copy(rawSlice(arcs, arcSize), raw[pos:pos+int(numArcs)*arcSize])
	}

	return &Lattice{Nodes: nodes, Arcs: arcs, Start: header.Start, Ends: header.Ends}, nil
}

func readInt64(raw []byte, pos int) (int64, int, error) {
	if pos+8 > len(raw) {
		return 0, pos, fmt.Errorf("truncated lattice count field")
	}
	return int64(binary.LittleEndian.Uint64(raw[pos : pos+8])), pos + 8, nil
}

// rawSlice reinterprets s's backing array as a []byte of len(s)*size
// bytes, mirroring lm/hashed.go's xqwEntry <-> []byte cast.
func rawSlice(s interface{}, size int) []byte {
	v := reflect.ValueOf(s)
	if v.Len() == 0 {
		return nil
	}
	data := v.Pointer()
	var out []byte
	h := (*reflect.SliceHeader)(unsafe.Pointer(&out))
	h.Data = data
	h.Len = v.Len() * size
	h.Cap = h.Len
	return out
}

package lm

// PackedHashed is the 16-bit tagged binary flavor of Hashed: the same
// length-prefixed gob header Hashed.WriteBinary writes, but each
// entry's word.Id key, StateId target, and Weight are packed into 16
// bits apiece instead of Hashed's native 32-bit/32-bit pair. Loading
// expands a packed file straight back into an ordinary *Hashed -- the
// quantization only affects bytes on disk, not the in-memory model.

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/kho/word"
)

// packedNilKey marks a bucket's reserved back-off/free slot (word.NIL)
// in the packed 16-bit key space. Real word ids must stay below it.
const packedNilKey uint16 = 0xFFFF

// packedWeightScale is the fixed-point step count per nat of
// log-probability a packed Weight quantizes to.
const packedWeightScale = 256

// packedWeightLog0 is the quantized sentinel for WEIGHT_LOG0.
const packedWeightLog0 int16 = math.MinInt16

func quantizeWeight(w Weight) int16 {
	if w <= WEIGHT_LOG0 {
		return packedWeightLog0
	}
	q := math.Round(float64(w) * packedWeightScale)
	if q < float64(math.MinInt16+1) {
		q = float64(math.MinInt16 + 1)
	} else if q > float64(math.MaxInt16) {
		q = float64(math.MaxInt16)
	}
	return int16(q)
}

func dequantizeWeight(q int16) Weight {
	if q == packedWeightLog0 {
		return WEIGHT_LOG0
	}
	return Weight(float64(q) / packedWeightScale)
}

// checkPackable reports whether every entry of m fits the 16-bit
// packed encoding: word ids below packedNilKey, states within uint16.
func checkPackable(m *Hashed) error {
	for _, bucket := range m.transitions {
		for _, e := range bucket {
			if e.Key != word.NIL && e.Key >= word.Id(packedNilKey) {
				return fmt.Errorf("lm: word id %d too large for a 16-bit packed LM", e.Key)
			}
			if e.Value.State > StateId(0xFFFF) {
				return fmt.Errorf("lm: state id %d too large for a 16-bit packed LM", e.Value.State)
			}
		}
	}
	return nil
}

const packedRecSize = 6

// WritePackedHashed writes m in the 16-bit packed binary flavor.
// Fails if m's vocabulary or state count overflows 16 bits -- use
// Hashed.WriteBinary for models that large.
func WritePackedHashed(m *Hashed, w io.Writer) error {
	if err := checkPackable(m); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(MAGIC_PACKED); err != nil {
		return err
	}
	header, err := m.header()
	if err != nil {
		return err
	}
	headerLenBytes := make([]byte, binary.MaxVarintLen64)
	binary.PutUvarint(headerLenBytes, uint64(len(header)))
	if _, err := bw.Write(headerLenBytes); err != nil {
		return err
	}
	if _, err := bw.Write(header); err != nil {
		return err
	}
	var rec [packedRecSize]byte
	for _, bucket := range m.transitions {
		for _, e := range bucket {
			key := packedNilKey
			if e.Key != word.NIL {
				key = uint16(e.Key)
			}
			binary.LittleEndian.PutUint16(rec[0:2], key)
			binary.LittleEndian.PutUint16(rec[2:4], uint16(e.Value.State))
			binary.LittleEndian.PutUint16(rec[4:6], uint16(quantizeWeight(e.Value.Weight)))
			if _, err := bw.Write(rec[:]); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// WritePackedHashedFile is WritePackedHashed writing to path.
func WritePackedHashedFile(m *Hashed, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return WritePackedHashed(m, f)
}

// ParsePackedBinary decodes a MAGIC_PACKED-tagged buffer into a
// regular *Hashed, dequantizing every entry's Weight back to float32
// precision and every packed key back to its full word.Id.
func ParsePackedBinary(raw []byte) (*Hashed, error) {
	if len(raw) < len(MAGIC_PACKED) || string(raw[:len(MAGIC_PACKED)]) != MAGIC_PACKED {
		return nil, errors.New("lm: not a packed FSLM binary file")
	}
	read := len(MAGIC_PACKED)
	if len(raw) < read+binary.MaxVarintLen64 {
		return nil, errors.New("lm: packed file truncated before header length")
	}
	headerLen, n := binary.Uvarint(raw[read : read+binary.MaxVarintLen64])
	if n <= 0 {
		return nil, errors.New("lm: error reading packed header size")
	}
	read += binary.MaxVarintLen64
	if len(raw) < read+int(headerLen) {
		return nil, errors.New("lm: packed file truncated within header")
	}
	var m Hashed
	numBuckets, err := m.parseHeader(raw[read : read+int(headerLen)])
	if err != nil {
		return nil, err
	}
	read += int(headerLen)

	if (len(raw)-read)%packedRecSize != 0 {
		return nil, fmt.Errorf("lm: packed entry region is not a multiple of %d bytes", packedRecSize)
	}
	total := (len(raw) - read) / packedRecSize
	entries := make([]xqwEntry, total)
	off := read
	for i := range entries {
		key := binary.LittleEndian.Uint16(raw[off : off+2])
		state := binary.LittleEndian.Uint16(raw[off+2 : off+4])
		weight := int16(binary.LittleEndian.Uint16(raw[off+4 : off+6]))
		off += packedRecSize

		k := word.Id(key)
		if key == packedNilKey {
			k = word.NIL
		}
		entries[i] = xqwEntry{Key: k, Value: StateWeight{State: StateId(state), Weight: dequantizeWeight(weight)}}
	}

	wantEntries := 0
	for _, n := range numBuckets {
		wantEntries += n
	}
	if wantEntries != total {
		return nil, fmt.Errorf("lm: packed file declares %d entries across buckets, found %d", wantEntries, total)
	}

	m.transitions = make([]xqwBuckets, len(numBuckets))
	low := 0
	for i, n := range numBuckets {
		m.transitions[i] = xqwBuckets(entries[low : low+n])
		low += n
	}
	return &m, nil
}

// FromPackedFile reads and expands a 16-bit packed LM binary. Unlike
// FromBinary, this always copies into heap memory -- quantization
// already requires a conversion pass, so there is no zero-copy mmap
// path to preserve.
func FromPackedFile(path string) (*Hashed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParsePackedBinary(data)
}

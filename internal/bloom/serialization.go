package bloom

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/golang/snappy"
)

// algorithm tags the hashing scheme so a sidecar written by a different
// build cannot be misread.
const algorithm = "murmur3_128"

// Encoded is the sidecar form of a filter. The bit array travels
// snappy-compressed and base64-encoded so the sidecar stays valid JSON; the
// geometry fields are plain so triage tooling can inspect them without
// decoding.
type Encoded struct {
	Algorithm string `json:"algorithm"`
	NumBits   int    `json:"num_bits"`
	NumHashes int    `json:"num_hashes"`
	Count     uint64 `json:"count"`
	Data      string `json:"data"`
}

// Encode converts the filter into its sidecar form.
func (f *Filter) Encode() *Encoded {
	raw := make([]byte, len(f.bits)*8)
	for i, word := range f.bits {
		binary.LittleEndian.PutUint64(raw[i*8:(i+1)*8], word)
	}

	return &Encoded{
		Algorithm: algorithm,
		NumBits:   int(f.numBits),
		NumHashes: int(f.numHashes),
		Count:     f.count,
		Data:      base64.StdEncoding.EncodeToString(snappy.Encode(nil, raw)),
	}
}

// Decode reconstructs a filter from its sidecar form.
func Decode(e *Encoded) (*Filter, error) {
	if e == nil {
		return nil, errors.New("bloom: nil encoded filter")
	}
	if e.Algorithm != algorithm {
		return nil, fmt.Errorf("bloom: unsupported algorithm %q", e.Algorithm)
	}
	if e.NumBits <= 0 || e.NumHashes <= 0 {
		return nil, fmt.Errorf("bloom: invalid geometry %d bits / %d hashes", e.NumBits, e.NumHashes)
	}

	compressed, err := base64.StdEncoding.DecodeString(e.Data)
	if err != nil {
		return nil, fmt.Errorf("bloom: invalid base64 data: %w", err)
	}
	raw, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("bloom: snappy decode failed: %w", err)
	}

	numWords := (e.NumBits + 63) / 64
	if len(raw) != numWords*8 {
		return nil, fmt.Errorf("bloom: expected %d bytes of bits, got %d", numWords*8, len(raw))
	}

	bits := make([]uint64, numWords)
	for i := range bits {
		bits[i] = binary.LittleEndian.Uint64(raw[i*8 : (i+1)*8])
	}

	return &Filter{
		bits:      bits,
		numBits:   uint64(numWords * 64),
		numHashes: uint64(e.NumHashes),
		count:     e.Count,
	}, nil
}

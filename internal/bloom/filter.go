// Package bloom provides a compact membership filter over event identifiers
// for archive sidecars.
package bloom

import (
	"math"

	"github.com/spaolacci/murmur3"
)

// Filter answers "was this event identifier archived" without opening the
// archive. It reports definite absence and probable presence; false
// positives are bounded by the construction parameters, false negatives
// never occur. Build is single-writer; a built filter is safe to share
// read-only.
type Filter struct {
	bits      []uint64
	numBits   uint64
	numHashes uint64
	count     uint64
}

// New creates a filter with the given geometry. Sizes round up to whole
// 64-bit words.
func New(numBits, numHashes int) *Filter {
	if numBits <= 0 {
		numBits = 1024
	}
	if numHashes <= 0 {
		numHashes = 7
	}

	numWords := (numBits + 63) / 64
	return &Filter{
		bits:      make([]uint64, numWords),
		numBits:   uint64(numWords * 64),
		numHashes: uint64(numHashes),
	}
}

// NewWithEstimates creates a filter sized for the expected number of
// distinct identifiers and target false positive rate.
func NewWithEstimates(expectedItems int, targetFPR float64) *Filter {
	numBits, numHashes := OptimalParameters(expectedItems, targetFPR)
	return New(numBits, numHashes)
}

// OptimalParameters calculates filter geometry for a given expected item
// count and target false positive rate.
//
//	m = -n * ln(p) / (ln(2)^2)
//	k = (m/n) * ln(2)
func OptimalParameters(expectedItems int, targetFPR float64) (numBits, numHashes int) {
	if expectedItems <= 0 {
		expectedItems = 1000
	}
	if targetFPR <= 0 || targetFPR >= 1 {
		targetFPR = 0.01
	}

	n := float64(expectedItems)
	m := -n * math.Log(targetFPR) / (math.Ln2 * math.Ln2)
	numBits = int(math.Ceil(m))
	numHashes = int(math.Ceil((m / n) * math.Ln2))

	if numBits < 64 {
		numBits = 64
	}
	if numHashes < 1 {
		numHashes = 1
	}
	return numBits, numHashes
}

// Add records one event identifier.
func (f *Filter) Add(eventID string) {
	h1, h2 := murmur3.Sum128([]byte(eventID))
	for i := uint64(0); i < f.numHashes; i++ {
		// Double hashing: h(i) = h1 + i*h2
		pos := (h1 + i*h2) % f.numBits
		f.bits[pos/64] |= 1 << (pos % 64)
	}
	f.count++
}

// Contains reports whether the identifier might have been added. A false
// answer is definitive.
func (f *Filter) Contains(eventID string) bool {
	h1, h2 := murmur3.Sum128([]byte(eventID))
	for i := uint64(0); i < f.numHashes; i++ {
		pos := (h1 + i*h2) % f.numBits
		if f.bits[pos/64]&(1<<(pos%64)) == 0 {
			return false
		}
	}
	return true
}

// Count returns the number of Add calls, duplicates included.
func (f *Filter) Count() uint64 {
	return f.count
}

// NumBits returns the filter width in bits.
func (f *Filter) NumBits() int {
	return int(f.numBits)
}

// NumHashes returns the number of hash probes per identifier.
func (f *Filter) NumHashes() int {
	return int(f.numHashes)
}

// FalsePositiveRate estimates the current false positive rate from the fill
// level: (1 - e^(-k*n/m))^k.
func (f *Filter) FalsePositiveRate() float64 {
	if f.count == 0 {
		return 0
	}
	k := float64(f.numHashes)
	n := float64(f.count)
	m := float64(f.numBits)
	return math.Pow(1-math.Exp(-k*n/m), k)
}

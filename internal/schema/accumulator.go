package schema

import (
	"sort"
	"sync"

	"github.com/sketchmill/sketchmill/internal/errors"
	"github.com/sketchmill/sketchmill/pkg/types"
)

// Accumulator collects the union of derived column names across a run. It is
// an explicit object so concurrent row stages can share one instance; every
// method is safe for concurrent use. Finalize freezes the set, after which
// further Add calls fail.
type Accumulator struct {
	mu        sync.Mutex
	names     map[string]struct{}
	finalized []string
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		names: make(map[string]struct{}),
	}
}

// Add records the names of one field set.
func (a *Accumulator) Add(fields types.FieldSet) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.finalized != nil {
		return errors.NewSchemaError(errors.CodeAlreadyFinalized, "cannot add fields after finalize")
	}
	for name := range fields {
		a.names[name] = struct{}{}
	}
	return nil
}

// Len returns the number of distinct derived names seen so far.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.names)
}

// Finalize sorts the collected names lexicographically and freezes the set.
// It must be called exactly once, after the last Add.
func (a *Accumulator) Finalize() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.finalized != nil {
		return errors.NewSchemaError(errors.CodeAlreadyFinalized, "accumulator already finalized")
	}
	a.finalized = a.sortedLocked()
	return nil
}

// Columns returns the finalized derived column names in lexicographic order.
func (a *Accumulator) Columns() ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.finalized == nil {
		return nil, errors.NewSchemaError(errors.CodeNotFinalized, "accumulator not finalized")
	}
	return a.finalized, nil
}

// Sample returns up to n derived names in lexicographic order. Usable before
// and after finalize.
func (a *Accumulator) Sample(n int) []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	sorted := a.finalized
	if sorted == nil {
		sorted = a.sortedLocked()
	}
	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}

func (a *Accumulator) sortedLocked() []string {
	out := make([]string, 0, len(a.names))
	for name := range a.names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

package archive

import (
	"time"

	"github.com/sketchmill/sketchmill/internal/bloom"
	"github.com/sketchmill/sketchmill/internal/observability"
	"github.com/sketchmill/sketchmill/internal/schema"
	"github.com/sketchmill/sketchmill/pkg/types"
)

// bloomTargetFPR is the false positive rate for the sidecar event filter.
const bloomTargetFPR = 0.01

// Tracker folds per-row observations into sidecar statistics during a build.
type Tracker struct {
	rowCount int64

	// Datetime bounds are compared chronologically but reported as the raw
	// cell values, so the sidecar shows exactly what the CSV shows.
	minDatetime string
	maxDatetime string
	minParsed   time.Time
	maxParsed   time.Time
	haveTime    bool

	eventIDs map[string]struct{}
	filter   *bloom.Filter
}

// NewTracker creates a tracker sized for the expected row count.
func NewTracker(expectedRows int) *Tracker {
	return &Tracker{
		eventIDs: make(map[string]struct{}),
		filter:   bloom.NewWithEstimates(expectedRows, bloomTargetFPR),
	}
}

// Observe folds one output row into the statistics. Datetime cells that
// match none of the known layouts are skipped; rows without an event
// identifier still count toward the row total.
func (t *Tracker) Observe(record types.Record) {
	t.rowCount++

	if value := record[schema.ColumnDatetime]; value != "" {
		if parsed, ok := observability.ParseDatetime(value); ok {
			if !t.haveTime || parsed.Before(t.minParsed) {
				t.minParsed, t.minDatetime = parsed, value
			}
			if !t.haveTime || parsed.After(t.maxParsed) {
				t.maxParsed, t.maxDatetime = parsed, value
			}
			t.haveTime = true
		}
	}

	if eventID := record[types.ColumnEventID]; eventID != "" {
		t.eventIDs[eventID] = struct{}{}
		t.filter.Add(eventID)
	}
}

// RowCount returns the number of rows observed.
func (t *Tracker) RowCount() int64 {
	return t.rowCount
}

// MinDatetime returns the earliest datetime cell seen, or "" when no cell
// parsed.
func (t *Tracker) MinDatetime() string {
	return t.minDatetime
}

// MaxDatetime returns the latest datetime cell seen, or "" when no cell
// parsed.
func (t *Tracker) MaxDatetime() string {
	return t.maxDatetime
}

// DistinctEventIDs returns the count of distinct event identifiers seen.
func (t *Tracker) DistinctEventIDs() int {
	return len(t.eventIDs)
}

// Filter returns the bloom filter over observed event identifiers.
func (t *Tracker) Filter() *bloom.Filter {
	return t.filter
}

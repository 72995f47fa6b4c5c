// Package observability tracks per-run enrichment statistics for reporting
// and cataloging.
package observability

import (
	"sort"
	"sync"
	"time"

	"github.com/sketchmill/sketchmill/pkg/types"
)

// datetimeLayouts are the timestamp shapes seen in l2tcsv output, joined
// date plus time first.
var datetimeLayouts = []string{
	"01/02/2006 15:04:05",
	"01/02/2006",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseDatetime parses a datetime cell against the known layouts.
// It returns false for empty cells and unknown shapes.
func ParseDatetime(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FieldStats holds the occurrence count for one derived field or event kind.
type FieldStats struct {
	Name  string
	Count int64
}

// RunStats tracks row, fragment, and field frequencies across one run.
// All methods are safe for concurrent use.
type RunStats struct {
	mu           sync.RWMutex
	rows         int64
	fragments    int64
	resolved     int64
	parsedEvents int64
	fieldFreq    map[string]int64
	eventFreq    map[string]int64
	minTime      time.Time
	maxTime      time.Time
	minRaw       string
	maxRaw       string
	haveTime     bool
}

// NewRunStats creates an empty tracker.
func NewRunStats() *RunStats {
	return &RunStats{
		fieldFreq: make(map[string]int64),
		eventFreq: make(map[string]int64),
	}
}

// RecordRow counts one input row.
func (s *RunStats) RecordRow() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows++
}

// RecordFragment counts a row whose extra blob carried a fragment.
func (s *RunStats) RecordFragment() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fragments++
}

// RecordResolved counts a row with a resolved identifier and tallies the
// event kind.
func (s *RunStats) RecordResolved(eventID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolved++
	s.eventFreq[eventID]++
}

// RecordParsed counts a row that yielded at least one EventData value.
func (s *RunStats) RecordParsed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parsedEvents++
}

// RecordFields tallies every derived field name of one row.
func (s *RunStats) RecordFields(fields types.FieldSet) {
	if len(fields) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for name := range fields {
		s.fieldFreq[name]++
	}
}

// RecordDatetime folds one datetime cell into the observed time bounds.
// Values that match none of the known layouts are ignored.
func (s *RunStats) RecordDatetime(value string) {
	parsed, ok := ParseDatetime(value)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.haveTime || parsed.Before(s.minTime) {
		s.minTime, s.minRaw = parsed, value
	}
	if !s.haveTime || parsed.After(s.maxTime) {
		s.maxTime, s.maxRaw = parsed, value
	}
	s.haveTime = true
}

// Totals returns the row, fragment, resolved, and parsed counters.
func (s *RunStats) Totals() (rows, fragments, resolved, parsed int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rows, s.fragments, s.resolved, s.parsedEvents
}

// DistinctFields returns the number of distinct derived field names.
func (s *RunStats) DistinctFields() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.fieldFreq)
}

// DistinctEventIDs returns the number of distinct resolved event kinds.
func (s *RunStats) DistinctEventIDs() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.eventFreq)
}

// GetTopFields returns the top n derived fields by occurrence, ties broken
// by name for stable output.
func (s *RunStats) GetTopFields(n int) []FieldStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return topOf(s.fieldFreq, n)
}

// GetTopEventIDs returns the top n event kinds by row count, ties broken by
// name for stable output.
func (s *RunStats) GetTopEventIDs(n int) []FieldStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return topOf(s.eventFreq, n)
}

// AllFields returns every derived field count, sorted by name.
func (s *RunStats) AllFields() []FieldStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]FieldStats, 0, len(s.fieldFreq))
	for name, count := range s.fieldFreq {
		out = append(out, FieldStats{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// AllEventIDs returns every event kind count, sorted by name.
func (s *RunStats) AllEventIDs() []FieldStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]FieldStats, 0, len(s.eventFreq))
	for name, count := range s.eventFreq {
		out = append(out, FieldStats{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// TimeBounds returns the earliest and latest parsed datetime, if any cell
// parsed at all.
func (s *RunStats) TimeBounds() (min, max time.Time, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.minTime, s.maxTime, s.haveTime
}

// DatetimeBounds returns the earliest and latest datetime cells as they
// appeared in the input, or empty strings when no cell parsed.
func (s *RunStats) DatetimeBounds() (min, max string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.minRaw, s.maxRaw
}

func topOf(freq map[string]int64, n int) []FieldStats {
	if n <= 0 || len(freq) == 0 {
		return []FieldStats{}
	}

	stats := make([]FieldStats, 0, len(freq))
	for name, count := range freq {
		stats = append(stats, FieldStats{Name: name, Count: count})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].Name < stats[j].Name
	})

	if n > len(stats) {
		n = len(stats)
	}
	return stats[:n]
}

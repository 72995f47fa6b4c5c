package schema

import (
	"sort"
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/sketchmill/sketchmill/pkg/types"
)

// TestProperty_AccumulatorUnion validates that the finalized column list is
// the sorted, deduplicated union of every added field set.
func TestProperty_AccumulatorUnion(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("finalized columns are the sorted union", prop.ForAll(
		func(groups [][]string) bool {
			acc := NewAccumulator()
			union := make(map[string]struct{})

			for _, names := range groups {
				fields := types.FieldSet{}
				for _, n := range names {
					fields[n] = "v"
					union[n] = struct{}{}
				}
				if err := acc.Add(fields); err != nil {
					return false
				}
			}
			if err := acc.Finalize(); err != nil {
				return false
			}

			columns, err := acc.Columns()
			if err != nil {
				return false
			}
			if len(columns) != len(union) {
				return false
			}
			if !sort.StringsAreSorted(columns) {
				return false
			}
			for _, c := range columns {
				if _, ok := union[c]; !ok {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.SliceOf(gen.Identifier())),
	))

	properties.TestingRun(t)
}

// TestProperty_RectangularOutput validates that every projected row has
// exactly one cell per output column no matter which fields the row carried.
func TestProperty_RectangularOutput(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	header := types.Header{"date", "time", "desc", "extra"}

	properties.Property("projection is rectangular", prop.ForAll(
		func(rows [][]string, id int) bool {
			eventID := strconv.Itoa(id)
			acc := NewAccumulator()
			var merged []types.Record

			for _, names := range rows {
				fields := types.FieldSet{}
				for _, n := range names {
					fields[types.CompositeName(eventID, n)] = "v"
				}
				if err := acc.Add(fields); err != nil {
					return false
				}
				record := types.Record{"date": "01/02/2024", "time": "03:04:05", "desc": "d", "extra": "e"}
				merged = append(merged, MergeRow(header, record, fields))
			}
			if err := acc.Finalize(); err != nil {
				return false
			}
			derived, err := acc.Columns()
			if err != nil {
				return false
			}

			// extra is consumed, every other original survives renamed.
			columns := OutputColumns(header, derived)
			if len(columns) != len(header)-1+len(derived) {
				return false
			}
			for _, record := range merged {
				if len(ProjectRow(record, columns)) != len(columns) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.SliceOf(gen.Identifier())),
		gen.IntRange(1, 65535),
	))

	properties.TestingRun(t)
}

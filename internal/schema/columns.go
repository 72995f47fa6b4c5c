package schema

import "github.com/sketchmill/sketchmill/pkg/types"

// OutputColumns returns the final output header, renamed originals in their
// source order followed by the finalized derived names. The consumed extra
// column is not part of the output.
func OutputColumns(header types.Header, derived []string) types.Header {
	out := make(types.Header, 0, len(header)+len(derived))
	for _, name := range header {
		if name == ColumnExtra {
			continue
		}
		out = append(out, RenameColumn(name))
	}
	out = append(out, derived...)
	return out
}

// ProjectRow returns the cells of one enriched record in column order.
// Absent columns become "", keys outside the column list are dropped.
func ProjectRow(record types.Record, columns types.Header) []string {
	cells := make([]string, len(columns))
	for i, name := range columns {
		cells[i] = record[name]
	}
	return cells
}

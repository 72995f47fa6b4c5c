package schema

import (
	"strings"

	"github.com/sketchmill/sketchmill/pkg/types"
)

// MergeRow builds the enriched output row for one source record. Originals
// are carried over under their renamed columns in header order, the datetime
// column absorbs the timestamp description, and the derived fields overlay
// last, winning any collision. The extra blob is consumed by enrichment and
// does not carry over.
func MergeRow(header types.Header, record types.Record, fields types.FieldSet) types.Record {
	out := make(types.Record, len(header)+len(fields))
	for _, name := range header {
		if name == ColumnExtra {
			continue
		}
		out[RenameColumn(name)] = record[name]
	}

	// Join date and time into one sortable value unless the time half is
	// already embedded. timestamp_desc keeps its own column either way.
	datetime := out[ColumnDatetime]
	desc := out[ColumnTimestampDesc]
	if datetime != "" && desc != "" && !strings.Contains(datetime, desc) {
		out[ColumnDatetime] = datetime + " " + desc
	}

	for name, value := range fields {
		out[name] = value
	}
	return out
}

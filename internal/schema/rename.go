// Package schema tracks the run-wide derived column set and merges per-row
// field sets into output rows.
package schema

// Output column names produced by the rename table and used by the datetime
// join. ColumnExtra is the attribute blob enrichment consumes; it is dropped
// from merged rows and from the output header.
const (
	ColumnDatetime      = "datetime"
	ColumnTimestampDesc = "timestamp_desc"
	ColumnMessage       = "message"
	ColumnExtra         = "extra"
)

// columnRenames maps l2tcsv column names to their Timesketch equivalents.
// Exact match only, applied once per column before derived fields overlay.
var columnRenames = map[string]string{
	"date": ColumnDatetime,
	"time": ColumnTimestampDesc,
	"desc": ColumnMessage,
}

// RenameColumn maps one original column name to its output name.
func RenameColumn(name string) string {
	if renamed, ok := columnRenames[name]; ok {
		return renamed
	}
	return name
}

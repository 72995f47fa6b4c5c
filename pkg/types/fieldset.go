package types

import "sort"

// Fixed columns attached to every row that carried a recoverable event
// fragment.
const (
	// ColumnXMLString holds the raw extracted event XML.
	ColumnXMLString = "xml_string"

	// ColumnEventID holds the resolved event identifier.
	ColumnEventID = "event_id"
)

// FieldSet maps derived column names to values for one enriched row.
//
// Keys are composite names (event identifier + data name) plus the two fixed
// entries ColumnXMLString and ColumnEventID. An empty FieldSet means the row
// carried no recoverable fragment or no resolvable identifier.
type FieldSet map[string]string

// CompositeName builds the derived column name for one EventData value.
// Identifiers are short decimal strings, so derived names sort by event kind
// first and data name second.
func CompositeName(eventID, dataName string) string {
	return eventID + "_" + dataName
}

// Names returns the field names in lexicographic order.
func (fs FieldSet) Names() []string {
	names := make([]string, 0, len(fs))
	for name := range fs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

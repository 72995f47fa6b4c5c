// Package types provides core data types for Project Sketchmill.
package types

// Record is a single timeline row, keyed by column name.
//
// Cell values are always strings; the reader keeps the original column order
// in a separate Header. Enrichment never mutates a source record, it builds a
// fresh one.
type Record map[string]string

// Clone returns an independent copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Header is the ordered list of column names from a delimited input.
type Header []string

// Index returns the position of the named column, or -1 when absent.
func (h Header) Index(name string) int {
	for i, c := range h {
		if c == name {
			return i
		}
	}
	return -1
}

// Contains reports whether the header includes the named column.
func (h Header) Contains(name string) bool {
	return h.Index(name) >= 0
}

// Clone returns an independent copy of the header.
func (h Header) Clone() Header {
	out := make(Header, len(h))
	copy(out, h)
	return out
}

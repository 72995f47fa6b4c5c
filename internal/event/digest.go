package event

import (
	"strings"

	"github.com/sketchmill/sketchmill/pkg/types"
)

// DataValue is one EventData value in document order.
type DataValue struct {
	Name  string
	Value string
}

// Digest is everything later stages derive from one fragment, independent of
// the per-row fallback sources. Identical fragments always produce identical
// digests, so digests are safe to memoize by fragment.
type Digest struct {
	// XMLID is the trimmed text of the first EventID element, found by a
	// namespace-wildcard lookup with an exact unnamespaced fallback. "" when
	// the fragment is malformed or the element is absent or empty.
	XMLID string

	// Data holds the EventData values in document order, collected from
	// every descendant Data element of the first EventData element that
	// carries a non-empty Name attribute. Nil when the fragment is malformed
	// or carries no EventData.
	Data []DataValue
}

// DigestFragment parses a fragment once and extracts the embedded identifier
// and the EventData values. Malformed documents yield a zero digest; no
// per-fragment condition is an error.
func DigestFragment(fragment string) Digest {
	var d Digest
	if strings.TrimSpace(fragment) == "" {
		return d
	}

	root, err := ParseDocument(fragment)
	if err != nil {
		return d
	}

	if el := root.FindDescendant("EventID"); el != nil {
		d.XMLID = strings.TrimSpace(el.Text)
	} else if el := root.FindDescendantExact("", "EventID"); el != nil {
		d.XMLID = strings.TrimSpace(el.Text)
	}

	eventData := root.FindDescendant("EventData")
	if eventData == nil {
		eventData = root.FindDescendantExact("", "EventData")
	}
	if eventData == nil {
		return d
	}

	for _, data := range eventData.Descendants("Data") {
		name := data.Attr("Name")
		if name == "" {
			continue
		}
		d.Data = append(d.Data, DataValue{Name: name, Value: data.Text})
	}
	return d
}

// ResolveEventID picks the identifier for a row, preferring the digest's
// embedded value, then the short column prefix, then the message_identifier
// pair in the blob. The first non-empty answer wins; sources are never
// merged.
func (d Digest) ResolveEventID(short, blob string) (string, bool) {
	if d.XMLID != "" {
		return d.XMLID, true
	}
	if m := shortEventIDPattern.FindStringSubmatch(short); m != nil {
		return m[1], true
	}
	if m := messageIdentifierPattern.FindStringSubmatch(blob); m != nil {
		return m[1], true
	}
	return "", false
}

// FieldSet composites the digest against a resolved identifier. When both
// fragment and identifier are present the set always carries the two fixed
// entries, raw fragment under xml_string and identifier under event_id, even
// if no Data values were recovered. The boolean reports whether any were.
func (d Digest) FieldSet(fragment, eventID string) (types.FieldSet, bool) {
	if fragment == "" || eventID == "" {
		return nil, false
	}

	fields := d.dataFields(eventID)
	hadData := len(fields) > 0

	fields[types.ColumnXMLString] = fragment
	fields[types.ColumnEventID] = eventID
	return fields, hadData
}

// dataFields keys the digest's values by composite name, later duplicates
// overwriting earlier ones.
func (d Digest) dataFields(eventID string) types.FieldSet {
	fields := make(types.FieldSet, len(d.Data))
	for _, dv := range d.Data {
		fields[types.CompositeName(eventID, dv.Name)] = dv.Value
	}
	return fields
}

package event

import (
	"strings"

	"github.com/sketchmill/sketchmill/pkg/types"
)

// ParseEventData extracts the EventData values from an event fragment keyed
// by composite name. Values keep the element's head text untrimmed, absent
// text becoming "". Malformed XML, a missing EventData element, or blank
// inputs all yield an empty set; no per-row condition is an error.
func ParseEventData(fragment, eventID string) types.FieldSet {
	if strings.TrimSpace(fragment) == "" || eventID == "" {
		return types.FieldSet{}
	}
	return DigestFragment(fragment).dataFields(eventID)
}

// BuildFieldSet returns the full derived field set for one row and reports
// whether any EventData values were recovered. When either input is absent,
// or the fragment is blank, the set is nil.
func BuildFieldSet(fragment, eventID string) (types.FieldSet, bool) {
	if strings.TrimSpace(fragment) == "" || eventID == "" {
		return nil, false
	}
	return DigestFragment(fragment).FieldSet(fragment, eventID)
}

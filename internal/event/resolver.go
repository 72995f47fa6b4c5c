package event

import "regexp"

var (
	// shortEventIDPattern matches the "[4688 / 0x1250]" prefix that plaso
	// puts at the front of the short column for Windows events.
	shortEventIDPattern = regexp.MustCompile(`^\[(\d+)\s*/\s*0x[0-9a-fA-F]+\]`)

	// messageIdentifierPattern matches the message_identifier pair that
	// appears anywhere in the extra blob.
	messageIdentifierPattern = regexp.MustCompile(`message_identifier:\s*(\d+)`)
)

// ResolveEventID determines the event identifier for one row. Sources are
// tried in strict priority order and the first non-empty answer wins: the
// EventID element of the fragment, then the short column prefix, then the
// message_identifier pair in the extra blob.
//
// A fragment that parses but carries no EventID text falls through to the
// remaining sources.
func ResolveEventID(fragment, short, blob string) (string, bool) {
	var d Digest
	if fragment != "" {
		d = DigestFragment(fragment)
	}
	return d.ResolveEventID(short, blob)
}

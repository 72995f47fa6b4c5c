// Package event extracts embedded Windows event XML from timeline rows and
// flattens it into derived columns.
package event

import "strings"

// fragmentMarker introduces the embedded document inside an extra blob.
const fragmentMarker = "xml_string:"

// ExtractFragment locates the embedded event XML in an extra blob. A
// fragment follows an "xml_string:" marker, after optional whitespace, and
// opens with an Event tag whose first attribute is an xmlns declaration. The
// returned window runs from the opening tag through its matching close tag,
// found by a balanced scan so nested Event elements and stray close tags
// elsewhere in the blob cannot shift the boundary. Markers that are not
// followed by a complete document are skipped in favor of later ones.
func ExtractFragment(blob string) (string, bool) {
	for from := 0; from < len(blob); {
		i := strings.Index(blob[from:], fragmentMarker)
		if i < 0 {
			return "", false
		}
		markerEnd := from + i + len(fragmentMarker)
		start := markerEnd
		for start < len(blob) && isSpace(blob[start]) {
			start++
		}
		if fragment, ok := scanEventElement(blob[start:]); ok {
			return fragment, true
		}
		from = markerEnd
	}
	return "", false
}

// scanEventElement captures a complete Event element from the start of s.
// Depth counting pairs nested Event start tags with their close tags;
// comments, CDATA sections, and quoted attribute values are skipped so their
// contents cannot open or close elements.
func scanEventElement(s string) (string, bool) {
	const open = "<Event"
	if !strings.HasPrefix(s, open) {
		return "", false
	}
	j := len(open)
	if j >= len(s) || !isSpace(s[j]) {
		return "", false
	}
	for j < len(s) && isSpace(s[j]) {
		j++
	}
	if !strings.HasPrefix(s[j:], "xmlns=") {
		return "", false
	}

	depth := 0
	i := 0
	for i < len(s) {
		lt := strings.IndexByte(s[i:], '<')
		if lt < 0 {
			return "", false
		}
		i += lt

		switch {
		case strings.HasPrefix(s[i:], "<!--"):
			end := strings.Index(s[i+4:], "-->")
			if end < 0 {
				return "", false
			}
			i += 4 + end + 3

		case strings.HasPrefix(s[i:], "<![CDATA["):
			end := strings.Index(s[i+9:], "]]>")
			if end < 0 {
				return "", false
			}
			i += 9 + end + 3

		case strings.HasPrefix(s[i:], "</"):
			gt := strings.IndexByte(s[i:], '>')
			if gt < 0 {
				return "", false
			}
			name := strings.TrimSpace(s[i+2 : i+gt])
			i += gt + 1
			if name == "Event" {
				depth--
				if depth == 0 {
					return s[:i], true
				}
			}

		case strings.HasPrefix(s[i:], "<?"):
			end := strings.Index(s[i+2:], "?>")
			if end < 0 {
				return "", false
			}
			i += 2 + end + 2

		case strings.HasPrefix(s[i:], "<!"):
			gt := strings.IndexByte(s[i:], '>')
			if gt < 0 {
				return "", false
			}
			i += gt + 1

		default:
			name, end, selfClosing, ok := scanTag(s, i)
			if !ok {
				return "", false
			}
			atRoot := depth == 0
			i = end
			if name == "Event" {
				if selfClosing {
					if atRoot {
						return s[:i], true
					}
				} else {
					depth++
				}
			}
		}
	}
	return "", false
}

// scanTag parses one start tag beginning at s[i], which must be '<'. It
// returns the tag name, the index just past the closing '>', and whether the
// tag was self-closing. Quoted attribute values may contain '<' and '>'.
func scanTag(s string, i int) (name string, end int, selfClosing bool, ok bool) {
	j := i + 1
	for j < len(s) && !isSpace(s[j]) && s[j] != '>' && s[j] != '/' {
		j++
	}
	if j == i+1 {
		return "", 0, false, false
	}
	name = s[i+1 : j]

	var quote byte
	for k := j; k < len(s); k++ {
		c := s[k]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '>':
			return name, k + 1, s[k-1] == '/', true
		case c == '<':
			return "", 0, false, false
		}
	}
	return "", 0, false, false
}

// isSpace reports ASCII whitespace.
func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}

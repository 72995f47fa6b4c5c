package event

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

var (
	errEmptyDocument     = errors.New("no element in document")
	errUnclosedDocument  = errors.New("unclosed element at end of document")
	errJunkAfterDocument = errors.New("content after document element")
)

// Element is one node of a parsed event document.
type Element struct {
	// Name carries the namespace URI in Space and the tag name in Local.
	Name xml.Name

	// Attrs holds the element's attributes in document order.
	Attrs []xml.Attr

	// Text is the character data between the start tag and the first child
	// element. Text after a child is discarded, matching how forensic tools
	// read the head text of EVTX records.
	Text string

	// Children holds the child elements in document order.
	Children []*Element
}

// ParseDocument parses an XML fragment into an element tree. Comments and
// processing instructions are dropped. Any syntax error, including content
// after the document element, fails the whole parse.
func ParseDocument(fragment string) (*Element, error) {
	dec := xml.NewDecoder(strings.NewReader(fragment))

	var root *Element
	var stack []*Element

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if root != nil && len(stack) == 0 {
				return nil, errJunkAfterDocument
			}
			attrs := make([]xml.Attr, len(t.Attr))
			copy(attrs, t.Attr)
			el := &Element{Name: t.Name, Attrs: attrs}
			if len(stack) == 0 {
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, el)
			}
			stack = append(stack, el)

		case xml.CharData:
			if len(stack) == 0 {
				if root != nil && len(strings.TrimSpace(string(t))) > 0 {
					return nil, errJunkAfterDocument
				}
				continue
			}
			top := stack[len(stack)-1]
			if len(top.Children) == 0 {
				top.Text += string(t)
			}

		case xml.EndElement:
			stack = stack[:len(stack)-1]
		}
	}

	if root == nil {
		return nil, errEmptyDocument
	}
	if len(stack) != 0 {
		return nil, errUnclosedDocument
	}
	return root, nil
}

// FindDescendant returns the first descendant with the given local name in
// document order, ignoring namespaces. The element itself is not considered.
// Returns nil when no descendant matches.
func (e *Element) FindDescendant(local string) *Element {
	for _, child := range e.Children {
		if child.Name.Local == local {
			return child
		}
		if found := child.FindDescendant(local); found != nil {
			return found
		}
	}
	return nil
}

// FindDescendantExact returns the first descendant matching both namespace
// and local name in document order, or nil. An empty space matches only
// elements outside any namespace.
func (e *Element) FindDescendantExact(space, local string) *Element {
	for _, child := range e.Children {
		if child.Name.Space == space && child.Name.Local == local {
			return child
		}
		if found := child.FindDescendantExact(space, local); found != nil {
			return found
		}
	}
	return nil
}

// Descendants returns every descendant with the given local name in document
// order, ignoring namespaces.
func (e *Element) Descendants(local string) []*Element {
	var out []*Element
	for _, child := range e.Children {
		if child.Name.Local == local {
			out = append(out, child)
		}
		out = append(out, child.Descendants(local)...)
	}
	return out
}

// Attr returns the value of the named unprefixed attribute, or "" when the
// attribute is absent.
func (e *Element) Attr(local string) string {
	for _, a := range e.Attrs {
		if a.Name.Space == "" && a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package mapper

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
)

// node is one element of a parsed document. Repeated and single children
// are stored the same way, so extraction code never has to ask whether a
// field appeared once or many times.
type node struct {
	name     xml.Name
	attrs    []xml.Attr
	text     string
	children []*node
}

// parseTree parses a complete XML document and returns its root element.
func parseTree(data string) (*node, error) {
	d := xml.NewDecoder(strings.NewReader(data))
	d.Strict = true

	var root *node
	var stack []*node
	var text [][]byte

	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{name: t.Name, attrs: append([]xml.Attr(nil), t.Attr...)}
			if len(stack) == 0 {
				if root != nil {
					return nil, errors.New("multiple root elements")
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
			}
			stack = append(stack, n)
			text = append(text, nil)
		case xml.EndElement:
			n := stack[len(stack)-1]
			n.text = string(text[len(text)-1])
			stack = stack[:len(stack)-1]
			text = text[:len(text)-1]
		case xml.CharData:
			if len(text) > 0 {
				text[len(text)-1] = append(text[len(text)-1], t...)
			}
		}
	}

	if root == nil {
		return nil, errors.New("document has no root element")
	}
	if len(stack) > 0 {
		return nil, errors.Newf("unclosed element %s", stack[len(stack)-1].name.Local)
	}
	return root, nil
}

// ns is one XML vocabulary. Names match either the resolved namespace URI
// or the bare prefix, since embedded record blocks sometimes use prefixes
// they never declare.
type ns struct {
	uri    string
	prefix string
}

var (
	nsDCTerms = ns{"http://purl.org/dc/terms/", "dcterms"}
	nsDC      = ns{"http://purl.org/dc/elements/1.1/", "dc"}
	nsDCNDL   = ns{"http://ndl.go.jp/dcndl/terms/", "dcndl"}
	nsRDF     = ns{"http://www.w3.org/1999/02/22-rdf-syntax-ns#", "rdf"}
	nsRDFS    = ns{"http://www.w3.org/2000/01/rdf-schema#", "rdfs"}
	nsFOAF    = ns{"http://xmlns.com/foaf/0.1/", "foaf"}
)

func (s ns) is(name xml.Name, local string) bool {
	return name.Local == local && (name.Space == s.uri || name.Space == s.prefix)
}

// all returns the direct children named local in s, in document order.
func (n *node) all(s ns, local string) []*node {
	if n == nil {
		return nil
	}
	var out []*node
	for _, c := range n.children {
		if s.is(c.name, local) {
			out = append(out, c)
		}
	}
	return out
}

// first returns the first direct child named local in s.
func (n *node) first(s ns, local string) *node {
	if n == nil {
		return nil
	}
	for _, c := range n.children {
		if s.is(c.name, local) {
			return c
		}
	}
	return nil
}

// child returns the first direct child with the given local name in any namespace.
func (n *node) child(local string) *node {
	if n == nil {
		return nil
	}
	for _, c := range n.children {
		if c.name.Local == local {
			return c
		}
	}
	return nil
}

// find returns the first descendant (or n itself) named local in s, depth-first.
func (n *node) find(s ns, local string) *node {
	if n == nil {
		return nil
	}
	if s.is(n.name, local) {
		return n
	}
	for _, c := range n.children {
		if f := c.find(s, local); f != nil {
			return f
		}
	}
	return nil
}

// attr returns the value of the first attribute with the given local name.
func (n *node) attr(local string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.attrs {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// value returns the trimmed text of n, or the text of a nested
// rdf:Description/rdf:value when n itself holds none.
func (n *node) value() string {
	if n == nil {
		return ""
	}
	if v := strings.TrimSpace(n.text); v != "" {
		return v
	}
	desc := n.first(nsRDF, "Description")
	return strings.TrimSpace(desc.first(nsRDF, "value").textOrEmpty())
}

func (n *node) textOrEmpty() string {
	if n == nil {
		return ""
	}
	return n.text
}

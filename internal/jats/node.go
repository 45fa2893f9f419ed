// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package jats parses JATS article XML and normalizes it into the
// nested-section document model. It performs no network I/O.
package jats

import (
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"strings"
)

// Node is one element or text node in a parsed XML tree. Element names are
// matched by local name only, so namespace prefixes ("jats:body",
// "ns2:article") are transparent. Children preserve source document order,
// with text interleaved between elements as text nodes.
type Node struct {
	// Name is the element's local name. Empty for text nodes.
	Name string

	// Attrs maps attribute local names to values. Nil when the element
	// has none.
	Attrs map[string]string

	// Kids holds child nodes in document order.
	Kids []*Node

	// Text is the character data of a text node. Empty for elements.
	Text string
}

// IsText reports whether the node is a text node.
func (n *Node) IsText() bool { return n.Name == "" }

// Attr returns the value of the named attribute, or "".
func (n *Node) Attr(name string) string {
	return n.Attrs[name]
}

// Parse reads an XML document into a Node tree rooted at the first top-level
// element. The decoder is lenient: HTML entities are accepted and strictness
// checks are relaxed, since upstream JATS payloads are frequently sloppy.
func Parse(r io.Reader) (*Node, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = false
	dec.Entity = xml.HTMLEntity

	var root *Node
	var stack []*Node
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing XML: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{Name: t.Name.Local}
			if len(t.Attr) > 0 {
				n.Attrs = make(map[string]string, len(t.Attr))
				for _, a := range t.Attr {
					n.Attrs[a.Name.Local] = a.Value
				}
			}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Kids = append(parent.Kids, n)
			} else if root == nil {
				root = n
			}
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) == 0 {
				continue
			}
			s := string(t)
			if strings.TrimSpace(s) == "" {
				continue
			}
			parent := stack[len(stack)-1]
			parent.Kids = append(parent.Kids, &Node{Text: s})
		}
	}
	if root == nil {
		return nil, errors.New("no XML element found")
	}
	return root, nil
}

// Find returns the first descendant element with the given local name, in
// document order, or nil.
func (n *Node) Find(local string) *Node {
	for _, k := range n.Kids {
		if k.Name == local {
			return k
		}
		if d := k.Find(local); d != nil {
			return d
		}
	}
	return nil
}

// FindAll returns all descendant elements with the given local name, in
// document order.
func (n *Node) FindAll(local string) []*Node {
	var out []*Node
	for _, k := range n.Kids {
		if k.Name == local {
			out = append(out, k)
		}
		out = append(out, k.FindAll(local)...)
	}
	return out
}

// Children returns the immediate child elements with the given local name.
func (n *Node) Children(local string) []*Node {
	var out []*Node
	for _, k := range n.Kids {
		if k.Name == local {
			out = append(out, k)
		}
	}
	return out
}

// InnerText returns all descendant character data in document order, joined
// by single spaces with runs of whitespace collapsed.
func (n *Node) InnerText() string {
	var b strings.Builder
	n.writeText(&b)
	return collapseSpace(b.String())
}

func (n *Node) writeText(b *strings.Builder) {
	if n.IsText() {
		b.WriteString(n.Text)
		b.WriteByte(' ')
		return
	}
	for _, k := range n.Kids {
		k.writeText(b)
	}
}

// RawText concatenates all descendant character data without separators or
// whitespace collapsing. Used to recover escaped XML payloads embedded as
// text.
func (n *Node) RawText() string {
	var b strings.Builder
	var walk func(*Node)
	walk = func(m *Node) {
		if m.IsText() {
			b.WriteString(m.Text)
			return
		}
		for _, k := range m.Kids {
			walk(k)
		}
	}
	walk(n)
	return b.String()
}

// Prune removes every descendant element whose local name is in drop.
func (n *Node) Prune(drop map[string]bool) {
	kept := n.Kids[:0]
	for _, k := range n.Kids {
		if !k.IsText() && drop[k.Name] {
			continue
		}
		k.Prune(drop)
		kept = append(kept, k)
	}
	n.Kids = kept
}

// collapseSpace collapses runs of whitespace to single spaces and trims.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// MultiUnescape unescapes HTML entities repeatedly, up to three rounds, to
// recover double-escaped XML payloads embedded in API responses.
func MultiUnescape(s string) string {
	prev := s
	for i := 0; i < 3; i++ {
		cur := html.UnescapeString(prev)
		if cur == prev {
			break
		}
		prev = cur
	}
	return prev
}

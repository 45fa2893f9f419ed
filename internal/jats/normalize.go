// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package jats

import (
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/fulltext-engine/pkg/types"
)

// dropTags lists structural and non-prose JATS elements removed from body
// markup before text extraction, at every nesting level.
var dropTags = map[string]bool{
	"fig":                    true,
	"fig-group":              true,
	"table":                  true,
	"table-wrap":             true,
	"graphic":                true,
	"media":                  true,
	"alternatives":           true,
	"inline-formula":         true,
	"disp-formula":           true,
	"tex-math":               true,
	"ref-list":               true,
	"license":                true,
	"permissions":            true,
	"copyright-statement":    true,
	"supplementary-material": true,
	"fn":                     true,
	"fn-group":               true,
}

// fullTextTitle is the section title used when a body has no explicit
// subsections and is linearized into a single block.
const fullTextTitle = "Full Text"

// Document is the normalized form of one article: title, optional
// front-matter abstract, and the nested-section body.
type Document struct {
	Title    string
	Abstract string
	Sections []types.Section
}

// HasContent reports whether the document carries any extractable content.
// A document with neither sections nor abstract is fetch-failure territory.
func (d *Document) HasContent() bool {
	return d != nil && (len(d.Sections) > 0 || d.Abstract != "")
}

// BodyLen returns the length in characters (runes, not bytes) of the
// flattened body text. The full-text threshold is defined in characters, so
// multibyte text must not count inflated.
func (d *Document) BodyLen() int {
	if d == nil {
		return 0
	}
	return utf8.RuneCountInString(types.FlattenSections(d.Sections))
}

// NormalizeArticle converts a JATS <article> subtree into a Document.
//
// The body defines "full text". When the body is absent the sections are
// empty: the whole document is never linearized in its place, which would
// pollute full text with bibliography and metadata.
func NormalizeArticle(article *Node) *Document {
	doc := &Document{Title: articleTitle(article)}

	front := article.Find("front")
	if front == nil {
		front = article
	}
	doc.Abstract = extractAbstract(front)

	body := article.Find("body")
	if body == nil {
		return doc
	}

	body.Prune(dropTags)
	if secs := body.Children("sec"); len(secs) > 0 {
		for _, sec := range secs {
			if s, ok := sectionNode(sec); ok {
				doc.Sections = append(doc.Sections, s)
			}
		}
		return doc
	}
	if s, ok := linearizeBody(body); ok {
		doc.Sections = append(doc.Sections, s)
	}
	return doc
}

// FindArticle locates the <article> element in a parsed response tree,
// looking through container elements such as <pmc-articleset>.
func FindArticle(root *Node) *Node {
	if root.Name == "article" {
		return root
	}
	return root.Find("article")
}

// articleTitle extracts the article title, preferring the title-group
// variant, defaulting to "Untitled".
func articleTitle(article *Node) string {
	if tg := article.Find("title-group"); tg != nil {
		if at := tg.Find("article-title"); at != nil {
			if t := at.InnerText(); t != "" {
				return t
			}
		}
	}
	if at := article.Find("article-title"); at != nil {
		if t := at.InnerText(); t != "" {
			return t
		}
	}
	return "Untitled"
}

// sectionNode converts a pruned <sec> subtree to a Section. The section's
// own text is the space-joined text of its immediate paragraph children
// only; nested <sec> elements become child sections recursively. Nodes with
// no text and no children are dropped (ok == false).
func sectionNode(sec *Node) (types.Section, bool) {
	s := types.Section{Title: "Untitled Section"}
	if t := sec.Find("title"); t != nil {
		if title := t.InnerText(); title != "" {
			s.Title = title
		}
	}

	var paras []string
	for _, p := range sec.Children("p") {
		if txt := p.InnerText(); txt != "" {
			paras = append(paras, txt)
		}
	}
	s.Text = strings.Join(paras, " ")

	for _, child := range sec.Children("sec") {
		if c, ok := sectionNode(child); ok {
			s.Sections = append(s.Sections, c)
		}
	}

	if s.IsEmpty() {
		return types.Section{}, false
	}
	return s, true
}

// linearizeBody flattens a pruned body with no explicit subsections into a
// single "Full Text" section: paragraphs, list blocks (bullet-joined lines),
// and block quotes, in document order.
func linearizeBody(body *Node) (types.Section, bool) {
	chunks := collectBlocks(body)
	text := strings.Join(chunks, "\n\n")
	if strings.TrimSpace(text) == "" {
		return types.Section{}, false
	}
	return types.Section{Title: fullTextTitle, Text: text}, true
}

// collectBlocks walks the tree in document order emitting prose blocks.
// Lists and quotes are emitted whole; their nested paragraphs are not
// revisited separately.
func collectBlocks(n *Node) []string {
	var chunks []string
	for _, k := range n.Kids {
		if k.IsText() {
			continue
		}
		switch k.Name {
		case "p":
			if txt := k.InnerText(); txt != "" {
				chunks = append(chunks, txt)
			}
		case "list":
			var items []string
			for _, li := range k.Children("list-item") {
				if txt := li.InnerText(); txt != "" {
					items = append(items, "• "+txt)
				}
			}
			if len(items) > 0 {
				chunks = append(chunks, strings.Join(items, "\n"))
			}
		case "disp-quote", "boxed-text":
			if txt := k.InnerText(); txt != "" {
				chunks = append(chunks, txt)
			}
		default:
			chunks = append(chunks, collectBlocks(k)...)
		}
	}
	return chunks
}

// extractAbstract collects abstract text under <abstract> and
// <trans-abstract> elements in document order. A structured abstract emits
// each subsection's label as a prefix line before that subsection's
// paragraphs. Returns "" when no abstract text exists.
func extractAbstract(scope *Node) string {
	var parts []string
	for _, ab := range abstractNodes(scope) {
		if secs := ab.Children("sec"); len(secs) > 0 {
			for _, sec := range secs {
				if t := sec.Find("title"); t != nil {
					if label := t.InnerText(); label != "" {
						parts = append(parts, label)
					}
				}
				for _, p := range sec.Children("p") {
					if txt := p.InnerText(); txt != "" {
						parts = append(parts, txt)
					}
				}
			}
			continue
		}
		ps := ab.Children("p")
		if len(ps) == 0 {
			if txt := ab.InnerText(); txt != "" {
				parts = append(parts, txt)
			}
			continue
		}
		for _, p := range ps {
			if txt := p.InnerText(); txt != "" {
				parts = append(parts, txt)
			}
		}
	}
	return strings.Join(parts, "\n\n")
}

// abstractNodes returns every <abstract> and <trans-abstract> descendant in
// a single document-order walk, so translated abstracts interleave with the
// primary abstract exactly as the markup orders them. Matched nodes are not
// descended into.
func abstractNodes(n *Node) []*Node {
	var found []*Node
	for _, k := range n.Kids {
		if k.IsText() {
			continue
		}
		if k.Name == "abstract" || k.Name == "trans-abstract" {
			found = append(found, k)
			continue
		}
		found = append(found, abstractNodes(k)...)
	}
	return found
}

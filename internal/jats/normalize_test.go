// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package jats

import (
	"strings"
	"testing"
)

func parseArticle(t *testing.T, xmlText string) *Document {
	t.Helper()
	root, err := Parse(strings.NewReader(xmlText))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	article := FindArticle(root)
	if article == nil {
		t.Fatalf("no <article> in test document")
	}
	return NormalizeArticle(article)
}

const sectionedArticleXML = `<?xml version="1.0"?>
<article>
  <front>
    <title-group><article-title>Effects of   Coffee on Code</article-title></title-group>
    <abstract>
      <p>Coffee improves   throughput.</p>
    </abstract>
  </front>
  <body>
    <sec>
      <title>Introduction</title>
      <p>First paragraph.</p>
      <fig><caption><p>A figure caption that must not leak.</p></caption></fig>
      <p>Second <italic>paragraph</italic>.</p>
      <sec>
        <title>Background</title>
        <p>Nested prose.</p>
        <table-wrap><table><tr><td>cell</td></tr></table></table-wrap>
      </sec>
    </sec>
    <sec>
      <title>Methods</title>
      <p>We measured things.</p>
    </sec>
  </body>
</article>`

func TestNormalizeArticleSectioned(t *testing.T) {
	doc := parseArticle(t, sectionedArticleXML)

	if doc.Title != "Effects of Coffee on Code" {
		t.Errorf("title = %q", doc.Title)
	}
	if doc.Abstract != "Coffee improves throughput." {
		t.Errorf("abstract = %q", doc.Abstract)
	}
	if len(doc.Sections) != 2 {
		t.Fatalf("got %d top-level sections, want 2", len(doc.Sections))
	}

	intro := doc.Sections[0]
	if intro.Title != "Introduction" {
		t.Errorf("first section title = %q", intro.Title)
	}
	if intro.Text != "First paragraph. Second paragraph ." && intro.Text != "First paragraph. Second paragraph." {
		// Inline markup boundaries may introduce a space before the period.
		t.Errorf("intro text = %q", intro.Text)
	}
	if strings.Contains(intro.Text, "figure caption") {
		t.Errorf("denylisted figure text leaked into section: %q", intro.Text)
	}
	if len(intro.Sections) != 1 || intro.Sections[0].Title != "Background" {
		t.Fatalf("nested sections = %+v", intro.Sections)
	}
	if intro.Sections[0].Text != "Nested prose." {
		t.Errorf("nested text = %q", intro.Sections[0].Text)
	}
	if doc.Sections[1].Title != "Methods" {
		t.Errorf("second section title = %q", doc.Sections[1].Title)
	}
}

const denylistOnlyArticleXML = `<article>
  <body>
    <sec>
      <title>Figures</title>
      <fig><caption><p>only a figure</p></caption></fig>
      <table-wrap><table><tr><td>only a table</td></tr></table></table-wrap>
    </sec>
  </body>
</article>`

func TestNormalizeArticleDenylistOnlyBodyIsEmpty(t *testing.T) {
	doc := parseArticle(t, denylistOnlyArticleXML)
	if len(doc.Sections) != 0 {
		t.Errorf("sections = %+v, want empty forest", doc.Sections)
	}
	if doc.HasContent() {
		t.Error("document with only denylisted content reports HasContent")
	}
}

const flatArticleXML = `<article>
  <front><article-title>Flat</article-title></front>
  <body>
    <p>Opening paragraph.</p>
    <list>
      <list-item><p>first item</p></list-item>
      <list-item><p>second item</p></list-item>
    </list>
    <p>Middle paragraph.</p>
    <disp-quote><p>A quoted passage.</p></disp-quote>
    <fn><p>a footnote that must not leak</p></fn>
  </body>
</article>`

func TestNormalizeArticleLinearizesFlatBody(t *testing.T) {
	doc := parseArticle(t, flatArticleXML)
	if len(doc.Sections) != 1 {
		t.Fatalf("got %d sections, want 1", len(doc.Sections))
	}
	s := doc.Sections[0]
	if s.Title != "Full Text" {
		t.Errorf("section title = %q", s.Title)
	}

	want := "Opening paragraph.\n\n• first item\n• second item\n\nMiddle paragraph.\n\nA quoted passage."
	if s.Text != want {
		t.Errorf("linearized text = %q, want %q", s.Text, want)
	}
	if strings.Contains(s.Text, "footnote") {
		t.Errorf("denylisted footnote leaked: %q", s.Text)
	}
}

const noBodyArticleXML = `<article>
  <front>
    <article-title>Abstract Only</article-title>
    <abstract>
      <sec><title>Background</title><p>Context here.</p></sec>
      <sec><title>Results</title><p>Findings here.</p></sec>
    </abstract>
  </front>
  <back><ref-list><ref><mixed-citation>Someone 1999</mixed-citation></ref></ref-list></back>
</article>`

func TestNormalizeArticleNoBodyDoesNotSynthesize(t *testing.T) {
	doc := parseArticle(t, noBodyArticleXML)
	if len(doc.Sections) != 0 {
		t.Errorf("sections = %+v, want none when body is absent", doc.Sections)
	}
	want := "Background\n\nContext here.\n\nResults\n\nFindings here."
	if doc.Abstract != want {
		t.Errorf("structured abstract = %q, want %q", doc.Abstract, want)
	}
	if !doc.HasContent() {
		t.Error("abstract-only document should still report content")
	}
}

const interleavedAbstractsXML = `<article>
  <front>
    <trans-abstract><p>Le café améliore le débit.</p></trans-abstract>
    <abstract><p>Coffee improves throughput.</p></abstract>
    <trans-abstract><p>El café mejora el rendimiento.</p></trans-abstract>
  </front>
  <body><sec><title>Only</title><p>Prose.</p></sec></body>
</article>`

func TestNormalizeArticleAbstractsKeepDocumentOrder(t *testing.T) {
	doc := parseArticle(t, interleavedAbstractsXML)
	want := "Le café améliore le débit.\n\nCoffee improves throughput.\n\nEl café mejora el rendimiento."
	if doc.Abstract != want {
		t.Errorf("abstract = %q, want %q", doc.Abstract, want)
	}
}

const subArticleBodyXML = `<article>
  <front><title-group><article-title>Wrapper</article-title></title-group></front>
  <sub-article>
    <body><sec><title>Inner</title><p>Text lives in the sub-article.</p></sec></body>
  </sub-article>
</article>`

func TestNormalizeArticleFindsSubArticleBody(t *testing.T) {
	doc := parseArticle(t, subArticleBodyXML)
	if len(doc.Sections) != 1 {
		t.Fatalf("got %d sections, want 1", len(doc.Sections))
	}
	if doc.Sections[0].Title != "Inner" || doc.Sections[0].Text != "Text lives in the sub-article." {
		t.Errorf("sections = %+v", doc.Sections)
	}
}

func TestNormalizeArticleUntitledDefault(t *testing.T) {
	doc := parseArticle(t, `<article><body><sec><p>text with no titles anywhere</p></sec></body></article>`)
	if doc.Title != "Untitled" {
		t.Errorf("title = %q, want Untitled", doc.Title)
	}
	if len(doc.Sections) != 1 || doc.Sections[0].Title != "Untitled Section" {
		t.Errorf("sections = %+v", doc.Sections)
	}
}

const namespacedArticleXML = `<ns2:article xmlns:ns2="http://example.org/jats">
  <ns2:front><ns2:article-title>Prefixed</ns2:article-title></ns2:front>
  <ns2:body><ns2:sec><ns2:title>Only</ns2:title><ns2:p>Namespaced prose.</ns2:p></ns2:sec></ns2:body>
</ns2:article>`

func TestNormalizeArticleNamespaceAgnostic(t *testing.T) {
	doc := parseArticle(t, namespacedArticleXML)
	if doc.Title != "Prefixed" {
		t.Errorf("title = %q", doc.Title)
	}
	if len(doc.Sections) != 1 || doc.Sections[0].Text != "Namespaced prose." {
		t.Errorf("sections = %+v", doc.Sections)
	}
}

func TestFindArticleThroughArticleSet(t *testing.T) {
	root, err := Parse(strings.NewReader(`<pmc-articleset><article><body><p>x</p></body></article></pmc-articleset>`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if FindArticle(root) == nil {
		t.Error("FindArticle failed to look through pmc-articleset")
	}
}

func TestMultiUnescape(t *testing.T) {
	doubleEscaped := "&amp;lt;article&amp;gt;hi&amp;lt;/article&amp;gt;"
	if got := MultiUnescape(doubleEscaped); got != "<article>hi</article>" {
		t.Errorf("MultiUnescape = %q", got)
	}
	if got := MultiUnescape("plain"); got != "plain" {
		t.Errorf("MultiUnescape(plain) = %q", got)
	}
}

func TestInnerTextCollapsesWhitespace(t *testing.T) {
	root, err := Parse(strings.NewReader("<p>  a\n\t b   <b>c</b> </p>"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := root.InnerText(); got != "a b c" {
		t.Errorf("InnerText = %q, want %q", got, "a b c")
	}
}

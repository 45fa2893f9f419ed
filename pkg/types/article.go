// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "strings"

// Section is a node in the nested-section tree extracted from article XML.
// A section has a title, optional prose of its own, and ordered child
// sections. Nodes with neither text nor children are never retained.
type Section struct {
	// Title is the section heading ("Untitled Section" when the markup
	// carries none).
	Title string `json:"title" yaml:"title"`

	// Text is the space-joined prose of the section's immediate
	// paragraphs. Empty when the section only groups subsections.
	Text string `json:"text,omitempty" yaml:"text,omitempty"`

	// Sections holds child sections in source document order.
	Sections []Section `json:"sections,omitempty" yaml:"sections,omitempty"`
}

// IsEmpty reports whether the section carries no text and no children.
func (s Section) IsEmpty() bool {
	return s.Text == "" && len(s.Sections) == 0
}

// FlattenSections joins all section text in document order, separated by
// blank lines. Used for the full-text length gate.
func FlattenSections(sections []Section) string {
	var parts []string
	var walk func(Section)
	walk = func(s Section) {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
		for _, c := range s.Sections {
			walk(c)
		}
	}
	for _, s := range sections {
		walk(s)
	}
	return strings.Join(parts, "\n\n")
}

// ArticleRecord is one successfully acquired article. The normalized DOI is
// the identity key: the persisted result set never holds two records with
// the same DOI.
type ArticleRecord struct {
	// DOI is the normalized identifier the record was acquired for.
	DOI string `json:"doi" yaml:"doi"`

	// Title is the article title ("Untitled" when the markup carries none).
	Title string `json:"title" yaml:"title"`

	// Journal is the journal name carried through from the input, if any.
	Journal string `json:"journal,omitempty" yaml:"journal,omitempty"`

	// Source names the upstream service that provided the full text
	// (e.g. "pmc", "springer").
	Source string `json:"source" yaml:"source"`

	// CanonicalID is the source-specific accession the article was fetched
	// by (e.g. a PMCID). Empty when the source fetches by DOI directly.
	CanonicalID string `json:"canonical_id,omitempty" yaml:"canonical_id,omitempty"`

	// Abstract is the front-matter abstract, when present.
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// Sections is the nested-section body of the article.
	Sections []Section `json:"sections" yaml:"sections"`
}

// FailureEntry records one identifier the current run could not acquire.
type FailureEntry struct {
	DOI     string `json:"doi" yaml:"doi"`
	Journal string `json:"journal,omitempty" yaml:"journal,omitempty"`
	Reason  string `json:"reason" yaml:"reason"`
}

// RunSummary aggregates one pipeline run: counters plus the effective
// configuration, written fresh each run.
type RunSummary struct {
	Source          string `json:"source" yaml:"source"`
	InputUniqueDOIs int    `json:"input_unique_dois" yaml:"input_unique_dois"`
	Appended        int    `json:"appended" yaml:"appended"`
	SkippedExisting int    `json:"skipped_existing" yaml:"skipped_existing"`
	Failures        int    `json:"failures" yaml:"failures"`

	ResultsPath  string `json:"results_path" yaml:"results_path"`
	FailuresPath string `json:"failures_path,omitempty" yaml:"failures_path,omitempty"`

	ResolveBatchSize int  `json:"resolve_batch_size" yaml:"resolve_batch_size"`
	FetchBatchSize   int  `json:"fetch_batch_size" yaml:"fetch_batch_size"`
	Workers          int  `json:"workers" yaml:"workers"`
	MinFulltextChars int  `json:"min_fulltext_chars" yaml:"min_fulltext_chars"`
	RequireFulltext  bool `json:"require_fulltext" yaml:"require_fulltext"`
	FallbackEnabled  bool `json:"fallback_enabled" yaml:"fallback_enabled"`
}

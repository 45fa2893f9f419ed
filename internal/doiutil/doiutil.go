// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package doiutil normalizes DOI identifiers. Every identifier entering the
// pipeline passes through Normalize before deduplication, lookup, or
// persistence comparison; callers never compare raw strings.
package doiutil

import (
	"regexp"
	"strings"
	"unicode"
)

// resolverPrefix matches a leading DOI resolver URL ("https://doi.org/",
// "http://dx.doi.org/", any case).
var resolverPrefix = regexp.MustCompile(`(?i)^https?://(dx\.)?doi\.org/`)

// doiPattern matches DOIs: "10.1145/1234567.1234568".
var doiPattern = regexp.MustCompile(`^10\.\d{4,9}/\S+$`)

// Normalize converts a raw identifier to its canonical form: resolver-URL
// prefix stripped, all whitespace and zero-width spaces removed, lowercased.
// DOIs never legitimately contain whitespace, so stray spaces from copy-paste
// are dropped rather than preserved. It returns "" when nothing remains.
// Normalize is total and idempotent: Normalize(Normalize(x)) == Normalize(x)
// for every input.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	s = resolverPrefix.ReplaceAllString(s, "")
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '​' {
			return -1
		}
		return r
	}, s)
	return strings.ToLower(s)
}

// Looks reports whether the normalized form of raw looks like a DOI.
func Looks(raw string) bool {
	return doiPattern.MatchString(Normalize(raw))
}

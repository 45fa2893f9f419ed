// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package doiutil

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare doi", "10.1145/1234567.1234568", "10.1145/1234567.1234568"},
		{"uppercase folded", "10.1038/S41586-024-07487-W", "10.1038/s41586-024-07487-w"},
		{"https resolver prefix", "https://doi.org/10.1145/1234567", "10.1145/1234567"},
		{"http dx resolver prefix", "http://dx.doi.org/10.1145/1234567", "10.1145/1234567"},
		{"mixed-case resolver prefix", "HTTPS://DOI.ORG/10.1145/1234567", "10.1145/1234567"},
		{"surrounding whitespace", "  10.1/abc  ", "10.1/abc"},
		{"internal whitespace", "10.1/ abc", "10.1/abc"},
		{"zero-width space", "10.1/​abc", "10.1/abc"},
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
		{"resolver prefix only", "https://doi.org/", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"10.1145/1234567.1234568",
		"https://doi.org/10.1/ABC",
		"  HTTP://DX.DOI.ORG/10.99/x​y  ",
		"",
		"not a doi at all",
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: first %q, second %q", in, once, twice)
		}
	}
}

func TestNormalizePrefixedEqualsBare(t *testing.T) {
	if got, want := Normalize("https://doi.org/10.1/ABC"), Normalize("10.1/abc"); got != want {
		t.Errorf("prefixed form normalized to %q, bare form to %q", got, want)
	}
}

func TestLooks(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"10.1145/1234567.1234568", true},
		{"https://doi.org/10.1038/s41586-024-07487-w", true},
		{"PMC1234567", false},
		{"", false},
		{"10.1/", false},
	}
	for _, tt := range tests {
		if got := Looks(tt.input); got != tt.want {
			t.Errorf("Looks(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

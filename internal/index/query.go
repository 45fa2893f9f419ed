// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// QueryOptions holds parameters for index queries.
type QueryOptions struct {
	// Query is the FTS5 full-text search string over section text.
	Query string

	// Title filters articles whose title contains the substring
	// (case-insensitive).
	Title string

	// Journal filters articles whose journal contains the substring
	// (case-insensitive).
	Journal string

	// Source filters by acquisition source ("pmc", "springer").
	Source string

	// DOI filters by exact normalized DOI.
	DOI string

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// IsEmpty reports whether the query has no search terms or filters.
func (q QueryOptions) IsEmpty() bool {
	return q.Query == "" && q.Title == "" && q.Journal == "" && q.Source == "" && q.DOI == ""
}

// QueryResult is one matching article, with the matched section path when
// the query used full-text search.
type QueryResult struct {
	DOI         string `json:"doi" yaml:"doi"`
	Title       string `json:"title" yaml:"title"`
	Journal     string `json:"journal,omitempty" yaml:"journal,omitempty"`
	Source      string `json:"source" yaml:"source"`
	SectionPath string `json:"section_path,omitempty" yaml:"section_path,omitempty"`
}

// Query searches the index. Full-text queries rank by FTS5 relevance;
// filter-only queries sort by DOI.
func (s *Store) Query(ctx context.Context, opts QueryOptions) ([]QueryResult, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb     strings.Builder
		args   []any
		useFTS = opts.Query != ""
	)

	if useFTS {
		qb.WriteString(
			`SELECT a.doi, a.title, a.journal, a.source, sec.path, sections_fts.rank
			FROM sections_fts
			JOIN sections sec ON sec.rowid = sections_fts.rowid
			JOIN articles a ON a.doi = sec.doi
			WHERE sections_fts MATCH ?`)
		args = append(args, opts.Query)
	} else {
		qb.WriteString(
			`SELECT a.doi, a.title, a.journal, a.source, NULL, 0 AS rank
			FROM articles a
			WHERE 1=1`)
	}

	if opts.Title != "" {
		qb.WriteString(` AND a.title LIKE ? COLLATE NOCASE`)
		args = append(args, "%"+opts.Title+"%")
	}
	if opts.Journal != "" {
		qb.WriteString(` AND a.journal LIKE ? COLLATE NOCASE`)
		args = append(args, "%"+opts.Journal+"%")
	}
	if opts.Source != "" {
		qb.WriteString(` AND a.source = ?`)
		args = append(args, opts.Source)
	}
	if opts.DOI != "" {
		qb.WriteString(` AND a.doi = ?`)
		args = append(args, opts.DOI)
	}

	if useFTS {
		qb.WriteString(` ORDER BY sections_fts.rank`)
	} else {
		qb.WriteString(` ORDER BY a.doi`)
	}

	qb.WriteString(` LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}
	defer rows.Close()

	var results []QueryResult
	for rows.Next() {
		var (
			qr   QueryResult
			path sql.NullString
			rank float64
		)
		if err := rows.Scan(&qr.DOI, &qr.Title, &qr.Journal, &qr.Source, &path, &rank); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if path.Valid {
			qr.SectionPath = path.String
		}
		results = append(results, qr)
	}

	return results, rows.Err()
}

// SourceCount is one per-source tally in the index statistics.
type SourceCount struct {
	Source string `json:"source" yaml:"source"`
	Count  int    `json:"count" yaml:"count"`
}

// JournalCount is one per-journal tally in the index statistics.
type JournalCount struct {
	Journal string `json:"journal" yaml:"journal"`
	Count   int    `json:"count" yaml:"count"`
}

// Stats aggregates the index contents.
type Stats struct {
	Articles      int            `json:"articles" yaml:"articles"`
	Sections      int            `json:"sections" yaml:"sections"`
	FulltextChars int            `json:"fulltext_chars" yaml:"fulltext_chars"`
	BySource      []SourceCount  `json:"by_source" yaml:"by_source"`
	ByJournal     []JournalCount `json:"by_journal" yaml:"by_journal"`
}

// Stats reports article, section, and character totals with per-source and
// per-journal breakdowns.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var st Stats

	err := s.db.QueryRowContext(ctx,
		`SELECT count(*), coalesce(sum(fulltext_chars), 0) FROM articles`,
	).Scan(&st.Articles, &st.FulltextChars)
	if err != nil {
		return nil, fmt.Errorf("counting articles: %w", err)
	}

	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM sections`).Scan(&st.Sections); err != nil {
		return nil, fmt.Errorf("counting sections: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT source, count(*) FROM articles GROUP BY source ORDER BY count(*) DESC, source`)
	if err != nil {
		return nil, fmt.Errorf("counting by source: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sc SourceCount
		if err := rows.Scan(&sc.Source, &sc.Count); err != nil {
			return nil, fmt.Errorf("scanning source count: %w", err)
		}
		st.BySource = append(st.BySource, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	jrows, err := s.db.QueryContext(ctx,
		`SELECT journal, count(*) FROM articles WHERE journal != '' GROUP BY journal ORDER BY count(*) DESC, journal`)
	if err != nil {
		return nil, fmt.Errorf("counting by journal: %w", err)
	}
	defer jrows.Close()
	for jrows.Next() {
		var jc JournalCount
		if err := jrows.Scan(&jc.Journal, &jc.Count); err != nil {
			return nil, fmt.Errorf("scanning journal count: %w", err)
		}
		st.ByJournal = append(st.ByJournal, jc)
	}
	return &st, jrows.Err()
}

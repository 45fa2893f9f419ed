// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package index maintains a local SQLite index over the acquired result
// set so downstream tooling can search titles, journals, and section text
// without re-parsing the JSON result file.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/fulltext-engine/internal/fulltext"
	"github.com/pdiddy/fulltext-engine/pkg/types"
)

const dbFile = "fulltext.db"

// Store manages the article index SQLite database.
type Store struct {
	db         *sql.DB
	maxResults int
}

// NewStore opens or creates the index database at cfg.IndexDir/fulltext.db
// and creates the schema if it does not exist.
func NewStore(cfg types.IndexConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.IndexDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dbPath := filepath.Join(cfg.IndexDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	s := &Store{db: db, maxResults: maxResults}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS articles (
			doi TEXT PRIMARY KEY,
			title TEXT,
			journal TEXT,
			source TEXT,
			canonical_id TEXT,
			abstract TEXT,
			fulltext_chars INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS sections (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			doi TEXT NOT NULL REFERENCES articles(doi),
			path TEXT,
			depth INTEGER,
			content TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sections_doi ON sections(doi)`,
		`CREATE TABLE IF NOT EXISTS build_status (
			results_path TEXT PRIMARY KEY,
			file_mod_time TEXT
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='sections_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE sections_fts USING fts5(content, content=sections, content_rowid=rowid)`,
			`CREATE TRIGGER sections_ai AFTER INSERT ON sections BEGIN
				INSERT INTO sections_fts(rowid, content) VALUES (new.rowid, new.content);
			END`,
			`CREATE TRIGGER sections_ad AFTER DELETE ON sections BEGIN
				INSERT INTO sections_fts(sections_fts, rowid, content) VALUES('delete', old.rowid, old.content);
			END`,
			`CREATE TRIGGER sections_au AFTER UPDATE ON sections BEGIN
				INSERT INTO sections_fts(sections_fts, rowid, content) VALUES('delete', old.rowid, old.content);
				INSERT INTO sections_fts(rowid, content) VALUES (new.rowid, new.content);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}

	return nil
}

// BuildSummary holds counts from an index build run.
type BuildSummary struct {
	Indexed int
	Skipped bool
}

// Build loads the acquired result set from resultsPath into the index.
// The whole file is re-indexed when its modification time differs from
// the last build; an unchanged file is skipped.
func (s *Store) Build(ctx context.Context, resultsPath string, w io.Writer) (BuildSummary, error) {
	info, err := os.Stat(resultsPath)
	if err != nil {
		return BuildSummary{}, fmt.Errorf("stating %s: %w", resultsPath, err)
	}
	modTime := info.ModTime().UTC().Format(time.RFC3339Nano)

	absPath, err := filepath.Abs(resultsPath)
	if err != nil {
		return BuildSummary{}, fmt.Errorf("resolving %s: %w", resultsPath, err)
	}

	var storedModTime string
	err = s.db.QueryRowContext(ctx,
		`SELECT file_mod_time FROM build_status WHERE results_path = ?`, absPath,
	).Scan(&storedModTime)
	if err == nil && storedModTime == modTime {
		fmt.Fprintf(w, "index up to date (%s unchanged)\n", resultsPath)
		return BuildSummary{Skipped: true}, nil
	}

	records, _, err := fulltext.LoadRecords(resultsPath)
	if err != nil {
		return BuildSummary{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return BuildSummary{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range records {
		select {
		case <-ctx.Done():
			return BuildSummary{}, ctx.Err()
		default:
		}
		if err := indexArticle(ctx, tx, rec); err != nil {
			return BuildSummary{}, fmt.Errorf("indexing %s: %w", rec.DOI, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO build_status (results_path, file_mod_time) VALUES (?, ?)
		 ON CONFLICT(results_path) DO UPDATE SET file_mod_time=excluded.file_mod_time`,
		absPath, modTime,
	)
	if err != nil {
		return BuildSummary{}, fmt.Errorf("updating build status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return BuildSummary{}, fmt.Errorf("committing: %w", err)
	}

	fmt.Fprintf(w, "indexed %d articles from %s\n", len(records), resultsPath)
	return BuildSummary{Indexed: len(records)}, nil
}

func indexArticle(ctx context.Context, tx *sql.Tx, rec types.ArticleRecord) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM sections WHERE doi = ?`, rec.DOI); err != nil {
		return fmt.Errorf("deleting old sections: %w", err)
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO articles (doi, title, journal, source, canonical_id, abstract, fulltext_chars)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(doi) DO UPDATE SET
			title=excluded.title, journal=excluded.journal, source=excluded.source,
			canonical_id=excluded.canonical_id, abstract=excluded.abstract,
			fulltext_chars=excluded.fulltext_chars`,
		rec.DOI, rec.Title, rec.Journal, rec.Source, rec.CanonicalID,
		rec.Abstract, utf8.RuneCountInString(types.FlattenSections(rec.Sections)),
	)
	if err != nil {
		return fmt.Errorf("upserting article: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO sections (doi, path, depth, content) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	var walk func(secs []types.Section, prefix string, depth int) error
	walk = func(secs []types.Section, prefix string, depth int) error {
		for _, sec := range secs {
			path := sec.Title
			if prefix != "" {
				path = prefix + " > " + sec.Title
			}
			if sec.Text != "" {
				if _, err := stmt.ExecContext(ctx, rec.DOI, path, depth, sec.Text); err != nil {
					return fmt.Errorf("inserting section %q: %w", path, err)
				}
			}
			if err := walk(sec.Sections, path, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(rec.Sections, "", 0)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/fulltext-engine/internal/fulltext"
	"github.com/pdiddy/fulltext-engine/internal/index"
	"github.com/pdiddy/fulltext-engine/pkg/types"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the local article search index (build, query, stats)",
	Long: `Index maintains a SQLite database over the acquired result set so
downstream tooling can search titles, journals, and section text without
re-parsing the JSON file.`,
}

// --- build subcommand ---

var indexBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Load the result set into the search index",
	Long: `Build reads the acquired result set JSON and (re)indexes every article
with FTS5 over section text. An unchanged result file is skipped.`,
	RunE: runIndexBuild,
}

func runIndexBuild(cmd *cobra.Command, args []string) error {
	store, err := openIndex(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	resultsPath, _ := cmd.Flags().GetString("results")
	if resultsPath == "" {
		resultsPath = filepath.Join(defaultOutputDir, fulltext.ResultsFile)
	}

	_, err = store.Build(cmd.Context(), resultsPath, os.Stdout)
	return err
}

// --- query subcommand ---

var indexQueryCmd = &cobra.Command{
	Use:   "query [search terms]",
	Short: "Search the index with full-text search and filters",
	Long: `Query searches indexed section text with FTS5, or filters articles by
title, journal, source, or DOI. Full-text results rank by relevance and name
the matching section.`,
	RunE: runIndexQuery,
}

func runIndexQuery(cmd *cobra.Command, args []string) error {
	opts := queryOptsFromFlags(cmd, args)
	if opts.IsEmpty() {
		return fmt.Errorf("query or filter required: provide search terms, --title, --journal, --source, or --doi")
	}

	store, err := openIndex(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	results, err := store.Query(cmd.Context(), opts)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatQueryOutput(results, jsonOutput)
}

func formatQueryOutput(results []index.QueryResult, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-4s  %-30s  %-40s  %-20s  %s\n",
		"Rank", "DOI", "Title", "Journal", "Section")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))

	for i, r := range results {
		doi := r.DOI
		if len(doi) > 30 {
			doi = doi[:27] + "..."
		}
		title := r.Title
		if len(title) > 40 {
			title = title[:37] + "..."
		}
		journal := r.Journal
		if len(journal) > 20 {
			journal = journal[:17] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-4d  %-30s  %-40s  %-20s  %s\n",
			i+1, doi, title, journal, r.SectionPath)
	}

	fmt.Fprintf(os.Stdout, "\n%d results\n", len(results))
	return nil
}

// --- stats subcommand ---

var indexStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print index totals and per-source, per-journal counts",
	RunE:  runIndexStats,
}

func runIndexStats(cmd *cobra.Command, args []string) error {
	store, err := openIndex(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.Stats(cmd.Context())
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	fmt.Printf("articles: %d\nsections: %d\nfulltext chars: %d\n", stats.Articles, stats.Sections, stats.FulltextChars)
	if len(stats.BySource) > 0 {
		fmt.Println("\nby source:")
		for _, sc := range stats.BySource {
			fmt.Printf("  %-12s %d\n", sc.Source, sc.Count)
		}
	}
	if len(stats.ByJournal) > 0 {
		fmt.Println("\nby journal:")
		for _, jc := range stats.ByJournal {
			fmt.Printf("  %-40s %d\n", jc.Journal, jc.Count)
		}
	}
	return nil
}

// --- shared helpers ---

func openIndex(cmd *cobra.Command) (*index.Store, error) {
	indexDir, _ := cmd.Flags().GetString("index-dir")
	if indexDir == "" {
		indexDir = "index"
	}
	maxResults, _ := cmd.Flags().GetInt("max-results")

	return index.NewStore(types.IndexConfig{
		IndexDir:   indexDir,
		MaxResults: maxResults,
	})
}

func queryOptsFromFlags(cmd *cobra.Command, args []string) index.QueryOptions {
	queryText := strings.Join(args, " ")
	title, _ := cmd.Flags().GetString("title")
	journal, _ := cmd.Flags().GetString("journal")
	src, _ := cmd.Flags().GetString("source")
	doi, _ := cmd.Flags().GetString("doi")
	limit, _ := cmd.Flags().GetInt("limit")

	return index.QueryOptions{
		Query:      queryText,
		Title:      title,
		Journal:    journal,
		Source:     src,
		DOI:        doi,
		MaxResults: limit,
	}
}

func init() {
	// Shared flags on the parent command, inherited by subcommands.
	indexCmd.PersistentFlags().String("index-dir", "index", "directory holding the index database")
	indexCmd.PersistentFlags().Int("max-results", 20, "default maximum number of query results")

	// Build flags.
	indexBuildCmd.Flags().String("results", "", "result set JSON to index (default fulltext/fulltext_articles.json)")

	// Query flags.
	indexQueryCmd.Flags().String("title", "", "filter by title substring")
	indexQueryCmd.Flags().String("journal", "", "filter by journal substring")
	indexQueryCmd.Flags().String("source", "", "filter by acquisition source")
	indexQueryCmd.Flags().String("doi", "", "filter by exact DOI")
	indexQueryCmd.Flags().Int("limit", 0, "maximum results (0 = use default)")
	indexQueryCmd.Flags().Bool("json", false, "output results as JSON")

	// Stats flags.
	indexStatsCmd.Flags().Bool("json", false, "output stats as JSON")

	// Wire subcommands.
	indexCmd.AddCommand(indexBuildCmd)
	indexCmd.AddCommand(indexQueryCmd)
	indexCmd.AddCommand(indexStatsCmd)

	rootCmd.AddCommand(indexCmd)
}

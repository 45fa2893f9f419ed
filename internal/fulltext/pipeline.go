// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fulltext orchestrates the acquisition pipeline: batched DOI
// resolution, batched document fetch with optional per-item fallback,
// content classification, and resumable incremental persistence.
package fulltext

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/pdiddy/fulltext-engine/internal/batch"
	"github.com/pdiddy/fulltext-engine/internal/doiutil"
	"github.com/pdiddy/fulltext-engine/internal/jats"
	"github.com/pdiddy/fulltext-engine/internal/source"
	"github.com/pdiddy/fulltext-engine/pkg/types"
)

// Output file names within the configured output directory.
const (
	ResultsFile  = "fulltext_articles.json"
	FailuresFile = "fulltext_skipped.csv"
	SummaryFile  = "fulltext_summary.yaml"
)

// Defaults applied when the corresponding config field is zero.
const (
	defaultResolveBatchSize = 150
	defaultFetchBatchSize   = 80
	defaultWorkers          = 4
	defaultMinFulltextChars = 200
)

// Input is one identifier entering the pipeline, with the journal name the
// bibliographic collaborator attached to it.
type Input struct {
	DOI     string
	Journal string
}

// workItem is one deduplicated, normalized identifier still outstanding.
type workItem struct {
	doi     string // normalized
	journal string
}

// Run drives one acquisition run end to end and persists the result set,
// the failure ledger, and the run summary under cfg.OutputDir. It is
// idempotent: re-running against the same input and output yields no new
// records and no new failures. Only Run writes output files, once, after
// all batches complete.
func Run(ctx context.Context, src source.Source, inputs []Input, cfg types.FulltextConfig, w io.Writer) (*types.RunSummary, error) {
	applyDefaults(&cfg)

	resultsPath := filepath.Join(cfg.OutputDir, ResultsFile)
	failuresPath := filepath.Join(cfg.OutputDir, FailuresFile)
	summaryPath := filepath.Join(cfg.OutputDir, SummaryFile)

	records, seen, err := LoadRecords(resultsPath)
	if err != nil {
		return nil, err
	}

	var failures []types.FailureEntry

	// Normalize and deduplicate; invalid identifiers fail immediately,
	// already-present ones short-circuit out of the run.
	var todo []workItem
	inputSeen := make(map[string]bool)
	skippedExisting := 0
	for _, in := range inputs {
		dn := doiutil.Normalize(in.DOI)
		if dn == "" {
			failures = append(failures, types.FailureEntry{DOI: in.DOI, Journal: in.Journal, Reason: "invalid identifier"})
			continue
		}
		if inputSeen[dn] {
			continue
		}
		inputSeen[dn] = true
		if seen[dn] {
			skippedExisting++
			continue
		}
		todo = append(todo, workItem{doi: dn, journal: in.Journal})
	}

	// Stage A: DOI -> canonical ID, batched through the worker pool.
	dois := make([]string, len(todo))
	for i, item := range todo {
		dois[i] = item.doi
	}
	resolveCfg := batch.Config{
		BatchSize: cfg.ResolveBatchSize,
		Workers:   cfg.Workers,
		Delay:     cfg.BatchDelay,
		OnBatch: func(done, total int) {
			fmt.Fprintf(w, "resolve: batch %d/%d\n", done, total)
		},
	}
	canonical, resolveFails := batch.Run(ctx, dois, resolveCfg, func(ctx context.Context, b []string) (map[string]string, []batch.Failure, error) {
		m, fails := src.ResolveBatch(ctx, b)
		return m, fails, nil
	})
	resolveReason := reasonIndex(resolveFails)

	// Stage B: canonical ID -> parsed document.
	var ids []string
	for _, item := range todo {
		if id, ok := canonical[item.doi]; ok {
			ids = append(ids, id)
		}
	}
	fetchCfg := batch.Config{
		BatchSize: cfg.FetchBatchSize,
		Workers:   cfg.Workers,
		Delay:     cfg.BatchDelay,
		OnBatch: func(done, total int) {
			fmt.Fprintf(w, "fetch: batch %d/%d\n", done, total)
		},
	}
	fetched, fetchFails := batch.Run(ctx, ids, fetchCfg, func(ctx context.Context, b []string) (map[string]*jats.Document, []batch.Failure, error) {
		m, fails := src.FetchBatch(ctx, b)
		return m, fails, nil
	})
	fetchReason := reasonIndex(fetchFails)

	// Stage C: classify every outstanding identifier.
	appended := 0
	for _, item := range todo {
		id, ok := canonical[item.doi]
		if !ok {
			reason := resolveReason[item.doi]
			if reason == "" {
				reason = "no canonical id"
			}
			failures = append(failures, types.FailureEntry{DOI: item.doi, Journal: item.journal, Reason: reason})
			continue
		}

		doc := fetched[id]
		if doc == nil && cfg.FallbackEnabled {
			if single, err := src.FetchSingle(ctx, id); err == nil {
				doc = single
			}
		}
		if doc == nil {
			reason := fetchReason[id]
			if reason == "" {
				reason = "fetch failed"
			}
			failures = append(failures, types.FailureEntry{DOI: item.doi, Journal: item.journal, Reason: reason})
			continue
		}

		if cfg.RequireFulltext && doc.BodyLen() < cfg.MinFulltextChars {
			failures = append(failures, types.FailureEntry{DOI: item.doi, Journal: item.journal, Reason: "abstract_only"})
			continue
		}

		rec := types.ArticleRecord{
			DOI:      item.doi,
			Title:    doc.Title,
			Journal:  item.journal,
			Source:   src.Name(),
			Abstract: doc.Abstract,
			Sections: doc.Sections,
		}
		if id != item.doi {
			rec.CanonicalID = id
		}
		records = append(records, rec)
		seen[item.doi] = true
		appended++
	}

	if err := SaveRecords(resultsPath, records); err != nil {
		return nil, err
	}
	if err := WriteFailures(failuresPath, failures); err != nil {
		return nil, err
	}

	summary := &types.RunSummary{
		Source:           src.Name(),
		InputUniqueDOIs:  len(inputSeen),
		Appended:         appended,
		SkippedExisting:  skippedExisting,
		Failures:         len(failures),
		ResultsPath:      resultsPath,
		ResolveBatchSize: cfg.ResolveBatchSize,
		FetchBatchSize:   cfg.FetchBatchSize,
		Workers:          cfg.Workers,
		MinFulltextChars: cfg.MinFulltextChars,
		RequireFulltext:  cfg.RequireFulltext,
		FallbackEnabled:  cfg.FallbackEnabled,
	}
	if len(failures) > 0 {
		summary.FailuresPath = failuresPath
	}
	if err := WriteSummary(summaryPath, summary); err != nil {
		return nil, err
	}

	fmt.Fprintf(w, "\nRun summary: %d appended, %d already present, %d failed (input: %d unique)\n",
		summary.Appended, summary.SkippedExisting, summary.Failures, summary.InputUniqueDOIs)
	return summary, nil
}

func applyDefaults(cfg *types.FulltextConfig) {
	if cfg.ResolveBatchSize <= 0 {
		cfg.ResolveBatchSize = defaultResolveBatchSize
	}
	if cfg.FetchBatchSize <= 0 {
		cfg.FetchBatchSize = defaultFetchBatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.MinFulltextChars <= 0 {
		cfg.MinFulltextChars = defaultMinFulltextChars
	}
}

// reasonIndex maps failed items to their first recorded reason.
func reasonIndex(fails []batch.Failure) map[string]string {
	out := make(map[string]string, len(fails))
	for _, f := range fails {
		if _, ok := out[f.Item]; !ok {
			out[f.Item] = f.Reason
		}
	}
	return out
}

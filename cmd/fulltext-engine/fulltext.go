// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/fulltext-engine/internal/fulltext"
	"github.com/pdiddy/fulltext-engine/internal/source"
	"github.com/pdiddy/fulltext-engine/pkg/types"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultUserAgent = "fulltext-engine/0.1"
	defaultOutputDir = "fulltext"
)

var fulltextCmd = &cobra.Command{
	Use:   "fulltext [dois...]",
	Short: "Acquire full-text articles for a list of DOIs",
	Long: `Fulltext resolves DOIs to source-specific canonical IDs, fetches article
XML in batches, normalizes it into nested sections, and appends accepted
records to the result set. Already-acquired DOIs are skipped, so interrupted
runs resume where they left off.

Identifiers come from a two-column CSV (doi, journal) via --input, or as
bare DOI arguments. Failures for the current run are written to a CSV
ledger next to the result set.`,
	RunE: runFulltext,
}

func init() {
	fulltextCmd.Flags().String("input", "", "CSV file of identifiers (columns: doi, journal)")
	fulltextCmd.Flags().String("source", "pmc", "acquisition source: pmc or springer")
	fulltextCmd.Flags().String("output-dir", "", "output directory (default \"fulltext\")")
	fulltextCmd.Flags().Int("resolve-batch-size", 0, "identifiers per bulk resolution call (default 150)")
	fulltextCmd.Flags().Int("fetch-batch-size", 0, "canonical IDs per bulk fetch call (default 80)")
	fulltextCmd.Flags().Int("workers", 0, "concurrent batch workers (default 4)")
	fulltextCmd.Flags().Duration("batch-delay", 0, "politeness pause per worker after each batch")
	fulltextCmd.Flags().Duration("timeout", 0, "HTTP request timeout (default 60s)")
	fulltextCmd.Flags().Int("min-chars", 0, "minimum body length to count as full text (default 200)")
	fulltextCmd.Flags().Bool("allow-abstract-only", false, "keep records whose body falls below --min-chars")
	fulltextCmd.Flags().Bool("fallback", true, "retry bulk-fetch misses through single-item endpoints")
	fulltextCmd.Flags().String("api-key", "", "source API key (Springer required, NCBI optional)")
	fulltextCmd.Flags().String("contact", "", "contact email sent to EuropePMC")

	rootCmd.AddCommand(fulltextCmd)
}

func runFulltext(cmd *cobra.Command, args []string) error {
	inputPath, _ := cmd.Flags().GetString("input")

	inputs, err := collectInputs(inputPath, args)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("provide DOIs as arguments or a CSV file via --input")
	}

	cfg := fulltextConfig(cmd)
	src, err := buildSource(cmd, cfg.HTTPConfig)
	if err != nil {
		return err
	}

	summary, err := fulltext.Run(cmd.Context(), src, inputs, cfg, os.Stdout)
	if err != nil {
		return err
	}
	if summary.Failures > 0 {
		return fmt.Errorf("%d identifier(s) failed acquisition (see %s)", summary.Failures, summary.FailuresPath)
	}
	return nil
}

func fulltextConfig(cmd *cobra.Command) types.FulltextConfig {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout == 0 {
		timeout = defaultTimeout
	}
	outputDir, _ := cmd.Flags().GetString("output-dir")
	if outputDir == "" {
		outputDir = viper.GetString("output_dir")
	}
	if outputDir == "" {
		outputDir = defaultOutputDir
	}
	resolveBatch, _ := cmd.Flags().GetInt("resolve-batch-size")
	fetchBatch, _ := cmd.Flags().GetInt("fetch-batch-size")
	workers, _ := cmd.Flags().GetInt("workers")
	batchDelay, _ := cmd.Flags().GetDuration("batch-delay")
	minChars, _ := cmd.Flags().GetInt("min-chars")
	allowAbstract, _ := cmd.Flags().GetBool("allow-abstract-only")
	fallback, _ := cmd.Flags().GetBool("fallback")

	return types.FulltextConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   timeout,
			UserAgent: defaultUserAgent,
		},
		OutputDir:        outputDir,
		ResolveBatchSize: resolveBatch,
		FetchBatchSize:   fetchBatch,
		Workers:          workers,
		BatchDelay:       batchDelay,
		MinFulltextChars: minChars,
		RequireFulltext:  !allowAbstract,
		FallbackEnabled:  fallback,
	}
}

func buildSource(cmd *cobra.Command, httpCfg types.HTTPConfig) (source.Source, error) {
	name, _ := cmd.Flags().GetString("source")
	apiKey, _ := cmd.Flags().GetString("api-key")
	contact, _ := cmd.Flags().GetString("contact")

	switch name {
	case "pmc":
		return source.NewPMC(types.PMCConfig{
			HTTPConfig: httpCfg,
			APIKey:     secretDefault(apiKey, "NCBI_API_KEY", "ncbi-api-key"),
			Contact:    secretDefault(contact, "CONTACT_EMAIL", "contact-email"),
		}), nil
	case "springer":
		return source.NewSpringer(types.SpringerConfig{
			HTTPConfig:        httpCfg,
			APIKey:            secretDefault(apiKey, "SPRINGER_API_KEY", "springer-api-key"),
			RequestsPerMinute: viper.GetInt("springer_rpm"),
		})
	default:
		return nil, fmt.Errorf("unknown source %q: use pmc or springer", name)
	}
}

// collectInputs merges the CSV file (when given) with bare DOI arguments.
func collectInputs(path string, args []string) ([]fulltext.Input, error) {
	var inputs []fulltext.Input

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening input file: %w", err)
		}
		defer f.Close()

		fromCSV, err := readInputCSV(f)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		inputs = append(inputs, fromCSV...)
	}

	for _, arg := range args {
		inputs = append(inputs, fulltext.Input{DOI: arg})
	}
	return inputs, nil
}

// readInputCSV parses (doi, journal) rows. A header row naming the doi
// column is skipped; a missing journal column is fine.
func readInputCSV(r io.Reader) ([]fulltext.Input, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}

	var inputs []fulltext.Input
	for i, row := range rows {
		if len(row) == 0 || row[0] == "" {
			continue
		}
		if i == 0 && strings.EqualFold(strings.TrimSpace(row[0]), "doi") {
			continue
		}
		in := fulltext.Input{DOI: row[0]}
		if len(row) > 1 {
			in.Journal = strings.TrimSpace(row[1])
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fulltext

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/fulltext-engine/internal/doiutil"
	"github.com/pdiddy/fulltext-engine/pkg/types"
)

// LoadRecords reads the accumulated result set. A missing or empty file is
// an empty result set, not an error. The returned set maps normalized DOIs
// already present, for resume filtering.
func LoadRecords(path string) ([]types.ArticleRecord, map[string]bool, error) {
	seen := make(map[string]bool)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, seen, nil
		}
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, seen, nil
	}

	var records []types.ArticleRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	for _, rec := range records {
		if dn := doiutil.Normalize(rec.DOI); dn != "" {
			seen[dn] = true
		}
	}
	return records, seen, nil
}

// SaveRecords rewrites the whole result set atomically: the union of old and
// new records is written to a temporary file and renamed into place, so a
// cancelled run never leaves a half-written result set.
func SaveRecords(path string, records []types.ArticleRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling records: %w", err)
	}
	return writeAtomic(path, data)
}

// WriteFailures dumps the current run's failure ledger as CSV. With no
// failures any stale ledger from a previous run is removed, keeping the
// file scoped to the current run only.
func WriteFailures(path string, failures []types.FailureEntry) error {
	if len(failures) == 0 {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing stale %s: %w", path, err)
		}
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	cw := csv.NewWriter(f)
	if err := cw.Write([]string{"doi", "journal", "reason"}); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	for _, fe := range failures {
		if err := cw.Write([]string{fe.DOI, fe.Journal, fe.Reason}); err != nil {
			f.Close()
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// WriteSummary writes the run summary YAML, overwriting the previous run's.
func WriteSummary(path string, summary *types.RunSummary) error {
	data, err := yaml.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}
	return writeAtomic(path, data)
}

// writeAtomic writes data to a temporary file in the target directory and
// renames it into place.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".fulltext-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", path, writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
